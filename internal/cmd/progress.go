package cmd

import (
	"fmt"
	"io"

	"github.com/moffa90/go-upsilon/dfu"
)

// progress renders transfer progress on a single terminal line.
// A nil *progress renders nothing.
type progress struct {
	w     io.Writer
	phase string
	dirty bool
}

func newProgress(w io.Writer, enabled bool) *progress {
	if !enabled {
		return nil
	}
	return &progress{w: w}
}

func (p *progress) callback() dfu.ProgressCallback {
	if p == nil {
		return nil
	}
	return p.update
}

func (p *progress) update(pr dfu.Progress) {
	if p.phase != pr.Phase && p.dirty {
		fmt.Fprintln(p.w)
	}
	p.phase = pr.Phase
	p.dirty = true

	if pct := pr.Percentage(); pct >= 0 {
		fmt.Fprintf(p.w, "\r%-9s %5.1f%% %d/%d bytes", pr.Phase, pct, pr.Done, pr.Total)
		return
	}
	fmt.Fprintf(p.w, "\r%-9s %d bytes", pr.Phase, pr.Done)
}

func (p *progress) finish() {
	if p == nil || !p.dirty {
		return
	}
	fmt.Fprintln(p.w)
	p.dirty = false
	p.phase = ""
}
