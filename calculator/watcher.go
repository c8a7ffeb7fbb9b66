package calculator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/moffa90/go-upsilon/dfu"
)

// Finder lists the devices currently attached that satisfy a Match.
// Returned transports the caller does not use are closed by the caller.
type Finder interface {
	Find(ctx context.Context, m Match) ([]dfu.Transport, error)
}

// FinderFunc adapts a function to the Finder interface.
type FinderFunc func(ctx context.Context, m Match) ([]dfu.Transport, error)

func (f FinderFunc) Find(ctx context.Context, m Match) ([]dfu.Transport, error) {
	return f(ctx, m)
}

// ErrWatcherRunning is returned by Start on a Watcher that is already polling.
var ErrWatcherRunning = errors.New("watcher already running")

// Watcher polls for a matching device and connects to the first one found.
//
// Polling stops once a calculator is connected or Stop is called. After Stop
// returns no further attempt is made.
type Watcher struct {
	finder    Finder
	match     Match
	opts      []Option
	interval  time.Duration
	connected func(*Calculator)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a stopped Watcher. connected is called from the polling
// goroutine with every calculator connected; it must not call Stop.
//
// Example:
//
//	w := calculator.NewWatcher(finder, calculator.CalculatorMatch(""), func(c *calculator.Calculator) {
//	    calcs <- c
//	})
//	w.Start(ctx)
//	defer w.Stop()
func NewWatcher(finder Finder, match Match, connected func(*Calculator), opts ...Option) *Watcher {
	if finder == nil {
		panic("finder cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Watcher{
		finder:    finder,
		match:     match,
		opts:      opts,
		interval:  cfg.PollInterval,
		connected: connected,
	}
}

// Start begins polling. The first attempt is made immediately.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done != nil {
		select {
		case <-w.done:
		default:
			return ErrWatcherRunning
		}
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
	return nil
}

// Stop cancels polling and waits for an attempt in progress to finish.
// It is safe to call Stop more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when polling ends. It is nil before Start.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

func (w *Watcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if calc := w.attempt(ctx); calc != nil {
			if w.connected != nil {
				w.connected(calc)
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) attempt(ctx context.Context) *Calculator {
	if ctx.Err() != nil {
		return nil
	}

	logger := w.logger()
	transports, err := w.finder.Find(ctx, w.match)
	if err != nil {
		logger.Debug("device discovery failed", "error", err)
		return nil
	}
	if len(transports) == 0 {
		return nil
	}
	for _, t := range transports[1:] {
		t.Close()
	}

	calc, err := Connect(ctx, transports[0], w.opts...)
	if err != nil {
		logger.Warn("auto-connect failed", "error", err)
		transports[0].Close()
		return nil
	}
	return calc
}

func (w *Watcher) logger() dfu.Logger {
	cfg := defaultConfig()
	for _, opt := range w.opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		return nopLogger{}
	}
	return cfg.Logger
}
