// Package cmd implements the commands of the upsilon command line tool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/moffa90/go-upsilon/calculator"
	"github.com/moffa90/go-upsilon/dfu"
	"github.com/moffa90/go-upsilon/internal/log"
	"github.com/moffa90/go-upsilon/usbtransport"
)

// ErrNoCalculator is returned when no matching device is attached.
var ErrNoCalculator = errors.New("no calculator found")

// Device holds the flags shared by every command talking to a calculator.
type Device struct {
	Serial       string        `help:"Serial number of the calculator to use" env:"UPSILON_SERIAL"`
	Wait         bool          `help:"Wait until a calculator is plugged in" env:"UPSILON_WAIT"`
	WaitTimeout  time.Duration `help:"Give up waiting after this long, 0 waits forever" default:"0s" env:"UPSILON_WAIT_TIMEOUT"`
	Timeout      time.Duration `help:"Control transfer timeout" default:"5s" env:"UPSILON_TIMEOUT"`
	TransferSize int           `help:"Override the transfer size reported by the device" env:"UPSILON_TRANSFER_SIZE"`
}

// Overridden by tests.
var (
	stdout io.Writer = os.Stdout

	openFinder = func(logger *slog.Logger) (calculator.Finder, func() error) {
		f := usbtransport.NewFinder(usbtransport.WithLogger(logger))
		return f, f.Close
	}

	isTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
)

// session connects to a calculator, runs fn and disconnects. Every log line of
// the session carries the same session id.
func (d *Device) session(logger *slog.Logger, mode calculator.Mode, p *progress, fn func(context.Context, *calculator.Calculator) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, id := log.WithSession(logger)
	logger.Debug("session started", "id", id, "mode", mode)

	finder, closeFinder := openFinder(logger)
	defer func() {
		if err := closeFinder(); err != nil {
			logger.Warn("failed to close USB context", "error", err)
		}
	}()

	calc, err := d.connect(ctx, finder, logger, mode, p.callback())
	if err != nil {
		return err
	}
	defer calc.Close()

	info := calc.Info()
	logger.Info("connected", "product", info.ProductName, "serial", info.Serial, "mode", calc.Mode())

	err = fn(ctx, calc)
	p.finish()
	return err
}

func (d *Device) options(logger *slog.Logger, mode calculator.Mode, cb dfu.ProgressCallback) []calculator.Option {
	opts := []calculator.Option{
		calculator.WithMode(mode),
		calculator.WithLogger(logger),
		calculator.WithTimeout(d.Timeout),
	}
	if d.TransferSize > 0 {
		opts = append(opts, calculator.WithTransferSize(d.TransferSize))
	}
	if cb != nil {
		opts = append(opts, calculator.WithProgressCallback(cb))
	}
	return opts
}

func (d *Device) match(mode calculator.Mode) calculator.Match {
	if mode == calculator.ModeRecovery {
		return calculator.RecoveryMatch(d.Serial)
	}
	return calculator.CalculatorMatch(d.Serial)
}

func (d *Device) connect(ctx context.Context, finder calculator.Finder, logger *slog.Logger, mode calculator.Mode, cb dfu.ProgressCallback) (*calculator.Calculator, error) {
	opts := d.options(logger, mode, cb)
	m := d.match(mode)

	if !d.Wait {
		transports, err := finder.Find(ctx, m)
		if err != nil {
			return nil, err
		}
		if len(transports) == 0 {
			return nil, ErrNoCalculator
		}
		for _, extra := range transports[1:] {
			_ = extra.Close()
		}
		if len(transports) > 1 {
			logger.Warn("several calculators attached, using the first one", "count", len(transports))
		}
		return calculator.Connect(ctx, transports[0], opts...)
	}

	if d.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.WaitTimeout)
		defer cancel()
	}

	found := make(chan *calculator.Calculator, 1)
	w := calculator.NewWatcher(finder, m, func(c *calculator.Calculator) {
		found <- c
	}, opts...)

	logger.Info("waiting for a calculator", "mode", mode)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	defer w.Stop()

	select {
	case c := <-found:
		return c, nil
	case <-w.Done():
		select {
		case c := <-found:
			return c, nil
		default:
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoCalculator, err)
		}
		return nil, ErrNoCalculator
	}
}
