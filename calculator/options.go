package calculator

import (
	"time"

	"github.com/moffa90/go-upsilon/dfu"
)

// Mode selects which bootloader a Calculator talks to.
type Mode int

const (
	// ModeCalculator is the DFU mode of a running NumWorks firmware or bootloader.
	ModeCalculator Mode = iota

	// ModeRecovery is the STM32 system bootloader.
	ModeRecovery
)

func (m Mode) String() string {
	switch m {
	case ModeCalculator:
		return "calculator"
	case ModeRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}

// AutoConnectInterval is the default delay between two discovery attempts of a Watcher.
const AutoConnectInterval = time.Second

// Config holds the calculator configuration.
type Config struct {
	// Mode selects calculator or recovery behavior
	Mode Mode

	// ProgressCallback is called during erase, download and upload (optional)
	ProgressCallback dfu.ProgressCallback

	// Logger is used for logging operations (optional)
	Logger dfu.Logger

	// Timeout bounds each control transfer
	Timeout time.Duration

	// TransferSize overrides the transfer size announced by the device
	TransferSize int

	// PollInterval is the delay between two discovery attempts of a Watcher
	PollInterval time.Duration
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Mode:         ModeCalculator,
		Timeout:      5 * time.Second,
		PollInterval: AutoConnectInterval,
	}
}

// Option is a functional option for configuring a Calculator.
type Option func(*Config)

// WithMode selects calculator or recovery behavior.
//
// Example:
//
//	calc, err := calculator.Connect(ctx, transport, calculator.WithMode(calculator.ModeRecovery))
func WithMode(mode Mode) Option {
	return func(c *Config) {
		c.Mode = mode
	}
}

// WithProgressCallback sets a callback function to track transfer progress.
func WithProgressCallback(callback dfu.ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for calculator operations.
//
// Example:
//
//	calc, err := calculator.Connect(ctx, transport, calculator.WithLogger(slog.Default()))
func WithLogger(logger dfu.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTimeout sets the per-transfer timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout >= 0 {
			c.Timeout = timeout
		}
	}
}

// WithTransferSize overrides the transfer size announced by the device.
func WithTransferSize(size int) Option {
	return func(c *Config) {
		c.TransferSize = size
	}
}

// WithPollInterval sets the delay between two discovery attempts of a Watcher.
// Non-positive values are ignored.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.PollInterval = interval
		}
	}
}

func (c Config) deviceOptions() []dfu.Option {
	opts := []dfu.Option{dfu.WithTimeout(c.Timeout)}
	if c.Logger != nil {
		opts = append(opts, dfu.WithLogger(c.Logger))
	}
	if c.ProgressCallback != nil {
		opts = append(opts, dfu.WithProgressCallback(c.ProgressCallback))
	}
	if c.TransferSize > 0 {
		opts = append(opts, dfu.WithTransferSize(c.TransferSize))
	}
	return opts
}
