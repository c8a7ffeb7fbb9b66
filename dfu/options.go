package dfu

import "time"

// DefaultTransferSize is used when neither an option nor the functional descriptor sets one.
const DefaultTransferSize = 2048

// DefaultDetachTimeout is the wValue sent with DETACH.
const DefaultDetachTimeout = 1000

// Config holds the device configuration.
type Config struct {
	// ProgressCallback is called during transfers to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Timeout bounds each control transfer; zero leaves it to the transport
	Timeout time.Duration

	// TransferSize overrides wTransferSize from the functional descriptor
	TransferSize int
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Timeout: 5 * time.Second,
	}
}

// Option is a functional option for configuring a Device.
type Option func(*Config)

// WithProgressCallback sets a callback function to track transfer progress.
//
// Example:
//
//	dev := dfu.New(transport, setting,
//	    dfu.WithProgressCallback(func(p dfu.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage())
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for device operations.
//
// Example:
//
//	dev := dfu.New(transport, setting, dfu.WithLogger(slog.Default()))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTimeout sets the per-transfer timeout.
//
// Example:
//
//	dev := dfu.New(transport, setting, dfu.WithTimeout(10*time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout >= 0 {
			c.Timeout = timeout
		}
	}
}

// WithTransferSize sets the block size used by UploadAll and DownloadAll callers.
// Values outside 1..65535 are ignored.
//
// Example:
//
//	dev := dfu.New(transport, setting, dfu.WithTransferSize(1024))
func WithTransferSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= 0xFFFF {
			c.TransferSize = size
		}
	}
}
