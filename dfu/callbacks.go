package dfu

// Progress phases.
const (
	PhaseErase    = "erase"
	PhaseDownload = "download"
	PhaseUpload   = "upload"
	PhaseManifest = "manifest"
	PhaseComplete = "complete"
)

// Progress describes how far a transfer has come.
// Passed to ProgressCallback during erase, download and upload.
type Progress struct {
	// Phase is one of the Phase* constants
	Phase string

	// Done is the number of bytes processed so far
	Done int

	// Total is the number of bytes to process; negative when unknown
	Total int
}

// Percentage returns the completion ratio in percent, or -1 when the total is unknown.
func (p Progress) Percentage() float64 {
	if p.Total < 0 {
		return -1
	}
	if p.Total == 0 {
		return 100
	}
	return float64(p.Done) / float64(p.Total) * 100
}

// ProgressCallback is called after every block. Implementations should return quickly.
//
// Example:
//
//	dev := dfu.New(transport, setting,
//	    dfu.WithProgressCallback(func(p dfu.Progress) {
//	        fmt.Printf("[%s] %d/%d\n", p.Phase, p.Done, p.Total)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface. *slog.Logger satisfies it.
//
// Example:
//
//	dev := dfu.New(transport, setting, dfu.WithLogger(slog.Default()))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Warn logs a warning with optional key-value pairs
	Warn(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
