package calculator

import (
	"context"
	"fmt"

	"github.com/moffa90/go-upsilon/dfu"
	"github.com/moffa90/go-upsilon/dfuse"
	"github.com/moffa90/go-upsilon/model"
)

// USB identifiers of NumWorks calculators.
const (
	VendorID          uint16 = 0x0483
	CalculatorProduct uint16 = 0xA291
	RecoveryProduct   uint16 = 0xDF11
)

// RAM regions the bootloaders accept but do not announce.
var (
	RAM = dfuse.Segment{
		Start: 0x20000000, End: 0x20040000, SectorSize: 1024,
		Readable: true, Writable: true,
	}
	RAMN0120 = dfuse.Segment{
		Start: 0x24000000, End: 0x24040000, SectorSize: 1024,
		Readable: true, Writable: true,
	}
)

// Flash targets.
const (
	InternalFlashAddress uint32 = 0x08000000
	ExternalFlashAddress uint32 = 0x90000000
	RecoveryAddress      uint32 = 0x20030000
)

// Calculator is a connected NumWorks calculator.
//
// Calculator is not safe for concurrent use.
type Calculator struct {
	base   *dfu.Device
	dfuse  *dfuse.Device
	config Config
}

// Connect opens the first DFU interface of t and selects the capabilities the
// device announces. DfuSe devices get the unannounced RAM regions added to
// their memory map.
//
// Example:
//
//	calc, err := calculator.Connect(ctx, transport, calculator.WithLogger(slog.Default()))
//	if err != nil {
//	    return err
//	}
//	defer calc.Close()
func Connect(ctx context.Context, t dfu.Transport, opts ...Option) (*Calculator, error) {
	if t == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	if err := t.Open(ctx); err != nil {
		return nil, &dfu.TransportError{Op: "open", Err: err}
	}

	settings, err := dfu.FindInterfaces(ctx, t)
	if err != nil {
		t.Close()
		return nil, err
	}
	if len(settings) == 0 {
		t.Close()
		return nil, ErrNoDFUInterface
	}

	base := dfu.New(t, settings[0], cfg.deviceOptions()...)
	if err := base.Open(ctx); err != nil {
		t.Close()
		return nil, err
	}

	c := &Calculator{base: base, config: cfg}

	props, err := base.ReadProperties(ctx)
	if err != nil {
		cfg.Logger.Warn("no DFU functional descriptor, using defaults", "error", err)
		return c, nil
	}

	if !dfuse.Supported(props, settings[0]) {
		return c, nil
	}

	c.dfuse, err = dfuse.New(base)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("memory map: %w", err)
	}

	if cfg.Mode == ModeCalculator {
		c.dfuse.Memory().Prepend(RAMN0120, RAM)
	} else {
		c.dfuse.Memory().Prepend(RAM)
	}

	info := t.Info()
	cfg.Logger.Info("calculator connected",
		"mode", cfg.Mode,
		"product", info.ProductName,
		"serial", info.Serial,
		"transfer_size", base.TransferSize(),
		"manifestation_tolerant", base.ManifestationTolerant(),
	)
	return c, nil
}

// Close releases the device.
func (c *Calculator) Close() error {
	return c.base.Close()
}

// Mode returns the connection mode.
func (c *Calculator) Mode() Mode { return c.config.Mode }

// Info describes the USB device.
func (c *Calculator) Info() dfu.DeviceInfo { return c.base.Transport().Info() }

// Device returns the DFU engine.
func (c *Calculator) Device() *dfu.Device { return c.base }

// DfuSe returns the DfuSe engine, or nil for plain DFU devices.
func (c *Calculator) DfuSe() *dfuse.Device { return c.dfuse }

// TransferSize returns the block size used for transfers.
func (c *Calculator) TransferSize() int { return c.base.TransferSize() }

// ManifestationTolerant reports whether the device stays reachable after manifestation.
func (c *Calculator) ManifestationTolerant() bool { return c.base.ManifestationTolerant() }

// Segments returns the memory map, RAM regions included.
func (c *Calculator) Segments() []dfuse.Segment {
	if c.dfuse == nil {
		return nil
	}
	return c.dfuse.Memory().Segments
}

// Model guesses the calculator model. See model.Classify.
func (c *Calculator) Model(excludeModded bool) model.Model {
	if c.config.Mode == ModeRecovery {
		return model.ClassifyRecovery(c.Segments())
	}

	info := c.Info()
	return model.Classify(model.Input{
		Segments:    c.Segments(),
		ProductName: info.ProductName,
		Version:     model.VersionFromBCD(info.BCDDevice),
	}, excludeModded)
}

func (c *Calculator) requireDfuSe() (*dfuse.Device, error) {
	if c.dfuse == nil {
		return nil, ErrNotDfuSe
	}
	return c.dfuse, nil
}

func (c *Calculator) requireMode(op string, mode Mode) error {
	if c.config.Mode != mode {
		return &ModeError{Op: op, Mode: c.config.Mode}
	}
	return nil
}

// read uploads n bytes at addr.
func (c *Calculator) read(ctx context.Context, addr uint32, n int) ([]byte, error) {
	dev, err := c.requireDfuSe()
	if err != nil {
		return nil, err
	}
	dev.SetStartAddress(addr)
	return dev.UploadAll(ctx, c.TransferSize(), n)
}

// write downloads data at addr.
func (c *Calculator) write(ctx context.Context, addr uint32, data []byte, manifestationTolerant bool) error {
	dev, err := c.requireDfuSe()
	if err != nil {
		return err
	}
	dev.SetStartAddress(addr)
	return dev.DownloadAll(ctx, c.TransferSize(), data, manifestationTolerant)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
