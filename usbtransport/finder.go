package usbtransport

import (
	"context"
	"fmt"

	"github.com/google/gousb"

	"github.com/moffa90/go-upsilon/calculator"
	"github.com/moffa90/go-upsilon/dfu"
)

// Finder opens the attached devices selected by a calculator.Match.
type Finder struct {
	usb    *gousb.Context
	logger dfu.Logger
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithLogger sets the logger used for devices that fail to open.
func WithLogger(logger dfu.Logger) FinderOption {
	return func(f *Finder) {
		f.logger = logger
	}
}

// NewFinder creates a libusb context. Close it when done.
func NewFinder(opts ...FinderOption) *Finder {
	f := &Finder{usb: gousb.NewContext()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Close releases the libusb context. Transports handed out must be closed first.
func (f *Finder) Close() error {
	return f.usb.Close()
}

// Find implements calculator.Finder.
func (f *Finder) Find(ctx context.Context, m calculator.Match) ([]dfu.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	devs, err := f.usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return descriptorMatches(m, desc)
	})
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("list USB devices: %w", mapError(err))
	}
	if err != nil && f.logger != nil {
		// Some devices matched but could not be opened, typically for lack of permissions.
		f.logger.Warn("some USB devices could not be opened", "error", err)
	}

	var out []dfu.Transport
	for _, d := range devs {
		t := New(d)
		if !m.Matches(t.Info()) {
			t.Close()
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// descriptorMatches is the part of a Match that can be checked without opening
// the device. Serial numbers need an open device and are checked afterwards.
// A Match carrying only a serial number selects every device.
func descriptorMatches(m calculator.Match, desc *gousb.DeviceDesc) bool {
	if m.VendorID == 0 && m.ProductID == 0 {
		return m.Serial != ""
	}
	ids := m
	ids.Serial = ""
	return ids.Matches(dfu.DeviceInfo{
		VendorID:  uint16(desc.Vendor),
		ProductID: uint16(desc.Product),
	})
}
