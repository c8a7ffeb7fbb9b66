package usbtransport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/moffa90/go-upsilon/dfu"
	"github.com/moffa90/go-upsilon/protocol"
)

// Transport implements dfu.Transport over a libusb device.
type Transport struct {
	mu sync.Mutex

	dev    *gousb.Device
	info   dfu.DeviceInfo
	closed bool

	config *gousb.Config
	intf   *gousb.Interface
}

// New wraps an opened gousb device. The product name and serial number are
// read once here; failures leave them empty.
func New(dev *gousb.Device) *Transport {
	if dev == nil {
		panic("device cannot be nil")
	}

	info := dfu.DeviceInfo{
		VendorID:  uint16(dev.Desc.Vendor),
		ProductID: uint16(dev.Desc.Product),
		BCDDevice: uint16(dev.Desc.Device),
	}
	if s, err := dev.SerialNumber(); err == nil {
		info.Serial = s
	}
	if s, err := dev.Product(); err == nil {
		info.ProductName = s
	}

	return &Transport{dev: dev, info: info}
}

// Open implements dfu.Transport. The device is already open; Open only
// checks that it was not closed and enables kernel driver auto-detach.
func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return dfu.ErrDeviceUnavailable
	}
	if err := t.dev.SetAutoDetach(true); err != nil {
		return mapError(err)
	}
	return nil
}

// Close implements dfu.Transport. It is safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.release()
	return t.dev.Close()
}

func (t *Transport) release() {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.config != nil {
		t.config.Close()
		t.config = nil
	}
}

// SelectConfiguration implements dfu.Transport.
func (t *Transport) SelectConfiguration(ctx context.Context, value uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return dfu.ErrDeviceUnavailable
	}
	if t.config != nil && t.config.Desc.Number == int(value) {
		return nil
	}

	t.release()
	cfg, err := t.dev.Config(int(value))
	if err != nil {
		return mapError(err)
	}
	t.config = cfg
	return nil
}

// ClaimInterface implements dfu.Transport by claiming alternate setting 0.
func (t *Transport) ClaimInterface(ctx context.Context, intf uint8) error {
	return t.claim(int(intf), 0)
}

// SelectAlternateInterface implements dfu.Transport.
func (t *Transport) SelectAlternateInterface(ctx context.Context, intf, alt uint8) error {
	return t.claim(int(intf), int(alt))
}

func (t *Transport) claim(number, alt int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return dfu.ErrDeviceUnavailable
	}
	if t.config == nil {
		return errors.New("no configuration selected")
	}
	if t.intf != nil {
		if t.intf.Setting.Number == number && t.intf.Setting.Alternate == alt {
			return nil
		}
		t.intf.Close()
		t.intf = nil
	}

	intf, err := t.config.Interface(number, alt)
	if err != nil {
		return mapError(err)
	}
	t.intf = intf
	return nil
}

// ControlIn implements dfu.Transport.
func (t *Transport) ControlIn(ctx context.Context, setup protocol.Setup, length uint16) ([]byte, error) {
	buf := make([]byte, length)
	n, err := t.control(ctx, setup, true, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// ControlOut implements dfu.Transport.
func (t *Transport) ControlOut(ctx context.Context, setup protocol.Setup, data []byte) (int, error) {
	return t.control(ctx, setup, false, data)
}

func (t *Transport) control(ctx context.Context, setup protocol.Setup, in bool, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, dfu.ErrDeviceUnavailable
	}

	if deadline, ok := ctx.Deadline(); ok {
		t.dev.ControlTimeout = time.Until(deadline)
	} else {
		t.dev.ControlTimeout = 0
	}

	n, err := t.dev.Control(setup.RequestTypeByte(in), setup.Request, setup.Value, setup.Index, data)
	if err != nil {
		return n, mapError(err)
	}
	return n, nil
}

// Reset implements dfu.Transport.
func (t *Transport) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return dfu.ErrDeviceUnavailable
	}
	if err := t.dev.Reset(); err != nil {
		return fmt.Errorf("%w: %v", dfu.ErrResetFailed, err)
	}
	return nil
}

// Info implements dfu.Transport.
func (t *Transport) Info() dfu.DeviceInfo { return t.info }

// mapError translates the libusb conditions of a vanished device into the
// dfu sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gousb.ErrorNoDevice):
		return fmt.Errorf("%w: %v", dfu.ErrDeviceDisconnected, err)
	case errors.Is(err, gousb.ErrorNotFound):
		return fmt.Errorf("%w: %v", dfu.ErrDeviceUnavailable, err)
	default:
		return err
	}
}
