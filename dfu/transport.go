package dfu

import (
	"context"

	"github.com/moffa90/go-upsilon/protocol"
)

// Transport is the USB host stack seen by the engine.
// Implementations must report a vanished device with ErrDeviceDisconnected or
// ErrDeviceUnavailable (wrapped or not) so the engine can recognize it.
type Transport interface {
	// Open opens the device for control transfers.
	Open(ctx context.Context) error

	// Close releases the device.
	Close() error

	// SelectConfiguration activates the configuration with the given bConfigurationValue.
	SelectConfiguration(ctx context.Context, value uint8) error

	// ClaimInterface claims an interface.
	ClaimInterface(ctx context.Context, intf uint8) error

	// SelectAlternateInterface activates an alternate setting of a claimed interface.
	SelectAlternateInterface(ctx context.Context, intf, alt uint8) error

	// ControlIn performs a device-to-host control transfer of at most length bytes.
	ControlIn(ctx context.Context, setup protocol.Setup, length uint16) ([]byte, error)

	// ControlOut performs a host-to-device control transfer and returns the bytes written.
	ControlOut(ctx context.Context, setup protocol.Setup, data []byte) (int, error)

	// Reset issues a USB port reset.
	Reset(ctx context.Context) error

	// Info describes the device. It must not perform I/O.
	Info() DeviceInfo
}

// DeviceInfo identifies a USB device.
type DeviceInfo struct {
	VendorID    uint16
	ProductID   uint16
	Serial      string
	ProductName string

	// BCDDevice is the device release number in binary-coded decimal
	BCDDevice uint16
}
