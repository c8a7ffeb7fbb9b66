package dfu

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-upsilon/protocol"
)

// Transient transport conditions. Transports return these (possibly wrapped)
// when the device vanished, which is expected while it manifests or resets.
var (
	// ErrDeviceUnavailable means the device cannot be reached right now
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrDeviceDisconnected means the device left the bus
	ErrDeviceDisconnected = errors.New("the device was disconnected")

	// ErrResetFailed means the port reset did not complete
	ErrResetFailed = errors.New("unable to reset the device")
)

// IsDeviceGone reports whether err says the device vanished from the bus.
func IsDeviceGone(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable) || errors.Is(err, ErrDeviceDisconnected)
}

func isResetNoise(err error) bool {
	return IsDeviceGone(err) || errors.Is(err, ErrResetFailed)
}

// TransportError indicates that a control transfer failed at the USB layer.
type TransportError struct {
	// Op names the request that failed
	Op string

	// Err is the transport error
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DownloadError indicates that the device rejected a downloaded block.
type DownloadError struct {
	// Offset is the position of the rejected block in the image
	Offset int

	// Status is the status read after the block
	Status protocol.Status
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed at offset %d: %s (0x%02X), state %s",
		e.Offset, protocol.StatusName(e.Status.Code), uint8(e.Status.Code), e.Status.State)
}

// RecoveryError indicates that the device could not be brought back to dfuIDLE.
type RecoveryError struct {
	State protocol.State
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("failed to return to idle state after abort: state %s", e.State)
}
