package calculator

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDFUInterface means the device exposes no DFU alternate setting.
	ErrNoDFUInterface = errors.New("no DFU interface found")

	// ErrNotDfuSe means the device speaks plain DFU, so memory cannot be addressed.
	ErrNotDfuSe = errors.New("device does not support DfuSe")

	// ErrNoStorage means no recognized firmware locates a storage area.
	ErrNoStorage = errors.New("no storage area: firmware not recognized")
)

// ModeError indicates an operation that is not available in the connection mode.
type ModeError struct {
	Op   string
	Mode Mode
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("%s is not available in %s mode", e.Op, e.Mode)
}

// FileMismatchError indicates a DfuSe file built for another device.
type FileMismatchError struct {
	VendorID  uint16
	ProductID uint16
}

func (e *FileMismatchError) Error() string {
	return fmt.Sprintf("file is for device %04x:%04x", e.VendorID, e.ProductID)
}
