package protocol

import (
	"errors"
	"fmt"
)

// ProtocolError represents a non-OK status or an unexpected state reported by the device.
type ProtocolError struct {
	// Operation is the request or high-level step that failed
	Operation string

	// Status is the status code read after the failure
	Status StatusCode

	// State is the state read after the failure
	State State
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed: %s (0x%02X), state %s",
		e.Operation, StatusName(e.Status), uint8(e.Status), e.State)
}

// IsProtocolError returns true if err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

var statusNames = [...]string{
	StatusOK:               "OK",
	StatusErrTarget:        "file is not for this target",
	StatusErrFile:          "file fails a vendor-specific verification test",
	StatusErrWrite:         "unable to write memory",
	StatusErrErase:         "memory erase function failed",
	StatusErrCheckErased:   "memory erase check failed",
	StatusErrProg:          "program memory function failed",
	StatusErrVerify:        "programmed memory failed verification",
	StatusErrAddress:       "memory address is out of range",
	StatusErrNotDone:       "premature DFU_DNLOAD with wLength = 0",
	StatusErrFirmware:      "firmware is corrupt",
	StatusErrVendor:        "vendor-specific error",
	StatusErrUSBReset:      "unexpected USB reset signaling",
	StatusErrPowerOnReset:  "unexpected power on reset",
	StatusErrUnknown:       "unknown error",
	StatusErrStalledPacket: "stalled an unexpected request",
}

// StatusName returns a human-readable description of a status code.
func StatusName(code StatusCode) string {
	if int(code) < len(statusNames) {
		return statusNames[code]
	}
	return fmt.Sprintf("unknown status code 0x%02X", uint8(code))
}
