package storage

import "fmt"

// TooLargeError indicates that encoded records do not fit in the storage area.
type TooLargeError struct {
	// Record is the first record that did not fit, empty for the terminator
	Record string

	// Size is the encoded size that would have been reached
	Size int

	// Max is the available size
	Max int
}

func (e *TooLargeError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("storage too large: %d bytes, maximum is %d", e.Size, e.Max)
	}
	return fmt.Sprintf("storage too large at %q: %d bytes, maximum is %d", e.Record, e.Size, e.Max)
}

// DecodeError indicates a storage area with a valid magic but inconsistent records.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid storage at offset %d: %s", e.Offset, e.Reason)
}
