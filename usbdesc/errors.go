package usbdesc

import "fmt"

// DescriptorError indicates a malformed descriptor stream.
type DescriptorError struct {
	// Offset is the byte position of the offending descriptor
	Offset int

	// Reason describes the problem
	Reason string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("malformed descriptor at offset %d: %s", e.Offset, e.Reason)
}
