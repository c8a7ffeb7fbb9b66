package dfufile

import "fmt"

// FormatError indicates a file that does not follow the DfuSe layout.
type FormatError struct {
	// Offset is the byte offset where parsing stopped
	Offset int

	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid DfuSe file at offset %d: %s", e.Offset, e.Reason)
}

// CRCError indicates that the suffix CRC does not match the file content.
type CRCError struct {
	Expected uint32
	Actual   uint32
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("CRC mismatch: file says 0x%08X, content is 0x%08X", e.Expected, e.Actual)
}
