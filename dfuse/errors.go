package dfuse

import (
	"fmt"

	"github.com/moffa90/go-upsilon/protocol"
)

// CommandError indicates that the device rejected a DfuSe command.
type CommandError struct {
	Command uint8
	Param   uint32
	Status  protocol.Status
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("DfuSe command %s(0x%08X) failed: %s (0x%02X), state %s",
		protocol.DfuseCommandName(e.Command), e.Param,
		protocol.StatusName(e.Status.Code), uint8(e.Status.Code), e.Status.State)
}

// MemoryDescriptorError indicates a malformed memory descriptor string.
type MemoryDescriptorError struct {
	Descriptor string
	Pos        int
	Reason     string
}

func (e *MemoryDescriptorError) Error() string {
	return fmt.Sprintf("invalid DfuSe memory descriptor %q at position %d: %s", e.Descriptor, e.Pos, e.Reason)
}

// UnmappedAddressError indicates an address outside every segment of the memory map.
type UnmappedAddressError struct {
	Address uint32
}

func (e *UnmappedAddressError) Error() string {
	return fmt.Sprintf("address 0x%08X is outside the memory map", e.Address)
}
