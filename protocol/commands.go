package protocol

import (
	"encoding/binary"
	"fmt"
)

// ClassRequest builds the setup packet of a DFU class request addressed to an interface.
// For DNLOAD and UPLOAD the value is the block number; DETACH uses it as the timeout.
func ClassRequest(request uint8, value, intf uint16) Setup {
	return Setup{
		Type:      RequestTypeClass,
		Recipient: RecipientInterface,
		Request:   request,
		Value:     value,
		Index:     intf,
	}
}

// GetDescriptorRequest builds a standard GET_DESCRIPTOR setup packet.
// Index is the language ID for string descriptors and zero otherwise.
func GetDescriptorRequest(descType, descIndex uint8, index uint16) Setup {
	return Setup{
		Type:      RequestTypeStandard,
		Recipient: RecipientDevice,
		Request:   RequestGetDescriptor,
		Value:     uint16(descType)<<8 | uint16(descIndex),
		Index:     index,
	}
}

// BuildDfuseCommand constructs the DNLOAD payload of a DfuSe vendor command.
//
// Payload structure:
//
//	[CMD][PARAM(1)]          paramLen == 1
//	[CMD][PARAM(4, LE)]      paramLen == 4
func BuildDfuseCommand(command uint8, param uint32, paramLen int) ([]byte, error) {
	switch paramLen {
	case 1:
		if param > 0xFF {
			return nil, fmt.Errorf("parameter 0x%X does not fit in one byte", param)
		}
		return []byte{command, byte(param)}, nil
	case 4:
		payload := make([]byte, 5)
		payload[0] = command
		binary.LittleEndian.PutUint32(payload[1:], param)
		return payload, nil
	default:
		return nil, fmt.Errorf("unsupported DfuSe parameter length %d", paramLen)
	}
}

// ParseDfuseCommand splits a DfuSe command payload into command and parameter.
// Device simulators use it to decode block-0 downloads.
func ParseDfuseCommand(payload []byte) (command uint8, param uint32, err error) {
	switch len(payload) {
	case 1:
		return payload[0], 0, nil
	case 2:
		return payload[0], uint32(payload[1]), nil
	case 5:
		return payload[0], binary.LittleEndian.Uint32(payload[1:]), nil
	default:
		return 0, 0, fmt.Errorf("invalid DfuSe command length %d", len(payload))
	}
}

// DfuseCommandName returns the mnemonic of a DfuSe command.
func DfuseCommandName(command uint8) string {
	switch command {
	case DfuseGetCommands:
		return "GET_COMMANDS"
	case DfuseSetAddress:
		return "SET_ADDRESS"
	case DfuseEraseSector:
		return "ERASE_SECTOR"
	default:
		return fmt.Sprintf("command 0x%02X", command)
	}
}
