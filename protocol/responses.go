package protocol

import (
	"fmt"
	"time"
)

// ParseStatus parses a GETSTATUS response.
//
// Data format (StatusResponseSize bytes):
//
//	[bStatus][bwPollTimeout(3, little-endian)][bState][iString]
func ParseStatus(data []byte) (Status, error) {
	if len(data) < StatusResponseSize {
		return Status{}, fmt.Errorf("invalid data length for GETSTATUS response: got %d bytes, expected %d", len(data), StatusResponseSize)
	}

	timeoutMsec := uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16

	return Status{
		Code:        StatusCode(data[0]),
		PollTimeout: time.Duration(timeoutMsec) * time.Millisecond,
		State:       State(data[4]),
	}, nil
}

// ParseState parses a GETSTATE response.
//
// Data format (1 byte):
//
//	[bState]
func ParseState(data []byte) (State, error) {
	if len(data) < StateResponseSize {
		return 0, fmt.Errorf("invalid data length for GETSTATE response: got %d bytes, expected %d", len(data), StateResponseSize)
	}

	return State(data[0]), nil
}

// EncodeStatus builds a GETSTATUS response. Device simulators use it; hosts never send one.
func EncodeStatus(s Status) []byte {
	ms := uint32(s.PollTimeout / time.Millisecond)
	return []byte{
		byte(s.Code),
		byte(ms), byte(ms >> 8), byte(ms >> 16),
		byte(s.State),
		0,
	}
}
