package usbdesc

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"

	"github.com/moffa90/go-upsilon/protocol"
)

// ParseStringDescriptor decodes a string descriptor. The payload is UTF-16LE.
func ParseStringDescriptor(b []byte) (string, error) {
	payload, err := stringPayload(b)
	if err != nil {
		return "", err
	}

	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(payload)
	if err != nil {
		return "", &DescriptorError{Offset: 2, Reason: "invalid UTF-16 string: " + err.Error()}
	}

	return string(decoded), nil
}

// ParseLanguageIDs decodes string descriptor zero, the list of supported language IDs.
func ParseLanguageIDs(b []byte) ([]uint16, error) {
	payload, err := stringPayload(b)
	if err != nil {
		return nil, err
	}

	ids := make([]uint16, 0, len(payload)/2)
	for i := 0; i+1 < len(payload); i += 2 {
		ids = append(ids, binary.LittleEndian.Uint16(payload[i:]))
	}

	return ids, nil
}

func stringPayload(b []byte) ([]byte, error) {
	if len(b) < 2 {
		return nil, &DescriptorError{Offset: len(b), Reason: "string descriptor too short"}
	}
	if b[1] != protocol.DescriptorTypeString {
		return nil, &DescriptorError{Offset: 1, Reason: "not a string descriptor"}
	}

	length := int(b[0])
	if length < 2 || length > len(b) {
		return nil, &DescriptorError{Offset: 0, Reason: "declared length exceeds remaining bytes"}
	}

	payload := b[2:length]
	if len(payload)%2 != 0 {
		payload = payload[:len(payload)-1]
	}

	return payload, nil
}
