package simdev

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"

	"github.com/moffa90/go-upsilon/protocol"
)

// String descriptor indices. Alternate names follow from stringAlternates.
const (
	stringManufacturer = 1
	stringProduct      = 2
	stringSerial       = 3
	stringAlternates   = 4
)

func (d *Device) descriptor(setup protocol.Setup, length uint16) ([]byte, error) {
	descType := uint8(setup.Value >> 8)
	index := uint8(setup.Value)

	var data []byte
	switch descType {
	case protocol.DescriptorTypeDevice:
		data = d.deviceDescriptor()
	case protocol.DescriptorTypeConfiguration:
		if index != 0 {
			return nil, ErrStall
		}
		data = d.configurationDescriptor()
	case protocol.DescriptorTypeString:
		var err error
		if data, err = d.stringDescriptor(index, setup.Index); err != nil {
			return nil, err
		}
	default:
		return nil, ErrStall
	}

	if int(length) < len(data) {
		data = data[:length]
	}
	return data, nil
}

func (d *Device) deviceDescriptor() []byte {
	b := make([]byte, 18)
	b[0] = 18
	b[1] = protocol.DescriptorTypeDevice
	binary.LittleEndian.PutUint16(b[2:], 0x0200)
	b[7] = 64
	binary.LittleEndian.PutUint16(b[8:], d.cfg.VendorID)
	binary.LittleEndian.PutUint16(b[10:], d.cfg.ProductID)
	binary.LittleEndian.PutUint16(b[12:], d.cfg.BCDDevice)
	b[14] = stringManufacturer
	b[15] = stringProduct
	b[16] = stringSerial
	b[17] = 1
	return b
}

// configurationDescriptor lays out one configuration with interface 0 and one
// alternate per name, followed by the DFU functional descriptor.
func (d *Device) configurationDescriptor() []byte {
	b := []byte{9, protocol.DescriptorTypeConfiguration, 0, 0, 1, 1, 0, 0xC0, 0x32}

	proto := uint8(protocol.ProtocolDFUMode)
	for i := range d.cfg.Alternates {
		b = append(b, 9, protocol.DescriptorTypeInterface, 0, uint8(i), 0,
			protocol.ClassApplicationSpecific, protocol.SubClassDFU, proto, uint8(stringAlternates+i))
	}

	fd := make([]byte, 9)
	fd[0] = 9
	fd[1] = protocol.DescriptorTypeDFUFunctional
	fd[2] = d.cfg.Attributes
	binary.LittleEndian.PutUint16(fd[3:], d.cfg.DetachTimeout)
	binary.LittleEndian.PutUint16(fd[5:], d.cfg.TransferSize)
	binary.LittleEndian.PutUint16(fd[7:], d.cfg.DFUVersion)
	b = append(b, fd...)

	binary.LittleEndian.PutUint16(b[2:], uint16(len(b)))
	return b
}

func (d *Device) stringDescriptor(index uint8, langID uint16) ([]byte, error) {
	if index == 0 {
		return []byte{4, protocol.DescriptorTypeString, 0x09, 0x04}, nil
	}
	if langID != protocol.LangIDEnglishUS {
		return nil, ErrStall
	}

	var s string
	switch {
	case index == stringManufacturer:
		s = d.cfg.Manufacturer
	case index == stringProduct:
		s = d.cfg.Product
	case index == stringSerial:
		s = d.cfg.Serial
	case int(index-stringAlternates) < len(d.cfg.Alternates):
		s = d.cfg.Alternates[index-stringAlternates]
	default:
		return nil, ErrStall
	}

	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	if len(encoded) > 253 {
		encoded = encoded[:252]
	}
	return append([]byte{uint8(2 + len(encoded)), protocol.DescriptorTypeString}, encoded...), nil
}
