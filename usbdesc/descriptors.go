package usbdesc

import (
	"encoding/binary"

	"github.com/moffa90/go-upsilon/protocol"
)

// Descriptor is any element of a configuration descriptor's sub-descriptor list.
type Descriptor interface {
	// Type returns bDescriptorType
	Type() uint8
}

// DeviceDescriptor is the standard 18-byte device descriptor.
type DeviceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	BCDUSB            uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	BCDDevice         uint16
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialIndex       uint8
	NumConfigurations uint8
}

// ConfigurationDescriptor is a configuration header plus every descriptor that follows it.
type ConfigurationDescriptor struct {
	Length             uint8
	DescriptorType     uint8
	TotalLength        uint16
	NumInterfaces      uint8
	ConfigurationValue uint8
	ConfigurationIndex uint8
	Attributes         uint8
	MaxPower           uint8

	// Descriptors holds every sub-descriptor in stream order
	Descriptors []Descriptor

	// Interfaces holds the interface descriptors, one per alternate setting
	Interfaces []*InterfaceDescriptor
}

// InterfaceDescriptor is one alternate setting of an interface.
type InterfaceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	InterfaceIndex    uint8

	// Descriptors holds the descriptors following this interface up to the next one
	Descriptors []Descriptor

	// Functional is the DFU functional descriptor attached to this interface, if any
	Functional *FunctionalDescriptor
}

// Type implements Descriptor.
func (d *InterfaceDescriptor) Type() uint8 { return d.DescriptorType }

// IsDFU reports whether the interface carries the DFU class and subclass.
func (d *InterfaceDescriptor) IsDFU() bool {
	return d.InterfaceClass == protocol.ClassApplicationSpecific &&
		d.InterfaceSubClass == protocol.SubClassDFU
}

// FunctionalDescriptor is the DFU functional descriptor (type 0x21).
type FunctionalDescriptor struct {
	Length         uint8
	DescriptorType uint8
	Attributes     uint8
	DetachTimeout  uint16
	TransferSize   uint16

	// DFUVersion is bcdDFUVersion; zero when the descriptor predates DFU 1.1
	DFUVersion uint16

	WillDetach            bool
	ManifestationTolerant bool
	CanUpload             bool
	CanDownload           bool
}

// Type implements Descriptor.
func (d *FunctionalDescriptor) Type() uint8 { return d.DescriptorType }

// RawDescriptor is a descriptor kept as opaque bytes, header included.
type RawDescriptor struct {
	DescriptorType uint8
	Data           []byte
}

// Type implements Descriptor.
func (d *RawDescriptor) Type() uint8 { return d.DescriptorType }

const (
	deviceDescriptorSize        = 18
	configurationDescriptorSize = 9
	interfaceDescriptorSize     = 9
	functionalDescriptorMinSize = 7
	functionalDescriptorSize    = 9
)

// ParseDeviceDescriptor decodes a standard device descriptor.
func ParseDeviceDescriptor(b []byte) (*DeviceDescriptor, error) {
	if len(b) < deviceDescriptorSize {
		return nil, &DescriptorError{Offset: len(b), Reason: "device descriptor too short"}
	}

	return &DeviceDescriptor{
		Length:            b[0],
		DescriptorType:    b[1],
		BCDUSB:            binary.LittleEndian.Uint16(b[2:]),
		DeviceClass:       b[4],
		DeviceSubClass:    b[5],
		DeviceProtocol:    b[6],
		MaxPacketSize0:    b[7],
		VendorID:          binary.LittleEndian.Uint16(b[8:]),
		ProductID:         binary.LittleEndian.Uint16(b[10:]),
		BCDDevice:         binary.LittleEndian.Uint16(b[12:]),
		ManufacturerIndex: b[14],
		ProductIndex:      b[15],
		SerialIndex:       b[16],
		NumConfigurations: b[17],
	}, nil
}

// ParseConfigurationDescriptor decodes a configuration descriptor and the
// sub-descriptors that follow its 9-byte header.
func ParseConfigurationDescriptor(b []byte) (*ConfigurationDescriptor, error) {
	if len(b) < configurationDescriptorSize {
		return nil, &DescriptorError{Offset: len(b), Reason: "configuration descriptor too short"}
	}

	cfg := &ConfigurationDescriptor{
		Length:             b[0],
		DescriptorType:     b[1],
		TotalLength:        binary.LittleEndian.Uint16(b[2:]),
		NumInterfaces:      b[4],
		ConfigurationValue: b[5],
		ConfigurationIndex: b[6],
		Attributes:         b[7],
		MaxPower:           b[8],
	}

	end := len(b)
	if int(cfg.TotalLength) < end && int(cfg.TotalLength) >= configurationDescriptorSize {
		end = int(cfg.TotalLength)
	}

	descs, err := ParseSubDescriptors(b[configurationDescriptorSize:end])
	if err != nil {
		if de, ok := err.(*DescriptorError); ok {
			de.Offset += configurationDescriptorSize
		}
		return nil, err
	}

	cfg.Descriptors = descs
	for _, d := range descs {
		if intf, ok := d.(*InterfaceDescriptor); ok {
			cfg.Interfaces = append(cfg.Interfaces, intf)
		}
	}

	return cfg, nil
}

// ParseInterfaceDescriptor decodes a standard interface descriptor.
func ParseInterfaceDescriptor(b []byte) (*InterfaceDescriptor, error) {
	if len(b) < interfaceDescriptorSize {
		return nil, &DescriptorError{Offset: len(b), Reason: "interface descriptor too short"}
	}

	return &InterfaceDescriptor{
		Length:            b[0],
		DescriptorType:    b[1],
		InterfaceNumber:   b[2],
		AlternateSetting:  b[3],
		NumEndpoints:      b[4],
		InterfaceClass:    b[5],
		InterfaceSubClass: b[6],
		InterfaceProtocol: b[7],
		InterfaceIndex:    b[8],
	}, nil
}

// ParseFunctionalDescriptor decodes a DFU functional descriptor.
// bcdDFUVersion is only read when the descriptor is long enough to carry it.
func ParseFunctionalDescriptor(b []byte) (*FunctionalDescriptor, error) {
	if len(b) < functionalDescriptorMinSize {
		return nil, &DescriptorError{Offset: len(b), Reason: "functional descriptor too short"}
	}

	attrs := b[2]
	fd := &FunctionalDescriptor{
		Length:                b[0],
		DescriptorType:        b[1],
		Attributes:            attrs,
		DetachTimeout:         binary.LittleEndian.Uint16(b[3:]),
		TransferSize:          binary.LittleEndian.Uint16(b[5:]),
		WillDetach:            attrs&protocol.AttrWillDetach != 0,
		ManifestationTolerant: attrs&protocol.AttrManifestationTolerant != 0,
		CanUpload:             attrs&protocol.AttrCanUpload != 0,
		CanDownload:           attrs&protocol.AttrCanDownload != 0,
	}
	if len(b) >= functionalDescriptorSize && b[0] >= functionalDescriptorSize {
		fd.DFUVersion = binary.LittleEndian.Uint16(b[7:])
	}

	return fd, nil
}

// ParseSubDescriptors walks a stream of bLength/bDescriptorType records.
//
// Interface descriptors open a new context: descriptors that follow are attached
// to the current interface. A functional descriptor (type 0x21) is decoded only
// when the current interface is a DFU interface; anywhere else it is kept raw.
func ParseSubDescriptors(b []byte) ([]Descriptor, error) {
	var (
		descs   []Descriptor
		current *InterfaceDescriptor
	)

	for off := 0; off < len(b); {
		if len(b)-off < 2 {
			return nil, &DescriptorError{Offset: off, Reason: "truncated descriptor header"}
		}
		length := int(b[off])
		descType := b[off+1]
		if length < 2 {
			return nil, &DescriptorError{Offset: off, Reason: "descriptor length below 2"}
		}
		if off+length > len(b) {
			return nil, &DescriptorError{Offset: off, Reason: "declared length exceeds remaining bytes"}
		}
		raw := b[off : off+length]

		var desc Descriptor
		switch {
		case descType == protocol.DescriptorTypeInterface:
			intf, err := ParseInterfaceDescriptor(raw)
			if err != nil {
				return nil, &DescriptorError{Offset: off, Reason: "interface descriptor too short"}
			}
			current = intf
			desc = intf
		case descType == protocol.DescriptorTypeDFUFunctional && current != nil && current.IsDFU():
			fd, err := ParseFunctionalDescriptor(raw)
			if err != nil {
				return nil, &DescriptorError{Offset: off, Reason: "functional descriptor too short"}
			}
			current.Functional = fd
			current.Descriptors = append(current.Descriptors, fd)
			desc = fd
		default:
			rd := &RawDescriptor{DescriptorType: descType, Data: append([]byte(nil), raw...)}
			if current != nil {
				current.Descriptors = append(current.Descriptors, rd)
			}
			desc = rd
		}

		descs = append(descs, desc)
		off += length
	}

	return descs, nil
}

// Functional returns the first decoded DFU functional descriptor of the configuration.
func (c *ConfigurationDescriptor) Functional() (*FunctionalDescriptor, bool) {
	for _, d := range c.Descriptors {
		if fd, ok := d.(*FunctionalDescriptor); ok {
			return fd, true
		}
	}
	return nil, false
}
