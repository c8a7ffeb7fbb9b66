package usbdesc

import "github.com/moffa90/go-upsilon/protocol"

// InterfaceSetting identifies one DFU alternate setting of a device.
type InterfaceSetting struct {
	// Configuration is bConfigurationValue of the owning configuration
	Configuration uint8

	// Interface is bInterfaceNumber
	Interface uint8

	// Alternate is bAlternateSetting
	Alternate uint8

	// Protocol is ProtocolRuntime or ProtocolDFUMode
	Protocol uint8

	// NameIndex is iInterface, the string descriptor holding the interface name
	NameIndex uint8

	// Name is the interface name, filled in by callers that can read strings.
	// DfuSe devices put their memory descriptor here.
	Name string

	// Functional is the DFU functional descriptor that followed the interface, if any
	Functional *FunctionalDescriptor
}

// DFUMode reports whether the alternate is exposed by the bootloader rather than the application.
func (s InterfaceSetting) DFUMode() bool {
	return s.Protocol == protocol.ProtocolDFUMode
}

// FindDFUInterfaces returns every alternate setting, in every configuration, whose
// class triple is (0xFE, 0x01, 0x01) or (0xFE, 0x01, 0x02).
func FindDFUInterfaces(configs []*ConfigurationDescriptor) []InterfaceSetting {
	var settings []InterfaceSetting

	for _, cfg := range configs {
		if cfg == nil {
			continue
		}
		for _, intf := range cfg.Interfaces {
			if !intf.IsDFU() {
				continue
			}
			if intf.InterfaceProtocol != protocol.ProtocolRuntime &&
				intf.InterfaceProtocol != protocol.ProtocolDFUMode {
				continue
			}
			settings = append(settings, InterfaceSetting{
				Configuration: cfg.ConfigurationValue,
				Interface:     intf.InterfaceNumber,
				Alternate:     intf.AlternateSetting,
				Protocol:      intf.InterfaceProtocol,
				NameIndex:     intf.InterfaceIndex,
				Functional:    intf.Functional,
			})
		}
	}

	return settings
}
