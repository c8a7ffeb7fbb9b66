// Package usbdesc decodes the USB descriptors needed to locate and configure a DFU interface.
//
// Multi-byte fields are little-endian. ParseConfigurationDescriptor walks the
// descriptors following a configuration header, attaching each DFU functional
// descriptor to the interface it follows:
//
//	cfg, err := usbdesc.ParseConfigurationDescriptor(raw)
//	if err != nil {
//	    return err
//	}
//	for _, s := range usbdesc.FindDFUInterfaces([]*usbdesc.ConfigurationDescriptor{cfg}) {
//	    fmt.Printf("interface %d alt %d\n", s.Interface, s.Alternate)
//	}
package usbdesc
