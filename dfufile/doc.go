// Package dfufile reads and writes DfuSe firmware files (.dfu).
//
// # File Format
//
// A DfuSe file is a prefix, one or more targets, and a DFU suffix. Multi-byte
// fields are little-endian.
//
// Prefix (11 bytes):
//
//	["DfuSe"(5)][bVersion(1)][DFUImageSize(4)][bTargets(1)]
//
// Each target starts with a 274 byte prefix followed by its elements:
//
//	["Target"(6)][bAlternateSetting(1)][bTargetNamed(4)][szTargetName(255)]
//	[dwTargetSize(4)][dwNbElements(4)]
//
// Element:
//
//	[dwElementAddress(4)][dwElementSize(4)][Data(dwElementSize)]
//
// Suffix (16 bytes):
//
//	[bcdDevice(2)][idProduct(2)][idVendor(2)][bcdDFU(2)]["UFD"(3)][bLength(1)][dwCRC(4)]
//
// dwCRC is the CRC-32 of everything before it, without the final inversion.
//
// # Usage
//
// Parse a file from disk:
//
//	f, err := dfufile.Parse("epsilon.dfu")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, t := range f.Targets {
//	    for _, e := range t.Elements {
//	        fmt.Printf("alt %d: %d bytes at 0x%08X\n", t.AlternateSetting, len(e.Data), e.Address)
//	    }
//	}
//
// Build one from raw images:
//
//	f := dfufile.New(0x0483, 0xA291)
//	f.Add(0, "Internal Flash", 0x08000000, internal)
//	data, err := dfufile.Encode(f)
//
// # Error Handling
//
// Structural problems are reported as *FormatError with the byte offset where
// parsing stopped. A suffix CRC that does not match the content is a *CRCError.
package dfufile
