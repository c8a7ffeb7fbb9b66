package protocol

// DFUVersion is the USB DFU class specification revision implemented by this library.
const DFUVersion = "1.1"

// Class request codes per USB DFU 1.1 section 3.
const (
	// RequestDetach asks a runtime-mode device to enter DFU mode
	RequestDetach = 0x00

	// RequestDownload sends one block of firmware to the device (DFU_DNLOAD)
	RequestDownload = 0x01

	// RequestUpload reads one block of firmware from the device (DFU_UPLOAD)
	RequestUpload = 0x02

	// RequestGetStatus reads the 6-byte status structure
	RequestGetStatus = 0x03

	// RequestClearStatus leaves the dfuERROR state
	RequestClearStatus = 0x04

	// RequestGetState reads the 1-byte state
	RequestGetState = 0x05

	// RequestAbort returns the device to dfuIDLE
	RequestAbort = 0x06
)

// Standard request codes used while reading descriptors.
const (
	// RequestGetDescriptor is the standard GET_DESCRIPTOR request
	RequestGetDescriptor = 0x06
)

// Descriptor type codes.
const (
	DescriptorTypeDevice        = 0x01
	DescriptorTypeConfiguration = 0x02
	DescriptorTypeString        = 0x03
	DescriptorTypeInterface     = 0x04
	DescriptorTypeEndpoint      = 0x05

	// DescriptorTypeDFUFunctional is the class-specific DFU functional descriptor
	DescriptorTypeDFUFunctional = 0x21
)

// Interface class triple identifying DFU alternates.
const (
	// ClassApplicationSpecific is bInterfaceClass for DFU interfaces
	ClassApplicationSpecific = 0xFE

	// SubClassDFU is bInterfaceSubClass for DFU interfaces
	SubClassDFU = 0x01

	// ProtocolRuntime marks an interface exposed while the application runs
	ProtocolRuntime = 0x01

	// ProtocolDFUMode marks an interface exposed by the bootloader itself
	ProtocolDFUMode = 0x02
)

// Functional descriptor bmAttributes bits.
const (
	AttrCanDownload           = 0x01
	AttrCanUpload             = 0x02
	AttrManifestationTolerant = 0x04
	AttrWillDetach            = 0x08
)

// bcdDFUVersion values that announce the DfuSe extension.
const (
	// VersionDfuSe is the ST DfuSe revision (1.1a)
	VersionDfuSe = 0x011A

	// VersionDFU10 is reported by some DfuSe bootloaders instead of 1.1a
	VersionDFU10 = 0x0100
)

// DfuSe vendor commands, sent as the first byte of a DNLOAD with block number 0.
const (
	DfuseGetCommands = 0x00
	DfuseSetAddress  = 0x21
	DfuseEraseSector = 0x41
)

// DfuSe reserves block numbers 0 and 1; data transfers start at block 2.
const DfuseFirstDataBlock = 2

// Response sizes.
const (
	// StatusResponseSize is the GETSTATUS payload size
	StatusResponseSize = 6

	// StateResponseSize is the GETSTATE payload size
	StateResponseSize = 1
)

// LangIDEnglishUS is the language used when reading interface names.
const LangIDEnglishUS = 0x0409
