package platform

// SlotInfoSize is the number of bytes read to parse the slot info.
const SlotInfoSize = 0x64

// MagicSlotInfo marks the slot info written by the bootloader in RAM.
const MagicSlotInfo uint32 = 0xBADBEEEF

// Bootloaders before 1.0.13 corrupt the first byte of the magic; the
// remaining bytes then read as this word at offset 1.
const magicSlotInfoCorrupted uint32 = 0xDBEEEF08

// SlotName identifies the external flash slot a firmware was booted from.
type SlotName string

const (
	SlotA       SlotName = "A"
	SlotB       SlotName = "B"
	SlotKhi     SlotName = "Khi"
	SlotUnknown SlotName = "unknown"
)

var slotStarts = map[uint32]SlotName{
	0x90000000: SlotA,
	0x90400000: SlotB,
	0x90180000: SlotKhi,
}

// SlotFromKernelAddress resolves the slot whose kernel header is at addr.
func SlotFromKernelAddress(addr uint32) SlotName {
	if name, ok := slotStarts[addr-8]; ok {
		return name
	}
	return SlotUnknown
}

// SlotInfo points at the headers of the running firmware.
type SlotInfo struct {
	Name           SlotName `yaml:"name" json:"name" toml:"name"`
	KernelHeader   uint32   `yaml:"kernel_header" json:"kernel_header" toml:"kernel_header"`
	UserlandHeader uint32   `yaml:"userland_header" json:"userland_header" toml:"userland_header"`

	// Sealed is false when the magic is not repeated at 0x0C.
	Sealed bool `yaml:"-" json:"-" toml:"-"`

	// Corrupted is set when only the corrupted form of the magic was found.
	Corrupted bool `yaml:"-" json:"-" toml:"-"`
}

// ParseSlotInfo decodes the slot info:
//
//	[0xBADBEEEF BE][kernel header LE][userland header LE][0xBADBEEEF BE]
func ParseSlotInfo(b []byte) Result[SlotInfo] {
	var info SlotInfo
	switch {
	case be32(b, 0) == MagicSlotInfo:
	case be32(b, 1) == magicSlotInfoCorrupted:
		info.Corrupted = true
	default:
		return Unrecognized[SlotInfo]()
	}

	info.KernelHeader = le32(b, 0x04)
	info.UserlandHeader = le32(b, 0x08)
	info.Sealed = be32(b, 0x0C) == MagicSlotInfo
	info.Name = SlotFromKernelAddress(info.KernelHeader)
	return Recognized(info)
}
