package platform

// UserlandHeaderSize is the number of bytes read to parse a userland header
// and the custom info that follows it.
const UserlandHeaderSize = 0x128

// StorageArea locates the record storage in RAM.
type StorageArea struct {
	Address uint32 `yaml:"address" json:"address" toml:"address"`
	Size    uint32 `yaml:"size" json:"size" toml:"size"`
}

// ExternalArea describes the external apps region.
type ExternalArea struct {
	FlashStart uint32 `yaml:"flash_start" json:"flash_start" toml:"flash_start"`
	FlashEnd   uint32 `yaml:"flash_end" json:"flash_end" toml:"flash_end"`
	RAMStart   uint32 `yaml:"ram_start" json:"ram_start" toml:"ram_start"`
	RAMEnd     uint32 `yaml:"ram_end" json:"ram_end" toml:"ram_end"`
}

// FlashSize returns the size of the external flash area.
func (e ExternalArea) FlashSize() uint32 { return e.FlashEnd - e.FlashStart }

// RAMSize returns the size of the external RAM area.
func (e ExternalArea) RAMSize() uint32 { return e.RAMEnd - e.RAMStart }

// UsernameArea locates the username string in flash.
type UsernameArea struct {
	Start uint32 `yaml:"start" json:"start" toml:"start"`
	End   uint32 `yaml:"end" json:"end" toml:"end"`
}

// Size returns the number of bytes reserved for the username.
func (u UsernameArea) Size() uint32 { return u.End - u.Start }

// UserlandHeader is the header at the start of a firmware userland.
type UserlandHeader struct {
	Magic    uint32
	Version  string
	Storage  StorageArea
	External ExternalArea

	// Username is set when the header carries a username range before its
	// closing magic.
	Username *UsernameArea

	// Sealed is false when no closing magic was found.
	Sealed bool

	Custom CustomInfo
}

// ParseUserlandHeader decodes a userland header:
//
//	0x00 magic BE
//	0x04 version(8)
//	0x0C storage address, size
//	0x14 external flash start, end, RAM start, end
//	0x24 magic BE
//
// or, when 0x24 does not hold the magic, a username start and end at 0x24
// and the magic at 0x2C. Custom info follows the closing magic.
func ParseUserlandHeader(b []byte) Result[UserlandHeader] {
	magic := be32(b, 0)
	if !IsBootMagic(magic) {
		return Unrecognized[UserlandHeader]()
	}

	h := UserlandHeader{
		Magic:   magic,
		Version: cstring(b, 0x04, 8),
		Storage: StorageArea{
			Address: le32(b, 0x0C),
			Size:    le32(b, 0x10),
		},
		External: ExternalArea{
			FlashStart: le32(b, 0x14),
			FlashEnd:   le32(b, 0x18),
			RAMStart:   le32(b, 0x1C),
			RAMEnd:     le32(b, 0x20),
		},
	}

	pos := 0x24
	if be32(b, pos) != magic {
		h.Username = &UsernameArea{
			Start: le32(b, pos),
			End:   le32(b, pos+4),
		}
		pos += 8
	}
	h.Sealed = be32(b, pos) == magic
	pos += 4

	h.Custom = ParseCustomInfo(b, pos)
	return Recognized(h)
}
