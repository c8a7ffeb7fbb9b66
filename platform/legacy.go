package platform

// LegacyPlatformInfoSize is the number of bytes read to parse the legacy
// platform info.
const LegacyPlatformInfoSize = 0x128

// LegacyPlatformInfo is the platform info embedded in internal flash by
// firmwares that predate the bootloader.
type LegacyPlatformInfo struct {
	Magic uint32

	// OldLayout is set when the magic is not repeated at 0x1C.
	OldLayout bool

	Version string
	Commit  string
	Storage StorageArea
	Custom  CustomInfo
}

// ParseLegacyPlatformInfo decodes the legacy platform info.
//
// The new layout is
//
//	[magic][version(8)][commit(8)][storage address][storage size][magic][custom info]
//
// The old layout shifts commit and storage by 8, 16 or 32 bytes depending on
// where the closing magic is found, and only knows about Omega, whose version
// then sits at 0x0C.
func ParseLegacyPlatformInfo(b []byte) Result[LegacyPlatformInfo] {
	magic := be32(b, 0)
	if !IsBootMagic(magic) {
		return Unrecognized[LegacyPlatformInfo]()
	}

	info := LegacyPlatformInfo{
		Magic:     magic,
		OldLayout: be32(b, 0x1C) != magic,
		Version:   cstring(b, 0x04, 8),
	}

	if !info.OldLayout {
		info.Commit = cstring(b, 0x0C, 8)
		info.Storage = StorageArea{Address: le32(b, 0x14), Size: le32(b, 0x18)}
		info.Custom = ParseCustomInfo(b, 0x20)
		return Recognized(info)
	}

	info.Custom.Omega.Installed = be32(b, 0x24) == magic ||
		be32(b, 0x2C) == MarkerOmega ||
		be32(b, 0x3C) == MarkerOmega
	if info.Custom.Omega.Installed {
		info.Custom.Omega.Version = cstring(b, 0x0C, 16)
	}

	offset := 0
	switch magic {
	case be32(b, 0x24):
		offset = 8
	case be32(b, 0x2C):
		offset = 16
	case be32(b, 0x3C):
		offset = 32
	}

	info.Commit = cstring(b, 0x0C+offset, 8)
	info.Storage = StorageArea{
		Address: le32(b, 0x14+offset),
		Size:    le32(b, 0x18+offset),
	}
	return Recognized(info)
}
