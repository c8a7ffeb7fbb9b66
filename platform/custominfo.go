package platform

// Custom firmware markers.
const (
	MarkerOmega   uint32 = 0xDEADBEEF
	MarkerUpsilon uint32 = 0x69737055
	OSTypeUpsilon uint32 = 0x78718279
)

// OmegaInfo describes an Omega firmware block.
type OmegaInfo struct {
	Installed bool   `yaml:"installed" json:"installed" toml:"installed"`
	Version   string `yaml:"version,omitempty" json:"version,omitempty" toml:"version,omitempty"`
	User      string `yaml:"user,omitempty" json:"user,omitempty" toml:"user,omitempty"`
	Sealed    bool   `yaml:"-" json:"-" toml:"-"`
}

// UpsilonInfo describes an Upsilon firmware block.
type UpsilonInfo struct {
	Installed bool   `yaml:"installed" json:"installed" toml:"installed"`
	Version   string `yaml:"version,omitempty" json:"version,omitempty" toml:"version,omitempty"`
	OSType    uint32 `yaml:"os_type,omitempty" json:"os_type,omitempty" toml:"os_type,omitempty"`
	Official  bool   `yaml:"official" json:"official" toml:"official"`
	Sealed    bool   `yaml:"-" json:"-" toml:"-"`
}

// CustomInfo groups the optional blocks appended by custom firmwares.
type CustomInfo struct {
	Omega   OmegaInfo
	Upsilon UpsilonInfo
}

// ParseCustomInfo decodes the custom firmware blocks starting at off:
//
//	[0xDEADBEEF][version(16)][user(16)][0xDEADBEEF]   only when the first marker matches
//	[0x69737055][version(16)][osType BE][0x69737055]  only when the first marker matches
//
// A marker word is consumed whether or not it matches.
func ParseCustomInfo(b []byte, off int) CustomInfo {
	var info CustomInfo
	pos := off

	info.Omega.Installed = be32(b, pos) == MarkerOmega
	pos += 4
	if info.Omega.Installed {
		info.Omega.Version = cstring(b, pos, 16)
		pos += 16
		info.Omega.User = cstring(b, pos, 16)
		pos += 16
		info.Omega.Sealed = be32(b, pos) == MarkerOmega
		pos += 4
	}

	info.Upsilon.Installed = be32(b, pos) == MarkerUpsilon
	pos += 4
	if info.Upsilon.Installed {
		info.Upsilon.Version = cstring(b, pos, 16)
		pos += 16
		info.Upsilon.OSType = be32(b, pos)
		info.Upsilon.Official = info.Upsilon.OSType == OSTypeUpsilon
		pos += 4
		info.Upsilon.Sealed = be32(b, pos) == MarkerUpsilon
	}

	return info
}
