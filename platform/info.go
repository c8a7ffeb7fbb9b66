package platform

// Mode tells how the platform info was located.
type Mode string

const (
	// ModeBootloader means a slot info pointed at the running firmware headers.
	ModeBootloader Mode = "bootloader"
	// ModeLegacy means the fixed legacy address in internal flash was used.
	ModeLegacy Mode = "legacy"
)

// Addresses the platform info is read from.
const (
	SlotInfoAddress      uint32 = 0x20000000
	SlotInfoAddressN0120 uint32 = 0x24000000
	LegacyInfoAddress    uint32 = 0x080001C4
)

// Info is the merged platform description of a connected calculator.
type Info struct {
	Mode Mode `yaml:"mode" json:"mode" toml:"mode"`

	// Recognized is false when no boot magic was found at the header address.
	Recognized bool `yaml:"recognized" json:"recognized" toml:"recognized"`

	OldPlatform bool          `yaml:"old_platform" json:"old_platform" toml:"old_platform"`
	Version     string        `yaml:"version,omitempty" json:"version,omitempty" toml:"version,omitempty"`
	Commit      string        `yaml:"commit,omitempty" json:"commit,omitempty" toml:"commit,omitempty"`
	Storage     StorageArea   `yaml:"storage" json:"storage" toml:"storage"`
	External    *ExternalArea `yaml:"external,omitempty" json:"external,omitempty" toml:"external,omitempty"`
	Username    *UsernameArea `yaml:"username,omitempty" json:"username,omitempty" toml:"username,omitempty"`
	Omega       OmegaInfo     `yaml:"omega" json:"omega" toml:"omega"`
	Upsilon     UpsilonInfo   `yaml:"upsilon" json:"upsilon" toml:"upsilon"`
	Slot        *SlotInfo     `yaml:"slot,omitempty" json:"slot,omitempty" toml:"slot,omitempty"`
}

// FromSlot merges the headers found through a slot info. The kernel header
// supplies the commit and, when recognized, takes precedence for the version.
func FromSlot(slot SlotInfo, userland Result[UserlandHeader], kernel Result[KernelHeader]) Info {
	info := Info{Mode: ModeBootloader}

	if u, ok := userland.Get(); ok {
		info.Recognized = true
		info.Version = u.Version
		info.Storage = u.Storage
		ext := u.External
		info.External = &ext
		info.Username = u.Username
		info.Omega = u.Custom.Omega
		info.Upsilon = u.Custom.Upsilon
	}

	if k, ok := kernel.Get(); ok {
		info.Recognized = true
		info.Version = k.Version
		info.Commit = k.Commit
	}

	info.Slot = &slot
	return info
}

// FromLegacy converts a legacy platform info.
func FromLegacy(legacy Result[LegacyPlatformInfo]) Info {
	info := Info{Mode: ModeLegacy}

	l, ok := legacy.Get()
	if !ok {
		return info
	}

	info.Recognized = true
	info.OldPlatform = l.OldLayout
	info.Version = l.Version
	info.Commit = l.Commit
	info.Storage = l.Storage
	info.Omega = l.Custom.Omega
	info.Upsilon = l.Custom.Upsilon
	return info
}
