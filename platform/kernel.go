package platform

// KernelHeaderSize is the number of bytes read to parse a kernel header.
const KernelHeaderSize = 0x64

// KernelHeader is the header at the start of a firmware kernel.
type KernelHeader struct {
	Magic   uint32 `yaml:"magic" json:"magic" toml:"magic"`
	Version string `yaml:"version" json:"version" toml:"version"`
	Commit  string `yaml:"commit" json:"commit" toml:"commit"`

	// Sealed is false when the magic is not repeated after the commit.
	Sealed bool `yaml:"sealed" json:"sealed" toml:"sealed"`
}

// ParseKernelHeader decodes a kernel header:
//
//	[magic BE][version(8)][commit(8)][magic BE]
func ParseKernelHeader(b []byte) Result[KernelHeader] {
	magic := be32(b, 0)
	if !IsBootMagic(magic) {
		return Unrecognized[KernelHeader]()
	}

	return Recognized(KernelHeader{
		Magic:   magic,
		Version: cstring(b, 4, 8),
		Commit:  cstring(b, 12, 8),
		Sealed:  be32(b, 20) == magic,
	})
}
