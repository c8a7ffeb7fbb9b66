package platform

import "encoding/binary"

// Boot magics shared by kernel and userland headers.
const (
	MagicEpsilon uint32 = 0xF00DC0DE
	MagicLegacy  uint32 = 0xFEEDC0DE
)

// IsBootMagic reports whether v is a recognized boot magic.
func IsBootMagic(v uint32) bool {
	return v == MagicEpsilon || v == MagicLegacy
}

// Out of range reads yield zero, which never matches a magic.

func be32(b []byte, off int) uint32 {
	if off < 0 || off+4 > len(b) {
		return 0
	}
	return binary.BigEndian.Uint32(b[off:])
}

func le32(b []byte, off int) uint32 {
	if off < 0 || off+4 > len(b) {
		return 0
	}
	return binary.LittleEndian.Uint32(b[off:])
}

// cstring reads at most n bytes at off, stopping at the first NUL.
func cstring(b []byte, off, n int) string {
	if off < 0 || off >= len(b) {
		return ""
	}
	end := off + n
	if end > len(b) {
		end = len(b)
	}
	field := b[off:end]
	for i, c := range field {
		if c == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}
