package platform

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type builder struct{ b []byte }

func (w *builder) be(v uint32) *builder {
	w.b = binary.BigEndian.AppendUint32(w.b, v)
	return w
}

func (w *builder) le(v uint32) *builder {
	w.b = binary.LittleEndian.AppendUint32(w.b, v)
	return w
}

func (w *builder) str(s string, n int) *builder {
	field := make([]byte, n)
	copy(field, s)
	w.b = append(w.b, field...)
	return w
}

func (w *builder) pad(n int) []byte {
	out := make([]byte, n)
	copy(out, w.b)
	return out
}

func TestResult(t *testing.T) {
	v, ok := Recognized(42).Get()
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	v, ok = Unrecognized[int]().Get()
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestParseSlotInfo(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		wantOK    bool
		wantSlot  SlotName
		sealed    bool
		corrupted bool
	}{
		{
			name:     "slot A",
			data:     new(builder).be(MagicSlotInfo).le(0x90000008).le(0x90010000).be(MagicSlotInfo).pad(SlotInfoSize),
			wantOK:   true,
			wantSlot: SlotA,
			sealed:   true,
		},
		{
			name:     "slot B",
			data:     new(builder).be(MagicSlotInfo).le(0x90400008).le(0x90410000).be(MagicSlotInfo).pad(SlotInfoSize),
			wantOK:   true,
			wantSlot: SlotB,
			sealed:   true,
		},
		{
			name:     "Khi",
			data:     new(builder).be(MagicSlotInfo).le(0x90180008).le(0x90190000).pad(SlotInfoSize),
			wantOK:   true,
			wantSlot: SlotKhi,
		},
		{
			name:     "unknown slot",
			data:     new(builder).be(MagicSlotInfo).le(0x90200008).le(0).be(MagicSlotInfo).pad(SlotInfoSize),
			wantOK:   true,
			wantSlot: SlotUnknown,
			sealed:   true,
		},
		{
			name:      "corrupted magic",
			data:      append([]byte{0x00}, new(builder).be(0xDBEEEF08).pad(SlotInfoSize-1)...),
			wantOK:    true,
			wantSlot:  SlotUnknown,
			corrupted: true,
		},
		{
			name: "no magic",
			data: make([]byte, SlotInfoSize),
		},
		{
			name: "short buffer",
			data: []byte{0xBA, 0xDB},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := ParseSlotInfo(tt.data).Get()
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantSlot, info.Name)
			assert.Equal(t, tt.sealed, info.Sealed)
			assert.Equal(t, tt.corrupted, info.Corrupted)
		})
	}
}

func TestParseSlotInfoAddresses(t *testing.T) {
	data := new(builder).be(MagicSlotInfo).le(0x90000008).le(0x90010000).be(MagicSlotInfo).pad(SlotInfoSize)

	info, ok := ParseSlotInfo(data).Get()
	require.True(t, ok)
	assert.Equal(t, uint32(0x90000008), info.KernelHeader)
	assert.Equal(t, uint32(0x90010000), info.UserlandHeader)
}

func TestParseKernelHeader(t *testing.T) {
	data := new(builder).be(MagicEpsilon).str("21.3.1", 8).str("a1b2c3d", 8).be(MagicEpsilon).pad(KernelHeaderSize)

	h, ok := ParseKernelHeader(data).Get()
	require.True(t, ok)
	assert.Equal(t, KernelHeader{Magic: MagicEpsilon, Version: "21.3.1", Commit: "a1b2c3d", Sealed: true}, h)

	unsealed := new(builder).be(MagicLegacy).str("1.2.3", 8).str("abcdefgh", 8).pad(KernelHeaderSize)
	h, ok = ParseKernelHeader(unsealed).Get()
	require.True(t, ok)
	assert.False(t, h.Sealed)
	assert.Equal(t, "abcdefgh", h.Commit)
}

func TestParseHeadersWithoutMagic(t *testing.T) {
	data := new(builder).be(0x12345678).str("21.3.1", 8).pad(UserlandHeaderSize)

	_, ok := ParseKernelHeader(data).Get()
	assert.False(t, ok)

	_, ok = ParseUserlandHeader(data).Get()
	assert.False(t, ok)

	_, ok = ParseLegacyPlatformInfo(data).Get()
	assert.False(t, ok)

	_, ok = ParseKernelHeader(nil).Get()
	assert.False(t, ok)
}

func userlandPrefix(magic uint32) *builder {
	return new(builder).be(magic).str("1.2.0", 8).
		le(0x20000AB0).le(0x8000).
		le(0x90200000).le(0x90400000).le(0x20038000).le(0x20040000)
}

func TestParseUserlandHeader(t *testing.T) {
	data := userlandPrefix(MagicEpsilon).be(MagicEpsilon).
		be(MarkerOmega).str("2.0.2", 16).str("someone", 16).be(MarkerOmega).
		be(MarkerUpsilon).str("1.0.1", 16).be(OSTypeUpsilon).be(MarkerUpsilon).
		pad(UserlandHeaderSize)

	h, ok := ParseUserlandHeader(data).Get()
	require.True(t, ok)
	assert.Equal(t, "1.2.0", h.Version)
	assert.Equal(t, StorageArea{Address: 0x20000AB0, Size: 0x8000}, h.Storage)
	assert.Equal(t, uint32(0x200000), h.External.FlashSize())
	assert.Equal(t, uint32(0x8000), h.External.RAMSize())
	assert.Nil(t, h.Username)
	assert.True(t, h.Sealed)

	assert.Equal(t, OmegaInfo{Installed: true, Version: "2.0.2", User: "someone", Sealed: true}, h.Custom.Omega)
	assert.Equal(t, UpsilonInfo{Installed: true, Version: "1.0.1", OSType: OSTypeUpsilon, Official: true, Sealed: true}, h.Custom.Upsilon)
}

func TestParseUserlandHeaderWithUsername(t *testing.T) {
	data := userlandPrefix(MagicEpsilon).le(0x90001000).le(0x90001040).be(MagicEpsilon).
		be(0).
		be(MarkerUpsilon).str("1.0.1", 16).be(0x1234).be(MarkerUpsilon).
		pad(UserlandHeaderSize)

	h, ok := ParseUserlandHeader(data).Get()
	require.True(t, ok)
	require.NotNil(t, h.Username)
	assert.Equal(t, uint32(0x40), h.Username.Size())
	assert.True(t, h.Sealed)

	assert.False(t, h.Custom.Omega.Installed)
	assert.True(t, h.Custom.Upsilon.Installed)
	assert.False(t, h.Custom.Upsilon.Official)
}

func TestParseCustomInfoNone(t *testing.T) {
	info := ParseCustomInfo(make([]byte, 64), 0)
	assert.Equal(t, CustomInfo{}, info)

	// Offsets past the buffer read as absent.
	info = ParseCustomInfo(make([]byte, 4), 16)
	assert.Equal(t, CustomInfo{}, info)
}

func TestParseLegacyPlatformInfoNewLayout(t *testing.T) {
	data := new(builder).be(MagicEpsilon).str("15.3.1", 8).str("deadbee", 8).
		le(0x20000100).le(0x7000).be(MagicEpsilon).
		be(MarkerOmega).str("1.20.3", 16).str("user", 16).be(MarkerOmega).
		pad(LegacyPlatformInfoSize)

	info, ok := ParseLegacyPlatformInfo(data).Get()
	require.True(t, ok)
	assert.False(t, info.OldLayout)
	assert.Equal(t, "15.3.1", info.Version)
	assert.Equal(t, "deadbee", info.Commit)
	assert.Equal(t, StorageArea{Address: 0x20000100, Size: 0x7000}, info.Storage)
	assert.True(t, info.Custom.Omega.Installed)
	assert.Equal(t, "1.20.3", info.Custom.Omega.Version)
	assert.False(t, info.Custom.Upsilon.Installed)
}

func TestParseLegacyPlatformInfoOldLayout(t *testing.T) {
	// Magic at 0x24 shifts commit and storage by 8; Omega keeps its version at 0x0C.
	data := new(builder).be(MagicEpsilon).str("13.2.0", 8).str("1.18.3", 8).
		str("cafe123", 8).le(0x20000200).le(0x4000).be(MagicEpsilon).
		pad(LegacyPlatformInfoSize)

	info, ok := ParseLegacyPlatformInfo(data).Get()
	require.True(t, ok)
	assert.True(t, info.OldLayout)
	assert.Equal(t, "13.2.0", info.Version)
	assert.True(t, info.Custom.Omega.Installed)
	assert.Equal(t, "1.18.3", info.Custom.Omega.Version)
	assert.Equal(t, "cafe123", info.Commit)
	assert.Equal(t, StorageArea{Address: 0x20000200, Size: 0x4000}, info.Storage)
}

func TestFromSlot(t *testing.T) {
	slot := SlotInfo{Name: SlotA, KernelHeader: 0x90000008, UserlandHeader: 0x90010000}
	userland := Recognized(UserlandHeader{
		Magic:   MagicEpsilon,
		Version: "1.2.0",
		Storage: StorageArea{Address: 0x20000AB0, Size: 0x8000},
		Custom:  CustomInfo{Upsilon: UpsilonInfo{Installed: true, Version: "1.0.1"}},
	})
	kernel := Recognized(KernelHeader{Magic: MagicEpsilon, Version: "1.2.1", Commit: "0abc"})

	info := FromSlot(slot, userland, kernel)
	assert.Equal(t, ModeBootloader, info.Mode)
	assert.True(t, info.Recognized)
	assert.Equal(t, "1.2.1", info.Version)
	assert.Equal(t, "0abc", info.Commit)
	assert.Equal(t, uint32(0x8000), info.Storage.Size)
	assert.True(t, info.Upsilon.Installed)
	require.NotNil(t, info.Slot)
	assert.Equal(t, SlotA, info.Slot.Name)

	empty := FromSlot(slot, Unrecognized[UserlandHeader](), Unrecognized[KernelHeader]())
	assert.False(t, empty.Recognized)
	assert.Nil(t, empty.External)
}

func TestFromLegacy(t *testing.T) {
	info := FromLegacy(Unrecognized[LegacyPlatformInfo]())
	assert.Equal(t, Info{Mode: ModeLegacy}, info)

	info = FromLegacy(Recognized(LegacyPlatformInfo{Magic: MagicEpsilon, OldLayout: true, Version: "12.4.0"}))
	assert.True(t, info.Recognized)
	assert.True(t, info.OldPlatform)
	assert.Equal(t, "12.4.0", info.Version)
	assert.Nil(t, info.Slot)
}
