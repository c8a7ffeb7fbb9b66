package dfufile

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *File {
	f := New(0x0483, 0xA291)
	f.Add(0, "Internal Flash", 0x08000000, []byte{1, 2, 3, 4})
	f.Add(0, "", 0x08004000, []byte{5, 6})
	f.Add(1, "External Flash", 0x90000000, bytes.Repeat([]byte{0xAA}, 10))
	return f
}

func encode(t *testing.T, f *File) []byte {
	t.Helper()
	b, err := Encode(f)
	require.NoError(t, err)
	return b
}

// reseal recomputes the CRC after a test tampered with the content.
func reseal(b []byte) []byte {
	binary.LittleEndian.PutUint32(b[len(b)-4:], checksum(b[:len(b)-4]))
	return b
}

func TestParseBytes(t *testing.T) {
	b := encode(t, sample())

	// prefix + 2 target prefixes + 3 element headers + payload + suffix
	assert.Len(t, b, PrefixSize+2*TargetPrefixSize+3*ElementHeaderSize+16+SuffixSize)

	f, err := ParseBytes(b)
	require.NoError(t, err)

	assert.Equal(t, uint8(Version), f.Version)
	assert.Equal(t, Suffix{BCDDevice: Wildcard, ProductID: 0xA291, VendorID: 0x0483, BCDDFU: BCDDFU}, f.Suffix)

	require.Len(t, f.Targets, 2)
	assert.Equal(t, uint8(0), f.Targets[0].AlternateSetting)
	assert.True(t, f.Targets[0].Named)
	assert.Equal(t, "Internal Flash", f.Targets[0].Name)
	require.Len(t, f.Targets[0].Elements, 2)
	assert.Equal(t, &Element{Address: 0x08004000, Data: []byte{5, 6}}, f.Targets[0].Elements[1])
	assert.Equal(t, uint32(0x08004002), f.Targets[0].Elements[1].End())

	assert.Equal(t, "External Flash", f.Targets[1].Name)
	assert.Len(t, f.Elements(), 3)
	assert.Equal(t, 16, f.Size())
}

func TestParseKnownLayout(t *testing.T) {
	b := encode(t, sample())

	assert.Equal(t, []byte("DfuSe"), b[:5])
	assert.Equal(t, uint32(len(b)-SuffixSize), binary.LittleEndian.Uint32(b[6:]))
	assert.Equal(t, byte(2), b[10])
	assert.Equal(t, []byte("Target"), b[11:17])
	assert.Equal(t, []byte("UFD"), b[len(b)-8:len(b)-5])
	assert.Equal(t, byte(16), b[len(b)-5])
}

func TestChecksum(t *testing.T) {
	// CRC-32/JAMCRC check value.
	assert.Equal(t, uint32(0x340BC6D9), checksum([]byte("123456789")))
}

func TestParseErrors(t *testing.T) {
	valid := encode(t, sample())

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantCRC bool
		wantOff int
	}{
		{
			name:    "too short",
			mutate:  func(b []byte) []byte { return b[:20] },
			wantOff: 0,
		},
		{
			name:    "bad crc",
			mutate:  func(b []byte) []byte { b[20] ^= 0xFF; return b },
			wantCRC: true,
		},
		{
			name:    "no suffix signature",
			mutate:  func(b []byte) []byte { b[len(b)-8] = 'X'; return reseal(b) },
			wantOff: -8,
		},
		{
			name:    "no prefix signature",
			mutate:  func(b []byte) []byte { b[0] = 'd'; return reseal(b) },
			wantOff: 0,
		},
		{
			name:    "bad version",
			mutate:  func(b []byte) []byte { b[5] = 2; return reseal(b) },
			wantOff: 5,
		},
		{
			name:    "image size",
			mutate:  func(b []byte) []byte { b[6]++; return reseal(b) },
			wantOff: 6,
		},
		{
			name:    "bad target signature",
			mutate:  func(b []byte) []byte { b[PrefixSize] = 't'; return reseal(b) },
			wantOff: PrefixSize,
		},
		{
			name:    "element larger than target",
			mutate:  func(b []byte) []byte { b[PrefixSize+TargetPrefixSize+4] = 0xFF; return reseal(b) },
			wantOff: PrefixSize + TargetPrefixSize + 4,
		},
		{
			name:    "missing target",
			mutate:  func(b []byte) []byte { b[10] = 3; return reseal(b) },
			wantOff: len(valid) - SuffixSize,
		},
		{
			name:    "trailing bytes",
			mutate:  func(b []byte) []byte { b[10] = 1; return reseal(b) },
			wantOff: PrefixSize + TargetPrefixSize + 2*ElementHeaderSize + 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.mutate(append([]byte(nil), valid...))
			_, err := ParseBytes(b)
			require.Error(t, err)

			if tt.wantCRC {
				var crcErr *CRCError
				assert.ErrorAs(t, err, &crcErr)
				return
			}

			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			want := tt.wantOff
			if want < 0 {
				want += len(b)
			}
			assert.Equal(t, want, fe.Offset)
		})
	}
}

func TestSuffixMatches(t *testing.T) {
	tests := []struct {
		name   string
		suffix Suffix
		vid    uint16
		pid    uint16
		want   bool
	}{
		{"exact", Suffix{VendorID: 0x0483, ProductID: 0xA291}, 0x0483, 0xA291, true},
		{"wildcards", Suffix{VendorID: Wildcard, ProductID: Wildcard}, 0x1234, 0x5678, true},
		{"product wildcard", Suffix{VendorID: 0x0483, ProductID: Wildcard}, 0x0483, 0xDF11, true},
		{"other vendor", Suffix{VendorID: 0x0483, ProductID: Wildcard}, 0x1234, 0xA291, false},
		{"other product", Suffix{VendorID: 0x0483, ProductID: 0xA291}, 0x0483, 0xDF11, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.suffix.Matches(tt.vid, tt.pid))
		})
	}
}

func TestEncodeRejectsLongName(t *testing.T) {
	f := New(0x0483, 0xA291)
	f.Add(0, string(bytes.Repeat([]byte{'a'}, TargetNameSize+1)), 0, nil)
	_, err := Encode(f)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.dfu")
	require.NoError(t, os.WriteFile(path, encode(t, sample()), 0o644))

	f, err := Parse(path)
	require.NoError(t, err)
	assert.Len(t, f.Targets, 2)

	_, err = Parse(filepath.Join(t.TempDir(), "missing.dfu"))
	assert.Error(t, err)
}
