package dfufile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// Constants for the DfuSe file format.
const (
	// Version is the only prefix version in use
	Version = 0x01

	// BCDDFU is the DFU release number DfuSe files carry in their suffix
	BCDDFU = 0x011A

	// Wildcard disables the matching of a suffix ID
	Wildcard = 0xFFFF

	// PrefixSize is the size of the file prefix
	PrefixSize = 11

	// TargetPrefixSize is the size of a target prefix
	TargetPrefixSize = 274

	// TargetNameSize is the size of the zero-padded target name
	TargetNameSize = 255

	// ElementHeaderSize is the size of an element address and size
	ElementHeaderSize = 8

	// SuffixSize is the size of the DFU suffix
	SuffixSize = 16
)

var (
	prefixSignature = []byte("DfuSe")
	targetSignature = []byte("Target")
	suffixSignature = []byte("UFD")
)

// Parse parses a DfuSe file from the given path.
//
// Example:
//
//	f, err := dfufile.Parse("epsilon.dfu")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d targets, %d bytes\n", len(f.Targets), f.Size())
func Parse(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

// ParseReader parses a DfuSe file from any io.Reader.
func ParseReader(r io.Reader) (*File, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseBytes(b)
}

// ParseBytes parses a complete DfuSe file held in memory.
// Element data aliases b.
func ParseBytes(b []byte) (*File, error) {
	if len(b) < PrefixSize+SuffixSize {
		return nil, &FormatError{Offset: 0, Reason: fmt.Sprintf("file too short: %d bytes", len(b))}
	}

	suffix, err := parseSuffix(b)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(b[:len(prefixSignature)], prefixSignature) {
		return nil, &FormatError{Offset: 0, Reason: "missing DfuSe signature"}
	}

	f := &File{Version: b[5], Suffix: suffix}
	if f.Version != Version {
		return nil, &FormatError{Offset: 5, Reason: fmt.Sprintf("unsupported version %d", f.Version)}
	}

	imageSize := int(binary.LittleEndian.Uint32(b[6:]))
	if imageSize != len(b)-SuffixSize {
		return nil, &FormatError{Offset: 6, Reason: fmt.Sprintf("image size %d does not match file size %d", imageSize, len(b)-SuffixSize)}
	}

	body := b[:imageSize]
	off := PrefixSize
	for i := 0; i < int(b[10]); i++ {
		t, next, err := parseTarget(body, off)
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		f.Targets = append(f.Targets, t)
		off = next
	}

	if off != len(body) {
		return nil, &FormatError{Offset: off, Reason: fmt.Sprintf("%d trailing bytes after the last target", len(body)-off)}
	}
	return f, nil
}

// parseSuffix checks the trailing DFU suffix and its CRC.
//
// Suffix layout (read backwards from the end of the file):
//
//	[bcdDevice][idProduct][idVendor][bcdDFU]["UFD"][bLength][dwCRC]
func parseSuffix(b []byte) (Suffix, error) {
	start := len(b) - SuffixSize
	s := b[start:]

	if !bytes.Equal(s[8:11], suffixSignature) {
		return Suffix{}, &FormatError{Offset: start + 8, Reason: "missing DFU suffix signature"}
	}
	if s[11] != SuffixSize {
		return Suffix{}, &FormatError{Offset: start + 11, Reason: fmt.Sprintf("unsupported suffix length %d", s[11])}
	}

	expected := binary.LittleEndian.Uint32(s[12:])
	if actual := checksum(b[:len(b)-4]); actual != expected {
		return Suffix{}, &CRCError{Expected: expected, Actual: actual}
	}

	return Suffix{
		BCDDevice: binary.LittleEndian.Uint16(s[0:]),
		ProductID: binary.LittleEndian.Uint16(s[2:]),
		VendorID:  binary.LittleEndian.Uint16(s[4:]),
		BCDDFU:    binary.LittleEndian.Uint16(s[6:]),
	}, nil
}

// parseTarget parses the target starting at off and returns the offset after it.
func parseTarget(b []byte, off int) (*Target, int, error) {
	if off+TargetPrefixSize > len(b) {
		return nil, 0, &FormatError{Offset: off, Reason: "truncated target prefix"}
	}
	p := b[off : off+TargetPrefixSize]
	if !bytes.Equal(p[:len(targetSignature)], targetSignature) {
		return nil, 0, &FormatError{Offset: off, Reason: "missing Target signature"}
	}

	t := &Target{
		AlternateSetting: p[6],
		Named:            binary.LittleEndian.Uint32(p[7:]) != 0,
	}
	if t.Named {
		name := p[11 : 11+TargetNameSize]
		if nul := bytes.IndexByte(name, 0); nul >= 0 {
			name = name[:nul]
		}
		t.Name = string(name)
	}

	size := int(binary.LittleEndian.Uint32(p[266:]))
	count := int(binary.LittleEndian.Uint32(p[270:]))

	start := off + TargetPrefixSize
	end := start + size
	if size < 0 || end > len(b) {
		return nil, 0, &FormatError{Offset: off + 266, Reason: fmt.Sprintf("target size %d exceeds file", size)}
	}

	pos := start
	for i := 0; i < count; i++ {
		if pos+ElementHeaderSize > end {
			return nil, 0, &FormatError{Offset: pos, Reason: fmt.Sprintf("element %d: truncated header", i)}
		}
		addr := binary.LittleEndian.Uint32(b[pos:])
		n := int(binary.LittleEndian.Uint32(b[pos+4:]))
		pos += ElementHeaderSize
		if n < 0 || pos+n > end {
			return nil, 0, &FormatError{Offset: pos - 4, Reason: fmt.Sprintf("element %d: size %d exceeds target", i, n)}
		}
		t.Elements = append(t.Elements, &Element{Address: addr, Data: b[pos : pos+n]})
		pos += n
	}

	if pos != end {
		return nil, 0, &FormatError{Offset: pos, Reason: fmt.Sprintf("target size %d does not match its %d elements", size, count)}
	}
	return t, end, nil
}

// checksum is the CRC-32 used by DFU suffixes: reflected polynomial 0xEDB88320,
// initial value 0xFFFFFFFF and no final XOR.
func checksum(b []byte) uint32 {
	return ^crc32.ChecksumIEEE(b)
}

// Encode serializes f and computes its CRC.
func Encode(f *File) ([]byte, error) {
	if len(f.Targets) > 0xFF {
		return nil, fmt.Errorf("too many targets: %d", len(f.Targets))
	}

	out := make([]byte, 0, PrefixSize+f.Size()+SuffixSize+len(f.Targets)*TargetPrefixSize)
	out = append(out, prefixSignature...)
	out = append(out, f.Version)
	out = binary.LittleEndian.AppendUint32(out, 0) // image size, patched below
	out = append(out, byte(len(f.Targets)))

	for _, t := range f.Targets {
		if len(t.Name) > TargetNameSize {
			return nil, fmt.Errorf("target name %q longer than %d bytes", t.Name, TargetNameSize)
		}

		size := 0
		for _, e := range t.Elements {
			size += ElementHeaderSize + len(e.Data)
		}

		out = append(out, targetSignature...)
		out = append(out, t.AlternateSetting)
		named := uint32(0)
		if t.Named {
			named = 1
		}
		out = binary.LittleEndian.AppendUint32(out, named)
		name := make([]byte, TargetNameSize)
		copy(name, t.Name)
		out = append(out, name...)
		out = binary.LittleEndian.AppendUint32(out, uint32(size))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(t.Elements)))

		for _, e := range t.Elements {
			out = binary.LittleEndian.AppendUint32(out, e.Address)
			out = binary.LittleEndian.AppendUint32(out, uint32(len(e.Data)))
			out = append(out, e.Data...)
		}
	}
	binary.LittleEndian.PutUint32(out[6:], uint32(len(out)))

	out = binary.LittleEndian.AppendUint16(out, f.Suffix.BCDDevice)
	out = binary.LittleEndian.AppendUint16(out, f.Suffix.ProductID)
	out = binary.LittleEndian.AppendUint16(out, f.Suffix.VendorID)
	out = binary.LittleEndian.AppendUint16(out, f.Suffix.BCDDFU)
	out = append(out, suffixSignature...)
	out = append(out, SuffixSize)
	return binary.LittleEndian.AppendUint32(out, checksum(out)), nil
}
