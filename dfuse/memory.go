package dfuse

import (
	"fmt"
	"strings"
)

// Segment is a run of equally sized sectors sharing the same access flags.
type Segment struct {
	// Start is the address of the first byte
	Start uint32

	// End is the address one past the last byte
	End uint32

	SectorSize uint32
	Readable   bool
	Erasable   bool
	Writable   bool
}

// Contains reports whether addr falls in [Start, End).
func (s Segment) Contains(addr uint32) bool {
	return s.Start <= addr && addr < s.End
}

// Size returns the segment length in bytes.
func (s Segment) Size() uint32 {
	return s.End - s.Start
}

// MemoryMap is the layout announced by a DfuSe alternate setting.
type MemoryMap struct {
	Name     string
	Segments []Segment
}

// Segment returns the first segment containing addr.
func (m *MemoryMap) Segment(addr uint32) (Segment, bool) {
	for _, s := range m.Segments {
		if s.Contains(addr) {
			return s, true
		}
	}
	return Segment{}, false
}

// SectorStart rounds addr down to the start of its sector.
func (m *MemoryMap) SectorStart(addr uint32) (uint32, error) {
	seg, ok := m.Segment(addr)
	if !ok {
		return 0, &UnmappedAddressError{Address: addr}
	}
	return sectorStart(seg, addr), nil
}

// SectorEnd rounds addr up to the end of its sector.
func (m *MemoryMap) SectorEnd(addr uint32) (uint32, error) {
	seg, ok := m.Segment(addr)
	if !ok {
		return 0, &UnmappedAddressError{Address: addr}
	}
	return sectorStart(seg, addr) + seg.SectorSize, nil
}

func sectorStart(seg Segment, addr uint32) uint32 {
	if seg.SectorSize == 0 {
		return seg.Start
	}
	return seg.Start + (addr-seg.Start)/seg.SectorSize*seg.SectorSize
}

// FirstWritableSegment returns the lowest writable segment.
func (m *MemoryMap) FirstWritableSegment() (Segment, bool) {
	for _, s := range m.Segments {
		if s.Writable {
			return s, true
		}
	}
	return Segment{}, false
}

// MaxReadSize returns the number of contiguous readable bytes starting at start.
func (m *MemoryMap) MaxReadSize(start uint32) int {
	addr := start
	total := 0
	for {
		seg, ok := m.Segment(addr)
		if !ok || !seg.Readable {
			return total
		}
		total += int(seg.End - addr)
		addr = seg.End
	}
}

// Prepend inserts segments ahead of the announced ones. Lookups see them first.
func (m *MemoryMap) Prepend(segments ...Segment) {
	m.Segments = append(append([]Segment(nil), segments...), m.Segments...)
}

var unitMultipliers = map[byte]uint64{
	' ': 1,
	'B': 1,
	'K': 1024,
	'M': 1024 * 1024,
}

// ParseMemoryDescriptor parses a DfuSe interface name such as
//
//	@Internal Flash  /0x08000000/04*016Kg,01*064Kg,07*128Kg
//
// Each /address/ opens a run of consecutive segments written count*size unit flags.
// The flags letter minus 'a' plus one is a bitmask: 1 readable, 2 erasable, 4 writable.
func ParseMemoryDescriptor(desc string) (*MemoryMap, error) {
	p := &descParser{desc: desc}

	if !strings.HasPrefix(desc, "@") {
		return nil, p.errorf(0, "missing '@'")
	}
	slash := strings.IndexByte(desc, '/')
	if slash < 0 {
		return nil, p.errorf(len(desc), "missing '/' after name")
	}

	m := &MemoryMap{Name: strings.TrimSpace(desc[1:slash])}
	p.pos = slash

	for {
		p.skipSpace()
		if p.done() {
			break
		}
		if err := p.expect('/'); err != nil {
			return nil, err
		}
		segs, err := p.run()
		if err != nil {
			return nil, err
		}
		m.Segments = append(m.Segments, segs...)
	}

	if len(m.Segments) == 0 {
		return nil, p.errorf(p.pos, "no segments")
	}
	return m, nil
}

type descParser struct {
	desc string
	pos  int
}

func (p *descParser) errorf(pos int, format string, args ...interface{}) error {
	return &MemoryDescriptorError{Descriptor: p.desc, Pos: pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *descParser) done() bool { return p.pos >= len(p.desc) }

func (p *descParser) peek() byte {
	if p.done() {
		return 0
	}
	return p.desc[p.pos]
}

func (p *descParser) skipSpace() {
	for !p.done() && isSpace(p.desc[p.pos]) {
		p.pos++
	}
}

func (p *descParser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf(p.pos, "expected %q", c)
	}
	p.pos++
	return nil
}

func (p *descParser) digits(hex bool) (uint64, int, error) {
	start := p.pos
	var v uint64
	for ; !p.done(); p.pos++ {
		d, ok := digitValue(p.desc[p.pos], hex)
		if !ok {
			break
		}
		if hex {
			v = v<<4 | d
		} else {
			v = v*10 + d
		}
		if v > 0xFFFFFFFF {
			return 0, 0, p.errorf(start, "number out of range")
		}
	}
	if p.pos == start {
		return 0, 0, p.errorf(start, "expected digits")
	}
	return v, p.pos - start, nil
}

func digitValue(c byte, hex bool) (uint64, bool) {
	switch {
	case c >= '0' && c <= '9':
		return uint64(c - '0'), true
	case hex && c >= 'a' && c <= 'f':
		return uint64(c-'a') + 10, true
	case hex && c >= 'A' && c <= 'F':
		return uint64(c-'A') + 10, true
	}
	return 0, false
}

// run parses "0xADDR/segment,segment..." up to the next '/' or the end.
func (p *descParser) run() ([]Segment, error) {
	p.skipSpace()
	if !strings.HasPrefix(strings.ToLower(p.desc[p.pos:]), "0x") {
		return nil, p.errorf(p.pos, "expected hexadecimal address")
	}
	p.pos += 2
	addrPos := p.pos
	addr, n, err := p.digits(true)
	if err != nil {
		return nil, err
	}
	if n > 8 {
		return nil, p.errorf(addrPos, "address too long")
	}
	p.skipSpace()
	if err := p.expect('/'); err != nil {
		return nil, err
	}

	var segs []Segment
	for {
		p.skipSpace()
		if p.done() || p.peek() == '/' {
			break
		}
		seg, err := p.segment(uint32(addr))
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
		addr = uint64(seg.End)

		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
		}
	}

	if len(segs) == 0 {
		return nil, p.errorf(p.pos, "empty segment list")
	}
	return segs, nil
}

// segment parses "count*size unit flags".
func (p *descParser) segment(start uint32) (Segment, error) {
	segPos := p.pos
	count, _, err := p.digits(false)
	if err != nil {
		return Segment{}, err
	}
	p.skipSpace()
	if err := p.expect('*'); err != nil {
		return Segment{}, err
	}
	p.skipSpace()
	size, _, err := p.digits(false)
	if err != nil {
		return Segment{}, err
	}

	unit := byte(' ')
	if c := p.peek(); c == 'B' || c == 'K' || c == 'M' {
		unit = c
		p.pos++
	} else {
		p.skipSpace()
		if c := p.peek(); c == 'B' || c == 'K' || c == 'M' {
			unit = c
			p.pos++
		}
	}
	p.skipSpace()

	flag := p.peek()
	if flag < 'a' || flag > 'g' {
		return Segment{}, p.errorf(p.pos, "expected access flags 'a'..'g'")
	}
	p.pos++
	props := flag - 'a' + 1

	sectorSize := size * unitMultipliers[unit]
	if count == 0 || sectorSize == 0 {
		return Segment{}, p.errorf(segPos, "empty segment")
	}
	if sectorSize > 0xFFFFFFFF {
		return Segment{}, p.errorf(segPos, "sector size exceeds 32-bit address space")
	}
	end := uint64(start) + count*sectorSize
	if end > 0xFFFFFFFF {
		return Segment{}, p.errorf(segPos, "segment exceeds 32-bit address space")
	}

	return Segment{
		Start:      start,
		End:        uint32(end),
		SectorSize: uint32(sectorSize),
		Readable:   props&0x1 != 0,
		Erasable:   props&0x2 != 0,
		Writable:   props&0x4 != 0,
	}, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
