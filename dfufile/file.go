package dfufile

// File is a parsed DfuSe file.
type File struct {
	// Version is bVersion of the prefix, normally 1
	Version uint8

	// Targets in file order
	Targets []*Target

	Suffix Suffix
}

// Target holds the elements meant for one alternate setting.
type Target struct {
	AlternateSetting uint8

	// Named reports whether Name was set in the file
	Named bool
	Name  string

	Elements []*Element
}

// Element is a contiguous image to write at Address.
type Element struct {
	Address uint32
	Data    []byte
}

// End returns the first address after the element.
func (e *Element) End() uint32 {
	return e.Address + uint32(len(e.Data))
}

// Suffix is the DFU suffix closing the file.
type Suffix struct {
	// BCDDevice is the firmware version, 0xFFFF to ignore
	BCDDevice uint16

	// ProductID is the target product, 0xFFFF to ignore
	ProductID uint16

	// VendorID is the target vendor, 0xFFFF to ignore
	VendorID uint16

	// BCDDFU is the DFU specification release, 0x011A for DfuSe
	BCDDFU uint16
}

// Matches reports whether the file may be written to a device with the given IDs.
func (s Suffix) Matches(vendorID, productID uint16) bool {
	if s.VendorID != Wildcard && s.VendorID != vendorID {
		return false
	}
	return s.ProductID == Wildcard || s.ProductID == productID
}

// New returns an empty file for the given device, with version 1 and the DfuSe
// release in its suffix.
func New(vendorID, productID uint16) *File {
	return &File{
		Version: Version,
		Suffix: Suffix{
			BCDDevice: Wildcard,
			ProductID: productID,
			VendorID:  vendorID,
			BCDDFU:    BCDDFU,
		},
	}
}

// Add appends an element to the target of the alternate setting, creating the
// target when needed. A non-empty name names a new target.
func (f *File) Add(alt uint8, name string, addr uint32, data []byte) {
	var target *Target
	for _, t := range f.Targets {
		if t.AlternateSetting == alt {
			target = t
			break
		}
	}
	if target == nil {
		target = &Target{AlternateSetting: alt, Named: name != "", Name: name}
		f.Targets = append(f.Targets, target)
	}
	target.Elements = append(target.Elements, &Element{Address: addr, Data: data})
}

// Elements returns every element of every target in file order.
func (f *File) Elements() []*Element {
	var out []*Element
	for _, t := range f.Targets {
		out = append(out, t.Elements...)
	}
	return out
}

// Size returns the number of payload bytes in the file.
func (f *File) Size() int {
	n := 0
	for _, e := range f.Elements() {
		n += len(e.Data)
	}
	return n
}
