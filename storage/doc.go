// Package storage encodes and decodes the file store of NumWorks calculators.
//
// # File Format
//
// The store is a flat list of records behind a big-endian magic:
//
//	[0xBADD0BEE]
//	[len(2, LE)][name.type\0][payload]   repeated, len counts itself
//	[0x0000]                             terminator
//
// Python scripts (type "py") carry a payload of
//
//	[autoImport(1)][code][\0]
//
// Records of other types are kept as Raw bytes so that a decoded store
// re-encodes unchanged.
//
// # Usage
//
//	s, err := storage.Decode(area)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s.Add(storage.NewScript("hello", "print('hello')\n", false))
//	out, err := storage.Encode(s, size)
package storage
