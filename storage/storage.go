package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// Constants for the storage container format.
const (
	// Magic opens every valid storage area (big-endian)
	Magic uint32 = 0xBADD0BEE

	// MagicSize is the size of the leading magic
	MagicSize = 4

	// LengthSize is the size of a record length field, which counts itself
	LengthSize = 2

	// MaxRecordSize is the largest record a length field can describe
	MaxRecordSize = 0xFFFF
)

// Record is one file of the storage.
type Record struct {
	// Name is the file name without extension
	Name string

	// Type is the file extension, such as "py"
	Type string

	// Payload is the decoded content: *Script for "py", Raw otherwise
	Payload Payload
}

// FullName returns name.type, the on-device file name.
func (r Record) FullName() string {
	if r.Type == "" {
		return r.Name
	}
	return r.Name + "." + r.Type
}

// Storage is the record container found in calculator flash.
type Storage struct {
	// Magic is set when the decoded area started with the storage magic
	Magic bool

	// Records in on-device order
	Records []Record
}

// Find returns the record with the given name and type.
func (s *Storage) Find(name, typ string) (Record, bool) {
	if i := s.index(name, typ); i >= 0 {
		return s.Records[i], true
	}
	return Record{}, false
}

// Add appends a record, replacing in place any record with the same name and type.
func (s *Storage) Add(r Record) {
	if i := s.index(r.Name, r.Type); i >= 0 {
		s.Records[i] = r
		return
	}
	s.Records = append(s.Records, r)
}

// Remove deletes the record with the given name and type and reports whether it existed.
func (s *Storage) Remove(name, typ string) bool {
	i := s.index(name, typ)
	if i < 0 {
		return false
	}
	s.Records = append(s.Records[:i], s.Records[i+1:]...)
	return true
}

func (s *Storage) index(name, typ string) int {
	for i, r := range s.Records {
		if r.Name == name && r.Type == typ {
			return i
		}
	}
	return -1
}

// Encode serializes s. The result, terminator included, must fit in maxSize bytes,
// otherwise a *TooLargeError is returned and no data. A maxSize of zero or less
// disables the check.
func Encode(s *Storage, maxSize int) ([]byte, error) {
	out := make([]byte, MagicSize, 256)
	binary.BigEndian.PutUint32(out, Magic)

	for _, r := range s.Records {
		payload, err := encodePayload(r)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", r.FullName(), err)
		}

		recLen := LengthSize + len(r.FullName()) + 1 + len(payload)
		if recLen > MaxRecordSize {
			return nil, &TooLargeError{Record: r.FullName(), Size: recLen, Max: MaxRecordSize}
		}
		if maxSize > 0 && len(out)+recLen+LengthSize > maxSize {
			return nil, &TooLargeError{Record: r.FullName(), Size: len(out) + recLen + LengthSize, Max: maxSize}
		}

		out = binary.LittleEndian.AppendUint16(out, uint16(recLen))
		out = append(out, r.FullName()...)
		out = append(out, 0)
		out = append(out, payload...)
	}

	if maxSize > 0 && len(out)+LengthSize > maxSize {
		return nil, &TooLargeError{Size: len(out) + LengthSize, Max: maxSize}
	}
	return append(out, 0, 0), nil
}

// Decode parses a storage area. A missing magic is not an error: it yields an
// empty Storage with Magic unset.
func Decode(b []byte) (*Storage, error) {
	s := &Storage{}
	if len(b) < MagicSize || binary.BigEndian.Uint32(b) != Magic {
		return s, nil
	}
	s.Magic = true

	off := MagicSize
	for {
		if off+LengthSize > len(b) {
			return nil, &DecodeError{Offset: off, Reason: "missing terminator"}
		}
		recLen := int(binary.LittleEndian.Uint16(b[off:]))
		if recLen == 0 {
			return s, nil
		}
		if recLen < LengthSize || off+recLen > len(b) {
			return nil, &DecodeError{Offset: off, Reason: fmt.Sprintf("record length %d exceeds area", recLen)}
		}

		body := b[off+LengthSize : off+recLen]
		nul := bytes.IndexByte(body, 0)
		if nul < 0 {
			return nil, &DecodeError{Offset: off, Reason: "unterminated record name"}
		}

		r := Record{}
		fullName := string(body[:nul])
		if dot := strings.LastIndexByte(fullName, '.'); dot >= 0 {
			r.Name, r.Type = fullName[:dot], fullName[dot+1:]
		} else {
			r.Name = fullName
		}

		payload, err := decodePayload(r.Type, body[nul+1:])
		if err != nil {
			return nil, &DecodeError{Offset: off, Reason: fmt.Sprintf("record %q: %v", fullName, err)}
		}
		r.Payload = payload

		s.Records = append(s.Records, r)
		off += recLen
	}
}

// DecodeReader reads a whole storage area from r and decodes it.
func DecodeReader(r io.Reader) (*Storage, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage: %w", err)
	}
	return Decode(b)
}

// DecodeFile decodes a storage image saved to disk.
//
// Example:
//
//	s, err := storage.DecodeFile("backup.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range s.Records {
//	    fmt.Println(r.FullName())
//	}
func DecodeFile(path string) (*Storage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeReader(f)
}
