package storage

import (
	"bytes"
	"fmt"
	"sync"
)

// Payload is the content of a record: Raw or *Script.
type Payload interface {
	isPayload()
}

// Raw is an undecoded payload. Records of unknown types keep their bytes as Raw.
type Raw []byte

func (Raw) isPayload() {}

// Script is a Python script payload (type "py").
type Script struct {
	// AutoImport makes the shell import the script on startup
	AutoImport bool

	// Code is the script source
	Code string
}

func (*Script) isPayload() {}

// NewScript builds a "py" record.
func NewScript(name, code string, autoImport bool) Record {
	return Record{Name: name, Type: "py", Payload: &Script{AutoImport: autoImport, Code: code}}
}

// Codec converts between the raw bytes and a typed payload of one record type.
type Codec interface {
	Decode(data []byte) (Payload, error)
	Encode(p Payload) ([]byte, error)
}

var (
	codecsMu sync.RWMutex
	codecs   = map[string]Codec{
		"py": scriptCodec{},
	}
)

// RegisterCodec installs the codec used for records of type typ.
func RegisterCodec(typ string, c Codec) {
	codecsMu.Lock()
	defer codecsMu.Unlock()

	codecs[typ] = c
}

func codecFor(typ string) (Codec, bool) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()

	c, ok := codecs[typ]
	return c, ok
}

func encodePayload(r Record) ([]byte, error) {
	switch p := r.Payload.(type) {
	case nil:
		return nil, nil
	case Raw:
		return p, nil
	default:
		c, ok := codecFor(r.Type)
		if !ok {
			return nil, fmt.Errorf("no codec for type %q", r.Type)
		}
		return c.Encode(p)
	}
}

func decodePayload(typ string, data []byte) (Payload, error) {
	c, ok := codecFor(typ)
	if !ok {
		return Raw(append([]byte(nil), data...)), nil
	}
	return c.Decode(data)
}

// scriptCodec lays out a script as [autoImport][code...][NUL].
type scriptCodec struct{}

func (scriptCodec) Decode(data []byte) (Payload, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("empty script payload")
	}

	code := data[1:]
	if i := bytes.IndexByte(code, 0); i >= 0 {
		code = code[:i]
	}
	return &Script{AutoImport: data[0] != 0, Code: string(code)}, nil
}

func (scriptCodec) Encode(p Payload) ([]byte, error) {
	s, ok := p.(*Script)
	if !ok {
		return nil, fmt.Errorf("expected *Script payload, got %T", p)
	}
	if s == nil {
		return nil, fmt.Errorf("nil script")
	}

	out := make([]byte, 0, len(s.Code)+2)
	if s.AutoImport {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, s.Code...)
	return append(out, 0), nil
}
