package clip

import "bytes"

// Payload is the primary content of a record. The concrete types are HTML,
// PlainText, URI, *PixelMap, *Structured and CustomData.
type Payload interface {
	payload()
}

type HTML string
type PlainText string
type URI string

// CustomData is raw bytes published under an application-defined MIME type.
type CustomData struct {
	MimeType string
	Value    []byte
}

func (HTML) payload()        {}
func (PlainText) payload()   {}
func (URI) payload()         {}
func (*PixelMap) payload()   {}
func (*Structured) payload() {}
func (CustomData) payload()  {}

// PixelMap is an opaque image buffer with the metadata needed to rebuild it.
type PixelMap struct {
	Width  int32
	Height int32
	Stride int32
	Format string
	Pixels []byte
}

// Clone returns a deep copy; nil stays nil.
func (pm *PixelMap) Clone() *PixelMap {
	if pm == nil {
		return nil
	}
	c := *pm
	c.Pixels = bytes.Clone(pm.Pixels)
	return &c
}

// Structured is an opaque typed object, such as an intent description.
type Structured struct {
	Type   string
	Params map[string][]byte
}

func (s *Structured) Clone() *Structured {
	if s == nil {
		return nil
	}
	c := &Structured{Type: s.Type}
	if len(s.Params) > 0 {
		c.Params = cloneBytesMap(s.Params)
	}
	return c
}
