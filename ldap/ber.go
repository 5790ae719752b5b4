package ldap

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const maxPacketSize = 32 << 20 // 32 MB

// MalformedEncodingError is returned when a byte stream cannot be decoded
// as definite-length BER: truncated content, unreadable tag or length, or
// an unsupported encoding form.
type MalformedEncodingError string

func (e MalformedEncodingError) Error() string {
	return string(e)
}

type Class byte

const (
	ClassUniversal   Class = 0
	ClassApplication Class = 1
	ClassContext     Class = 2
	ClassPrivate     Class = 3
)

var ClassNames = map[Class]string{
	ClassUniversal:   "Universal",
	ClassApplication: "Application",
	ClassContext:     "Context",
	ClassPrivate:     "Private",
}

func (c Class) String() string {
	return ClassNames[c]
}

const (
	TagBoolean     = 0x01
	TagInteger     = 0x02
	TagOctetString = 0x04
	TagEnumerated  = 0x0a
	TagUTF8String  = 0x0c
	TagSequence    = 0x10
	TagSet         = 0x11
)

var TagNames = map[int]string{
	TagBoolean:     "Boolean",
	TagInteger:     "Integer",
	TagOctetString: "Octet String",
	TagEnumerated:  "Enumerated",
	TagUTF8String:  "UTF8 String",
	TagSequence:    "Sequence and Sequence of",
	TagSet:         "Set and Set OF",
}

// Packet is one BER tagged value: a tag (class, constructed flag, number)
// plus either a primitive value or a list of child packets. A decoded
// primitive outside the universal class keeps its raw content bytes; the
// surrounding operation context decides how to reinterpret them.
type Packet struct {
	Class     Class
	Primitive bool // true=primitive, false=constructed
	Tag       int
	Value     interface{}
	Items     []*Packet
}

func NewPacket(class Class, primitive bool, tag int, value interface{}) *Packet {
	return &Packet{
		Class:     class,
		Primitive: primitive,
		Tag:       tag,
		Value:     value,
	}
}

// ReadPacket reads exactly one BER value from rd, blocking until the
// declared length has been satisfied. It returns the number of bytes
// consumed alongside the decoded packet.
func ReadPacket(rd io.Reader) (*Packet, int, error) {
	buf := make([]byte, 16)
	if n, err := io.ReadFull(rd, buf[:2]); err != nil {
		return nil, n, err
	}
	hdr := 2
	dataLen := int(buf[1])
	if dataLen&0x80 != 0 {
		nl := int(dataLen & 0x7f)
		if nl == 0 {
			return nil, 2, MalformedEncodingError("ldap: indefinite form for length not supported")
		} else if nl > 8 {
			return nil, 2, MalformedEncodingError("ldap: number of size bytes failed sanity check")
		}
		if n, err := io.ReadFull(rd, buf[2:2+nl]); err != nil {
			return nil, hdr + n, err
		}
		hdr += nl
		dataLen = 0
		for i := 2; i < 2+nl; i++ {
			dataLen = (dataLen << 8) | int(buf[i])
		}
		if dataLen > maxPacketSize {
			return nil, 2 + nl, MalformedEncodingError("ldap: packet larger than max allowed size")
		}
	}

	total := dataLen + hdr
	if total > len(buf) {
		buf2 := make([]byte, total)
		copy(buf2, buf[:hdr])
		buf = buf2
	} else {
		buf = buf[:total]
	}
	if n, err := io.ReadFull(rd, buf[hdr:total]); err != nil {
		return nil, hdr + n, err
	}
	return ParsePacket(buf)
}

// ParsePacket decodes one BER value from the front of buf.
func ParsePacket(buf []byte) (*Packet, int, error) {
	if len(buf) < 2 {
		return nil, 0, MalformedEncodingError("ldap: short packet")
	}

	hdr := 2
	dataLen := int(buf[1])
	if dataLen&0x80 != 0 {
		n := int(dataLen & 0x7f)
		if n == 0 {
			return nil, hdr, MalformedEncodingError("ldap: indefinite form for length not supported")
		} else if n > 8 {
			return nil, hdr, MalformedEncodingError("ldap: number of size bytes failed sanity check")
		}
		if len(buf) < 2+n {
			return nil, hdr, MalformedEncodingError("ldap: short packet")
		}
		hdr += n
		dataLen = 0
		for i := 2; i < 2+n; i++ {
			dataLen = (dataLen << 8) | int(buf[i])
		}
		if dataLen > maxPacketSize {
			return nil, hdr, MalformedEncodingError("ldap: packet larger than max allowed size")
		}
	}

	if dataLen > len(buf)-hdr {
		return nil, hdr, MalformedEncodingError("ldap: short packet")
	}
	data := buf[hdr : hdr+dataLen]

	pkt := &Packet{
		Class:     Class(buf[0] >> 6),
		Primitive: buf[0]&0x20 == 0,
		Tag:       int(buf[0] & 0x1f),
	}

	if pkt.Primitive {
		if pkt.Class == ClassUniversal {
			var err error
			pkt.Value, err = parseValue(pkt.Tag, data)
			if err != nil {
				return nil, hdr + dataLen, err
			}
		} else {
			pkt.Value = data
		}
	} else {
		for len(data) > 0 {
			item, n, err := ParsePacket(data)
			if err != nil {
				return nil, hdr + dataLen - len(data) + n, err
			}
			pkt.Items = append(pkt.Items, item)
			data = data[n:]
		}
	}

	return pkt, hdr + dataLen, nil
}

func (p *Packet) AddItem(it *Packet) *Packet {
	p.Items = append(p.Items, it)
	return it
}

func (p *Packet) Bool() (bool, bool) {
	v, ok := p.Value.(bool)
	return v, ok
}

func (p *Packet) Bytes() ([]byte, bool) {
	v, ok := p.Value.([]byte)
	return v, ok
}

func (p *Packet) Int() (int, bool) {
	v, ok := p.Value.(int)
	return v, ok
}

func (p *Packet) Str() (string, bool) {
	if s, ok := p.Value.(string); ok {
		return s, true
	}
	if s, ok := p.Value.([]byte); ok {
		return string(s), true
	}
	return "", false
}

// intSize returns the number of bytes in the minimal two's-complement
// encoding of v.
func intSize(v int64) int {
	n := 1
	for v > 127 || v < -128 {
		v >>= 8
		n++
	}
	return n
}

// Size returns data size, total size with headers, and an error for unknown types
func (p *Packet) Size() (int, int, error) {
	var size int
	if p.Primitive {
		if p.Value == nil {
			return 0, 0, errors.New("ldap: nil value in Packet.Size")
		}
		switch v := p.Value.(type) {
		case []byte:
			size = len(v)
		case string:
			size = len(v)
		case int:
			size = intSize(int64(v))
		case bool:
			size = 1
		default:
			return 0, 0, fmt.Errorf("ldap: unknown type in Packet.Size: %T", p.Value)
		}
	} else {
		for _, it := range p.Items {
			_, n, err := it.Size()
			if err != nil {
				return 0, 0, err
			}
			size += n
		}
	}
	if size < 128 {
		return size, size + 2, nil
	}
	n := 0
	for x := size; x != 0; x >>= 8 {
		n++
	}
	return size, size + 2 + n, nil
}

func (p *Packet) Encode() ([]byte, error) {
	b := &bytes.Buffer{}
	if err := p.Write(b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (p *Packet) Write(w io.Writer) error {
	return p.write(w, make([]byte, 16))
}

func (p *Packet) write(w io.Writer, b []byte) error {
	sz, total, err := p.Size()
	if err != nil {
		return err
	}
	if total > maxPacketSize {
		return fmt.Errorf("ldap: packet larger than max size (%d > %d)", total, maxPacketSize)
	}
	pri := byte(0x20)
	if p.Primitive {
		pri = 0
	}
	hdr := 2
	b[0] = byte(byte(p.Class)<<6 | pri | byte(p.Tag)&0x1f)
	if sz < 128 {
		b[1] = byte(sz)
	} else {
		n := 0
		for x := sz; x > 0; x >>= 8 {
			n++
		}
		hdr += n
		b[1] = 0x80 | byte(n)
		s := uint((n - 1) * 8)
		for i := 0; i < n; i++ {
			b[i+2] = byte(sz >> s & 0xff)
			s -= 8
		}
	}
	if _, err := w.Write(b[:hdr]); err != nil {
		return err
	}

	if p.Primitive {
		if p.Value == nil {
			return errors.New("ldap: nil value in Packet.write")
		}
		switch v := p.Value.(type) {
		case []byte:
			if _, err := w.Write(v); err != nil {
				return err
			}
		case string:
			if _, err := io.WriteString(w, v); err != nil {
				return err
			}
		case int:
			n := intSize(int64(v))
			s := uint((n - 1) * 8)
			for i := 0; i < n; i++ {
				b[i] = byte(int64(v) >> s & 0xff)
				s -= 8
			}
			if _, err := w.Write(b[:n]); err != nil {
				return err
			}
		case bool:
			b[0] = 0
			if v {
				b[0] = 0xff
			}
			if _, err := w.Write(b[:1]); err != nil {
				return err
			}
		default:
			return errors.New("ldap: unknown type in Packet.write")
		}
	} else {
		if p.Value != nil {
			return errors.New("ldap: non-primitive type has a value")
		}
		for _, it := range p.Items {
			if err := it.write(w, b); err != nil {
				return err
			}
		}
	}

	return nil
}

// Format writes a human readable dump of the packet tree, mostly useful
// with a debug logger.
func (p *Packet) Format(w io.Writer) error {
	return p.format(w, "")
}

func (p *Packet) format(w io.Writer, indent string) error {
	pri := "Primitive"
	if !p.Primitive {
		pri = "Constructed"
	}
	if _, err := fmt.Fprintf(w, "%sClass:%s %s", indent, p.Class.String(), pri); err != nil {
		return err
	}
	var tag string
	if p.Class == ClassUniversal {
		tag = TagNames[p.Tag]
	}
	if tag == "" {
		tag = strconv.Itoa(p.Tag)
	}
	if _, err := fmt.Fprintf(w, " Tag:%s", tag); err != nil {
		return err
	}

	if p.Primitive {
		if b, ok := p.Value.([]byte); ok {
			if _, err := fmt.Fprintf(w, " Len:%d\n", len(b)); err != nil {
				return err
			}
			for _, s := range strings.Split(hex.Dump(b), "\n") {
				if s != "" {
					if _, err := fmt.Fprintf(w, "%s %s\n", indent, s); err != nil {
						return err
					}
				}
			}
		} else if _, err := fmt.Fprintf(w, " Value:%+v\n", p.Value); err != nil {
			return err
		}
	} else {
		if _, err := w.Write([]byte("\n")); err != nil {
			return err
		}
		for _, it := range p.Items {
			if err := it.format(w, indent+"  "); err != nil {
				return err
			}
		}
	}

	return nil
}

func parseValue(tag int, data []byte) (interface{}, error) {
	switch tag {
	default:
		return data, nil
	case TagBoolean:
		if len(data) != 1 {
			return nil, MalformedEncodingError("ldap: bool other than 1")
		}
		return data[0] != 0, nil
	case TagInteger, TagEnumerated:
		if len(data) == 0 || len(data) > 8 {
			return nil, MalformedEncodingError("ldap: integer content length out of range")
		}
		var i int64
		if data[0]&0x80 != 0 {
			i = -1
		}
		for _, b := range data {
			i = (i << 8) | int64(b)
		}
		return int(i), nil
	case TagUTF8String:
		return string(data), nil
	}
}
