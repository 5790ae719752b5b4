package ldap

import (
	"fmt"
	"strings"
)

// Filter tags from RFC 4511 section 4.5.1.7. The client consumes an
// already-built filter tree; turning a human filter string into one is a
// job for a parser layered on top of this package.
const (
	FilterTagAND           = 0
	FilterTagOR            = 1
	FilterTagNOT           = 2
	FilterTagEqualityMatch = 3
	FilterTagSubstrings    = 4
	FilterTagPresent       = 7
)

// Filter is one node of a search filter tree.
type Filter interface {
	String() string
	Encode() (*Packet, error)
}

type AND struct {
	Filters []Filter
}

func (a *AND) Encode() (*Packet, error) {
	pkt := NewPacket(ClassContext, false, FilterTagAND, nil)
	for _, f := range a.Filters {
		p, err := f.Encode()
		if err != nil {
			return nil, err
		}
		pkt.AddItem(p)
	}
	return pkt, nil
}

func (a *AND) String() string {
	s := make([]string, len(a.Filters))
	for i, f := range a.Filters {
		s[i] = f.String()
	}
	return fmt.Sprintf("(&%s)", strings.Join(s, ""))
}

type OR struct {
	Filters []Filter
}

func (o *OR) Encode() (*Packet, error) {
	pkt := NewPacket(ClassContext, false, FilterTagOR, nil)
	for _, f := range o.Filters {
		p, err := f.Encode()
		if err != nil {
			return nil, err
		}
		pkt.AddItem(p)
	}
	return pkt, nil
}

func (o *OR) String() string {
	s := make([]string, len(o.Filters))
	for i, f := range o.Filters {
		s[i] = f.String()
	}
	return fmt.Sprintf("(|%s)", strings.Join(s, ""))
}

type NOT struct {
	Filter
}

func (n *NOT) Encode() (*Packet, error) {
	pkt := NewPacket(ClassContext, false, FilterTagNOT, nil)
	p, err := n.Filter.Encode()
	if err != nil {
		return nil, err
	}
	pkt.AddItem(p)
	return pkt, nil
}

func (n *NOT) String() string {
	return fmt.Sprintf("(!%s)", n.Filter.String())
}

type EqualityMatch struct {
	Attribute string
	Value     []byte
}

func (f *EqualityMatch) Encode() (*Packet, error) {
	pkt := NewPacket(ClassContext, false, FilterTagEqualityMatch, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, f.Attribute))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, f.Value))
	return pkt, nil
}

func (f *EqualityMatch) String() string {
	return fmt.Sprintf("(%s=%s)", filterEscape(f.Attribute), filterEscape(string(f.Value)))
}

type Present struct {
	Attribute string
}

func (f *Present) Encode() (*Packet, error) {
	return NewPacket(ClassContext, true, FilterTagPresent, f.Attribute), nil
}

func (f *Present) String() string {
	return fmt.Sprintf("(%s=*)", filterEscape(f.Attribute))
}

type Substrings struct {
	Attribute string
	Initial   string
	Final     string
	Any       []string
}

func (f *Substrings) Encode() (*Packet, error) {
	pkt := NewPacket(ClassContext, false, FilterTagSubstrings, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, f.Attribute))
	p := pkt.AddItem(NewPacket(ClassUniversal, false, TagSequence, nil))
	if f.Initial != "" {
		p.AddItem(NewPacket(ClassContext, true, 0, f.Initial))
	}
	for _, a := range f.Any {
		if a != "" {
			p.AddItem(NewPacket(ClassContext, true, 1, a))
		}
	}
	if f.Final != "" {
		p.AddItem(NewPacket(ClassContext, true, 2, f.Final))
	}
	return pkt, nil
}

func (s *Substrings) String() string {
	n := len(s.Any) + 2
	parts := make([]string, n)
	parts[0] = filterEscape(s.Initial)
	parts[len(parts)-1] = filterEscape(s.Final)
	for i, s := range s.Any {
		parts[i+1] = filterEscape(s)
	}
	return fmt.Sprintf("(%s=%s)", filterEscape(s.Attribute), strings.Join(parts, "*"))
}

var escapes = map[rune][]rune{
	'(':  []rune(`\28`),
	')':  []rune(`\29`),
	'&':  []rune(`\26`),
	'|':  []rune(`\7c`),
	'=':  []rune(`\3d`),
	'>':  []rune(`\3e`),
	'<':  []rune(`\3c`),
	'~':  []rune(`\7e`),
	'*':  []rune(`\2a`),
	'/':  []rune(`\2f`),
	'\\': []rune(`\5c`),
}

func filterEscape(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if e := escapes[r]; e != nil {
			out = append(out, e...)
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}
