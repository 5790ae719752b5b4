package ldap

import "io"

// Attribute is one attribute name with its ordered values, as carried by
// an add request.
type Attribute struct {
	Name   string
	Values []string
}

type AddRequest struct {
	DN         string
	Attributes []Attribute
}

func (r *AddRequest) WritePackets(w io.Writer, msgID int) error {
	pkt := NewPacket(ClassApplication, false, ApplicationAddRequest, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, r.DN))
	attrs := pkt.AddItem(NewPacket(ClassUniversal, false, TagSequence, nil))
	for _, at := range r.Attributes {
		p := attrs.AddItem(NewPacket(ClassUniversal, false, TagSequence, nil))
		p.AddItem(NewPacket(ClassUniversal, true, TagOctetString, at.Name))
		vals := p.AddItem(NewPacket(ClassUniversal, false, TagSet, nil))
		for _, v := range at.Values {
			vals.AddItem(NewPacket(ClassUniversal, true, TagOctetString, v))
		}
	}

	req := NewRequestPacket(msgID)
	req.AddItem(pkt)
	return req.Write(w)
}

// Add creates the entry named by dn with the given attributes.
func (c *Conn) Add(dn string, attrs []Attribute) (*Result, error) {
	if dn == "" {
		return nil, ArgumentError("add requires a dn")
	}
	for _, at := range attrs {
		if at.Name == "" {
			return nil, ArgumentError("add requires attribute names")
		}
	}
	pkt, _, err := c.roundTrip(&AddRequest{
		DN:         dn,
		Attributes: attrs,
	})
	if err != nil {
		return nil, err
	}
	return parseResult(pkt, ApplicationAddResponse)
}
