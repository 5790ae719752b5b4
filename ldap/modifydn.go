package ldap

import "io"

// ModifyDNRequest renames an entry. NewSuperior, when set, also moves the
// entry under a different parent.
type ModifyDNRequest struct {
	DN           string
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string
}

func (r *ModifyDNRequest) WritePackets(w io.Writer, msgID int) error {
	pkt := NewPacket(ClassApplication, false, ApplicationModifyDNRequest, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, r.DN))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, r.NewRDN))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagBoolean, r.DeleteOldRDN))
	if r.NewSuperior != "" {
		pkt.AddItem(NewPacket(ClassContext, true, 0, r.NewSuperior))
	}

	req := NewRequestPacket(msgID)
	req.AddItem(pkt)
	return req.Write(w)
}

// ModifyDN renames the entry named by req.DN.
func (c *Conn) ModifyDN(req *ModifyDNRequest) (*Result, error) {
	if req.DN == "" {
		return nil, ArgumentError("modifyDN requires a dn")
	}
	if req.NewRDN == "" {
		return nil, ArgumentError("modifyDN requires a new rdn")
	}
	pkt, _, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	return parseResult(pkt, ApplicationModifyDNResponse)
}
