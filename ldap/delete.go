package ldap

import "io"

type DeleteRequest struct {
	DN string
}

func (r *DeleteRequest) WritePackets(w io.Writer, msgID int) error {
	req := NewRequestPacket(msgID)
	req.AddItem(NewPacket(ClassApplication, true, ApplicationDelRequest, r.DN))
	return req.Write(w)
}

// Delete removes the entry named by dn.
func (c *Conn) Delete(dn string) (*Result, error) {
	if dn == "" {
		return nil, ArgumentError("delete requires a dn")
	}
	pkt, _, err := c.roundTrip(&DeleteRequest{DN: dn})
	if err != nil {
		return nil, err
	}
	return parseResult(pkt, ApplicationDelResponse)
}
