package ldap

import "io"

// BindRequest is a simple bind: protocol version, a principal DN (empty
// for anonymous) and a password carried as a context-specific primitive
// tagged 0. SASL mechanisms are not supported.
type BindRequest struct {
	DN       string
	Password []byte
}

func (r *BindRequest) WritePackets(w io.Writer, msgID int) error {
	pkt := NewPacket(ClassApplication, false, ApplicationBindRequest, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagInteger, protocolVersion))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, r.DN))
	pass := r.Password
	if pass == nil {
		pass = []byte{}
	}
	pkt.AddItem(NewPacket(ClassContext, true, 0, pass))

	req := NewRequestPacket(msgID)
	req.AddItem(pkt)
	return req.Write(w)
}

// Bind authenticates using the provided dn and password. A non-zero result
// code (invalidCredentials in particular) is reported through the Result,
// not as an error: the error return is reserved for transport and protocol
// failures.
func (c *Conn) Bind(dn string, pass []byte) (*Result, error) {
	pkt, _, err := c.roundTrip(&BindRequest{
		DN:       dn,
		Password: pass,
	})
	if err != nil {
		return nil, err
	}
	return parseResult(pkt, ApplicationBindResponse)
}
