package ldap

// Controls as defined in RFC 4511 section 4.1.11. The only control this
// client attaches itself is the simple paged results control (RFC 2696),
// but the envelope codec is generic.

// OIDPagedResults identifies the simple paged results control.
const OIDPagedResults = "1.2.840.113556.1.4.319"

// DefaultPageSize is the page size used for paged searches when the
// request does not name one. It sits below common server-side hard limits.
const DefaultPageSize = 126

// Control is one OID-identified request or response extension.
type Control struct {
	OID         string
	Criticality bool
	Value       []byte
}

func (ctl *Control) encode() *Packet {
	pkt := NewPacket(ClassUniversal, false, TagSequence, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, ctl.OID))
	if ctl.Criticality {
		pkt.AddItem(NewPacket(ClassUniversal, true, TagBoolean, true))
	}
	if len(ctl.Value) != 0 {
		pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, ctl.Value))
	}
	return pkt
}

// encodeControls builds the context-constructed tag 0 envelope holding the
// given controls, for attachment to a request message.
func encodeControls(controls []*Control) *Packet {
	pkt := NewPacket(ClassContext, false, 0, nil)
	for _, ctl := range controls {
		pkt.AddItem(ctl.encode())
	}
	return pkt
}

// parseControls decodes the controls envelope from a response message.
func parseControls(pkt *Packet) ([]*Control, error) {
	controls := make([]*Control, 0, len(pkt.Items))
	for _, it := range pkt.Items {
		if it.Primitive || len(it.Items) < 1 {
			return nil, ProtocolError("invalid control")
		}
		ctl := &Control{}
		var ok bool
		if ctl.OID, ok = it.Items[0].Str(); !ok {
			return nil, ProtocolError("invalid control oid")
		}
		for _, part := range it.Items[1:] {
			if crit, ok := part.Bool(); ok {
				ctl.Criticality = crit
				continue
			}
			value, ok := part.Bytes()
			if !ok {
				return nil, ProtocolError("invalid control value")
			}
			ctl.Value = value
		}
		controls = append(controls, ctl)
	}
	return controls, nil
}

// PagedResultsControl is the RFC 2696 control value: the requested page
// size (or the server's result set estimate on responses) and the opaque
// continuation cookie. An empty cookie on a response means the result set
// is exhausted.
type PagedResultsControl struct {
	Size   int
	Cookie []byte
}

func (pc *PagedResultsControl) control() (*Control, error) {
	inner := NewPacket(ClassUniversal, false, TagSequence, nil)
	inner.AddItem(NewPacket(ClassUniversal, true, TagInteger, pc.Size))
	cookie := pc.Cookie
	if cookie == nil {
		cookie = []byte{}
	}
	inner.AddItem(NewPacket(ClassUniversal, true, TagOctetString, cookie))
	value, err := inner.Encode()
	if err != nil {
		return nil, err
	}
	return &Control{OID: OIDPagedResults, Value: value}, nil
}

func parsePagedResults(ctl *Control) (*PagedResultsControl, error) {
	pkt, _, err := ParsePacket(ctl.Value)
	if err != nil {
		return nil, err
	}
	if pkt.Primitive || pkt.Tag != TagSequence || len(pkt.Items) != 2 {
		return nil, ProtocolError("invalid paged results control value")
	}
	pc := &PagedResultsControl{}
	var ok bool
	if pc.Size, ok = pkt.Items[0].Int(); !ok {
		return nil, ProtocolError("invalid size in paged results control")
	}
	if pc.Cookie, ok = pkt.Items[1].Bytes(); !ok {
		return nil, ProtocolError("invalid cookie in paged results control")
	}
	return pc, nil
}

// findPagedResults returns the decoded paged results control from a
// response's control list, or nil when the server attached none.
func findPagedResults(controls []*Control) (*PagedResultsControl, error) {
	for _, ctl := range controls {
		if ctl.OID == OIDPagedResults {
			return parsePagedResults(ctl)
		}
	}
	return nil, nil
}
