package ldaptest

import (
	"strings"

	"github.com/dirwire/ldap/ldap"
)

// Server-side parsing of the request PDUs the harness accepts. These
// interpret the raw packet trees the client encodes; shapes follow RFC
// 4511.

type bindRequest struct {
	dn   string
	pass []byte
}

func parseBindRequest(pkt *ldap.Packet) (*bindRequest, error) {
	if len(pkt.Items) != 3 {
		return nil, ldap.ProtocolError("bind request should have 3 values")
	}
	ver, ok := pkt.Items[0].Int()
	if !ok || ver != 3 {
		return nil, ldap.ProtocolError("unsupported or invalid version")
	}
	req := &bindRequest{}
	if req.dn, ok = pkt.Items[1].Str(); !ok {
		return nil, ldap.ProtocolError("can't parse dn for bind request")
	}
	if req.pass, ok = pkt.Items[2].Bytes(); !ok {
		return nil, ldap.ProtocolError("can't parse simple password for bind request")
	}
	return req, nil
}

type searchRequest struct {
	baseDN     string
	scope      ldap.Scope
	typesOnly  bool
	filter     *ldap.Packet
	attributes []string
}

func parseSearchRequest(pkt *ldap.Packet) (*searchRequest, error) {
	if len(pkt.Items) != 8 {
		return nil, ldap.ProtocolError("search request should have 8 items")
	}
	var ok bool
	req := &searchRequest{}
	if req.baseDN, ok = pkt.Items[0].Str(); !ok {
		return nil, ldap.ProtocolError("can't parse baseObject for search request")
	}
	scope, ok := pkt.Items[1].Int()
	if !ok {
		return nil, ldap.ProtocolError("can't parse scope for search request")
	}
	req.scope = ldap.Scope(scope)
	if _, ok = pkt.Items[2].Int(); !ok {
		return nil, ldap.ProtocolError("can't parse derefAliases for search request")
	}
	if _, ok = pkt.Items[3].Int(); !ok {
		return nil, ldap.ProtocolError("can't parse sizeLimit for search request")
	}
	if _, ok = pkt.Items[4].Int(); !ok {
		return nil, ldap.ProtocolError("can't parse timeLimit for search request")
	}
	if req.typesOnly, ok = pkt.Items[5].Bool(); !ok {
		return nil, ldap.ProtocolError("can't parse typesOnly for search request")
	}
	req.filter = pkt.Items[6]
	for _, it := range pkt.Items[7].Items {
		s, ok := it.Str()
		if !ok {
			return nil, ldap.ProtocolError("can't parse attribute from list for search request")
		}
		req.attributes = append(req.attributes, s)
	}
	return req, nil
}

type addRequest struct {
	dn    string
	attrs map[string][]string
}

func parseAddRequest(pkt *ldap.Packet) (*addRequest, error) {
	if len(pkt.Items) != 2 {
		return nil, ldap.ProtocolError("add request requires 2 items")
	}
	var ok bool
	req := &addRequest{attrs: make(map[string][]string)}
	if req.dn, ok = pkt.Items[0].Str(); !ok {
		return nil, ldap.ProtocolError("invalid dn")
	}
	for _, at := range pkt.Items[1].Items {
		if len(at.Items) != 2 {
			return nil, ldap.ProtocolError("invalid attribute")
		}
		name, ok := at.Items[0].Str()
		if !ok {
			return nil, ldap.ProtocolError("invalid attribute")
		}
		var vals []string
		for _, v := range at.Items[1].Items {
			s, ok := v.Str()
			if !ok {
				return nil, ldap.ProtocolError("invalid attribute value")
			}
			vals = append(vals, s)
		}
		req.attrs[name] = vals
	}
	return req, nil
}

type mod struct {
	typ    int
	name   string
	values []string
}

type modifyRequest struct {
	dn   string
	mods []mod
}

func parseModifyRequest(pkt *ldap.Packet) (*modifyRequest, error) {
	if len(pkt.Items) != 2 {
		return nil, ldap.ProtocolError("modify request requires exactly 2 items")
	}
	dn, ok := pkt.Items[0].Str()
	if !ok {
		return nil, ldap.ProtocolError("invalid dn")
	}
	req := &modifyRequest{dn: dn}
	for _, it := range pkt.Items[1].Items {
		if len(it.Items) != 2 || len(it.Items[1].Items) != 2 {
			return nil, ldap.ProtocolError("mod operation requires 2 items")
		}
		typ, ok := it.Items[0].Int()
		if !ok {
			return nil, ldap.ProtocolError("invalid mod op")
		}
		name, ok := it.Items[1].Items[0].Str()
		if !ok {
			return nil, ldap.ProtocolError("invalid attribute name")
		}
		values := make([]string, 0, len(it.Items[1].Items[1].Items))
		for _, c := range it.Items[1].Items[1].Items {
			val, ok := c.Str()
			if !ok {
				return nil, ldap.ProtocolError("invalid attribute value")
			}
			values = append(values, val)
		}
		req.mods = append(req.mods, mod{typ: typ, name: name, values: values})
	}
	return req, nil
}

type modifyDNRequest struct {
	dn           string
	newRDN       string
	deleteOldRDN bool
}

func parseModifyDNRequest(pkt *ldap.Packet) (*modifyDNRequest, error) {
	if len(pkt.Items) < 3 || len(pkt.Items) > 4 {
		return nil, ldap.ProtocolError("wrong number of items")
	}
	var ok bool
	req := &modifyDNRequest{}
	if req.dn, ok = pkt.Items[0].Str(); !ok {
		return nil, ldap.ProtocolError("invalid dn")
	}
	if req.newRDN, ok = pkt.Items[1].Str(); !ok {
		return nil, ldap.ProtocolError("invalid newrdn")
	}
	if req.deleteOldRDN, ok = pkt.Items[2].Bool(); !ok {
		return nil, ldap.ProtocolError("invalid deleteoldrdn")
	}
	return req, nil
}

// matchFilter evaluates a wire-form filter against an entry.
func matchFilter(pkt *ldap.Packet, e *ldap.Entry) (bool, error) {
	if pkt.Class != ldap.ClassContext {
		return false, ldap.ProtocolError("filter is not context tagged")
	}
	switch pkt.Tag {
	case ldap.FilterTagAND:
		for _, it := range pkt.Items {
			ok, err := matchFilter(it, e)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case ldap.FilterTagOR:
		for _, it := range pkt.Items {
			ok, err := matchFilter(it, e)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case ldap.FilterTagNOT:
		if len(pkt.Items) != 1 {
			return false, ldap.ProtocolError("not filter requires 1 item")
		}
		ok, err := matchFilter(pkt.Items[0], e)
		return !ok, err
	case ldap.FilterTagEqualityMatch:
		if len(pkt.Items) != 2 {
			return false, ldap.ProtocolError("equality filter requires 2 items")
		}
		name, ok := pkt.Items[0].Str()
		if !ok {
			return false, ldap.ProtocolError("invalid attribute in equality filter")
		}
		want, ok := pkt.Items[1].Str()
		if !ok {
			return false, ldap.ProtocolError("invalid value in equality filter")
		}
		for _, v := range attrValues(e, name) {
			if strings.EqualFold(v, want) {
				return true, nil
			}
		}
		return false, nil
	case ldap.FilterTagPresent:
		name, ok := pkt.Str()
		if !ok {
			return false, ldap.ProtocolError("invalid attribute in presence filter")
		}
		return attrValues(e, name) != nil, nil
	case ldap.FilterTagSubstrings:
		if len(pkt.Items) != 2 {
			return false, ldap.ProtocolError("substrings filter requires 2 items")
		}
		name, ok := pkt.Items[0].Str()
		if !ok {
			return false, ldap.ProtocolError("invalid attribute in substrings filter")
		}
		for _, v := range attrValues(e, name) {
			ok, err := matchSubstrings(pkt.Items[1], v)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return false, ldap.ProtocolError("unsupported filter tag")
}

func matchSubstrings(parts *ldap.Packet, value string) (bool, error) {
	rest := strings.ToLower(value)
	for i, part := range parts.Items {
		s, ok := part.Str()
		if !ok {
			return false, ldap.ProtocolError("invalid substring part")
		}
		s = strings.ToLower(s)
		switch part.Tag {
		case 0: // initial
			if !strings.HasPrefix(rest, s) {
				return false, nil
			}
			rest = rest[len(s):]
		case 1: // any
			idx := strings.Index(rest, s)
			if idx < 0 {
				return false, nil
			}
			rest = rest[idx+len(s):]
		case 2: // final
			if i != len(parts.Items)-1 || !strings.HasSuffix(rest, s) {
				return false, nil
			}
			rest = ""
		default:
			return false, ldap.ProtocolError("invalid substring tag")
		}
	}
	return true, nil
}

func attrValues(e *ldap.Entry, name string) []string {
	for n, vals := range e.Attributes {
		if strings.EqualFold(n, name) {
			return vals
		}
	}
	return nil
}
