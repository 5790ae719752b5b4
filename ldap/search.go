package ldap

import (
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

type Scope int

const (
	ScopeBaseObject   Scope = 0
	ScopeSingleLevel  Scope = 1
	ScopeWholeSubtree Scope = 2
)

var ScopeMap = map[Scope]string{
	ScopeBaseObject:   "Base Object",
	ScopeSingleLevel:  "Single Level",
	ScopeWholeSubtree: "Whole Subtree",
}

func (sc Scope) String() string {
	if s := ScopeMap[sc]; s != "" {
		return s
	}
	return strconv.Itoa(int(sc))
}

// SearchRequest describes one search. Size and time limits of zero mean
// unlimited, which is also the default. PageSize of zero selects
// DefaultPageSize; every search is paged.
type SearchRequest struct {
	BaseDN     string
	Scope      Scope
	SizeLimit  int
	TimeLimit  int
	TypesOnly  bool
	Filter     Filter
	Attributes []string

	// PageSize is the number of entries requested per paged-results
	// round trip.
	PageSize int
	// IncludeReferrals surfaces search-result-reference PDUs as synthetic
	// entries with an empty DN and a single "ref" attribute holding the
	// referral URIs. When unset, references are skipped.
	IncludeReferrals bool
}

// Entry is one directory entry from a search result: its DN and a mapping
// from attribute name to the ordered values the server sent. Entries are
// built only from decoded search-result PDUs and are owned by the caller
// once yielded.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

func IsPrintable(v []byte) bool {
	for i := 0; i < len(v); {
		r, s := utf8.DecodeRune(v[i:])
		if r == utf8.RuneError || r < 32 {
			return false
		}
		i += s
	}
	return true
}

// ToLDIF writes the entry in LDIF form, base64-encoding values that are
// not printable.
func (e *Entry) ToLDIF(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "dn: %s\n", e.DN); err != nil {
		return err
	}
	for name, values := range e.Attributes {
		for _, v := range values {
			if IsPrintable([]byte(v)) {
				if _, err := fmt.Fprintf(w, "%s: %s\n", name, v); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprintf(w, "%s:: %s\n", name, base64.StdEncoding.EncodeToString([]byte(v))); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// searchMessage is one page's request: the search operation plus the
// paged-results control carrying the current cookie.
type searchMessage struct {
	req    *SearchRequest
	paging *PagedResultsControl
}

func (m *searchMessage) WritePackets(w io.Writer, msgID int) error {
	r := m.req
	pkt := NewPacket(ClassApplication, false, ApplicationSearchRequest, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, r.BaseDN))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagEnumerated, int(r.Scope)))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagEnumerated, 0)) // neverDerefAliases
	pkt.AddItem(NewPacket(ClassUniversal, true, TagInteger, r.SizeLimit))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagInteger, r.TimeLimit))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagBoolean, r.TypesOnly))
	filter := r.Filter
	if filter == nil {
		filter = &Present{Attribute: "objectClass"}
	}
	p, err := filter.Encode()
	if err != nil {
		return err
	}
	pkt.AddItem(p)
	attrs := pkt.AddItem(NewPacket(ClassUniversal, false, TagSequence, nil))
	for _, a := range r.Attributes {
		attrs.AddItem(NewPacket(ClassUniversal, true, TagOctetString, a))
	}

	ctl, err := m.paging.control()
	if err != nil {
		return err
	}

	req := NewRequestPacket(msgID)
	req.AddItem(pkt)
	req.AddItem(encodeControls([]*Control{ctl}))
	return req.Write(w)
}

func parseSearchEntry(pkt *Packet) (*Entry, error) {
	if pkt.Tag != ApplicationSearchResultEntry || len(pkt.Items) != 2 {
		return nil, ProtocolError("search result entry should have 2 items")
	}
	entry := &Entry{Attributes: make(map[string][]string)}
	var ok bool
	if entry.DN, ok = pkt.Items[0].Str(); !ok {
		return nil, ProtocolError("failed to parse dn for search result entry")
	}
	for _, p := range pkt.Items[1].Items {
		if len(p.Items) != 2 {
			return nil, ProtocolError("search result entry attribute should have 2 items")
		}
		name, ok := p.Items[0].Str()
		if !ok {
			return nil, ProtocolError("failed to parse attribute name in search result entry")
		}
		values := make([]string, 0, len(p.Items[1].Items))
		for _, vp := range p.Items[1].Items {
			value, ok := vp.Str()
			if !ok {
				return nil, ProtocolError("failed to parse attribute value in search result entry")
			}
			values = append(values, value)
		}
		entry.Attributes[name] = values
	}
	return entry, nil
}

func parseSearchReference(pkt *Packet) ([]string, error) {
	uris := make([]string, 0, len(pkt.Items))
	for _, it := range pkt.Items {
		uri, ok := it.Str()
		if !ok {
			return nil, ProtocolError("failed to parse uri in search result reference")
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

func (r *SearchRequest) validate() error {
	switch r.Scope {
	case ScopeBaseObject, ScopeSingleLevel, ScopeWholeSubtree:
	default:
		return ArgumentError(fmt.Sprintf("invalid search scope %d", int(r.Scope)))
	}
	if r.PageSize < 0 || r.SizeLimit < 0 || r.TimeLimit < 0 {
		return ArgumentError("search limits must not be negative")
	}
	return nil
}

// SearchEach runs a paged search and delivers entries to fn as they are
// decoded, without buffering the result set. Pages are fetched with the
// RFC 2696 paged-results control: the cookie returned on each
// search-result-done is resent with the same base, scope and filter until
// the server returns an empty cookie or a non-zero result code. Every
// entry the server emits is delivered exactly once, in emission order.
//
// An error from fn aborts delivery; the remainder of the in-flight page is
// drained so the connection stays usable.
func (c *Conn) SearchEach(req *SearchRequest, fn func(*Entry) error) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	var cookie []byte
	var fnErr error
	for {
		id := c.nextID()
		msg := &searchMessage{
			req:    req,
			paging: &PagedResultsControl{Size: pageSize, Cookie: cookie},
		}
		if err := c.send(msg, id); err != nil {
			return nil, err
		}

		done := false
		for !done {
			pkt, controls, err := c.readResponse(id)
			if err != nil {
				return nil, err
			}
			switch pkt.Tag {
			case ApplicationSearchResultEntry:
				if fnErr != nil {
					continue // draining after a callback error
				}
				entry, err := parseSearchEntry(pkt)
				if err != nil {
					return nil, err
				}
				fnErr = fn(entry)
			case ApplicationSearchResultReference:
				if fnErr != nil || !req.IncludeReferrals {
					continue
				}
				uris, err := parseSearchReference(pkt)
				if err != nil {
					return nil, err
				}
				fnErr = fn(&Entry{Attributes: map[string][]string{"ref": uris}})
			case ApplicationSearchResultDone:
				res, err := parseResult(pkt, ApplicationSearchResultDone)
				if err != nil {
					return nil, err
				}
				if fnErr != nil {
					return nil, fnErr
				}
				pc, err := findPagedResults(controls)
				if err != nil {
					return nil, err
				}
				if res.Code == ResultSuccess && pc != nil && len(pc.Cookie) > 0 {
					cookie = pc.Cookie
					done = true // next page, new message id
					break
				}
				return res, nil
			default:
				return nil, ProtocolError(fmt.Sprintf("unexpected tag %d for search response", pkt.Tag))
			}
		}
	}
}

// Search runs a paged search and accumulates the full result set.
func (c *Conn) Search(req *SearchRequest) ([]*Entry, *Result, error) {
	var entries []*Entry
	res, err := c.SearchEach(req, func(e *Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return entries, res, nil
}
