package ldaptest

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/dirwire/ldap/ldap"
)

// Server is an in-process LDAP server for tests, in the spirit of
// httptest.Server: Start it against a Directory, point a client at Addr,
// Close it when done.
type Server struct {
	dir *Directory
	ln  net.Listener
	log *zap.Logger

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	binds    int
	searches int
	closed   bool

	wg sync.WaitGroup
}

// Start listens on a loopback port and serves dir.
func Start(dir *Directory, opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{
		dir:   dir,
		ln:    ln,
		log:   zap.NewNop(),
		conns: make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

type Option func(*Server)

// WithLogger attaches a logger for request-level debug output.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// BindCount reports how many bind requests the server has received.
func (s *Server) BindCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binds
}

// SearchCount reports how many search request PDUs the server has
// received. With paging, each page is one request.
func (s *Server) SearchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches
}

// Close stops the listener and tears down active connections.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.ln.Close()
	for cn := range s.conns {
		cn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		cn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			cn.Close()
			return
		}
		s.conns[cn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serveConn(cn)
	}
}

// pageState is one paged search in progress on a connection.
type pageState struct {
	entries []*ldap.Entry
	refs    []string
	offset  int
}

func (s *Server) serveConn(cn net.Conn) {
	defer s.wg.Done()
	defer func() {
		cn.Close()
		s.mu.Lock()
		delete(s.conns, cn)
		s.mu.Unlock()
	}()

	wr := bufio.NewWriter(cn)
	pages := make(map[string]*pageState)
	nextCookie := 0

	for {
		pkt, _, err := ldap.ReadPacket(cn)
		if err != nil {
			if err != io.EOF {
				s.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		if pkt.Class != ldap.ClassUniversal || pkt.Primitive || pkt.Tag != ldap.TagSequence || len(pkt.Items) < 2 {
			s.log.Debug("invalid request envelope")
			return
		}
		msgID, ok := pkt.Items[0].Int()
		if !ok {
			s.log.Debug("failed to read message id")
			return
		}
		op := pkt.Items[1]
		s.log.Debug("request", zap.Int("msgid", msgID), zap.Int("tag", op.Tag))

		switch op.Tag {
		case ldap.ApplicationUnbindRequest:
			return
		case ldap.ApplicationBindRequest:
			s.mu.Lock()
			s.binds++
			s.mu.Unlock()
			code := ldap.ResultProtocolError
			if req, err := parseBindRequest(op); err == nil {
				code = s.dir.bind(req.dn, req.pass)
			}
			writeResult(wr, msgID, ldap.ApplicationBindResponse, code, "", nil)
		case ldap.ApplicationSearchRequest:
			s.mu.Lock()
			s.searches++
			s.mu.Unlock()
			s.handleSearch(wr, msgID, pkt, pages, &nextCookie)
		case ldap.ApplicationAddRequest:
			code := ldap.ResultProtocolError
			if req, err := parseAddRequest(op); err == nil {
				code = s.dir.add(req.dn, req.attrs)
			}
			writeResult(wr, msgID, ldap.ApplicationAddResponse, code, "", nil)
		case ldap.ApplicationModifyRequest:
			code := ldap.ResultProtocolError
			if req, err := parseModifyRequest(op); err == nil {
				code = s.dir.modify(req.dn, req.mods)
			}
			writeResult(wr, msgID, ldap.ApplicationModifyResponse, code, "", nil)
		case ldap.ApplicationDelRequest:
			code := ldap.ResultProtocolError
			if dn, ok := op.Str(); ok {
				code = s.dir.delete(dn)
			}
			writeResult(wr, msgID, ldap.ApplicationDelResponse, code, "", nil)
		case ldap.ApplicationModifyDNRequest:
			code := ldap.ResultProtocolError
			if req, err := parseModifyDNRequest(op); err == nil {
				code = s.dir.rename(req.dn, req.newRDN, req.deleteOldRDN)
			}
			writeResult(wr, msgID, ldap.ApplicationModifyDNResponse, code, "", nil)
		default:
			writeResult(wr, msgID, op.Tag+1, ldap.ResultUnwillingToPerform,
				"unsupported request tag "+strconv.Itoa(op.Tag), nil)
		}
		if err := wr.Flush(); err != nil {
			s.log.Debug("flush failed", zap.Error(err))
			return
		}
	}
}

// requestPaging pulls the paged-results control out of a request envelope.
func requestPaging(envelope *ldap.Packet) (size int, cookie []byte) {
	if len(envelope.Items) < 3 {
		return 0, nil
	}
	ctls := envelope.Items[2]
	if ctls.Class != ldap.ClassContext || ctls.Tag != 0 {
		return 0, nil
	}
	for _, ctl := range ctls.Items {
		if len(ctl.Items) < 1 {
			continue
		}
		oid, ok := ctl.Items[0].Str()
		if !ok || oid != ldap.OIDPagedResults {
			continue
		}
		raw, ok := ctl.Items[len(ctl.Items)-1].Bytes()
		if !ok {
			continue
		}
		value, _, err := ldap.ParsePacket(raw)
		if err != nil || len(value.Items) != 2 {
			continue
		}
		sz, _ := value.Items[0].Int()
		ck, _ := value.Items[1].Bytes()
		return sz, ck
	}
	return 0, nil
}

func (s *Server) handleSearch(wr io.Writer, msgID int, envelope *ldap.Packet, pages map[string]*pageState, nextCookie *int) {
	req, err := parseSearchRequest(envelope.Items[1])
	if err != nil {
		writeResult(wr, msgID, ldap.ApplicationSearchResultDone, ldap.ResultProtocolError, err.Error(), nil)
		return
	}
	size, cookie := requestPaging(envelope)

	var st *pageState
	if len(cookie) > 0 {
		st = pages[string(cookie)]
		if st == nil {
			writeResult(wr, msgID, ldap.ApplicationSearchResultDone,
				ldap.ResultUnwillingToPerform, "unknown paging cookie", nil)
			return
		}
		delete(pages, string(cookie))
	} else {
		entries, refs, err := s.dir.search(req.baseDN, req.scope, req.filter)
		if err != nil {
			writeResult(wr, msgID, ldap.ApplicationSearchResultDone,
				ldap.ResultUnwillingToPerform, err.Error(), nil)
			return
		}
		st = &pageState{entries: entries, refs: refs}
	}

	for _, uri := range st.refs {
		writeReference(wr, msgID, uri)
	}
	st.refs = nil

	end := len(st.entries)
	if size > 0 && st.offset+size < end {
		end = st.offset + size
	}
	for _, e := range st.entries[st.offset:end] {
		writeEntry(wr, msgID, e, req.typesOnly)
	}

	var respCookie []byte
	if end < len(st.entries) {
		*nextCookie++
		respCookie = []byte("page-" + strconv.Itoa(*nextCookie))
		st.offset = end
		pages[string(respCookie)] = st
	}
	writeResult(wr, msgID, ldap.ApplicationSearchResultDone, ldap.ResultSuccess, "",
		pagingControls(len(st.entries), respCookie))
}

// pagingControls builds the response controls envelope carrying a
// paged-results control with the given total estimate and cookie.
func pagingControls(total int, cookie []byte) *ldap.Packet {
	if cookie == nil {
		cookie = []byte{}
	}
	value := ldap.NewPacket(ldap.ClassUniversal, false, ldap.TagSequence, nil)
	value.AddItem(ldap.NewPacket(ldap.ClassUniversal, true, ldap.TagInteger, total))
	value.AddItem(ldap.NewPacket(ldap.ClassUniversal, true, ldap.TagOctetString, cookie))
	raw, err := value.Encode()
	if err != nil {
		return nil
	}
	ctls := ldap.NewPacket(ldap.ClassContext, false, 0, nil)
	ctl := ctls.AddItem(ldap.NewPacket(ldap.ClassUniversal, false, ldap.TagSequence, nil))
	ctl.AddItem(ldap.NewPacket(ldap.ClassUniversal, true, ldap.TagOctetString, ldap.OIDPagedResults))
	ctl.AddItem(ldap.NewPacket(ldap.ClassUniversal, true, ldap.TagOctetString, raw))
	return ctls
}

func writeResult(w io.Writer, msgID, tag int, code ldap.ResultCode, message string, controls *ldap.Packet) error {
	env := ldap.NewRequestPacket(msgID)
	op := env.AddItem(ldap.NewPacket(ldap.ClassApplication, false, tag, nil))
	op.AddItem(ldap.NewPacket(ldap.ClassUniversal, true, ldap.TagEnumerated, int(code)))
	op.AddItem(ldap.NewPacket(ldap.ClassUniversal, true, ldap.TagOctetString, ""))
	op.AddItem(ldap.NewPacket(ldap.ClassUniversal, true, ldap.TagOctetString, message))
	if controls != nil {
		env.AddItem(controls)
	}
	return env.Write(w)
}

func writeEntry(w io.Writer, msgID int, e *ldap.Entry, typesOnly bool) error {
	env := ldap.NewRequestPacket(msgID)
	op := env.AddItem(ldap.NewPacket(ldap.ClassApplication, false, ldap.ApplicationSearchResultEntry, nil))
	op.AddItem(ldap.NewPacket(ldap.ClassUniversal, true, ldap.TagOctetString, e.DN))
	attrs := op.AddItem(ldap.NewPacket(ldap.ClassUniversal, false, ldap.TagSequence, nil))
	for name, vals := range e.Attributes {
		p := attrs.AddItem(ldap.NewPacket(ldap.ClassUniversal, false, ldap.TagSequence, nil))
		p.AddItem(ldap.NewPacket(ldap.ClassUniversal, true, ldap.TagOctetString, name))
		set := p.AddItem(ldap.NewPacket(ldap.ClassUniversal, false, ldap.TagSet, nil))
		if typesOnly {
			continue
		}
		for _, v := range vals {
			set.AddItem(ldap.NewPacket(ldap.ClassUniversal, true, ldap.TagOctetString, v))
		}
	}
	return env.Write(w)
}

func writeReference(w io.Writer, msgID int, uri string) error {
	env := ldap.NewRequestPacket(msgID)
	op := env.AddItem(ldap.NewPacket(ldap.ClassApplication, false, ldap.ApplicationSearchResultReference, nil))
	op.AddItem(ldap.NewPacket(ldap.ClassUniversal, true, ldap.TagOctetString, uri))
	return env.Write(w)
}
