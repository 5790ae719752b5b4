package ldap

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 389
	DefaultTLSPort = 636
)

// Config holds the target directory and bind identity for a Session.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	BaseDN   string `yaml:"base_dn"`
	BindDN   string `yaml:"bind_dn"`
	PageSize int    `yaml:"page_size"`
}

// LoadConfig reads a YAML session config from path.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("ldap: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Address returns the host:port to dial, applying the conventional default
// port for the selected transport.
func (c Config) Address() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == 0 {
		if c.TLS {
			port = DefaultTLSPort
		} else {
			port = DefaultPort
		}
	}
	return host + ":" + strconv.Itoa(port)
}

// Session is the public face of the client. It holds configuration and the
// bind credential and runs each operation on an ephemeral connection:
// dial, bind, operate, close. For amortizing that cost across several
// operations use Dial (caller binds and closes) or Do (scope-bound
// connection with the session's credential).
//
// The directory's verdict on the most recent operation is kept for
// inspection through LastResult; operation methods report directory-level
// refusals as a false/empty return, never as an error.
type Session struct {
	cfg  Config
	cred Credential
	log  *zap.Logger

	mu   sync.Mutex
	last *Result
}

type SessionOption func(*Session)

// WithSessionLogger attaches a logger to the session and its connections.
func WithSessionLogger(log *zap.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

func NewSession(cfg Config, cred Credential, opts ...SessionOption) *Session {
	s := &Session{
		cfg:  cfg,
		cred: cred,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastResult returns the directory result of the most recent operation on
// this session, or nil if none has completed.
func (s *Session) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) setLast(res *Result) {
	if res == nil {
		return
	}
	s.mu.Lock()
	s.last = res
	s.mu.Unlock()
}

// Dial opens a connection using the session's transport configuration and
// nothing else: the caller binds, uses, and closes it. This is the scoped
// mode; the session's ephemeral operations are unaffected by it.
func (s *Session) Dial() (*Conn, error) {
	if s.cfg.TLS {
		return DialTLS("tcp", s.cfg.Address(), nil, WithLogger(s.log))
	}
	return Dial("tcp", s.cfg.Address(), WithLogger(s.log))
}

// open dials and binds with the session credential. A refused bind closes
// the connection and returns a nil Conn with the bind result.
func (s *Session) open() (*Conn, *Result, error) {
	cn, err := s.Dial()
	if err != nil {
		return nil, nil, err
	}
	pass, err := s.cred.resolve()
	if err != nil {
		cn.Close()
		return nil, nil, fmt.Errorf("ldap: resolve credential: %w", err)
	}
	res, err := cn.Bind(s.cfg.BindDN, pass)
	if err != nil {
		cn.Close()
		return nil, nil, err
	}
	if !res.OK() {
		cn.Close()
		return nil, res, nil
	}
	return cn, res, nil
}

// Do opens a connection, binds with the session credential, runs fn on the
// bound connection and closes it when fn returns. The bool reports whether
// the bind was accepted; when false, fn never ran and LastResult holds the
// refusal.
func (s *Session) Do(fn func(*Conn) error) (bool, error) {
	cn, res, err := s.open()
	s.setLast(res)
	if err != nil {
		return false, err
	}
	if cn == nil {
		return false, nil
	}
	defer cn.Close()
	return true, fn(cn)
}

// Bind verifies the session credential against the directory.
func (s *Session) Bind() (bool, error) {
	cn, res, err := s.open()
	s.setLast(res)
	if err != nil {
		return false, err
	}
	if cn == nil {
		return false, nil
	}
	cn.Close()
	return true, nil
}

// run executes one mutating operation on an ephemeral connection.
func (s *Session) run(fn func(*Conn) (*Result, error)) (bool, error) {
	cn, bindRes, err := s.open()
	s.setLast(bindRes)
	if err != nil {
		return false, err
	}
	if cn == nil {
		return false, nil
	}
	defer cn.Close()
	res, err := fn(cn)
	s.setLast(res)
	if err != nil {
		return false, err
	}
	return res.OK(), nil
}

// Search runs a paged search on an ephemeral connection and returns the
// accumulated entries. A directory-level failure terminates the paging
// loop; the entries received up to that point are returned and LastResult
// carries the code.
func (s *Session) Search(req *SearchRequest) ([]*Entry, error) {
	if req.PageSize == 0 {
		req.PageSize = s.cfg.PageSize
	}
	cn, bindRes, err := s.open()
	s.setLast(bindRes)
	if err != nil {
		return nil, err
	}
	if cn == nil {
		return nil, nil
	}
	defer cn.Close()
	entries, res, err := cn.Search(req)
	s.setLast(res)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SearchEach is the streaming form of Search: entries are handed to fn as
// pages arrive, without accumulation.
func (s *Session) SearchEach(req *SearchRequest, fn func(*Entry) error) error {
	if req.PageSize == 0 {
		req.PageSize = s.cfg.PageSize
	}
	cn, bindRes, err := s.open()
	s.setLast(bindRes)
	if err != nil {
		return err
	}
	if cn == nil {
		return nil
	}
	defer cn.Close()
	res, err := cn.SearchEach(req, fn)
	s.setLast(res)
	return err
}

// Add creates an entry on an ephemeral connection.
func (s *Session) Add(dn string, attrs []Attribute) (bool, error) {
	return s.run(func(cn *Conn) (*Result, error) {
		return cn.Add(dn, attrs)
	})
}

// Modify applies ordered modifications on an ephemeral connection.
func (s *Session) Modify(dn string, mods []Mod) (bool, error) {
	return s.run(func(cn *Conn) (*Result, error) {
		return cn.Modify(dn, mods)
	})
}

// Delete removes an entry on an ephemeral connection.
func (s *Session) Delete(dn string) (bool, error) {
	return s.run(func(cn *Conn) (*Result, error) {
		return cn.Delete(dn)
	})
}

// Rename changes the RDN of an entry on an ephemeral connection.
func (s *Session) Rename(dn, newRDN string, deleteOldRDN bool) (bool, error) {
	return s.run(func(cn *Conn) (*Result, error) {
		return cn.ModifyDN(&ModifyDNRequest{
			DN:           dn,
			NewRDN:       newRDN,
			DeleteOldRDN: deleteOldRDN,
		})
	})
}

// BindAs authenticates an end user by filter: a service bind with the
// session credential, a subtree search expected to match exactly one
// entry, then a re-bind as that entry's DN with cred. It fails closed: no
// match, more than one match, or a refused re-bind all return a nil entry,
// and the re-bind is never attempted unless the match was unique. The
// provider behind cred is invoked only for the re-bind.
func (s *Session) BindAs(filter Filter, cred Credential) (*Entry, error) {
	cn, bindRes, err := s.open()
	s.setLast(bindRes)
	if err != nil {
		return nil, err
	}
	if cn == nil {
		return nil, nil
	}
	defer cn.Close()

	req := &SearchRequest{
		BaseDN:   s.cfg.BaseDN,
		Scope:    ScopeWholeSubtree,
		Filter:   filter,
		PageSize: s.cfg.PageSize,
	}
	entries, res, err := cn.Search(req)
	s.setLast(res)
	if err != nil {
		return nil, err
	}
	if !res.OK() || len(entries) != 1 {
		return nil, nil
	}

	pass, err := cred.resolve()
	if err != nil {
		return nil, fmt.Errorf("ldap: resolve credential: %w", err)
	}
	rebind, err := cn.Bind(entries[0].DN, pass)
	s.setLast(rebind)
	if err != nil {
		return nil, err
	}
	if !rebind.OK() {
		return nil, nil
	}
	return entries[0], nil
}
