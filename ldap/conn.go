package ldap

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
)

// NewRequestPacket returns the envelope for one protocol message: a
// universal sequence starting with the message id.
func NewRequestPacket(msgID int) *Packet {
	pkt := NewPacket(ClassUniversal, false, TagSequence, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagInteger, msgID))
	return pkt
}

// Request is a protocol operation that can write its complete message,
// envelope included, for the given message id.
type Request interface {
	WritePackets(w io.Writer, msgID int) error
}

// Conn is one LDAP connection. It is fully synchronous: one request is in
// flight at a time, and each executor method blocks until the entire
// response sequence has been read. A Conn must not be used from multiple
// goroutines concurrently; use independent connections instead.
type Conn struct {
	cn    net.Conn
	wr    *bufio.Writer
	log   *zap.Logger
	msgID int

	closeOnce sync.Once
	closeErr  error
}

type ConnOption func(*Conn)

// WithLogger attaches a logger for wire-level debug output.
func WithLogger(log *zap.Logger) ConnOption {
	return func(c *Conn) {
		c.log = log
	}
}

// NewConn returns an initialized connection over cn. The net.Conn is owned
// by the returned Conn and must not be used after this call.
func NewConn(cn net.Conn, opts ...ConnOption) *Conn {
	c := &Conn{
		cn:  cn,
		wr:  bufio.NewWriter(cn),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to a server over plaintext TCP.
func Dial(network, address string, opts ...ConnOption) (*Conn, error) {
	cn, err := net.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("ldap: connect %s: %w", address, err)
	}
	return NewConn(cn, opts...), nil
}

// DialTLS connects to a server with implicit TLS: the stream is wrapped
// before any protocol byte is sent. A nil config selects the trust-the-peer
// mode, with no certificate validation. There is no STARTTLS support.
func DialTLS(network, address string, config *tls.Config, opts ...ConnOption) (*Conn, error) {
	if config == nil {
		config = &tls.Config{InsecureSkipVerify: true}
	}
	cn, err := tls.Dial(network, address, config)
	if err != nil {
		return nil, fmt.Errorf("ldap: connect %s: %w", address, err)
	}
	return NewConn(cn, opts...), nil
}

// nextID allocates a message id. Ids start at 1 and increase monotonically
// for the lifetime of the connection; an id is never reused.
func (c *Conn) nextID() int {
	c.msgID++
	return c.msgID
}

// Close closes the underlying connection. It is idempotent: closing an
// already-closed connection is a no-op.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.cn.Close()
	})
	return c.closeErr
}

func (c *Conn) send(req Request, msgID int) error {
	if err := req.WritePackets(c.wr, msgID); err != nil {
		return err
	}
	if err := c.wr.Flush(); err != nil {
		return fmt.Errorf("ldap: write: %w", err)
	}
	c.log.Debug("sent request", zap.Int("msgid", msgID))
	return nil
}

// readResponse blocks until one complete PDU for msgID has been read. It
// returns the operation packet and any controls attached to the envelope.
func (c *Conn) readResponse(msgID int) (*Packet, []*Control, error) {
	pkt, _, err := ReadPacket(c.cn)
	if err != nil {
		if _, ok := err.(MalformedEncodingError); ok {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("ldap: read: %w", err)
	}
	if pkt.Class != ClassUniversal || pkt.Primitive || pkt.Tag != TagSequence || len(pkt.Items) < 2 {
		return nil, nil, ProtocolError("invalid response envelope")
	}
	id, ok := pkt.Items[0].Int()
	if !ok {
		return nil, nil, ProtocolError("failed to parse message id from response")
	}
	if id != msgID {
		return nil, nil, ProtocolError(fmt.Sprintf("response for unexpected message id %d, want %d", id, msgID))
	}
	op := pkt.Items[1]
	if op.Class != ClassApplication {
		return nil, nil, ProtocolError("response operation is not application tagged")
	}
	var controls []*Control
	if len(pkt.Items) > 2 && pkt.Items[2].Class == ClassContext && pkt.Items[2].Tag == 0 {
		controls, err = parseControls(pkt.Items[2])
		if err != nil {
			return nil, nil, err
		}
	}
	c.log.Debug("received response",
		zap.Int("msgid", id),
		zap.String("op", ApplicationMap[uint8(op.Tag)]),
		zap.Int("controls", len(controls)))
	return op, controls, nil
}

// roundTrip performs one request/response exchange on a fresh message id.
func (c *Conn) roundTrip(req Request) (*Packet, []*Control, error) {
	id := c.nextID()
	if err := c.send(req, id); err != nil {
		return nil, nil, err
	}
	return c.readResponse(id)
}
