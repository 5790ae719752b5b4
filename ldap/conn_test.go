package ldap

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConn is a net.Conn that records I/O so tests can assert an operation
// never touched the transport.
type stubConn struct {
	reads  int
	writes int
	closes int
}

func (s *stubConn) Read(b []byte) (int, error)  { s.reads++; return 0, io.EOF }
func (s *stubConn) Write(b []byte) (int, error) { s.writes++; return len(b), nil }
func (s *stubConn) Close() error                { s.closes++; return nil }
func (s *stubConn) LocalAddr() net.Addr         { return nil }
func (s *stubConn) RemoteAddr() net.Addr        { return nil }
func (s *stubConn) SetDeadline(time.Time) error { return nil }

func (s *stubConn) SetReadDeadline(time.Time) error  { return nil }
func (s *stubConn) SetWriteDeadline(time.Time) error { return nil }

func TestArgumentValidationBeforeIO(t *testing.T) {
	tests := []struct {
		Name string
		Op   func(*Conn) error
	}{
		{"add empty dn", func(c *Conn) error {
			_, err := c.Add("", []Attribute{{Name: "cn", Values: []string{"x"}}})
			return err
		}},
		{"add empty attribute name", func(c *Conn) error {
			_, err := c.Add("cn=x", []Attribute{{}})
			return err
		}},
		{"modify empty dn", func(c *Conn) error {
			_, err := c.Modify("", []Mod{{Type: ModAdd, Name: "cn"}})
			return err
		}},
		{"modify bad opcode", func(c *Conn) error {
			_, err := c.Modify("cn=x", []Mod{{Type: ModType(9), Name: "cn"}})
			return err
		}},
		{"delete empty dn", func(c *Conn) error {
			_, err := c.Delete("")
			return err
		}},
		{"rename empty dn", func(c *Conn) error {
			_, err := c.ModifyDN(&ModifyDNRequest{NewRDN: "cn=y"})
			return err
		}},
		{"rename empty rdn", func(c *Conn) error {
			_, err := c.ModifyDN(&ModifyDNRequest{DN: "cn=x"})
			return err
		}},
		{"search bad scope", func(c *Conn) error {
			_, _, err := c.Search(&SearchRequest{Scope: Scope(7)})
			return err
		}},
		{"search negative page size", func(c *Conn) error {
			_, _, err := c.Search(&SearchRequest{PageSize: -1})
			return err
		}},
	}

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			stub := &stubConn{}
			c := NewConn(stub)
			err := tc.Op(c)
			var argErr ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Zero(t, stub.writes, "operation wrote to the transport")
			assert.Zero(t, stub.reads, "operation read from the transport")
		})
	}
}

func TestCloseIdempotent(t *testing.T) {
	stub := &stubConn{}
	c := NewConn(stub)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, stub.closes, "underlying close should happen once")
}

func TestMessageIDsMonotonicFromOne(t *testing.T) {
	c := NewConn(&stubConn{})
	assert.Equal(t, 1, c.nextID())
	assert.Equal(t, 2, c.nextID())
	assert.Equal(t, 3, c.nextID())
}
