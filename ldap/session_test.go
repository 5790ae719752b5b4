package ldap_test

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirwire/ldap/ldap"
	"github.com/dirwire/ldap/ldap/ldaptest"
)

func configFor(t *testing.T, srv *ldaptest.Server, bindDN string) ldap.Config {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return ldap.Config{Host: host, Port: port, BaseDN: testBaseDN, BindDN: bindDN}
}

func sessionFor(t *testing.T, srv *ldaptest.Server, cred ldap.Credential) *ldap.Session {
	t.Helper()
	return ldap.NewSession(configFor(t, srv, ""), cred)
}

func TestSessionEphemeralLifecycle(t *testing.T) {
	srv, _ := startDirectory(t, 0)
	sess := sessionFor(t, srv, ldap.Credential{})
	dn := "uid=amy,ou=people," + testBaseDN

	ok, err := sess.Add(dn, []ldap.Attribute{
		{Name: "objectClass", Values: []string{"person"}},
		{Name: "uid", Values: []string{"amy"}},
		{Name: "mail", Values: []string{"amy@example.com"}},
	})
	require.NoError(t, err)
	require.True(t, ok)

	// Duplicate add is a directory refusal, not an error.
	ok, err = sess.Add(dn, []ldap.Attribute{{Name: "uid", Values: []string{"amy"}}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ldap.ResultEntryAlreadyExists, sess.LastResult().Code)

	ok, err = sess.Modify(dn, []ldap.Mod{
		{Type: ldap.ModReplace, Name: "mail", Values: []string{"amy@corp.example.com"}},
	})
	require.NoError(t, err)
	require.True(t, ok)

	entries, err := sess.Search(&ldap.SearchRequest{
		BaseDN: testBaseDN,
		Scope:  ldap.ScopeWholeSubtree,
		Filter: &ldap.EqualityMatch{Attribute: "uid", Value: []byte("amy")},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"amy@corp.example.com"}, entries[0].Attributes["mail"])

	ok, err = sess.Rename(dn, "uid=amelia", true)
	require.NoError(t, err)
	require.True(t, ok)
	renamed := "uid=amelia,ou=people," + testBaseDN

	ok, err = sess.Delete(renamed)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = sess.Delete(renamed)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ldap.ResultNoSuchObject, sess.LastResult().Code)
}

func TestSessionRefusedBind(t *testing.T) {
	srv, dir := startDirectory(t, 0)
	dir.SetPassword("cn=service,"+testBaseDN, "right")
	sess := ldap.NewSession(configFor(t, srv, "cn=service,"+testBaseDN), ldap.Password([]byte("wrong")))

	ok, err := sess.Delete("uid=u00,ou=people," + testBaseDN)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ldap.ResultInvalidCredentials, sess.LastResult().Code)

	entries, err := sess.Search(&ldap.SearchRequest{BaseDN: testBaseDN, Scope: ldap.ScopeWholeSubtree})
	require.NoError(t, err)
	assert.Nil(t, entries)

	// Do reports a refused bind without invoking the callback.
	ran := false
	ok, err = sess.Do(func(*ldap.Conn) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, ran)
}

func TestSessionDoSharesOneConnection(t *testing.T) {
	srv, _ := startDirectory(t, 0)
	sess := sessionFor(t, srv, ldap.Credential{})

	ok, err := sess.Do(func(cn *ldap.Conn) error {
		for _, uid := range []string{"a", "b", "c"} {
			res, err := cn.Add("uid="+uid+",ou=people,"+testBaseDN, []ldap.Attribute{
				{Name: "uid", Values: []string{uid}},
			})
			if err != nil {
				return err
			}
			require.True(t, res.OK())
		}
		return nil
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, srv.BindCount())
}

func TestBindAsSuccess(t *testing.T) {
	srv, dir := startDirectory(t, 3)
	dir.SetPassword("uid=u01,ou=people,"+testBaseDN, "hunter2")
	sess := sessionFor(t, srv, ldap.Credential{})

	entry, err := sess.BindAs(&ldap.EqualityMatch{Attribute: "uid", Value: []byte("u01")},
		ldap.Password([]byte("hunter2")))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "uid=u01,ou=people,"+testBaseDN, entry.DN)
	assert.True(t, sess.LastResult().OK())
	// Service bind plus the re-bind as the matched entry.
	assert.Equal(t, 2, srv.BindCount())
}

func TestBindAsFailsClosed(t *testing.T) {
	srv, dir := startDirectory(t, 3)
	dir.SetPassword("uid=u01,ou=people,"+testBaseDN, "hunter2")
	sess := sessionFor(t, srv, ldap.Credential{})

	resolved := false
	cred := ldap.PasswordFunc(func() ([]byte, error) {
		resolved = true
		return []byte("hunter2"), nil
	})

	// No match: no re-bind, credential never resolved.
	entry, err := sess.BindAs(&ldap.EqualityMatch{Attribute: "uid", Value: []byte("nobody")}, cred)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.False(t, resolved)
	assert.Equal(t, 1, srv.BindCount())

	// Ambiguous match: same story.
	entry, err = sess.BindAs(&ldap.Present{Attribute: "objectClass"}, cred)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.False(t, resolved)

	// Unique match but wrong password: re-bind refused.
	entry, err = sess.BindAs(&ldap.EqualityMatch{Attribute: "uid", Value: []byte("u01")},
		ldap.Password([]byte("wrong")))
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, ldap.ResultInvalidCredentials, sess.LastResult().Code)
}

func TestDeferredCredentialResolvedPerBind(t *testing.T) {
	srv, dir := startDirectory(t, 0)
	dir.SetPassword("cn=admin,"+testBaseDN, "s3cret")

	calls := 0
	sess := ldap.NewSession(configFor(t, srv, "cn=admin,"+testBaseDN),
		ldap.PasswordFunc(func() ([]byte, error) {
			calls++
			return []byte("s3cret"), nil
		}))
	assert.Equal(t, 0, calls)

	ok, err := sess.Bind()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, calls)

	ok, err = sess.Bind()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, calls)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldap.yml")
	require.NoError(t, os.WriteFile(path, []byte(
		"host: ldap.example.com\nport: 10389\nbase_dn: dc=example,dc=com\nbind_dn: cn=admin,dc=example,dc=com\npage_size: 500\n"), 0o600))

	cfg, err := ldap.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ldap.example.com:10389", cfg.Address())
	assert.Equal(t, "cn=admin,dc=example,dc=com", cfg.BindDN)
	assert.Equal(t, 500, cfg.PageSize)

	_, err = ldap.LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestConfigAddressDefaults(t *testing.T) {
	assert.Equal(t, "127.0.0.1:389", ldap.Config{}.Address())
	assert.Equal(t, "127.0.0.1:636", ldap.Config{TLS: true}.Address())
	assert.Equal(t, "ds.example.com:389", ldap.Config{Host: "ds.example.com"}.Address())
}
