package ldap

// Credential is a bind secret: either a literal password or a deferred
// provider that is invoked exactly once per bind, at the moment the bind
// is performed. The zero value is the anonymous credential. Secrets are
// never logged and the resolved bytes are not retained by this package.
type Credential struct {
	secret   []byte
	provider func() ([]byte, error)
}

// Password returns a literal credential.
func Password(secret []byte) Credential {
	return Credential{secret: secret}
}

// PasswordFunc returns a deferred credential. The provider runs only when
// a bind actually happens, so secrets are not resolved earlier than
// necessary.
func PasswordFunc(provider func() ([]byte, error)) Credential {
	return Credential{provider: provider}
}

func (c Credential) resolve() ([]byte, error) {
	if c.provider != nil {
		return c.provider()
	}
	return c.secret, nil
}
