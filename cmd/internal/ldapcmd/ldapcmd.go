// Package ldapcmd holds the flag handling and session bootstrap shared by
// the command line tools.
package ldapcmd

import (
	"fmt"

	"github.com/howeyc/gopass"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dirwire/ldap/ldap"
)

var (
	flagConfig     = pflag.StringP("config", "f", "", "YAML session config file")
	flagHost       = pflag.String("host", "", "LDAP server host")
	flagPort       = pflag.IntP("port", "p", 0, "port on LDAP server")
	flagTLS        = pflag.BoolP("tls", "Z", false, "connect with implicit TLS (no certificate validation)")
	flagBindDN     = pflag.StringP("binddn", "D", "", "bind DN")
	flagBindPass   = pflag.StringP("passwd", "w", "", "bind password (for simple authentication)")
	flagPromptPass = pflag.BoolP("prompt", "W", false, "prompt for bind password")
	flagBaseDN     = pflag.StringP("basedn", "b", "", "base DN")
	flagVerbose    = pflag.BoolP("verbose", "v", false, "wire-level debug logging")
)

// Session builds a session from the config file, if any, with flags taking
// precedence. pflag.Parse must have been called first. The resolved config
// is returned alongside so tools can reach defaults like the base DN.
func Session() (*ldap.Session, ldap.Config, error) {
	var cfg ldap.Config
	if *flagConfig != "" {
		var err error
		cfg, err = ldap.LoadConfig(*flagConfig)
		if err != nil {
			return nil, cfg, err
		}
	}
	if *flagHost != "" {
		cfg.Host = *flagHost
	}
	if *flagPort != 0 {
		cfg.Port = *flagPort
	}
	if *flagTLS {
		cfg.TLS = true
	}
	if *flagBindDN != "" {
		cfg.BindDN = *flagBindDN
	}
	if *flagBaseDN != "" {
		cfg.BaseDN = *flagBaseDN
	}

	cred := ldap.Password([]byte(*flagBindPass))
	if *flagPromptPass {
		cred = ldap.PasswordFunc(func() ([]byte, error) {
			fmt.Printf("Enter LDAP Password: ")
			return gopass.GetPasswd()
		})
	}

	log := zap.NewNop()
	if *flagVerbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			return nil, cfg, err
		}
	}

	return ldap.NewSession(cfg, cred, ldap.WithSessionLogger(log)), cfg, nil
}
