package main

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/dirwire/ldap/cmd/internal/ldapcmd"
	"github.com/dirwire/ldap/ldap"
)

var (
	flagScope     = pflag.StringP("scope", "s", "sub", "one of base, one or sub (search scope)")
	flagPageSize  = pflag.Int("page-size", 0, "entries per paged-results round trip")
	flagReferrals = pflag.Bool("referrals", false, "surface search references as ref entries")
)

var scopes = map[string]ldap.Scope{
	"base": ldap.ScopeBaseObject,
	"one":  ldap.ScopeSingleLevel,
	"sub":  ldap.ScopeWholeSubtree,
}

// filterFromArg builds a filter from a simple attr=value argument. A bare
// "*" value is a presence test and embedded stars select a substring
// match. This is deliberately not the RFC 4515 filter grammar; a full
// parser belongs in a layer above this client.
func filterFromArg(arg string) ldap.Filter {
	name, value, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return nil
	}
	if value == "*" {
		return &ldap.Present{Attribute: name}
	}
	if strings.ContainsRune(value, '*') {
		parts := strings.Split(value, "*")
		return &ldap.Substrings{
			Attribute: name,
			Initial:   parts[0],
			Final:     parts[len(parts)-1],
			Any:       parts[1 : len(parts)-1],
		}
	}
	return &ldap.EqualityMatch{Attribute: name, Value: []byte(value)}
}

func main() {
	log.SetFlags(0)
	pflag.Parse()

	sess, cfg, err := ldapcmd.Session()
	if err != nil {
		log.Fatal(err)
	}

	req := &ldap.SearchRequest{
		BaseDN:           cfg.BaseDN,
		PageSize:         *flagPageSize,
		IncludeReferrals: *flagReferrals,
	}

	// Args are "attr=value [attribute,attribute,...]", either optional.
	n := 0
	if pflag.NArg() > n && strings.ContainsRune(pflag.Arg(n), '=') {
		req.Filter = filterFromArg(pflag.Arg(n))
		if req.Filter == nil {
			log.Fatalf("Bad filter argument %q", pflag.Arg(n))
		}
		n++
	}
	if pflag.NArg() > n {
		req.Attributes = strings.Split(pflag.Arg(n), ",")
	}

	var ok bool
	req.Scope, ok = scopes[*flagScope]
	if !ok {
		log.Fatalf("Unknown scope %s", *flagScope)
	}

	err = sess.SearchEach(req, func(e *ldap.Entry) error {
		if err := e.ToLDIF(os.Stdout); err != nil {
			return err
		}
		_, err := os.Stdout.WriteString("\n")
		return err
	})
	if err != nil {
		log.Fatal(err)
	}
	if res := sess.LastResult(); res != nil && !res.OK() {
		log.Fatalf("Search failed: %s", res)
	}
}
