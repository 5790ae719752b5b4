package main

import (
	"log"

	"github.com/spf13/pflag"

	"github.com/dirwire/ldap/cmd/internal/ldapcmd"
	"github.com/dirwire/ldap/ldap"
)

func main() {
	log.SetFlags(0)
	pflag.Parse()

	if pflag.NArg() == 0 {
		log.Fatal("Usage: ldapdelete [options] dn [dn...]")
	}

	sess, _, err := ldapcmd.Session()
	if err != nil {
		log.Fatal(err)
	}

	// One connection for all deletes.
	ok, err := sess.Do(func(cn *ldap.Conn) error {
		for _, dn := range pflag.Args() {
			res, err := cn.Delete(dn)
			if err != nil {
				return err
			}
			if !res.OK() {
				log.Printf("Delete %s failed: %s", dn, res)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	if !ok {
		log.Fatalf("Bind failed: %s", sess.LastResult())
	}
}
