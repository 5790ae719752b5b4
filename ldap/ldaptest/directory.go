// Package ldaptest provides an in-process LDAP server backed by an
// in-memory directory, for tests of code that speaks to a directory
// service. It implements bind, paged search, add, modify, delete and
// modify-DN against a small entry store, and counts the requests it sees
// so tests can assert on round trips.
package ldaptest

import (
	"strings"
	"sync"

	"github.com/dirwire/ldap/ldap"
)

// Directory is the in-memory entry store behind a Server. Entries keep
// insertion order; searches emit matches in that order.
type Directory struct {
	mu        sync.Mutex
	entries   []*ldap.Entry
	passwords map[string]string
	referrals []string
}

func NewDirectory() *Directory {
	return &Directory{
		passwords: make(map[string]string),
	}
}

// Put inserts or replaces the entry named by dn.
func (d *Directory) Put(dn string, attrs map[string][]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := &ldap.Entry{DN: dn, Attributes: attrs}
	for i, old := range d.entries {
		if strings.EqualFold(old.DN, dn) {
			d.entries[i] = e
			return
		}
	}
	d.entries = append(d.entries, e)
}

// SetPassword registers a simple-bind password for dn.
func (d *Directory) SetPassword(dn, password string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.passwords[dn] = password
}

// SetReferrals makes every search emit a search-result-reference PDU per
// URI before its entries.
func (d *Directory) SetReferrals(uris ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.referrals = uris
}

// Len returns the number of entries in the store.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *Directory) bind(dn string, pass []byte) ldap.ResultCode {
	if dn == "" && len(pass) == 0 {
		return ldap.ResultSuccess // anonymous
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	pw, ok := d.passwords[dn]
	if !ok || pw != string(pass) {
		return ldap.ResultInvalidCredentials
	}
	return ldap.ResultSuccess
}

func (d *Directory) lookup(dn string) int {
	for i, e := range d.entries {
		if strings.EqualFold(e.DN, dn) {
			return i
		}
	}
	return -1
}

func parentDN(dn string) string {
	if i := strings.IndexByte(dn, ','); i >= 0 {
		return strings.TrimSpace(dn[i+1:])
	}
	return ""
}

func inScope(dn, base string, scope ldap.Scope) bool {
	switch scope {
	case ldap.ScopeBaseObject:
		return strings.EqualFold(dn, base)
	case ldap.ScopeSingleLevel:
		return strings.EqualFold(parentDN(dn), base)
	case ldap.ScopeWholeSubtree:
		if base == "" {
			return true
		}
		return strings.EqualFold(dn, base) ||
			strings.HasSuffix(strings.ToLower(dn), ","+strings.ToLower(base))
	}
	return false
}

// search snapshots the matching entries in store order.
func (d *Directory) search(base string, scope ldap.Scope, filter *ldap.Packet) ([]*ldap.Entry, []string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var matched []*ldap.Entry
	for _, e := range d.entries {
		if !inScope(e.DN, base, scope) {
			continue
		}
		if filter != nil {
			ok, err := matchFilter(filter, e)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, e)
	}
	return matched, d.referrals, nil
}

func (d *Directory) add(dn string, attrs map[string][]string) ldap.ResultCode {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookup(dn) >= 0 {
		return ldap.ResultEntryAlreadyExists
	}
	d.entries = append(d.entries, &ldap.Entry{DN: dn, Attributes: attrs})
	return ldap.ResultSuccess
}

func (d *Directory) delete(dn string) ldap.ResultCode {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.lookup(dn)
	if i < 0 {
		return ldap.ResultNoSuchObject
	}
	d.entries = append(d.entries[:i], d.entries[i+1:]...)
	return ldap.ResultSuccess
}

// modify applies mods in list order and stops at the first failure,
// leaving earlier mods applied. That mirrors the protocol's lack of
// atomicity for multi-op modifies.
func (d *Directory) modify(dn string, mods []mod) ldap.ResultCode {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.lookup(dn)
	if i < 0 {
		return ldap.ResultNoSuchObject
	}
	e := d.entries[i]
	for _, m := range mods {
		switch m.typ {
		case int(ldap.ModAdd):
			e.Attributes[m.name] = append(e.Attributes[m.name], m.values...)
		case int(ldap.ModDelete):
			if _, ok := e.Attributes[m.name]; !ok {
				return ldap.ResultNoSuchAttribute
			}
			if len(m.values) == 0 {
				delete(e.Attributes, m.name)
				break
			}
			kept := e.Attributes[m.name][:0]
			for _, v := range e.Attributes[m.name] {
				drop := false
				for _, dv := range m.values {
					if v == dv {
						drop = true
						break
					}
				}
				if !drop {
					kept = append(kept, v)
				}
			}
			e.Attributes[m.name] = kept
		case int(ldap.ModReplace):
			if len(m.values) == 0 {
				delete(e.Attributes, m.name)
			} else {
				e.Attributes[m.name] = m.values
			}
		default:
			return ldap.ResultUnwillingToPerform
		}
	}
	return ldap.ResultSuccess
}

func (d *Directory) rename(dn, newRDN string, deleteOldRDN bool) ldap.ResultCode {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.lookup(dn)
	if i < 0 {
		return ldap.ResultNoSuchObject
	}
	newDN := newRDN
	if parent := parentDN(dn); parent != "" {
		newDN = newRDN + "," + parent
	}
	if j := d.lookup(newDN); j >= 0 && j != i {
		return ldap.ResultEntryAlreadyExists
	}
	d.entries[i].DN = newDN
	return ldap.ResultSuccess
}
