package ldap

import (
	"fmt"
	"io"
)

// ModType is the opcode of one modify sub-operation.
type ModType int

const (
	ModAdd     ModType = 0
	ModDelete  ModType = 1
	ModReplace ModType = 2
)

var modTypeNames = map[ModType]string{
	ModAdd:     "add",
	ModDelete:  "delete",
	ModReplace: "replace",
}

func (m ModType) String() string {
	if s := modTypeNames[m]; s != "" {
		return s
	}
	return fmt.Sprintf("modtype(%d)", int(m))
}

// Mod is one sub-operation of a modify request. An empty value list on a
// delete removes the whole attribute.
type Mod struct {
	Type   ModType
	Name   string
	Values []string
}

// ModifyRequest carries an ordered sequence of modifications. The server
// applies them in list order with no atomicity: if it rejects operation k
// of n, operations 1..k-1 remain applied, and the single result code gives
// no indication of which sub-operation failed.
type ModifyRequest struct {
	DN   string
	Mods []Mod
}

func (r *ModifyRequest) WritePackets(w io.Writer, msgID int) error {
	pkt := NewPacket(ClassApplication, false, ApplicationModifyRequest, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, r.DN))
	mods := pkt.AddItem(NewPacket(ClassUniversal, false, TagSequence, nil))
	for _, m := range r.Mods {
		p := mods.AddItem(NewPacket(ClassUniversal, false, TagSequence, nil))
		p.AddItem(NewPacket(ClassUniversal, true, TagEnumerated, int(m.Type)))
		ch := p.AddItem(NewPacket(ClassUniversal, false, TagSequence, nil))
		ch.AddItem(NewPacket(ClassUniversal, true, TagOctetString, m.Name))
		vals := ch.AddItem(NewPacket(ClassUniversal, false, TagSet, nil))
		for _, v := range m.Values {
			vals.AddItem(NewPacket(ClassUniversal, true, TagOctetString, v))
		}
	}

	req := NewRequestPacket(msgID)
	req.AddItem(pkt)
	return req.Write(w)
}

// Modify applies the ordered modifications to the entry named by dn.
func (c *Conn) Modify(dn string, mods []Mod) (*Result, error) {
	if dn == "" {
		return nil, ArgumentError("modify requires a dn")
	}
	for _, m := range mods {
		switch m.Type {
		case ModAdd, ModDelete, ModReplace:
		default:
			return nil, ArgumentError(fmt.Sprintf("unrecognized modify opcode %d", int(m.Type)))
		}
		if m.Name == "" {
			return nil, ArgumentError("modify requires attribute names")
		}
	}
	pkt, _, err := c.roundTrip(&ModifyRequest{
		DN:   dn,
		Mods: mods,
	})
	if err != nil {
		return nil, err
	}
	return parseResult(pkt, ApplicationModifyResponse)
}
