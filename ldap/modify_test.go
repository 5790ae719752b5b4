package ldap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModifyRequestPreservesOrder(t *testing.T) {
	req := &ModifyRequest{
		DN: "cn=jdoe,dc=example,dc=com",
		Mods: []Mod{
			{Type: ModAdd, Name: "mail", Values: []string{"a@x.com"}},
			{Type: ModReplace, Name: "mail", Values: []string{"b@x.com", "c@x.com"}},
			{Type: ModDelete, Name: "phone"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, req.WritePackets(&buf, 5))

	env, _, err := ParsePacket(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, env.Items, 2)

	id, ok := env.Items[0].Int()
	require.True(t, ok)
	assert.Equal(t, 5, id)

	op := env.Items[1]
	assert.Equal(t, ClassApplication, op.Class)
	assert.Equal(t, ApplicationModifyRequest, op.Tag)

	dn, ok := op.Items[0].Str()
	require.True(t, ok)
	assert.Equal(t, req.DN, dn)

	mods := op.Items[1].Items
	require.Len(t, mods, 3)
	wantTypes := []int{int(ModAdd), int(ModReplace), int(ModDelete)}
	wantNames := []string{"mail", "mail", "phone"}
	wantValues := [][]string{{"a@x.com"}, {"b@x.com", "c@x.com"}, {}}
	for i, m := range mods {
		typ, ok := m.Items[0].Int()
		require.True(t, ok)
		assert.Equal(t, wantTypes[i], typ, "mod %d opcode", i)

		name, ok := m.Items[1].Items[0].Str()
		require.True(t, ok)
		assert.Equal(t, wantNames[i], name, "mod %d attribute", i)

		var values []string
		for _, vp := range m.Items[1].Items[1].Items {
			v, ok := vp.Str()
			require.True(t, ok)
			values = append(values, v)
		}
		assert.Equal(t, wantValues[i], append([]string{}, values...), "mod %d values", i)
	}
}

func TestModTypeString(t *testing.T) {
	assert.Equal(t, "add", ModAdd.String())
	assert.Equal(t, "delete", ModDelete.String())
	assert.Equal(t, "replace", ModReplace.String())
	assert.Equal(t, "modtype(9)", ModType(9).String())
}
