package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterString(t *testing.T) {
	tests := []struct {
		Filter Filter
		Want   string
	}{
		{&Present{Attribute: "objectClass"}, "(objectClass=*)"},
		{&EqualityMatch{Attribute: "uid", Value: []byte("jdoe")}, "(uid=jdoe)"},
		{&EqualityMatch{Attribute: "cn", Value: []byte("a*b")}, `(cn=a\2ab)`},
		{&Substrings{Attribute: "cn", Initial: "pre", Any: []string{"mid"}, Final: "post"}, "(cn=pre*mid*post)"},
		{&NOT{Filter: &Present{Attribute: "mail"}}, "(!(mail=*))"},
		{&AND{Filters: []Filter{
			&EqualityMatch{Attribute: "ou", Value: []byte("eng")},
			&Present{Attribute: "mail"},
		}}, "(&(ou=eng)(mail=*))"},
		{&OR{Filters: []Filter{
			&EqualityMatch{Attribute: "uid", Value: []byte("a")},
			&EqualityMatch{Attribute: "uid", Value: []byte("b")},
		}}, "(|(uid=a)(uid=b))"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.Want, tc.Filter.String())
	}
}

func TestFilterEncodeTags(t *testing.T) {
	tests := []struct {
		Filter      Filter
		Tag         int
		Constructed bool
	}{
		{&AND{Filters: []Filter{&Present{Attribute: "a"}}}, FilterTagAND, true},
		{&OR{Filters: []Filter{&Present{Attribute: "a"}}}, FilterTagOR, true},
		{&NOT{Filter: &Present{Attribute: "a"}}, FilterTagNOT, true},
		{&EqualityMatch{Attribute: "a", Value: []byte("v")}, FilterTagEqualityMatch, true},
		{&Substrings{Attribute: "a", Initial: "x"}, FilterTagSubstrings, true},
		{&Present{Attribute: "a"}, FilterTagPresent, false},
	}

	for _, tc := range tests {
		pkt, err := tc.Filter.Encode()
		require.NoError(t, err)
		assert.Equal(t, ClassContext, pkt.Class)
		assert.Equal(t, tc.Tag, pkt.Tag)
		assert.Equal(t, !tc.Constructed, pkt.Primitive)
	}
}

func TestSubstringsEncodeParts(t *testing.T) {
	f := &Substrings{Attribute: "cn", Initial: "pre", Any: []string{"one", "two"}, Final: "post"}
	pkt, err := f.Encode()
	require.NoError(t, err)
	require.Len(t, pkt.Items, 2)

	parts := pkt.Items[1].Items
	require.Len(t, parts, 4)
	assert.Equal(t, 0, parts[0].Tag)
	assert.Equal(t, 1, parts[1].Tag)
	assert.Equal(t, 1, parts[2].Tag)
	assert.Equal(t, 2, parts[3].Tag)
}
