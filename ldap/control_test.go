package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagedResultsControlRoundTrip(t *testing.T) {
	ctl, err := (&PagedResultsControl{Size: 50, Cookie: []byte("opaque")}).control()
	require.NoError(t, err)
	assert.Equal(t, OIDPagedResults, ctl.OID)
	assert.False(t, ctl.Criticality)

	raw, err := encodeControls([]*Control{ctl}).Encode()
	require.NoError(t, err)
	pkt, _, err := ParsePacket(raw)
	require.NoError(t, err)

	controls, err := parseControls(pkt)
	require.NoError(t, err)
	require.Len(t, controls, 1)

	pc, err := findPagedResults(controls)
	require.NoError(t, err)
	require.NotNil(t, pc)
	assert.Equal(t, 50, pc.Size)
	assert.Equal(t, []byte("opaque"), pc.Cookie)
}

func TestPagedResultsEmptyCookie(t *testing.T) {
	ctl, err := (&PagedResultsControl{Size: DefaultPageSize}).control()
	require.NoError(t, err)

	pc, err := parsePagedResults(ctl)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, pc.Size)
	assert.Empty(t, pc.Cookie)
}

func TestControlCriticality(t *testing.T) {
	in := &Control{OID: "1.2.3.4", Criticality: true, Value: []byte{0xde, 0xad}}
	raw, err := encodeControls([]*Control{in}).Encode()
	require.NoError(t, err)
	pkt, _, err := ParsePacket(raw)
	require.NoError(t, err)

	controls, err := parseControls(pkt)
	require.NoError(t, err)
	require.Len(t, controls, 1)
	assert.Equal(t, in.OID, controls[0].OID)
	assert.True(t, controls[0].Criticality)
	assert.Equal(t, in.Value, controls[0].Value)

	pc, err := findPagedResults(controls)
	require.NoError(t, err)
	assert.Nil(t, pc)
}
