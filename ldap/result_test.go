package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCodeString(t *testing.T) {
	assert.Equal(t, "success", ResultSuccess.String())
	assert.Equal(t, "invalidCredentials", ResultInvalidCredentials.String())
	assert.Equal(t, "entryAlreadyExists", ResultEntryAlreadyExists.String())
	assert.Equal(t, "unknown result (99)", ResultCode(99).String())
}

func TestParseResultRejectsWrongTag(t *testing.T) {
	pkt := NewPacket(ClassApplication, false, ApplicationAddResponse, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagEnumerated, 0))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, ""))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, ""))

	res, err := parseResult(pkt, ApplicationAddResponse)
	require.NoError(t, err)
	assert.True(t, res.OK())

	_, err = parseResult(pkt, ApplicationBindResponse)
	var protoErr ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestParseResultMalformedShape(t *testing.T) {
	pkt := NewPacket(ClassApplication, false, ApplicationBindResponse, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagEnumerated, 0))

	_, err := parseResult(pkt, ApplicationBindResponse)
	var protoErr ProtocolError
	require.ErrorAs(t, err, &protoErr)
}
