package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCorrelationID(t *testing.T) {
	id, err := FormatCorrelationID("agent-42", "c1", "0", TypeConfigureResource)
	require.NoError(t, err)
	assert.Equal(t, "agent-42#c1|0|CONFIGURE_RESOURCE", id)

	token, ok := ExtractAgentToken(id)
	require.True(t, ok)
	assert.Equal(t, "agent-42", token)

	uuid, ok := ExtractCommandUUID(id)
	require.True(t, ok)
	assert.Equal(t, "c1", uuid)

	cid, err := ParseCorrelationID(id)
	require.NoError(t, err)
	assert.Equal(t, TypeConfigureResource, cid.Type)
	assert.Equal(t, "0", cid.Serial)
	assert.Equal(t, id, cid.String())
}

func TestFormatCorrelationIDRejectsDelimiters(t *testing.T) {
	_, err := FormatCorrelationID("agent#42", "c1", "0", TypeAgentPing)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = FormatCorrelationID("", "c1", "0", TypeAgentPing)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = FormatCorrelationID("agent-42", "c|1", "0", TypeAgentPing)
	assert.ErrorIs(t, err, ErrMalformedCorrelationID)

	_, err = FormatCorrelationID("agent-42", "c1", "", TypeAgentPing)
	assert.ErrorIs(t, err, ErrMalformedCorrelationID)

	_, err = FormatCorrelationID("agent-42", "c1", "0", Type("NOPE"))
	assert.ErrorIs(t, err, ErrUnknownCommandType)
}

func TestParseCorrelationIDFailures(t *testing.T) {
	cases := map[string]error{
		"":                                  ErrMalformedCorrelationID,
		"agent-42":                          ErrMalformedCorrelationID,
		"#c1|0|AGENT_PING":                  ErrMalformedCorrelationID,
		"agent-42#c1|0":                     ErrMalformedCorrelationID,
		"agent-42#c1|0|AGENT_PING|x":        ErrMalformedCorrelationID,
		"agent-42#|0|AGENT_PING":            ErrMalformedCorrelationID,
		"agent-42#c1#x|0|AGENT_PING":        ErrMalformedCorrelationID,
		"agent-42#c1|0|agent_ping":          ErrUnknownCommandType,
		"agent-42#c1|0|CONFIGURE_RESOURCES": ErrUnknownCommandType,
	}
	for id, want := range cases {
		_, err := ParseCorrelationID(id)
		assert.ErrorIs(t, err, want, "id %q", id)
	}
}

func TestExtractMalformed(t *testing.T) {
	_, ok := ExtractAgentToken("no-delimiter")
	assert.False(t, ok)
	_, ok = ExtractAgentToken("#c1|0|AGENT_PING")
	assert.False(t, ok)

	_, ok = ExtractCommandUUID("agent-42")
	assert.False(t, ok)
	_, ok = ExtractCommandUUID("agent-42#c1")
	assert.False(t, ok)
	_, ok = ExtractCommandUUID("agent-42#|0|AGENT_PING")
	assert.False(t, ok)
}

func TestParseType(t *testing.T) {
	for _, ty := range AllTypes() {
		got, err := ParseType(string(ty))
		require.NoError(t, err)
		assert.Equal(t, ty, got)
	}
	_, err := ParseType("Agent_Ping")
	assert.ErrorIs(t, err, ErrUnknownCommandType)
}
