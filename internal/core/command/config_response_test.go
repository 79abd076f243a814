package command

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigResponseIsolation(t *testing.T) {
	public := map[string]string{"host": "a", "port": "161"}
	secured := map[string]string{"password": "p"}
	c := NewConfigResponse(public, secured)

	// 构造后修改原 map 不影响
	public["host"] = "b"
	secured["password"] = "q"
	assert.Equal(t, "a", c.Public()["host"])
	assert.Equal(t, "p", c.Secured()["password"])

	// 修改返回值也不影响
	c.Public()["host"] = "c"
	c.Merged()["password"] = "r"
	v, ok := c.Get("host")
	require.True(t, ok)
	assert.Equal(t, "a", v)
	v, _ = c.Get("password")
	assert.Equal(t, "p", v)
}

func TestConfigResponseMergedSecuredWins(t *testing.T) {
	c := NewConfigResponse(map[string]string{"k": "public", "only": "x"}, map[string]string{"k": "secret"})
	m := c.Merged()
	assert.Equal(t, "secret", m["k"])
	assert.Equal(t, "x", m["only"])
	assert.Equal(t, 2, c.Len())

	var nilCfg *ConfigResponse
	assert.Empty(t, nilCfg.Merged())
	_, ok := nilCfg.Get("k")
	assert.False(t, ok)
}

func TestConfigResponseJSON(t *testing.T) {
	c := NewConfigResponse(map[string]string{"a": "1"}, map[string]string{"b": "2"})
	raw, err := json.Marshal(c)
	require.NoError(t, err)

	var back ConfigResponse
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, c.Merged(), back.Merged())
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand("CONFIGURE_RESOURCE", json.RawMessage(`{"entity":{"type":1,"id":2},"config":{"public":{"host":"h"},"secured":{"pw":"x"}}}`))
	require.NoError(t, err)
	c := cmd.(ConfigureResourceCommand)
	assert.Equal(t, int32(2), c.Entity.ID)
	assert.Equal(t, "x", c.Config.Merged()["pw"])

	cmd, err = Spec{Type: "AGENT_PING"}.Decode()
	require.NoError(t, err)
	assert.Equal(t, TypeAgentPing, cmd.CommandType())

	_, err = DecodeCommand("NOPE", nil)
	assert.ErrorIs(t, err, ErrUnknownCommandType)

	_, err = DecodeCommand("SCHEDULE_MEASUREMENTS", json.RawMessage(`{"measurements":[{"dsn":"","interval":0}]}`))
	assert.Error(t, err)

	_, err = DecodeCommand("REMOVE_RESOURCE", json.RawMessage(`{"entity":"bad"}`))
	assert.Error(t, err)
}
