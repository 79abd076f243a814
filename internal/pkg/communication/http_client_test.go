package communication

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neofleet/internal/config"
	"neofleet/internal/core/command"
	"neofleet/internal/model/base"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Options{BaseURL: url, Token: "agent-1", RetryCount: retries, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestFetchCommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/mailqueue/agent-1/commands", r.URL.Path)
		assert.Equal(t, "Bearer agent-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, base.Success(200, "ok", []*command.Request{
			{ServiceInterface: command.ServiceLifecycle, Method: "ping", CorrelationID: "agent-1#u|0|AGENT_PING"},
		}))
	}))
	defer srv.Close()

	reqs, err := newTestClient(t, srv.URL, 0).FetchCommands(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "agent-1#u|0|AGENT_PING", reqs[0].CorrelationID)
}

func TestPushResultsDecodesBatchResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mailqueue/agent-1/results", r.URL.Path)
		var got []*command.Response
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, base.Success(200, "ok", base.BatchResult{
			Accepted: len(got) - 1,
			Failed:   []base.ItemError{{Index: 1, Error: "orphan response"}},
		}))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv.URL, 0).PushResults(context.Background(), []*command.Response{
		{CorrelationID: "a"}, {CorrelationID: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Accepted)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 1, res.Failed[0].Index)
}

func TestPushEmptyBatchSkipsRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	_, err := c.PushMeasurements(context.Background(), nil)
	require.NoError(t, err)
	_, err = c.PushResults(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, hits.Load())
}

func TestRetryOnServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, base.Failure(503, "busy", nil))
			return
		}
		writeJSON(w, http.StatusOK, base.Success(200, "ok", []*command.Request{}))
	}))
	defer srv.Close()

	reqs, err := newTestClient(t, srv.URL, 3).FetchCommands(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reqs)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetryExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, base.Failure(500, "broken", nil))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 1).FetchCommands(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "broken", se.Message)
}

func TestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, base.Failure(401, "unknown agent", nil))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 2).FetchCommands(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "http://localhost"})
	assert.ErrorIs(t, err, ErrEmptyToken)

	_, err = NewClient(Options{BaseURL: "http://localhost", Token: "bad#token"})
	assert.ErrorIs(t, err, command.ErrInvalidToken)

	_, err = NewClient(Options{BaseURL: "http://localhost", Token: "a", Proxy: "http://proxy:8080"})
	assert.Error(t, err)

	c, err := NewClient(Options{BaseURL: "http://localhost", Token: "a", Proxy: "socks5://user:pw@127.0.0.1:1080"})
	require.NoError(t, err)
	assert.Equal(t, "a", c.Token())
}

func TestHolderReconfigure(t *testing.T) {
	first := newTestClient(t, "http://old:1", 0)
	h := NewHolder(first)
	assert.Same(t, first, h.Get())

	err := h.Reconfigure(&config.MasterConfig{Address: "new", Port: 9000, Prefix: "/api/v1/"}, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "http://new:9000/api/v1", h.Get().BaseURL())

	// 失败时保留当前客户端
	current := h.Get()
	assert.Error(t, h.Reconfigure(&config.MasterConfig{Address: "x", Port: 1}, ""))
	assert.Same(t, current, h.Get())
}
