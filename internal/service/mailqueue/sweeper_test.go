package mailqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neofleet/internal/core/command"
)

func TestSweeperMarksAgentsUnreachable(t *testing.T) {
	svc, clk := newTestService(t, nil, nil)
	dir := NewAgentDirectory()
	ctx := context.Background()

	clk.Set(0)
	dir.Touch("agent-1", 0)
	dir.Touch("agent-2", 0)
	_, _, err := svc.Enqueue(ctx, "agent-1", []command.Command{command.PingCommand{}, command.PingCommand{}})
	require.NoError(t, err)

	sw := NewSweeper(svc, time.Second, dir.AbandonHandler())

	clk.Set(100000)
	assert.Equal(t, 0, sw.SweepOnce(ctx))

	clk.Set(400000)
	assert.Equal(t, 2, sw.SweepOnce(ctx))

	a1, ok := dir.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, AgentUnreachable, a1.Status)
	assert.Equal(t, 2, a1.Abandoned)

	a2, _ := dir.Get("agent-2")
	assert.Equal(t, AgentOnline, a2.Status)

	// 老化的请求不会再次下发
	assert.Empty(t, svc.Pending("agent-1"))
	polled, err := svc.Poll(ctx, "agent-1")
	require.NoError(t, err)
	assert.Empty(t, polled)

	// 再次出现即恢复
	dir.Touch("agent-1", 500000)
	a1, _ = dir.Get("agent-1")
	assert.Equal(t, AgentOnline, a1.Status)
	assert.Equal(t, int64(500000), a1.LastSeen)
	assert.Len(t, dir.List(), 2)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	sw := NewSweeper(svc, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}

	assert.Error(t, NewSweeper(svc, 0, nil).Run(context.Background()))
}
