package mailqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"neofleet/internal/core/command"
	"neofleet/internal/core/measurement"
	"neofleet/internal/pkg/utils"
)

type fakeClock struct{ now atomic.Int64 }

func (c *fakeClock) Now() int64   { return c.now.Load() }
func (c *fakeClock) Set(ms int64) { c.now.Store(ms) }

func newTestService(t *testing.T, reg *command.Registry, mb Mailbox) (*Service, *fakeClock) {
	t.Helper()
	if reg == nil {
		reg = command.DefaultRegistry(nil)
	}
	clk := &fakeClock{}
	return NewService(reg, mb, Options{Clock: clk.Now}), clk
}

func answer(t *testing.T, req *command.Request, result any) *command.Response {
	t.Helper()
	resp, err := command.NewResult(req.CorrelationID, result)
	require.NoError(t, err)
	return resp
}

func TestTranslateOutgoingBatchIsolation(t *testing.T) {
	full := command.DefaultRegistry(nil)
	reg := command.NewRegistry()
	for _, ty := range []command.Type{command.TypeAgentPing, command.TypeRemoveResource} {
		tr, ok := full.Lookup(ty)
		require.True(t, ok)
		require.NoError(t, reg.Register(ty, tr))
	}
	svc, _ := newTestService(t, reg, nil)

	cmds := []command.Command{
		command.PingCommand{},
		command.DieCommand{Reason: "x"}, // 未注册
		command.RemoveResourceCommand{Entity: measurement.EntityID{Type: 1, ID: 2}},
	}
	reqs, failures := svc.TranslateOutgoing("agent-42", cmds)

	require.Len(t, reqs, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.ErrorIs(t, failures[0], command.ErrUnknownCommandType)

	first, err := command.ParseCorrelationID(reqs[0].CorrelationID)
	require.NoError(t, err)
	second, err := command.ParseCorrelationID(reqs[1].CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, command.TypeAgentPing, first.Type)
	assert.Equal(t, command.TypeRemoveResource, second.Type)
	assert.Equal(t, "agent-42", first.AgentToken)
	assert.NotEqual(t, first.Serial, second.Serial)
	assert.NotEqual(t, first.CommandUUID, second.CommandUUID)

	pending := svc.Pending("agent-42")
	require.Len(t, pending, 2)
	for _, p := range pending {
		assert.Equal(t, StateTranslated, p.State)
		assert.True(t, utils.IsValidUUID(p.CommandUUID), p.CommandUUID)
	}
	assert.Equal(t, uint64(1), svc.Stats().Failed)
}

func TestTranslatorPanicStaysWithinItem(t *testing.T) {
	reg := command.DefaultRegistry(nil)
	ping, ok := reg.Lookup(command.TypeAgentPing)
	require.True(t, ok)
	remove, ok := reg.Lookup(command.TypeRemoveResource)
	require.True(t, ok)

	remove.Request = func(command.Command) (*command.Request, error) { panic("boom") }
	require.NoError(t, reg.Register(command.TypeRemoveResource, remove))
	ping.Response = func(*command.Response) (any, error) { panic("bad result") }
	require.NoError(t, reg.Register(command.TypeAgentPing, ping))

	svc, _ := newTestService(t, reg, nil)

	var (
		reqs     []*command.Request
		failures []*ItemError
	)
	require.NotPanics(t, func() {
		reqs, failures = svc.TranslateOutgoing("agent-42", []command.Command{
			command.PingCommand{},
			command.RemoveResourceCommand{Entity: measurement.EntityID{Type: 1, ID: 2}},
			command.GetBundleCommand{},
		})
	})
	require.Len(t, reqs, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.ErrorIs(t, failures[0], command.ErrTranslatorPanic)
	var te *command.TranslationError
	require.ErrorAs(t, failures[0], &te)
	assert.Equal(t, command.TypeRemoveResource, te.Type)

	require.Equal(t, 2, svc.MarkSent(reqs[0].CorrelationID, reqs[1].CorrelationID))
	var in []Incoming
	require.NotPanics(t, func() {
		in, failures = svc.TranslateIncoming([]*command.Response{
			answer(t, reqs[0], command.PingResponse{AgentTime: 1}),
			answer(t, reqs[1], command.BundleResponse{Version: "1.0.0"}),
		})
	})
	require.Len(t, in, 1)
	assert.Equal(t, command.TypeGetCurrentAgentBundle, in[0].ID.Type)
	require.Len(t, failures, 1)
	assert.Equal(t, 0, failures[0].Index)
	assert.ErrorIs(t, failures[0], command.ErrTranslatorPanic)
	require.ErrorAs(t, failures[0], &te)
	assert.Equal(t, reqs[0].CorrelationID, te.CorrelationID)
	assert.Equal(t, uint64(2), svc.Stats().Failed)
}

func TestTranslateOutgoingInvalidToken(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	reqs, failures := svc.TranslateOutgoing("bad#token", []command.Command{command.PingCommand{}, command.PingCommand{}})
	assert.Empty(t, reqs)
	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[1], command.ErrInvalidToken)
	assert.Empty(t, svc.Pending(""))
}

func TestTranslateOutgoingNilCommand(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	reqs, failures := svc.TranslateOutgoing("agent-1", []command.Command{nil, command.PingCommand{}})
	assert.Len(t, reqs, 1)
	require.Len(t, failures, 1)
	assert.Equal(t, 0, failures[0].Index)
}

func TestEnqueuePollAnswer(t *testing.T) {
	svc, clk := newTestService(t, nil, nil)
	ctx := context.Background()

	clk.Set(1000)
	reqs, failures, err := svc.Enqueue(ctx, "agent-1", []command.Command{
		command.PingCommand{},
		command.GetBundleCommand{},
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, reqs, 2)

	n, err := svc.QueueLength(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	clk.Set(2000)
	polled, err := svc.Poll(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, polled, 2)
	assert.Equal(t, reqs[0].CorrelationID, polled[0].CorrelationID)
	for _, p := range svc.Pending("agent-1") {
		assert.Equal(t, StateSent, p.State)
		assert.Equal(t, int64(2000), p.UpdatedAt)
	}

	// 第二次拉取为空
	again, err := svc.Poll(ctx, "agent-1")
	require.NoError(t, err)
	assert.Empty(t, again)

	clk.Set(3000)
	in, fails := svc.TranslateIncoming([]*command.Response{
		answer(t, polled[0], command.PingResponse{AgentTime: 2500}),
		command.NewFailure(polled[1].CorrelationID, errors.New("bundle unavailable")),
	})
	assert.Empty(t, fails)
	require.Len(t, in, 2)

	ping, ok := in[0].Response.(*command.PingResponse)
	require.True(t, ok)
	assert.Equal(t, int64(2500), ping.AgentTime)
	assert.Equal(t, int64(2000), in[0].SentAt)
	assert.Equal(t, int64(3000), in[0].AnsweredAt)
	assert.Equal(t, "bundle unavailable", in[1].RemoteError)
	assert.Nil(t, in[1].Response)

	assert.Empty(t, svc.Pending(""))
	st := svc.Stats()
	assert.Equal(t, uint64(2), st.Translated)
	assert.Equal(t, uint64(2), st.Sent)
	assert.Equal(t, uint64(2), st.Answered)
}

func TestTranslateIncomingOrphansAndMalformed(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	reqs, _ := svc.TranslateOutgoing("agent-1", []command.Command{command.PingCommand{}, command.PingCommand{}})
	require.Len(t, reqs, 2)
	require.Equal(t, 1, svc.MarkSent(reqs[0].CorrelationID))

	good := answer(t, reqs[0], command.PingResponse{AgentTime: 1})
	responses := []*command.Response{
		{CorrelationID: "garbage"},
		{CorrelationID: "agent-1#x|0|NOT_A_TYPE"},
		answer(t, reqs[1], command.PingResponse{}), // 仍是 Translated，未发送
		good,
		good, // 重复应答
		nil,
	}
	in, failures := svc.TranslateIncoming(responses)

	require.Len(t, in, 1)
	assert.Equal(t, command.TypeAgentPing, in[0].ID.Type)
	require.Len(t, failures, 5)
	assert.ErrorIs(t, failures[0], command.ErrMalformedCorrelationID)
	assert.ErrorIs(t, failures[1], command.ErrUnknownCommandType)
	assert.ErrorIs(t, failures[2], ErrOrphanResponse)
	assert.ErrorIs(t, failures[3], ErrOrphanResponse)
	assert.Equal(t, 4, failures[3].Index)
	assert.Equal(t, uint64(2), svc.Stats().Orphans)

	// 未发送的那条仍在待应答集合中
	pending := svc.Pending("agent-1")
	require.Len(t, pending, 1)
	assert.Equal(t, reqs[1].CorrelationID, pending[0].CorrelationID)
}

func TestTranslateIncomingDecodeFailure(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	reqs, _ := svc.TranslateOutgoing("agent-1", []command.Command{command.GetMeasurementsCommand{}})
	svc.MarkSent(reqs[0].CorrelationID)

	_, failures := svc.TranslateIncoming([]*command.Response{
		{CorrelationID: reqs[0].CorrelationID, Result: json.RawMessage(`{"values": 5}`)},
	})
	require.Len(t, failures, 1)
	var te *command.TranslationError
	require.ErrorAs(t, failures[0], &te)
	assert.Equal(t, reqs[0].CorrelationID, te.CorrelationID)
	// 解码失败也视为已应答，不再等待
	assert.Empty(t, svc.Pending(""))
}

func TestExpireStaleRequests(t *testing.T) {
	svc, clk := newTestService(t, nil, nil)
	ctx := context.Background()

	clk.Set(0)
	_, _, err := svc.Enqueue(ctx, "agent-1", []command.Command{command.PingCommand{}})
	require.NoError(t, err)
	_, err = svc.Poll(ctx, "agent-1")
	require.NoError(t, err)

	assert.Equal(t, int64(300000), svc.MaxAge())
	assert.Empty(t, svc.ExpireStaleRequests(100000))
	assert.Len(t, svc.Pending("agent-1"), 1)

	stale := svc.ExpireStaleRequests(400000)
	require.Len(t, stale["agent-1"], 1)
	assert.Equal(t, StateAgedOut, stale["agent-1"][0].State)
	assert.Equal(t, command.TypeAgentPing, stale["agent-1"][0].Type)
	assert.Empty(t, svc.Pending(""))
	assert.Equal(t, uint64(1), svc.Stats().Expired)
}

func TestExpireBoundaryAndGrouping(t *testing.T) {
	svc, clk := newTestService(t, nil, nil)

	clk.Set(0)
	a, _ := svc.TranslateOutgoing("agent-a", []command.Command{command.PingCommand{}})
	b, _ := svc.TranslateOutgoing("agent-b", []command.Command{command.PingCommand{}, command.PingCommand{}})
	svc.MarkSent(a[0].CorrelationID, b[0].CorrelationID)

	clk.Set(100)
	late, _ := svc.TranslateOutgoing("agent-b", []command.Command{command.PingCommand{}})
	require.Len(t, late, 1)

	// 年龄恰好等于阈值即过期；未拉取的 Translated 也会老化
	stale := svc.ExpireStaleRequests(300000)
	assert.Len(t, stale["agent-a"], 1)
	assert.Len(t, stale["agent-b"], 2)
	require.Len(t, svc.Pending(""), 1)
	assert.Equal(t, late[0].CorrelationID, svc.Pending("")[0].CorrelationID)
}

func TestPollSkipsAgedOut(t *testing.T) {
	svc, clk := newTestService(t, nil, nil)
	ctx := context.Background()

	clk.Set(0)
	_, _, err := svc.Enqueue(ctx, "agent-1", []command.Command{command.PingCommand{}})
	require.NoError(t, err)
	svc.ExpireStaleRequests(600000)

	clk.Set(600000)
	polled, err := svc.Poll(ctx, "agent-1")
	require.NoError(t, err)
	assert.Empty(t, polled)
}

func TestPollBatchSize(t *testing.T) {
	clk := &fakeClock{}
	svc := NewService(command.DefaultRegistry(nil), nil, Options{Clock: clk.Now, BatchSize: 2})
	ctx := context.Background()
	_, _, err := svc.Enqueue(ctx, "agent-1", []command.Command{command.PingCommand{}, command.PingCommand{}, command.PingCommand{}})
	require.NoError(t, err)

	first, err := svc.Poll(ctx, "agent-1")
	require.NoError(t, err)
	assert.Len(t, first, 2)
	second, err := svc.Poll(ctx, "agent-1")
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

type mockMailbox struct {
	mock.Mock
}

func (m *mockMailbox) Push(ctx context.Context, token string, reqs []*command.Request) error {
	return m.Called(ctx, token, reqs).Error(0)
}

func (m *mockMailbox) Drain(ctx context.Context, token string, max int) ([]*command.Request, error) {
	args := m.Called(ctx, token, max)
	reqs, _ := args.Get(0).([]*command.Request)
	return reqs, args.Error(1)
}

func (m *mockMailbox) Len(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

func TestEnqueueMailboxFailureRollsBack(t *testing.T) {
	mb := &mockMailbox{}
	mb.On("Push", mock.Anything, "agent-1", mock.Anything).Return(errors.New("redis down"))
	svc, _ := newTestService(t, nil, mb)

	_, _, err := svc.Enqueue(context.Background(), "agent-1", []command.Command{command.PingCommand{}})
	require.Error(t, err)
	assert.Empty(t, svc.Pending(""))
	mb.AssertExpectations(t)
}

func TestEnqueueAllFailed(t *testing.T) {
	svc, _ := newTestService(t, command.NewRegistry(), nil)
	_, failures, err := svc.Enqueue(context.Background(), "agent-1", []command.Command{command.PingCommand{}})
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Len(t, failures, 1)
}

func TestPollDrainError(t *testing.T) {
	mb := &mockMailbox{}
	mb.On("Drain", mock.Anything, "agent-1", 0).Return(nil, errors.New("boom"))
	svc, _ := newTestService(t, nil, mb)
	_, err := svc.Poll(context.Background(), "agent-1")
	assert.Error(t, err)
}

func TestConcurrentAnswerOnlyOnce(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	reqs, _ := svc.TranslateOutgoing("agent-1", []command.Command{command.PingCommand{}})
	svc.MarkSent(reqs[0].CorrelationID)
	resp := answer(t, reqs[0], command.PingResponse{AgentTime: 1})

	var (
		wg    sync.WaitGroup
		total atomic.Int64
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in, _ := svc.TranslateIncoming([]*command.Response{resp})
			total.Add(int64(len(in)))
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), total.Load())
}

func TestServiceExtractAgentToken(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	token, ok := svc.ExtractAgentToken("agent-42#c1|0|CONFIGURE_RESOURCE")
	require.True(t, ok)
	assert.Equal(t, "agent-42", token)
	_, ok = svc.ExtractAgentToken("broken")
	assert.False(t, ok)
}
