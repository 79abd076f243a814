/**
 * 命令邮件队列服务
 * @author: sun977
 * @date: 2026.03.05
 * @description: 出站命令翻译与关联、入站响应匹配与解码、待应答请求老化
 * @func: 待应答集合只由一把锁保护；翻译器调用全部在锁外执行
 */
package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"neofleet/internal/core/command"
	"neofleet/internal/pkg/logger"
	"neofleet/internal/pkg/utils"
)

// DefaultMaxAge 待应答请求默认老化阈值
const DefaultMaxAge = 5 * time.Minute

// Options 服务参数
type Options struct {
	MaxAge    time.Duration // 老化阈值，<=0 时使用 DefaultMaxAge
	BatchSize int           // 单次 Poll 最多返回的信封数，<=0 表示不限
	Clock     func() int64  // 毫秒时钟，测试时注入
}

// Service 邮件队列服务
type Service struct {
	translators *command.Registry
	mailbox     Mailbox
	maxAge      int64
	batchSize   int
	now         func() int64
	serial      atomic.Uint64

	mu      sync.Mutex
	pending map[string]*PendingRequest // correlation id -> entry

	translated atomic.Uint64
	sent       atomic.Uint64
	answered   atomic.Uint64
	orphans    atomic.Uint64
	expired    atomic.Uint64
	failed     atomic.Uint64
}

// NewService 创建服务；mailbox 为 nil 时使用内存邮箱
func NewService(translators *command.Registry, mailbox Mailbox, opts Options) *Service {
	if mailbox == nil {
		mailbox = NewMemoryMailbox()
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}
	return &Service{
		translators: translators,
		mailbox:     mailbox,
		maxAge:      maxAge.Milliseconds(),
		batchSize:   opts.BatchSize,
		now:         clock,
		pending:     make(map[string]*PendingRequest),
	}
}

// MaxAge 老化阈值 (毫秒)
func (s *Service) MaxAge() int64 {
	return s.maxAge
}

// ExtractAgentToken 从关联ID中取出 Agent 令牌
func (s *Service) ExtractAgentToken(correlationID string) (string, bool) {
	return command.ExtractAgentToken(correlationID)
}

// TranslateOutgoing 把一批领域命令翻译为信封
// 单条失败只记录到 ItemError，输出保持输入顺序 (失败条目直接省略)
func (s *Service) TranslateOutgoing(agentToken string, cmds []command.Command) ([]*command.Request, []*ItemError) {
	if err := command.ValidateToken(agentToken); err != nil {
		failures := make([]*ItemError, 0, len(cmds))
		for i, cmd := range cmds {
			failures = append(failures, s.outgoingFailure(i, agentToken, typeOf(cmd), err))
		}
		return nil, failures
	}

	var (
		out      = make([]*command.Request, 0, len(cmds))
		failures []*ItemError
	)
	for i, cmd := range cmds {
		req, err := s.translators.TranslateRequest(cmd)
		if err != nil {
			failures = append(failures, s.outgoingFailure(i, agentToken, typeOf(cmd), err))
			continue
		}

		t := cmd.CommandType()
		serial := strconv.FormatUint(s.serial.Add(1)-1, 10)
		id, err := command.FormatCorrelationID(agentToken, utils.GenerateUUID(), serial, t)
		if err != nil {
			failures = append(failures, s.outgoingFailure(i, agentToken, t, err))
			continue
		}
		req.CorrelationID = id

		now := s.now()
		entry := &PendingRequest{
			CorrelationID: id,
			AgentToken:    agentToken,
			Type:          t,
			State:         StateCreated,
			CreatedAt:     now,
			UpdatedAt:     now,
			Request:       req,
		}
		entry.CommandUUID, _ = command.ExtractCommandUUID(id)
		entry.State = StateTranslated

		s.mu.Lock()
		s.pending[id] = entry
		s.mu.Unlock()

		s.translated.Add(1)
		logger.LogCommandOperation(id, string(t), agentToken, "translate", "success", "", nil)
		out = append(out, req)
	}
	return out, failures
}

func (s *Service) outgoingFailure(index int, agentToken string, t command.Type, err error) *ItemError {
	s.failed.Add(1)
	logger.LogCommandOperation("", string(t), agentToken, "translate", "failed", err.Error(), map[string]interface{}{
		"index": index,
	})
	return &ItemError{Index: index, Type: t, Err: err}
}

func typeOf(cmd command.Command) command.Type {
	if cmd == nil {
		return ""
	}
	return cmd.CommandType()
}

// Enqueue 翻译并投递到 Agent 邮箱；投递失败时撤销本批待应答记录
func (s *Service) Enqueue(ctx context.Context, agentToken string, cmds []command.Command) ([]*command.Request, []*ItemError, error) {
	reqs, failures := s.TranslateOutgoing(agentToken, cmds)
	if len(reqs) == 0 {
		if len(cmds) == 0 {
			return nil, failures, nil
		}
		return nil, failures, ErrEmptyBatch
	}
	if err := s.mailbox.Push(ctx, agentToken, reqs); err != nil {
		s.mu.Lock()
		for _, r := range reqs {
			delete(s.pending, r.CorrelationID)
		}
		s.mu.Unlock()
		return nil, failures, fmt.Errorf("push to mailbox of %s: %w", agentToken, err)
	}
	return reqs, failures, nil
}

// Poll Agent 拉取命令：取出邮箱中的信封并标记为 Sent
// 已老化或未知的信封直接丢弃并记录日志
func (s *Service) Poll(ctx context.Context, agentToken string) ([]*command.Request, error) {
	if err := command.ValidateToken(agentToken); err != nil {
		return nil, err
	}
	drained, err := s.mailbox.Drain(ctx, agentToken, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("drain mailbox of %s: %w", agentToken, err)
	}

	out := make([]*command.Request, 0, len(drained))
	for _, req := range drained {
		if s.markSent(req.CorrelationID) {
			out = append(out, req)
			continue
		}
		logger.LogCommandOperation(req.CorrelationID, "", agentToken, "send", "dropped", "no translated entry (aged out or unknown)", nil)
	}
	return out, nil
}

// MarkSent 直接使用 TranslateOutgoing 输出的调用方自行投递后调用，返回成功标记的数量
func (s *Service) MarkSent(correlationIDs ...string) int {
	n := 0
	for _, id := range correlationIDs {
		if s.markSent(id) {
			n++
		}
	}
	return n
}

// markSent Translated -> Sent
func (s *Service) markSent(id string) bool {
	s.mu.Lock()
	entry, ok := s.pending[id]
	if !ok || entry.State != StateTranslated {
		s.mu.Unlock()
		return false
	}
	entry.State = StateSent
	entry.UpdatedAt = s.now()
	s.mu.Unlock()

	s.sent.Add(1)
	logger.LogCommandOperation(id, string(entry.Type), entry.AgentToken, "send", "success", "", nil)
	return true
}

// TranslateIncoming 匹配并解码一批响应
// 无法解析、没有对应 Sent 记录或解码失败的响应只影响自身
func (s *Service) TranslateIncoming(responses []*command.Response) ([]Incoming, []*ItemError) {
	var (
		out      = make([]Incoming, 0, len(responses))
		failures []*ItemError
	)
	for i, resp := range responses {
		if resp == nil {
			failures = append(failures, s.incomingFailure(i, "", "", "", errors.New("nil response"), "failed"))
			continue
		}
		id, err := command.ParseCorrelationID(resp.CorrelationID)
		if err != nil {
			token, _ := command.ExtractAgentToken(resp.CorrelationID)
			failures = append(failures, s.incomingFailure(i, resp.CorrelationID, "", token, err, "dropped"))
			continue
		}

		entry, ok := s.claim(resp.CorrelationID)
		if !ok {
			s.orphans.Add(1)
			failures = append(failures, s.incomingFailure(i, resp.CorrelationID, id.Type, id.AgentToken, ErrOrphanResponse, "dropped"))
			continue
		}
		s.answered.Add(1)

		in := Incoming{ID: id, SentAt: entry.UpdatedAt, AnsweredAt: s.now()}
		if resp.Failed() {
			in.RemoteError = resp.Error
			logger.LogCommandOperation(resp.CorrelationID, string(id.Type), id.AgentToken, "answer", "remote_error", resp.Error, nil)
			out = append(out, in)
			continue
		}

		decoded, err := s.translators.TranslateResponse(id.Type, resp)
		if err != nil {
			failures = append(failures, s.incomingFailure(i, resp.CorrelationID, id.Type, id.AgentToken, err, "failed"))
			continue
		}
		in.Response = decoded
		logger.LogCommandOperation(resp.CorrelationID, string(id.Type), id.AgentToken, "answer", "success", "", nil)
		out = append(out, in)
	}
	return out, failures
}

// claim 取走处于 Sent 状态的待应答记录 (-> Answered)
func (s *Service) claim(id string) (PendingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[id]
	if !ok || entry.State != StateSent {
		return PendingRequest{}, false
	}
	delete(s.pending, id)
	cp := *entry
	cp.State = StateAnswered
	return cp, true
}

func (s *Service) incomingFailure(index int, id string, t command.Type, token string, err error, result string) *ItemError {
	if result == "failed" {
		s.failed.Add(1)
	}
	action := "answer"
	if errors.Is(err, ErrOrphanResponse) {
		action = "orphan"
	}
	logger.LogCommandOperation(id, string(t), token, action, result, err.Error(), map[string]interface{}{
		"index": index,
	})
	return &ItemError{Index: index, CorrelationID: id, Type: t, Err: err}
}

// ExpireStaleRequests 移除距最近状态变更已达到老化阈值的请求，按 Agent 令牌分组返回
// Translated 但从未被拉取的请求同样会老化，保证待应答集合有界
func (s *Service) ExpireStaleRequests(now int64) map[string][]PendingRequest {
	stale := make(map[string][]PendingRequest)

	s.mu.Lock()
	for id, entry := range s.pending {
		if entry.Age(now) < s.maxAge {
			continue
		}
		delete(s.pending, id)
		cp := *entry
		cp.State = StateAgedOut
		stale[cp.AgentToken] = append(stale[cp.AgentToken], cp)
	}
	s.mu.Unlock()

	for token, list := range stale {
		sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt < list[j].CreatedAt })
		for _, p := range list {
			s.expired.Add(1)
			logger.LogCommandOperation(p.CorrelationID, string(p.Type), token, "expire", "dropped",
				fmt.Sprintf("no answer for %d ms", p.Age(now)), nil)
		}
	}
	return stale
}

// Pending 某个 Agent 的待应答快照；token 为空时返回全部
func (s *Service) Pending(agentToken string) []PendingRequest {
	s.mu.Lock()
	out := make([]PendingRequest, 0)
	for _, entry := range s.pending {
		if agentToken == "" || entry.AgentToken == agentToken {
			out = append(out, *entry)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].CorrelationID < out[j].CorrelationID
	})
	return out
}

// QueueLength 邮箱中尚未被拉取的信封数
func (s *Service) QueueLength(ctx context.Context, agentToken string) (int, error) {
	return s.mailbox.Len(ctx, agentToken)
}

// Stats 计数快照
func (s *Service) Stats() Stats {
	s.mu.Lock()
	pending := len(s.pending)
	s.mu.Unlock()
	return Stats{
		Translated: s.translated.Load(),
		Sent:       s.sent.Load(),
		Answered:   s.answered.Load(),
		Orphans:    s.orphans.Load(),
		Expired:    s.expired.Load(),
		Failed:     s.failed.Load(),
		Pending:    pending,
	}
}
