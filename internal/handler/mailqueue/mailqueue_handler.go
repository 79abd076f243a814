/**
 * 邮件队列控制器
 * 作者: sun977
 * 日期: 2026-03-10
 * 说明: Master 端邮件队列 HTTP 接口
 * - FetchCommands        Agent 拉取命令
 * - PushResults          Agent 回传结果
 * - PushMeasurements     Agent 上报采集值
 * - EnqueueCommands      运维下发命令
 * - GetPending           运维查看待应答请求
 * - ListAgents / GetStats 运维查看 Agent 状态与队列计数
 */
package mailqueue

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"neofleet/internal/core/command"
	"neofleet/internal/core/measurement"
	"neofleet/internal/model/base"
	"neofleet/internal/pkg/communication"
	"neofleet/internal/pkg/logger"
	"neofleet/internal/pkg/utils"
	mq "neofleet/internal/service/mailqueue"
)

// ErrForeignCorrelationID 结果的关联ID属于其它 Agent
var ErrForeignCorrelationID = errors.New("correlation id belongs to another agent")

// Measurement 解码后的采集值
type Measurement struct {
	Record    measurement.ScheduledMeasurement `json:"record"`
	Value     float64                          `json:"value"`
	Timestamp int64                            `json:"timestamp"`
	Error     string                           `json:"error,omitempty"`
}

// ResultSink 接收已匹配的结果
type ResultSink func(agentToken string, results []mq.Incoming)

// MeasurementSink 接收已解码的采集值
type MeasurementSink func(agentToken string, values []Measurement)

// EnqueueResult 下发接口返回
type EnqueueResult struct {
	base.BatchResult
	CorrelationIDs []string `json:"correlation_ids"`
}

// MailQueueHandler 邮件队列控制器
type MailQueueHandler struct {
	svc          *mq.Service
	agents       *mq.AgentDirectory
	now          func() int64
	results      ResultSink
	measurements MeasurementSink
}

// NewMailQueueHandler 创建控制器
func NewMailQueueHandler(svc *mq.Service, agents *mq.AgentDirectory) *MailQueueHandler {
	return &MailQueueHandler{
		svc:          svc,
		agents:       agents,
		now:          func() int64 { return time.Now().UnixMilli() },
		results:      logResults,
		measurements: logMeasurements,
	}
}

// OnResults 替换结果接收方，nil 恢复为只记录日志
func (h *MailQueueHandler) OnResults(sink ResultSink) {
	if sink == nil {
		sink = logResults
	}
	h.results = sink
}

// OnMeasurements 替换采集值接收方，nil 恢复为只记录日志
func (h *MailQueueHandler) OnMeasurements(sink MeasurementSink) {
	if sink == nil {
		sink = logMeasurements
	}
	h.measurements = sink
}

// SetClock 测试时注入时钟
func (h *MailQueueHandler) SetClock(now func() int64) {
	h.now = now
}

// FetchCommands GET /mailqueue/:token/commands
func (h *MailQueueHandler) FetchCommands(c *gin.Context) {
	token := c.Param("token")
	h.agents.Touch(token, h.now())

	reqs, err := h.svc.Poll(c.Request.Context(), token)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "fetch commands failed", err)
		return
	}
	c.JSON(http.StatusOK, base.Success(http.StatusOK, fmt.Sprintf("%d commands", len(reqs)), reqs))
}

// PushResults POST /mailqueue/:token/results
func (h *MailQueueHandler) PushResults(c *gin.Context) {
	token := c.Param("token")
	var responses []*command.Response
	if err := c.ShouldBindJSON(&responses); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid results body", err)
		return
	}
	h.agents.Touch(token, h.now())

	result := &base.BatchResult{}
	own := make([]*command.Response, 0, len(responses))
	index := make([]int, 0, len(responses))
	for i, resp := range responses {
		if resp != nil {
			if owner, ok := command.ExtractAgentToken(resp.CorrelationID); ok && owner != token {
				logger.LogCommandOperation(resp.CorrelationID, "", token, "answer", "dropped", ErrForeignCorrelationID.Error(), map[string]interface{}{
					"index": i,
					"owner": utils.MaskToken(owner),
				})
				result.Failed = append(result.Failed, base.ItemError{Index: i, CorrelationID: resp.CorrelationID, Error: ErrForeignCorrelationID.Error()})
				continue
			}
		}
		own = append(own, resp)
		index = append(index, i)
	}

	incoming, failures := h.svc.TranslateIncoming(own)
	for _, f := range failures {
		result.Failed = append(result.Failed, base.ItemError{Index: index[f.Index], CorrelationID: f.CorrelationID, Error: f.Err.Error()})
	}
	result.Accepted = len(incoming)
	if len(incoming) > 0 {
		h.results(token, incoming)
	}
	c.JSON(http.StatusOK, base.Success(http.StatusOK, "results processed", result))
}

// PushMeasurements POST /mailqueue/:token/measurements
func (h *MailQueueHandler) PushMeasurements(c *gin.Context) {
	token := c.Param("token")
	var reports []communication.MeasurementReport
	if err := c.ShouldBindJSON(&reports); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid measurements body", err)
		return
	}
	h.agents.Touch(token, h.now())

	result := &base.BatchResult{}
	values := make([]Measurement, 0, len(reports))
	for i, r := range reports {
		rec, err := measurement.Decode(r.Record)
		if err != nil {
			logger.LogScheduleEvent(-1, "", "decode_failed", err.Error(), logger.WarnLevel, map[string]interface{}{
				"agent_token": utils.MaskToken(token),
				"index":       i,
			})
			result.Failed = append(result.Failed, base.ItemError{Index: i, Error: err.Error()})
			continue
		}
		values = append(values, Measurement{Record: rec, Value: r.Value, Timestamp: r.Timestamp, Error: r.Error})
	}
	result.Accepted = len(values)
	if len(values) > 0 {
		h.measurements(token, values)
	}
	c.JSON(http.StatusOK, base.Success(http.StatusOK, "measurements processed", result))
}

// EnqueueCommands POST /mailqueue/:token/enqueue
func (h *MailQueueHandler) EnqueueCommands(c *gin.Context) {
	token := c.Param("token")
	if err := command.ValidateToken(token); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid agent token", err)
		return
	}
	var specs []command.Spec
	if err := c.ShouldBindJSON(&specs); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid enqueue body", err)
		return
	}

	out := &EnqueueResult{}
	cmds := make([]command.Command, 0, len(specs))
	index := make([]int, 0, len(specs))
	for i, spec := range specs {
		cmd, err := spec.Decode()
		if err != nil {
			out.Failed = append(out.Failed, base.ItemError{Index: i, Error: err.Error()})
			continue
		}
		cmds = append(cmds, cmd)
		index = append(index, i)
	}

	var (
		reqs     []*command.Request
		failures []*mq.ItemError
		err      error
	)
	if len(cmds) > 0 {
		reqs, failures, err = h.svc.Enqueue(c.Request.Context(), token, cmds)
	}
	for _, f := range failures {
		out.Failed = append(out.Failed, base.ItemError{Index: index[f.Index], CorrelationID: f.CorrelationID, Error: f.Err.Error()})
	}
	out.Accepted = len(reqs)
	out.CorrelationIDs = make([]string, 0, len(reqs))
	for _, r := range reqs {
		out.CorrelationIDs = append(out.CorrelationIDs, r.CorrelationID)
	}

	h.logOperation(c, "enqueue_commands", token, err, map[string]interface{}{
		"accepted": out.Accepted,
		"failed":   len(out.Failed),
	})

	switch {
	case err != nil && !errors.Is(err, mq.ErrEmptyBatch):
		c.JSON(http.StatusInternalServerError, base.APIResponse{
			Code: http.StatusInternalServerError, Status: base.StatusFailed,
			Message: "enqueue failed", Data: out, Error: err.Error(),
		})
	case out.Accepted == 0 && len(specs) > 0:
		c.JSON(http.StatusBadRequest, base.APIResponse{
			Code: http.StatusBadRequest, Status: base.StatusFailed,
			Message: "no commands were enqueued", Data: out, Error: mq.ErrEmptyBatch.Error(),
		})
	default:
		c.JSON(http.StatusOK, base.Success(http.StatusOK, fmt.Sprintf("%d commands enqueued", out.Accepted), out))
	}
}

// GetPending GET /mailqueue/:token/pending
func (h *MailQueueHandler) GetPending(c *gin.Context) {
	token := c.Param("token")
	queued, err := h.svc.QueueLength(c.Request.Context(), token)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "query mailbox failed", err)
		return
	}
	c.JSON(http.StatusOK, base.Success(http.StatusOK, "ok", gin.H{
		"pending": h.svc.Pending(token),
		"queued":  queued,
	}))
}

// ListAgents GET /fleet/agents
func (h *MailQueueHandler) ListAgents(c *gin.Context) {
	c.JSON(http.StatusOK, base.Success(http.StatusOK, "ok", h.agents.List()))
}

// GetStats GET /fleet/stats
func (h *MailQueueHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, base.Success(http.StatusOK, "ok", h.svc.Stats()))
}

func (h *MailQueueHandler) fail(c *gin.Context, code int, message string, err error) {
	logger.LogError(err, c.GetString("request_id"), c.Param("token"), c.GetString("client_ip"), c.Request.URL.Path, c.Request.Method, map[string]interface{}{
		"func_name": "handler.mailqueue",
		"message":   message,
	})
	c.JSON(code, base.Failure(code, message, err))
}

func (h *MailQueueHandler) logOperation(c *gin.Context, op, token string, err error, extra map[string]interface{}) {
	result, msg := "success", ""
	if err != nil {
		result, msg = "failed", err.Error()
	}
	logger.LogBusinessOperation(op, token, c.GetString("client_ip"), c.GetString("request_id"), result, msg, extra)
}

func logResults(agentToken string, results []mq.Incoming) {
	for _, in := range results {
		result := "success"
		if in.RemoteError != "" {
			result = "remote_error"
		}
		logger.LogCommandOperation(in.ID.String(), string(in.ID.Type), agentToken, "deliver", result, in.RemoteError, map[string]interface{}{
			"round_trip_ms": in.AnsweredAt - in.SentAt,
		})
	}
}

func logMeasurements(agentToken string, values []Measurement) {
	for _, v := range values {
		level, event := logger.DebugLevel, "reported"
		if v.Error != "" {
			level, event = logger.WarnLevel, "report_error"
		}
		logger.LogScheduleEvent(v.Record.DerivedID, v.Record.DSN, event, v.Error, level, map[string]interface{}{
			"agent_token": agentToken,
			"value":       v.Value,
			"timestamp":   v.Timestamp,
			"entity":      v.Record.Entity.String(),
		})
	}
}
