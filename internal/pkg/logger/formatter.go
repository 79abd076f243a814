// 分类日志输出
package logger

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"neofleet/internal/pkg/utils"
)

// FormatTimestamp 统一的毫秒精度时间格式 "2006-01-02 15:04:05.000"
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000")
}

// FormatMillis 毫秒时间戳转可读时间
func FormatMillis(ms int64) string {
	return FormatTimestamp(time.UnixMilli(ms))
}

// NowFormatted 当前时间
func NowFormatted() string {
	return FormatTimestamp(time.Now())
}

// LogType 日志类型
type LogType string

const (
	AccessLog   LogType = "access"   // HTTP 访问
	BusinessLog LogType = "business" // 运维操作 (入队、查询)
	ErrorLog    LogType = "error"
	SystemLog   LogType = "system"   // 组件启停、状态变化
	CommandLog  LogType = "command"  // 命令翻译、投递、应答、过期
	ScheduleLog LogType = "schedule" // 指标调度与采集
)

// LogLevel 日志级别，避免业务代码直接依赖 logrus
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// emit 按级别输出，所有分类日志都经过这里
func emit(level logrus.Level, fields logrus.Fields, extra map[string]interface{}, msg string) {
	for k, v := range extra {
		fields[k] = v
	}
	entry := LoggerInstance.logger.WithFields(fields)
	switch level {
	case logrus.DebugLevel:
		entry.Debug(msg)
	case logrus.WarnLevel:
		entry.Warn(msg)
	case logrus.ErrorLevel:
		entry.Error(msg)
	case logrus.FatalLevel:
		entry.Fatal(msg)
	default:
		entry.Info(msg)
	}
}

// LogAccessRequest 记录 gin 请求
func LogAccessRequest(c *gin.Context, startTime time.Time, requestID, agentToken string) {
	if LoggerInstance == nil {
		return
	}
	status := c.Writer.Status()
	level := logrus.InfoLevel
	if status >= http.StatusInternalServerError {
		level = logrus.ErrorLevel
	} else if status >= http.StatusBadRequest {
		level = logrus.WarnLevel
	}
	emit(level, logrus.Fields{
		"type":          AccessLog,
		"method":        c.Request.Method,
		"path":          c.Request.URL.Path,
		"query":         c.Request.URL.RawQuery,
		"status_code":   status,
		"response_time": time.Since(startTime).Milliseconds(),
		"client_ip":     utils.GetClientIP(c),
		"user_agent":    c.Request.UserAgent(),
		"agent_token":   utils.MaskToken(agentToken),
		"request_id":    requestID,
		"request_size":  c.Request.ContentLength,
		"response_size": int64(c.Writer.Size()),
	}, nil, "HTTP request processed")
}

// LogBusinessOperation 记录运维接口操作
func LogBusinessOperation(operation, agentToken, clientIP, requestID, result, message string, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}
	level := logrus.InfoLevel
	msg := fmt.Sprintf("Business operation: %s", operation)
	if result != "success" {
		level = logrus.WarnLevel
		msg = fmt.Sprintf("Business operation failed: %s", operation)
	}
	emit(level, logrus.Fields{
		"type":        BusinessLog,
		"operation":   operation,
		"agent_token": utils.MaskToken(agentToken),
		"client_ip":   clientIP,
		"result":      result,
		"message":     message,
		"request_id":  requestID,
	}, extraFields, msg)
}

// LogError 记录错误，err 为 nil 时忽略
func LogError(err error, requestID, agentToken, clientIP, path, method string, extraFields map[string]interface{}) {
	if LoggerInstance == nil || err == nil {
		return
	}
	emit(logrus.ErrorLevel, logrus.Fields{
		"type":        ErrorLog,
		"error":       err.Error(),
		"request_id":  requestID,
		"agent_token": utils.MaskToken(agentToken),
		"client_ip":   clientIP,
		"path":        path,
		"method":      method,
	}, extraFields, fmt.Sprintf("System error occurred: %s", err.Error()))
}

// LogWarn 记录请求相关的警告
func LogWarn(message, requestID, agentToken, clientIP, path, method string, extraFields map[string]interface{}) {
	if LoggerInstance == nil || message == "" {
		return
	}
	emit(logrus.WarnLevel, logrus.Fields{
		"type":        "warn",
		"request_id":  requestID,
		"agent_token": utils.MaskToken(agentToken),
		"client_ip":   clientIP,
		"path":        path,
		"method":      method,
	}, extraFields, message)
}

// LogSystemEvent 记录系统事件 (启动、停止、配置重载等)
func LogSystemEvent(component, event, message string, level LogLevel, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}
	lv := toLogrusLevel(level)
	emit(lv, logrus.Fields{
		"type":      SystemLog,
		"component": component,
		"event":     event,
		"detail":    message,
		"level":     lv.String(),
	}, extraFields, fmt.Sprintf("System event: %s - %s", component, event))
}

// LogCommandOperation 记录单条命令在邮件队列中的流转
// action: translate / send / answer / orphan / expire / execute
// result: success / failed / dropped
func LogCommandOperation(correlationID, commandType, agentToken, action, result, message string, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}
	level := logrus.DebugLevel
	switch result {
	case "failed":
		level = logrus.ErrorLevel
	case "dropped":
		level = logrus.WarnLevel
	}
	emit(level, logrus.Fields{
		"type":           CommandLog,
		"correlation_id": correlationID,
		"command_type":   commandType,
		"agent_token":    utils.MaskToken(agentToken),
		"action":         action,
		"result":         result,
		"detail":         message,
	}, extraFields, fmt.Sprintf("Command %s %s: %s", action, result, commandType))
}

// LogScheduleEvent 记录指标调度事件，derivedID 为指标身份键
func LogScheduleEvent(derivedID int64, dsn, event, message string, level LogLevel, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}
	emit(toLogrusLevel(level), logrus.Fields{
		"type":       ScheduleLog,
		"derived_id": derivedID,
		"dsn":        dsn,
		"event":      event,
		"detail":     message,
	}, extraFields, fmt.Sprintf("Schedule %s: %d %s", event, derivedID, dsn))
}
