/**
 * 中间件:中间件管理器
 * @author: sun977
 * @date: 2026.03.10
 * @description: Master 端 gin 中间件的统一入口
 * @func:
 *   - GinLoggingMiddleware 访问日志 + 请求ID
 *   - GinAgentAuthMiddleware Agent 邮件队列接口鉴权
 *   - GinOperatorAuthMiddleware 运维接口鉴权
 *   - GinRateLimitMiddleware 按 Agent 令牌限流
 */
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"neofleet/internal/config"
	"neofleet/internal/model/base"
)

// gin 上下文键
const (
	ContextRequestID  = "request_id"
	ContextClientIP   = "client_ip"
	ContextAgentToken = "agent_token"

	HeaderRequestID = "X-Request-ID"
)

// MiddlewareManager 中间件管理器
type MiddlewareManager struct {
	securityConfig  *config.SecurityConfig
	loggingConfig   *config.LoggingConfig
	rateLimitConfig *config.RateLimitConfig
	limiter         *KeyedLimiter
}

// NewMiddlewareManager 创建中间件管理器，middleware 为 nil 时使用默认行为
func NewMiddlewareManager(security *config.SecurityConfig, mw *config.MiddlewareConfig) *MiddlewareManager {
	if security == nil {
		security = &config.SecurityConfig{}
	}
	m := &MiddlewareManager{securityConfig: security}
	if mw != nil {
		m.loggingConfig = mw.Logging
		m.rateLimitConfig = mw.RateLimit
	}
	if rl := m.rateLimitConfig; rl != nil && rl.Enabled {
		m.limiter = NewKeyedLimiter(rl.RequestsPerSecond, rl.BurstSize)
	}
	return m
}

// abort 以统一响应体终止请求
func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, base.APIResponse{
		Code:    code,
		Status:  base.StatusFailed,
		Message: http.StatusText(code),
		Error:   message,
	})
}

func inPaths(path string, paths []string) bool {
	for _, p := range paths {
		if path == p {
			return true
		}
	}
	return false
}
