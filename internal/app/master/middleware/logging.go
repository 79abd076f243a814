/**
 * 中间件:日志相关中间件
 * @author: sun977
 * @date: 2026.03.10
 * @description: 访问日志中间件
 * @func:
 *   - GinLoggingMiddleware 生成/透传 X-Request-ID，把请求ID和客户端IP存入 gin 上下文，请求结束后写访问日志
 */
package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"neofleet/internal/pkg/logger"
	"neofleet/internal/pkg/utils"
)

const requestIDPrefix = "req"

// GinLoggingMiddleware Gin日志中间件
// 使用方式: router.Use(middlewareManager.GinLoggingMiddleware())
func (m *MiddlewareManager) GinLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 外部请求ID须为 UUID (可带 req- 前缀)，否则重新生成
		requestID := c.GetHeader(HeaderRequestID)
		if !utils.IsValidRequestID(requestID, requestIDPrefix) {
			requestID = utils.GenerateUUIDWithPrefix(requestIDPrefix)
		}
		clientIP := utils.GetClientIP(c)
		c.Set(ContextRequestID, requestID)
		c.Set(ContextClientIP, clientIP)
		c.Header(HeaderRequestID, requestID)

		c.Next()

		cfg := m.loggingConfig
		if cfg != nil && (!cfg.Enabled || inPaths(c.Request.URL.Path, cfg.SkipPaths)) {
			return
		}
		// 鉴权中间件在后面执行，这里读到的是鉴权通过后写入的令牌
		agentToken := c.GetString(ContextAgentToken)
		logger.LogAccessRequest(c, start, requestID, agentToken)

		if cfg != nil && cfg.SlowRequestThreshold > 0 {
			if d := time.Since(start); d > cfg.SlowRequestThreshold {
				logger.LogWarn(fmt.Sprintf("slow request: %s", d), requestID, agentToken, clientIP, c.Request.URL.Path, c.Request.Method, map[string]interface{}{
					"threshold_ms": cfg.SlowRequestThreshold.Milliseconds(),
					"duration_ms":  d.Milliseconds(),
				})
			}
		}
	}
}
