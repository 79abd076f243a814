// agent_auth.go
// Agent 与运维接口的鉴权中间件
// Agent 接口: Authorization: Bearer <token> 必须与路径中的 :token 一致，且在 security.agent_tokens 白名单内 (白名单为空则不校验白名单)
// 运维接口: security.operator_token 非空时 Bearer 必须与之一致
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"neofleet/internal/core/command"
	"neofleet/internal/pkg/logger"
)

// GinAgentAuthMiddleware Agent 鉴权中间件
func (m *MiddlewareManager) GinAgentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		if err := command.ValidateToken(token); err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
		bearer, ok := bearerToken(c)
		if !ok || !tokenEqual(bearer, token) {
			m.logDenied(c, token, "bearer token does not match agent token")
			abort(c, http.StatusUnauthorized, "bearer token does not match agent token")
			return
		}
		if !m.agentAllowed(token) {
			m.logDenied(c, token, "agent token is not allowed")
			abort(c, http.StatusForbidden, "agent token is not allowed")
			return
		}
		c.Set(ContextAgentToken, token)
		c.Next()
	}
}

// GinOperatorAuthMiddleware 运维接口鉴权中间件
func (m *MiddlewareManager) GinOperatorAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		want := m.securityConfig.OperatorToken
		if want == "" {
			c.Next()
			return
		}
		bearer, ok := bearerToken(c)
		if !ok || !tokenEqual(bearer, want) {
			m.logDenied(c, "", "invalid operator token")
			abort(c, http.StatusUnauthorized, "invalid operator token")
			return
		}
		c.Next()
	}
}

func (m *MiddlewareManager) agentAllowed(token string) bool {
	allowed := m.securityConfig.AgentTokens
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if tokenEqual(t, token) {
			return true
		}
	}
	return false
}

func (m *MiddlewareManager) logDenied(c *gin.Context, token, reason string) {
	logger.LogWarn(reason, c.GetString(ContextRequestID), token, c.GetString(ContextClientIP), c.Request.URL.Path, c.Request.Method, map[string]interface{}{
		"func_name": "middleware.agent_auth",
	})
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

func tokenEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
