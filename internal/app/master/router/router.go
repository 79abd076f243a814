/**
 * 路由:路由管理器
 * @author: sun977
 * @date: 2026.03.10
 * @description: Master 端路由注册，统一管理中间件与处理器
 * @func:
 *   - NewRouter 创建 gin 引擎并注册全部路由
 *   - Engine    供 http.Server 与测试使用
 */
package router

import (
	"strings"

	"github.com/gin-gonic/gin"

	"neofleet/internal/app/master/middleware"
	"neofleet/internal/config"
	mqHandler "neofleet/internal/handler/mailqueue"
	"neofleet/internal/pkg/logger"
)

// Router 路由管理器
type Router struct {
	engine            *gin.Engine
	prefix            string
	middlewareManager *middleware.MiddlewareManager
	mailQueueHandler  *mqHandler.MailQueueHandler
}

// NewRouter 创建路由器；mode 为空时保持 gin 当前模式
func NewRouter(cfg *config.Config, handler *mqHandler.MailQueueHandler) *Router {
	if cfg.Server != nil && cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	prefix := "/api/v1"
	if cfg.Server != nil && cfg.Server.Prefix != "" {
		prefix = "/" + strings.Trim(cfg.Server.Prefix, "/")
	}

	r := &Router{
		engine:            gin.New(),
		prefix:            prefix,
		middlewareManager: middleware.NewMiddlewareManager(cfg.Security, cfg.Middleware),
		mailQueueHandler:  handler,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(r.middlewareManager.GinLoggingMiddleware())

	r.setupHealthRoutes()

	v1 := r.engine.Group(r.prefix)
	r.setupMailQueueRoutes(v1)
	r.setupFleetRoutes(v1)

	logger.LogSystemEvent("router", "routes_registered", r.prefix, logger.InfoLevel, map[string]interface{}{
		"routes": len(r.engine.Routes()),
	})
}

// Engine gin 引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Prefix API 前缀
func (r *Router) Prefix() string {
	return r.prefix
}
