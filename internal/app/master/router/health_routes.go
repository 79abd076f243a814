/**
 * 路由:健康检查路由
 * @author: sun977
 * @date: 2026.03.10
 * @description: 健康检查、存活检查、版本信息，不需要认证
 */
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"neofleet/internal/pkg/logger"
	"neofleet/internal/pkg/version"
)

func (r *Router) setupHealthRoutes() {
	r.engine.GET("/health", r.handleHealth)
	r.engine.GET("/ping", r.handlePing)
	r.engine.GET("/version", r.handleVersion)
}

// handleHealth 健康检查处理器
func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": logger.NowFormatted(),
		"service":   "neofleet-master",
		"version":   version.GetVersion(),
	})
}

// handlePing Ping处理器
func (r *Router) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": logger.NowFormatted(),
	})
}

// handleVersion 版本信息处理器
func (r *Router) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetInfo())
}
