/**
 * 路由:邮件队列路由
 * @author: sun977
 * @date: 2026.03.10
 * @description: Agent 拉取/回传接口与运维下发接口
 */
package router

import (
	"github.com/gin-gonic/gin"
)

func (r *Router) setupMailQueueRoutes(v1 *gin.RouterGroup) {
	// Agent 接口: 令牌鉴权 + 限流
	agentGroup := v1.Group("/mailqueue/:token")
	agentGroup.Use(r.middlewareManager.GinAgentAuthMiddleware())
	agentGroup.Use(r.middlewareManager.GinRateLimitMiddleware())
	{
		agentGroup.GET("/commands", r.mailQueueHandler.FetchCommands)
		agentGroup.POST("/results", r.mailQueueHandler.PushResults)
		agentGroup.POST("/measurements", r.mailQueueHandler.PushMeasurements)
	}

	// 运维接口
	opGroup := v1.Group("/mailqueue/:token")
	opGroup.Use(r.middlewareManager.GinOperatorAuthMiddleware())
	{
		opGroup.POST("/enqueue", r.mailQueueHandler.EnqueueCommands)
		opGroup.GET("/pending", r.mailQueueHandler.GetPending)
	}
}

func (r *Router) setupFleetRoutes(v1 *gin.RouterGroup) {
	fleetGroup := v1.Group("/fleet")
	fleetGroup.Use(r.middlewareManager.GinOperatorAuthMiddleware())
	{
		fleetGroup.GET("/agents", r.mailQueueHandler.ListAgents)
		fleetGroup.GET("/stats", r.mailQueueHandler.GetStats)
	}
}
