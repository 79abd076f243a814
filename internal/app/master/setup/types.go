package setup

import (
	"net/http"

	"neofleet/internal/app/master/router"
	"neofleet/internal/core/command"
	mqHandler "neofleet/internal/handler/mailqueue"
	"neofleet/internal/service/mailqueue"
)

// MailQueueModule 邮件队列模块
type MailQueueModule struct {
	Translators *command.Registry
	Service     *mailqueue.Service
	Agents      *mailqueue.AgentDirectory
	Sweeper     *mailqueue.Sweeper
	Handler     *mqHandler.MailQueueHandler
	Backend     string
	closers     []func() error
}

// Close 释放后端连接
func (m *MailQueueModule) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ServerModule 服务器模块
type ServerModule struct {
	Router     *router.Router
	HTTPServer *http.Server
}
