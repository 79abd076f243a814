package setup

import (
	"fmt"
	"net/http"

	"neofleet/internal/app/master/router"
	"neofleet/internal/config"
	mqHandler "neofleet/internal/handler/mailqueue"
)

// SetupServer 初始化路由与 HTTP 服务器
func SetupServer(cfg *config.Config, handler *mqHandler.MailQueueHandler) *ServerModule {
	r := router.NewRouter(cfg, handler)
	httpServer := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}
	return &ServerModule{
		Router:     r,
		HTTPServer: httpServer,
	}
}
