/**
 * Master应用程序核心逻辑
 * @author: sun977
 * @date: 2026.03.10
 * @description: 组装邮件队列、老化扫描与 HTTP 服务
 * @architecture: 配置与日志由 cmd 层初始化，App 只负责组件装配与生命周期
 */
package master

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"neofleet/internal/app/master/router"
	"neofleet/internal/app/master/setup"
	"neofleet/internal/config"
	"neofleet/internal/pkg/logger"
	"neofleet/internal/service/mailqueue"
)

// shutdownTimeout HTTP 服务优雅退出等待时间
const shutdownTimeout = 10 * time.Second

// App Master应用程序
type App struct {
	config    *config.Config
	mailQueue *setup.MailQueueModule
	server    *setup.ServerModule
}

// NewApp 创建 Master 应用
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	mq, err := setup.SetupMailQueue(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup mailqueue: %w", err)
	}
	return &App{
		config:    cfg,
		mailQueue: mq,
		server:    setup.SetupServer(cfg, mq.Handler),
	}, nil
}

// GetRouter 路由器
func (a *App) GetRouter() *router.Router {
	return a.server.Router
}

// GetService 邮件队列服务
func (a *App) GetService() *mailqueue.Service {
	return a.mailQueue.Service
}

// GetHTTPServer HTTP服务器
func (a *App) GetHTTPServer() *http.Server {
	return a.server.HTTPServer
}

// Run 阻塞运行直到 ctx 取消或任一组件失败
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.mailQueue.Sweeper.Run(gctx)
	})

	g.Go(func() error {
		logger.LogSystemEvent("master", "http_start", a.server.HTTPServer.Addr, logger.InfoLevel, map[string]interface{}{
			"tls":    a.config.Server.TLS.Enabled,
			"prefix": a.server.Router.Prefix(),
		})
		var err error
		if tls := a.config.Server.TLS; tls.Enabled {
			err = a.server.HTTPServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.HTTPServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop()
	})

	err := g.Wait()
	if cerr := a.mailQueue.Close(); cerr != nil && err == nil {
		err = cerr
	}
	logger.LogSystemEvent("master", "stopped", "", logger.InfoLevel, map[string]interface{}{
		"stats": a.mailQueue.Service.Stats(),
	})
	return err
}

// Stop 优雅关闭 HTTP 服务
func (a *App) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.HTTPServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
