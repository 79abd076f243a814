/*
 * @author: Sun977
 * @date: 2026.03.12
 * @description: Master 模式子命令
 */

package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"neofleet/internal/app/master"
	"neofleet/internal/pkg/logger"
	"neofleet/internal/pkg/version"
)

var (
	masterPort    int
	masterBackend string
)

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "启动 Master 邮件队列服务",
	Long: `启动 Master HTTP 服务，对 Agent 提供命令拉取/结果回传接口，对运维提供命令下发接口。

邮箱后端可选 memory 或 redis。redis 后端下信封存放在 Redis，待应答记录仍在本实例内存中，
多个 Master 共用一个 Redis 时需要按 Agent 令牌固定路由。

示例:
  neofleet master --port 8081 --backend redis`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]string{"MAILQUEUE_BACKEND": masterBackend}
		if masterPort > 0 {
			overrides["SERVER_PORT"] = strconv.Itoa(masterPort)
		}
		cfg, _, err := loadConfig(overrides)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := master.NewApp(ctx, cfg)
		if err != nil {
			return err
		}
		pterm.Info.Printfln("NeoFleet master listening on %s (backend=%s)", app.GetHTTPServer().Addr, cfg.MailQueue.Backend)
		logger.Infof("master %s starting, backend=%s", version.GetVersion(), cfg.MailQueue.Backend)
		return app.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(masterCmd)

	masterCmd.Flags().IntVar(&masterPort, "port", 0, "监听端口，覆盖 server.port")
	masterCmd.Flags().StringVar(&masterBackend, "backend", "", "邮箱后端 memory/redis，覆盖 mailqueue.backend")
}
