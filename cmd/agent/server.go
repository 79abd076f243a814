/*
 * @author: Sun977
 * @date: 2026.03.12
 * @description: Server 模式子命令 (Agent Worker)
 */

package main

import (
	"context"
	"errors"
	"net"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"neofleet/internal/app/agent"
	"neofleet/internal/pkg/logger"
)

var (
	masterAddr string
	agentToken string
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 Agent 服务模式 (Worker)",
	Long: `以守护进程方式启动 Agent，周期性地从 Master 拉取命令、执行并回传结果，同时按调度采集指标。

可以通过命令行参数指定 Master 地址和 Agent 令牌，也可以通过配置文件指定。
命令行参数优先级高于配置文件。Master 下发 AGENT_RESTART 时在进程内重新装配 Agent。

示例:
  neofleet server --master 10.0.0.1:8081 --token agent-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]string{"AGENT_TOKEN": agentToken}
		if masterAddr != "" {
			host, port, err := net.SplitHostPort(masterAddr)
			if err != nil {
				return err
			}
			overrides["MASTER_ADDRESS"] = host
			overrides["MASTER_PORT"] = port
		}
		return runServer(overrides)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&masterAddr, "master", "", "Master 节点地址 (e.g. 127.0.0.1:8081)")
	serverCmd.Flags().StringVar(&agentToken, "token", "", "Agent 令牌，不能包含 '#'")
}

func runServer(overrides map[string]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		cfg, loader, err := loadConfig(overrides)
		if err != nil {
			return err
		}
		app, err := agent.NewApp(cfg, loader.GetConfigPath())
		if err != nil {
			return err
		}
		pterm.Info.Printfln("NeoFleet agent %s polling %s", cfg.Agent.Token, cfg.Master.BaseURL())

		err = app.Run(ctx)
		if errors.Is(err, agent.ErrRestartRequested) && ctx.Err() == nil {
			pterm.Warning.Println("restart requested by master, reloading")
			logger.Warnf("agent %s restarting, reloading config from %s", cfg.Agent.Name, loader.GetConfigPath())
			continue
		}
		return err
	}
}
