/*
 * @author: Sun977
 * @date: 2026.03.12
 * @description: Cobra Root Command 定义
 */

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"neofleet/internal/config"
	"neofleet/internal/pkg/logger"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "neofleet",
	Short: "NeoFleet 监控 Agent / Master",
	Long: `NeoFleet 由 Master 与一组 Agent 组成。
Master 通过邮件队列向 Agent 下发命令，Agent 周期性拉取命令、执行并回传结果，同时按调度采集指标。

示例:
  1.启动 Agent (Worker)
	neofleet server --master 10.0.0.1:8081 --token agent-01
  2.启动 Master
	neofleet master --config ./configs/config.yaml
  3.编解码调度指标记录
	neofleet record encode --dsn system:cpu.usage --interval 60000 --derived-id 1001
	neofleet record decode <base64>
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initCLIOutput()
	},
}

func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n[FATAL] neofleet crashed unexpectedly: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认: ./configs/config.<env>.yaml 或 ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (debug, info, warn, error)，覆盖配置文件")
}

// initCLIOutput --log-level 控制 pterm 的提示输出
func initCLIOutput() {
	switch logLevel {
	case "debug":
		pterm.EnableDebugMessages()
	case "warn", "error", "fatal":
		pterm.DisableDebugMessages()
		pterm.Info = *pterm.Info.WithWriter(io.Discard)
	default:
		pterm.DisableDebugMessages()
	}
}

// loadConfig 加载配置并初始化日志，命令行参数优先级最高
func loadConfig(overrides map[string]string) (*config.Config, *config.ConfigLoader, error) {
	for k, v := range overrides {
		if v != "" {
			if err := os.Setenv(config.EnvPrefix+"_"+k, v); err != nil {
				return nil, nil, err
			}
		}
	}
	if logLevel != "" {
		if err := os.Setenv(config.EnvPrefix+"_LOG_LEVEL", logLevel); err != nil {
			return nil, nil, err
		}
	}

	loader := config.NewConfigLoader(cfgFile, config.EnvPrefix)
	cfg, err := loader.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	config.SetConfig(cfg)

	if _, err := logger.InitLogger(cfg.Log); err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, loader, nil
}
