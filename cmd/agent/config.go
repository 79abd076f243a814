package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "配置相关操作",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "输出合并后的生效配置 (敏感字段打码)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loader, err := loadConfig(nil)
			if err != nil {
				return err
			}
			out, err := cfg.Dump()
			if err != nil {
				return err
			}
			if path := loader.GetConfigPath(); path != "" {
				pterm.Info.Printfln("config file: %s", path)
			} else {
				pterm.Info.Println("no config file found, using defaults and environment")
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	})
	return cmd
}

func init() {
	rootCmd.AddCommand(newConfigCmd())
}
