package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mindbloom/mindbloom/internal/pkg/config"
	"github.com/spf13/cobra"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "配置文件管理",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "写出一份默认配置",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s 已存在，使用 --force 覆盖", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.WriteFile(path, config.Default()); err != nil {
			return err
		}
		color.Green("✓ 已写入 %s", path)
		fmt.Println("  AI 密钥可写入配置文件，或设置环境变量 MINDBLOOM_AI_API_KEY / QWEN_API_KEY")
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "覆盖已存在的配置文件")
	configCmd.AddCommand(configInitCmd)
}
