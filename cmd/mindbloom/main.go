package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mindbloom/mindbloom/internal/pkg/buildinfo"
	"github.com/mindbloom/mindbloom/internal/pkg/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mindbloom",
	Short: "MindBloom - 情绪与学习任务记录",
	Long: `MindBloom 记录每日焦虑/愉悦评分与任务完成情况，并定期生成学习建议与每日寄语。

服务端：
  mindbloom serve                 启动 HTTP 服务与每日定时生成
  mindbloom migrate               检查并升级数据库表结构
  mindbloom generate daily        立即生成一次建议与寄语

本地客户端：
  mindbloom client login          登录并保存会话
  mindbloom client mood 3 8       记录一次情绪（焦虑 3，愉悦 8）
  mindbloom client task 2 5       记录今天的任务（完成 2，共 5）
  mindbloom client sync           与服务端双向同步`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 这些命令不依赖配置
		switch cmd.Name() {
		case "version", "help", "init":
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		config.SetupLogger(cfg.App.LogLevel)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mindbloom", buildinfo.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(clientCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}
