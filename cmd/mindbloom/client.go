package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/mindbloom/mindbloom/internal/client"
	"github.com/spf13/cobra"
)

var (
	clientCache   *client.Cache
	clientManager *client.Manager
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "本地优先客户端",
	Long: `记录先写入本地缓存（client.cache_dir），登录后自动推送到服务端。
服务端不可达时记录保留在本地，之后用 client sync 补推。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		var err error
		clientCache, err = client.OpenCache(cfg.Client.CacheDir)
		if err != nil {
			return err
		}
		clientManager = client.NewManager(clientCache, client.NewHTTPClient(cfg.Client.APIURL))
		return clientManager.Restore()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if clientCache != nil {
			return clientCache.Close()
		}
		return nil
	},
}

func pushedNote(pushed bool) string {
	if pushed {
		return "已同步到服务端"
	}
	return "仅保存在本地"
}

func parseScores(args []string) (int, int, error) {
	a, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%q 不是整数", args[0])
	}
	b, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%q 不是整数", args[1])
	}
	return a, b, nil
}

var clientLoginCmd = &cobra.Command{
	Use:   "login <username> <password>",
	Short: "登录并保存会话",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := clientManager.Login(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		color.Green("✓ 已登录：%s", user.Username)
		return nil
	},
}

var clientLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "退出登录（本地数据保留）",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := clientManager.Logout(); err != nil {
			return err
		}
		color.Green("✓ 已退出登录")
		return nil
	},
}

var clientMoodCmd = &cobra.Command{
	Use:   "mood <anxiety> <joy>",
	Short: "记录一次情绪（1-10）",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		anxiety, joy, err := parseScores(args)
		if err != nil {
			return err
		}
		pushed, err := clientManager.SaveMood(context.Background(), anxiety, joy)
		if err != nil {
			return err
		}
		color.Green("✓ 情绪已记录：焦虑 %d，愉悦 %d（%s）", anxiety, joy, pushedNote(pushed))
		return nil
	},
}

var clientTaskCmd = &cobra.Command{
	Use:   "task <completed> <total>",
	Short: "记录今天的任务完成情况",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		completed, total, err := parseScores(args)
		if err != nil {
			return err
		}
		pushed, err := clientManager.SaveTask(context.Background(), completed, total)
		if err != nil {
			return err
		}
		color.Green("✓ 任务已记录：%d/%d（%s）", completed, total, pushedNote(pushed))
		return nil
	},
}

var clientSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "推送本地数据后拉取服务端数据",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if !clientManager.IsLoggedIn() {
			color.Yellow("⚠ 未登录，只从服务端拉取")
			data, err := clientManager.SyncFromCloud(ctx)
			if err != nil {
				return err
			}
			color.Green("✓ 已拉取：情绪 %d 条，任务 %d 天", len(data.MoodData), len(data.TaskData))
			return nil
		}
		if err := clientManager.SyncToCloud(ctx); err != nil {
			return err
		}
		color.Green("✓ 同步完成")
		return nil
	},
}

var clientExportOutput string

var clientExportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出本地数据",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := clientExportOutput
		if path == "" {
			path = clientManager.ExportFileName()
		}
		if err := clientManager.Export(path); err != nil {
			return err
		}
		color.Green("✓ 已导出到 %s", path)
		return nil
	},
}

var clientImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "用导出文件覆盖本地数据",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := clientManager.Import(args[0]); err != nil {
			return err
		}
		color.Green("✓ 导入完成，登录后执行 client sync 推送到服务端")
		return nil
	},
}

var clientCheckSuggestionCmd = &cobra.Command{
	Use:   "check-suggestion",
	Short: "距上次建议满 7 天时自动生成",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := clientManager.CheckAutoSuggestion(context.Background())
		if err != nil {
			return err
		}
		if s == nil {
			fmt.Println("距上次生成不足 7 天，跳过")
			return nil
		}
		color.Cyan("📊 %s", s.Title)
		fmt.Println(s.Content)
		return nil
	},
}

var clientQuoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "获取今日寄语",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := clientManager.GenerateQuote(context.Background())
		if err != nil {
			return err
		}
		color.Cyan("🌱 %s", q.Text)
		return nil
	},
}

func init() {
	clientExportCmd.Flags().StringVarP(&clientExportOutput, "output", "o", "", "输出文件")
	clientCmd.AddCommand(
		clientLoginCmd,
		clientLogoutCmd,
		clientMoodCmd,
		clientTaskCmd,
		clientSyncCmd,
		clientExportCmd,
		clientImportCmd,
		clientCheckSuggestionCmd,
		clientQuoteCmd,
	)
}
