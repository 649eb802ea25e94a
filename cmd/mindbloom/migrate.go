package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/mindbloom/mindbloom/internal/repository"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "检查并升级数据库表结构",
	Long: `逐表检查结构版本：不存在则创建，旧版本先备份再升级。
单表失败不影响其他表，失败的表在服务运行时降级。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := repository.NewDatabase(context.Background(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if db.Report == nil {
			return fmt.Errorf("未生成迁移报告")
		}

		for _, st := range db.Report.Tables {
			switch st.Action {
			case repository.ActionFailed:
				color.Red("✗ %-16s %s", st.Name, st.Err)
			case repository.ActionUpgraded:
				color.Green("✓ %-16s v%d → v%d（备份 %s）", st.Name, st.From, st.To, st.Backup)
			case repository.ActionAhead:
				color.Yellow("⚠ %-16s 数据库版本 v%d 高于程序版本 v%d，未改动", st.Name, st.From, st.To)
			default:
				color.Green("✓ %-16s %s v%d", st.Name, st.Action, st.To)
			}
		}
		if len(db.Degraded) > 0 {
			return fmt.Errorf("%d 张表迁移失败", len(db.Degraded))
		}
		return nil
	},
}
