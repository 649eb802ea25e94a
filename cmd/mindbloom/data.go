package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mindbloom/mindbloom/internal/bootstrap"
	"github.com/mindbloom/mindbloom/internal/dto"
	"github.com/mindbloom/mindbloom/internal/service"
	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "导出服务端全部数据为 JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, err := bootstrap.NewCore(ctx, cfg)
		if err != nil {
			return err
		}
		defer core.Close()

		snap, err := core.Services.Sync.PullAll(ctx)
		if err != nil {
			return err
		}
		out := dto.ExportDTO{
			DataDTO:    dto.DataFromSchema(snap.Moods, snap.Tasks, snap.Suggestions, snap.Quotes, snap.LastUpdated),
			ExportDate: time.Now().UTC(),
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}

		path := exportOutput
		if path == "" {
			path = fmt.Sprintf("mindbloom_data_%s.json", out.ExportDate.Format("2006-01-02"))
		}
		if path == "-" {
			_, err = os.Stdout.Write(append(b, '\n'))
			return err
		}
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return fmt.Errorf("写入导出文件失败: %w", err)
		}
		color.Green("✓ 已导出到 %s", path)
		fmt.Printf("  情绪 %d 条，任务 %d 天，建议 %d 条，寄语 %d 条\n",
			len(out.MoodData), len(out.TaskData), len(out.AISuggestions), len(out.Quotes))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "从导出文件导入数据到服务端",
	Long: `导入前校验全部记录，任何一条不合法则整体拒绝。
情绪与任务按自然键覆盖，建议与寄语为追加写入，重复导入同一文件会产生重复的建议与寄语。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取导入文件失败: %w", err)
		}
		var in dto.ExportDTO
		if err := json.Unmarshal(b, &in); err != nil {
			return fmt.Errorf("导入文件格式错误: %w", err)
		}
		recs, err := in.DataDTO.ToRecords()
		if err != nil {
			return err
		}

		ctx := context.Background()
		core, err := bootstrap.NewCore(ctx, cfg)
		if err != nil {
			return err
		}
		defer core.Close()

		res, err := core.Services.Sync.PushAll(ctx, &service.PushSnapshot{
			Moods:       recs.Moods,
			Tasks:       recs.Tasks,
			Suggestions: recs.Suggestions,
			Quotes:      recs.Quotes,
		})
		if err != nil {
			return err
		}
		color.Green("✓ 导入完成")
		fmt.Printf("  情绪 %d 条，任务 %d 天，建议 %d 条，寄语 %d 条\n", res.Moods, res.Tasks, res.Suggestions, res.Quotes)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "输出文件，- 表示标准输出")
}
