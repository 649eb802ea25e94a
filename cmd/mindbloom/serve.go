package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/mindbloom/mindbloom/internal/bootstrap"
	"github.com/mindbloom/mindbloom/internal/httpapi"
	"github.com/mindbloom/mindbloom/internal/pkg/buildinfo"
	"github.com/mindbloom/mindbloom/internal/pkg/config"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务与每日定时生成",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// 配置文件变更时只重新设置定时任务，其余配置需重启生效
		reload := make(chan config.ScheduleConfig, 1)
		watched, err := config.LoadWatched(cfgFile, func(next *config.Config) {
			select {
			case reload <- next.Schedule:
			default:
			}
		})
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		cfg = watched

		core, err := bootstrap.NewCore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("初始化失败: %w", err)
		}
		defer core.Close()

		// 默认数据只是便利项，失败时照常提供服务
		if err := core.Seed(ctx); err != nil {
			slog.Error("初始化默认数据失败，继续启动", "error", err)
		}

		if err := core.Services.Scheduler.Reschedule(cfg.Schedule); err != nil {
			return err
		}
		core.Services.Scheduler.Start()

		router := httpapi.NewRouter(httpapi.Deps{
			Sync:        core.Services.Sync,
			Suggestions: core.Services.Suggestions,
			Auth:        core.Services.Auth,
			Schedule:    core.Services.Scheduler,
			Hub:         core.Hub,
			Degraded:    core.DB.Degraded,
			Version:     buildinfo.Version,
		}, httpapi.Options{
			CORSOrigin:   cfg.Server.CORSOrigin,
			RequireToken: cfg.Auth.RequireToken,
		})

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr()
		}
		srv, err := httpapi.Start(ctx, addr, router)
		if err != nil {
			return err
		}
		slog.Info("MindBloom 服务已启动", "addr", srv.Addr(), "version", buildinfo.String())

	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case sc := <-reload:
				if err := core.Services.Scheduler.Reschedule(sc); err != nil {
					slog.Warn("重新设置定时任务失败", "error", err)
				}
			}
		}
		slog.Info("正在关闭...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		slog.Info("MindBloom 服务已退出")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址，默认取 server.host:server.port")
}
