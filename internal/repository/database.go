package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite" // 纯 Go SQLite 驱动
	"github.com/mindbloom/mindbloom/internal/pkg/config"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database 数据库管理器，持有唯一的连接池
type Database struct {
	DB             *gorm.DB
	Driver         string
	Report         *SchemaReport
	Degraded       []string // 迁移失败的表，进程继续运行
	MigrationError string
}

// NewDatabase 创建数据库连接并执行表结构管理。
// 表结构管理失败不会返回错误：失败的表记录在 Degraded 中，其余表照常服务。
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取连接池失败: %w", err)
	}
	// 所有请求与定时任务共享同一个有界连接池，取不到连接时阻塞等待
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)

	d := &Database{DB: db, Driver: cfg.Driver}
	report, err := NewMigrator(db, ManagedTables()).EnsureSchema(ctx)
	d.Report = report
	if err != nil {
		d.Degraded = report.Failed()
		d.MigrationError = err.Error()
		slog.Error("数据库表结构管理部分失败，降级运行", "failed_tables", d.Degraded, "error", err)
	}

	slog.Info("数据库初始化完成", "driver", cfg.Driver, "max_open_conns", cfg.MaxOpenConns)
	return d, nil
}

func open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch cfg.Driver {
	case "mysql":
		db, err := gorm.Open(mysql.Open(cfg.MySQLDSN()), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
		}
		return db, nil
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("创建数据目录失败: %w", err)
			}
		}
		db, err := gorm.Open(sqlite.Open(cfg.Path), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("连接数据库失败: %w", err)
		}
		if err := configureSQLite(db); err != nil {
			return nil, fmt.Errorf("配置数据库失败: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}
}

// configureSQLite 配置 SQLite 性能参数
func configureSQLite(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // 启用 WAL 模式，支持并发读写
		"PRAGMA synchronous=NORMAL", // 平衡性能与安全
		"PRAGMA busy_timeout=5000",  // 写锁竞争时等待而不是立即失败
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("执行 %s 失败: %w", pragma, err)
		}
	}

	return nil
}

// Transaction 在一个事务中执行 fn；fn 返回错误或 panic 时整体回滚并归还连接
func (d *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.DB.WithContext(ctx).Transaction(fn)
}

// IsDegraded 表是否在启动迁移中失败
func (d *Database) IsDegraded(table string) bool {
	for _, t := range d.Degraded {
		if t == table {
			return true
		}
	}
	return false
}

// Close 关闭数据库连接
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
