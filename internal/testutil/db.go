package testutil

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mindbloom/mindbloom/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenEmptyTestDB 在临时目录打开一个空的 SQLite 文件库。
// 用文件而不是 :memory:，连接池里的每个连接才能看到同一个库。
func OpenEmptyTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// OpenTestDB 打开测试库并自动迁移所有表
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := OpenEmptyTestDB(t)
	if err := db.AutoMigrate(
		&schema.SchemaVersion{},
		&schema.User{},
		&schema.MoodSample{},
		&schema.TaskSnapshot{},
		&schema.Suggestion{},
		&schema.Quote{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}
