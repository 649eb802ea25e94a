package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mindbloom/mindbloom/internal/pkg/config"
	"gorm.io/gorm"
)

func TestNewCoreSeedsDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "data", "mindbloom.db")
	ctx := context.Background()

	core, err := NewCore(ctx, cfg)
	if err != nil {
		t.Fatalf("NewCore error: %v", err)
	}
	defer core.Close()

	if len(core.DB.Degraded) != 0 {
		t.Fatalf("degraded=%v, want none", core.DB.Degraded)
	}
	if err := core.RequireAIConfigured(); err == nil {
		t.Fatalf("RequireAIConfigured should fail without api key")
	}

	for i := 0; i < 2; i++ {
		if err := core.Seed(ctx); err != nil {
			t.Fatalf("Seed #%d error: %v", i, err)
		}
	}
	n, err := core.Repos.Quotes.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if n != 1 {
		t.Fatalf("quotes=%d, want 1", n)
	}
	if _, err := core.Services.Auth.Verify(ctx, cfg.Auth.DefaultUsername, cfg.Auth.DefaultPassword); err != nil {
		t.Fatalf("Verify default user error: %v", err)
	}
}

func TestSeedSkipsDegradedUsersTable(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "mindbloom.db")
	ctx := context.Background()

	// 同名视图占位，建表必然失败
	pre, err := gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{})
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	if err := pre.Exec("CREATE VIEW users AS SELECT 1 AS x").Error; err != nil {
		t.Fatalf("create view error: %v", err)
	}
	if sqlDB, err := pre.DB(); err == nil {
		_ = sqlDB.Close()
	}

	core, err := NewCore(ctx, cfg)
	if err != nil {
		t.Fatalf("NewCore error: %v", err)
	}
	defer core.Close()

	if !core.DB.IsDegraded("users") {
		t.Fatalf("degraded=%v, want users", core.DB.Degraded)
	}
	if err := core.Seed(ctx); err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	n, err := core.Repos.Quotes.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if n != 1 {
		t.Fatalf("quotes=%d, want 1", n)
	}
}
