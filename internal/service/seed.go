package service

import (
	"context"
	"time"

	"github.com/mindbloom/mindbloom/internal/schema"
)

// Seed 首次启动时写入默认用户与第一条寄语，已有数据时不做任何事。
// authSvc 或 quotes 为 nil 时跳过对应部分（对应的表降级不可用）。
func Seed(ctx context.Context, authSvc *AuthService, quotes QuoteStore, username, password string) error {
	if authSvc != nil {
		if _, err := authSvc.EnsureDefault(ctx, username, password); err != nil {
			return err
		}
	}
	if quotes == nil {
		return nil
	}

	n, err := quotes.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return quotes.Create(ctx, &schema.Quote{
		Text: schema.QuotePool[0],
		Date: time.Now().UTC(),
	})
}
