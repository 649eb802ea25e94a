package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// DefaultConfigPath 默认配置文件位置（相对工作目录）
func DefaultConfigPath() string {
	return filepath.Join("config", "config.yaml")
}

func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg 不能为空")
	}
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	payload := map[string]any{
		"app": map[string]any{
			"name":      cfg.App.Name,
			"log_level": cfg.App.LogLevel,
		},
		"server": map[string]any{
			"host":        cfg.Server.Host,
			"port":        cfg.Server.Port,
			"cors_origin": cfg.Server.CORSOrigin,
		},
		"database": map[string]any{
			"driver":         cfg.Database.Driver,
			"path":           cfg.Database.Path,
			"host":           cfg.Database.Host,
			"port":           cfg.Database.Port,
			"user":           cfg.Database.User,
			"password":       cfg.Database.Password,
			"name":           cfg.Database.Name,
			"max_open_conns": cfg.Database.MaxOpenConns,
		},
		"ai": map[string]any{
			"provider":    cfg.AI.Provider,
			"api_key":     cfg.AI.APIKey,
			"base_url":    cfg.AI.BaseURL,
			"model":       cfg.AI.Model,
			"temperature": cfg.AI.Temperature,
			"max_tokens":  cfg.AI.MaxTokens,
		},
		"schedule": map[string]any{
			"time": cfg.Schedule.Time,
		},
		"auth": map[string]any{
			"default_username": cfg.Auth.DefaultUsername,
			"default_password": cfg.Auth.DefaultPassword,
			"jwt_secret":       cfg.Auth.JWTSecret,
			"require_token":    cfg.Auth.RequireToken,
		},
		"client": map[string]any{
			"api_url":   cfg.Client.APIURL,
			"cache_dir": cfg.Client.CacheDir,
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
