package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置，进程启动时构建一次后按引用传给各组件
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	AI       AIConfig       `mapstructure:"ai"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Client   ClientConfig   `mapstructure:"client"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig HTTP 监听配置
type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

// DatabaseConfig 存储配置
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite | mysql
	Path         string `mapstructure:"path"`   // sqlite 文件路径
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// AIConfig 外部文本生成配置
type AIConfig struct {
	Provider    string  `mapstructure:"provider"` // openai | gemini
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ScheduleConfig 每日定时任务
type ScheduleConfig struct {
	Time string `mapstructure:"time"` // HH:MM
}

// AuthConfig 单用户凭据与会话令牌
type AuthConfig struct {
	DefaultUsername string `mapstructure:"default_username"`
	DefaultPassword string `mapstructure:"default_password"`
	JWTSecret       string `mapstructure:"jwt_secret"`
	RequireToken    bool   `mapstructure:"require_token"`
}

// ClientConfig 本地优先客户端
type ClientConfig struct {
	APIURL   string `mapstructure:"api_url"`
	CacheDir string `mapstructure:"cache_dir"`
}

// legacyEnv 兼容旧部署使用的环境变量名
var legacyEnv = map[string]string{
	"database.host":         "DB_HOST",
	"database.port":         "DB_PORT",
	"database.user":         "DB_USER",
	"database.password":     "DB_PASSWORD",
	"database.name":         "DB_NAME",
	"ai.api_key":            "QWEN_API_KEY",
	"ai.base_url":           "QWEN_API_BASE_URL",
	"ai.model":              "QWEN_MODEL",
	"ai.temperature":        "QWEN_TEMPERATURE",
	"schedule.time":         "SCHEDULE_TIME",
	"auth.default_username": "DEFAULT_USERNAME",
	"auth.default_password": "DEFAULT_PASSWORD",
	"server.cors_origin":    "CORS_ORIGIN",
	"server.host":           "HOST",
	"server.port":           "PORT",
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	cfg, _, err := load(configPath)
	return cfg, err
}

// LoadWatched 加载配置并监听配置文件变化，变化后回调新的配置
// 未找到配置文件时不监听
func LoadWatched(configPath string, onChange func(*Config)) (*Config, error) {
	cfg, v, err := load(configPath)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" || onChange == nil {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var next Config
		if err := v.Unmarshal(&next); err != nil {
			slog.Warn("重新解析配置失败", "path", e.Name, "error", err)
			return
		}
		if err := next.Validate(); err != nil {
			slog.Warn("新配置不合法，忽略本次变更", "path", e.Name, "error", err)
			return
		}
		slog.Info("配置文件已变更", "path", e.Name)
		onChange(&next)
	})
	v.WatchConfig()
	return cfg, nil
}

func load(configPath string) (*Config, *viper.Viper, error) {
	// .env 只是补充，不存在时直接使用进程环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("读取 .env 失败", "error", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MINDBLOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "MINDBLOOM_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, nil, fmt.Errorf("绑定环境变量 %s 失败: %w", legacy, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (configPath == "" && errors.Is(err, os.ErrNotExist)) {
			slog.Debug("配置文件未找到，使用默认配置与环境变量")
		} else {
			return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, v, nil
}

// Default 返回仅包含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mindbloom")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.cors_origin", "*")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/mindbloom.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "mindbloom")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("ai.model", "qwen3-max-preview")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.max_tokens", 500)

	v.SetDefault("schedule.time", "23:00")

	v.SetDefault("auth.default_username", "admin")
	v.SetDefault("auth.default_password", "mindbloom2025")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.require_token", false)

	v.SetDefault("client.api_url", "http://localhost:3000")
	v.SetDefault("client.cache_dir", "./data/client-cache")
}

// Validate 校验取值
func (c *Config) Validate() error {
	if _, _, err := ParseScheduleTime(c.Schedule.Time); err != nil {
		return err
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	switch c.AI.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("不支持的 AI 提供方: %q", c.AI.Provider)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns 必须为正数")
	}
	return nil
}

// ParseScheduleTime 解析 HH:MM
func ParseScheduleTime(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("schedule.time=%q 格式错误，应为 HH:MM", s)
	}
	hour, errH := strconv.Atoi(parts[0])
	minute, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("schedule.time=%q 超出范围", s)
	}
	return hour, minute, nil
}

// CronSpec 每日定时任务的 cron 表达式（分 时 * * *）
func (s ScheduleConfig) CronSpec() string {
	hour, minute, err := ParseScheduleTime(s.Time)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MySQLDSN 构造 MySQL 连接串
func (d DatabaseConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// SetupLogger 根据配置设置日志级别
func SetupLogger(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
