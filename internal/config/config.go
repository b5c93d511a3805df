package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "change-me-in-production"

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// SessionConfig 定义会话级邮件存储的配置
type SessionConfig struct {
	TTL             time.Duration // 会话空闲过期时间，默认 2 小时
	MaxSessions     int           // 同时存在的最大会话数，0 表示不限制
	CleanupInterval time.Duration // 过期会话清理间隔，默认 5 分钟
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// JWTConfig 定义会话令牌配置
type JWTConfig struct {
	Secret string        // 签名密钥，必须至少 32 字符
	Issuer string        // 签发者标识，默认 "inbox"
	Expiry time.Duration // 令牌有效期，默认与会话 TTL 一致
}

// RateLimitConfig 定义按客户端 IP 的请求限流
type RateLimitConfig struct {
	RequestsPerSecond float64 // 每秒允许的请求数，<=0 表示关闭限流
	Burst             int     // 突发请求数
}

// Config 是系统核心配置的根结构体
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	CORS      CORSConfig
	Log       LogConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: INBOX_
// 例如: INBOX_SERVER_PORT, INBOX_JWT_SECRET
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("inbox")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.cleanup_interval", "5m")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.issuer", "inbox")
	v.SetDefault("jwt.expiry", "")
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	sessionTTL, err := time.ParseDuration(v.GetString("session.ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid session.ttl: %w", err)
	}

	cleanupInterval, err := time.ParseDuration(v.GetString("session.cleanup_interval"))
	if err != nil || cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	maxSessions := v.GetInt("session.max_sessions")
	if maxSessions < 0 {
		maxSessions = 0
	}

	// 令牌有效期未配置时跟随会话 TTL
	jwtExpiry := sessionTTL
	if raw := v.GetString("jwt.expiry"); raw != "" {
		jwtExpiry, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid jwt.expiry: %w", err)
		}
	}
	if jwtExpiry <= 0 {
		jwtExpiry = 24 * time.Hour
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	jwtSecret := v.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == defaultJWTSecret {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set INBOX_JWT_SECRET environment variable")
	}

	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Session: SessionConfig{
			TTL:             sessionTTL,
			MaxSessions:     maxSessions,
			CleanupInterval: cleanupInterval,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
			Issuer: v.GetString("jwt.issuer"),
			Expiry: jwtExpiry,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("rate_limit.requests_per_second"),
			Burst:             v.GetInt("rate_limit.burst"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
