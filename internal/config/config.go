package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string
	Port          string
	DatabaseURL   string
	SessionSecret string
	GinMode       string
	TemplateGlob  string

	// 心跳与考勤
	BearerToken            string
	Timezone               string
	MergeGap               time.Duration
	HeartbeatRatePerMinute int

	// 管理端认证
	JWTSecret         string
	JWTTTL            time.Duration
	SuperRootUserName string
	SuperRootPassword string
	AdminTOTPSecret   string
	AllowedOrigins    []string

	// 日志
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// 缓存，RedisAddr 为空时使用进程内缓存
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// MQTT 心跳接入，MQTTBroker 为空时不订阅
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
}

// Load 先尝试加载当前目录下的 .env，再从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	_ = godotenv.Load()

	port := envString("PORT", "8080")

	listenAddr := envString("LISTEN_ADDR", "")
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	return AppConfig{
		ListenAddr:    listenAddr,
		Port:          port,
		DatabaseURL:   envString("DATABASE_URL", "attendlog.db"),
		SessionSecret: envString("SESSION_SECRET", "attendlog-dev-secret"),
		GinMode:       envString("GIN_MODE", "release"),
		TemplateGlob:  envString("TEMPLATE_GLOB", "web/template/*.html"),

		BearerToken:            envString("BEARER_TOKEN", ""),
		Timezone:               envString("TIMEZONE", "UTC"),
		MergeGap:               envDuration("MERGE_GAP", 2*time.Minute),
		HeartbeatRatePerMinute: envInt("HEARTBEAT_RATE_PER_MINUTE", 10),

		JWTSecret:         envString("JWT_SECRET", ""),
		JWTTTL:            envDuration("JWT_TTL", 24*time.Hour),
		SuperRootUserName: envString("SUPER_ROOT_USER_NAME", ""),
		SuperRootPassword: envString("SUPER_ROOT_PASSWORD", ""),
		AdminTOTPSecret:   envString("ADMIN_TOTP_SECRET", ""),
		AllowedOrigins:    envList("ALLOWED_ORIGINS"),

		LogLevel:      strings.ToLower(envString("LOG_LEVEL", "info")),
		LogPath:       envString("LOG_PATH", ""),
		LogMaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: envInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 7),

		RedisAddr:     envString("REDIS_ADDR", ""),
		RedisPassword: envString("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),
		CacheTTL:      envDuration("CACHE_TTL", time.Hour),

		MQTTBroker:   envString("MQTT_BROKER", ""),
		MQTTTopic:    envString("MQTT_TOPIC", "attendlog/heartbeat"),
		MQTTClientID: envString("MQTT_CLIENT_ID", "attendlog-server"),
	}
}

// Location 解析配置的时区，所有日期归属都以它为准。
func (c AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
