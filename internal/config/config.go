package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	MetricsAddr string           `json:"metrics_addr"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	AI          AIConfig         `json:"ai"`
	CORS        CORSConfig       `json:"cors"`
	RateLimit   RateLimitConfig  `json:"rate_limit"`
	FileCache   FileCacheConfig  `json:"file_cache"`
	Chat        ChatConfig       `json:"chat"`
	Audit       AuditConfig      `json:"audit"`
	ExamCache   ExamCacheConfig  `json:"exam_cache"`
	S3          S3Config         `json:"s3"`
	Jobs        JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type AIConfig struct {
	Provider       string `json:"provider"`
	APIKey         string `json:"api_key"`
	UploadMIMEType string `json:"upload_mime_type"`
}

type CORSConfig struct {
	AllowOrigins []string `json:"allow_origins"`
}

type RateLimitConfig struct {
	RedisAddr        string `json:"redis_addr"`
	RedisPassword    string `json:"redis_password"`
	RedisDB          int    `json:"redis_db"`
	GeneralPerMinute int    `json:"general_per_minute"`
	ChatPerMinute    int    `json:"chat_per_minute"`
}

type FileCacheConfig struct {
	FreshnessMarginSeconds int   `json:"freshness_margin_seconds"`
	FetchTimeoutSeconds    int   `json:"fetch_timeout_seconds"`
	MaxDocumentBytes       int64 `json:"max_document_bytes"`
}

func (c FileCacheConfig) FreshnessMargin() time.Duration {
	return time.Duration(c.FreshnessMarginSeconds) * time.Second
}

func (c FileCacheConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

type ChatConfig struct {
	TimeoutSeconds int   `json:"timeout_seconds"`
	MaxBodyBytes   int64 `json:"max_body_bytes"`
}

func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type AuditConfig struct {
	QueueSize           int `json:"queue_size"`
	WriteTimeoutSeconds int `json:"write_timeout_seconds"`
}

type ExamCacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

type S3Config struct {
	Endpoint        string `json:"endpoint"`
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	UsePathStyle    bool   `json:"use_path_style"`
}

func (c S3Config) Enabled() bool {
	return c.Region != "" || c.Endpoint != ""
}

type JobsConfig struct {
	FileRefreshSpec          string `json:"file_refresh_spec"`
	FileRefreshWindowMinutes int    `json:"file_refresh_window_minutes"`
	FileRefreshBatch         int    `json:"file_refresh_batch"`
}

var defaultAllowOrigins = []string{"http://localhost:5173", "https://liutentor.se"}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnv(&cfg)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("GOOGLE_GENERATIVE_AI_API_KEY")); v != "" {
		cfg.AI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RateLimit.RedisAddr = v
	}
}

func (cfg *Config) normalize() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if strings.TrimSpace(cfg.AI.APIKey) == "" {
		return fmt.Errorf("ai.api_key is required")
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.UploadMIMEType == "" {
		cfg.AI.UploadMIMEType = "application/pdf"
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if len(cfg.CORS.AllowOrigins) == 0 {
		cfg.CORS.AllowOrigins = append([]string(nil), defaultAllowOrigins...)
	}
	if cfg.RateLimit.GeneralPerMinute == 0 {
		cfg.RateLimit.GeneralPerMinute = 200
	}
	if cfg.RateLimit.ChatPerMinute == 0 {
		cfg.RateLimit.ChatPerMinute = 10
	}
	if cfg.FileCache.FreshnessMarginSeconds == 0 {
		cfg.FileCache.FreshnessMarginSeconds = 300
	}
	if cfg.FileCache.FetchTimeoutSeconds == 0 {
		cfg.FileCache.FetchTimeoutSeconds = 60
	}
	if cfg.FileCache.MaxDocumentBytes == 0 {
		cfg.FileCache.MaxDocumentBytes = 50 << 20
	}
	if cfg.Chat.TimeoutSeconds == 0 {
		cfg.Chat.TimeoutSeconds = 120
	}
	if cfg.Chat.MaxBodyBytes == 0 {
		cfg.Chat.MaxBodyBytes = 2 << 20
	}
	if cfg.Audit.QueueSize == 0 {
		cfg.Audit.QueueSize = 256
	}
	if cfg.Audit.WriteTimeoutSeconds == 0 {
		cfg.Audit.WriteTimeoutSeconds = 5
	}
	if cfg.ExamCache.Size == 0 {
		cfg.ExamCache.Size = 512
	}
	if cfg.ExamCache.TTLSeconds == 0 {
		cfg.ExamCache.TTLSeconds = 300
	}
	if cfg.Jobs.FileRefreshSpec == "" {
		cfg.Jobs.FileRefreshSpec = "*/30 * * * *"
	}
	if cfg.Jobs.FileRefreshWindowMinutes == 0 {
		cfg.Jobs.FileRefreshWindowMinutes = 60
	}
	if cfg.Jobs.FileRefreshBatch == 0 {
		cfg.Jobs.FileRefreshBatch = 20
	}
	if cfg.S3.Enabled() && cfg.S3.Region == "" {
		cfg.S3.Region = "auto"
	}
	return nil
}
