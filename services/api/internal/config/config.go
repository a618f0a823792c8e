package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location for the api service.
const ConfigPath = "config.yaml"

// Storage backends for pet photos.
const (
	StorageDisk  = "disk"
	StorageMinio = "minio"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	TokenSecret string `yaml:"tokenSecret"`
	TokenIssuer string `yaml:"tokenIssuer"`
	TokenTTL    string `yaml:"tokenTTL"`
	TokenLeeway string `yaml:"tokenLeeway"`

	DatabaseURL     string `yaml:"databaseURL"`
	DBMaxOpenConns  int    `yaml:"dbMaxOpenConns"`
	DBMaxIdleConns  int    `yaml:"dbMaxIdleConns"`
	DBConnMaxLife   string `yaml:"dbConnMaxLifetime"`
	RedisAddr       string `yaml:"redisAddr"`
	RedisPassword   string `yaml:"redisPassword"`
	RateLimitPrefix string `yaml:"rateLimitPrefix"`

	RateLimitPerMinute int      `yaml:"rateLimitPerMinute"`
	MaxUploadBytes     int64    `yaml:"maxUploadBytes"`
	AllowedFileTypes   []string `yaml:"allowedFileTypes"`

	StorageBackend string `yaml:"storageBackend"`
	PhotoDir       string `yaml:"photoDir"`
	PhotoPublic    string `yaml:"photoPublicPrefix"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	MinioPublicURL string `yaml:"minioPublicURL"`

	QueueStream string `yaml:"queueStream"`
	QueueGroup  string `yaml:"queueGroup"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.TokenSecret = v
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		cfg.TokenTTL = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.StorageBackend = v
	}
	if v := os.Getenv("PHOTO_DIR"); v != "" {
		cfg.PhotoDir = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 60
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 5 * 1024 * 1024
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = StorageDisk
	}
	if cfg.PhotoDir == "" {
		cfg.PhotoDir = "static/pets"
	}
	if cfg.PhotoPublic == "" {
		cfg.PhotoPublic = "/static/pets"
	}
	if cfg.RateLimitPrefix == "" {
		cfg.RateLimitPrefix = "rate_limit"
	}
	if cfg.QueueStream == "" {
		cfg.QueueStream = "petsphere:notifications"
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = "notifiers"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for rate limiting")
	}
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return errors.New("config: tokenSecret is required (set SECRET_KEY)")
	}
	if cfg.RateLimitPerMinute < 0 {
		return errors.New("config: rateLimitPerMinute must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	switch cfg.StorageBackend {
	case StorageDisk:
	case StorageMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint and minioBucket are required for minio storage")
		}
	default:
		return fmt.Errorf("config: unknown storageBackend %q", cfg.StorageBackend)
	}
	return nil
}

// ParseTokenTTL parses optional access-token TTL duration string.
func ParseTokenTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid tokenTTL duration: %w", err)
	}
	return dur, nil
}

// ParseTokenLeeway parses optional verification leeway duration string.
func ParseTokenLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid tokenLeeway duration: %w", err)
	}
	return dur, nil
}

// ParseConnMaxLifetime parses optional DB connection lifetime string.
func ParseConnMaxLifetime(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid dbConnMaxLifetime duration: %w", err)
	}
	return dur, nil
}
