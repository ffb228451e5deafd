package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Worker    WorkerConfig
	Separator SeparatorConfig
	Analyzer  AnalyzerConfig
	Media     MediaConfig
	R2        R2Config
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	BodyLimitMB int
	CORSOrigins string
}

// IsDevelopment reports whether the server runs with development defaults.
func (c ServerConfig) IsDevelopment() bool {
	return c.Env == "development"
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// Worker backends
const (
	BackendPool  = "pool"
	BackendAsynq = "asynq"
)

type WorkerConfig struct {
	Backend     string
	Concurrency int
	QueueSize   int
}

type SeparatorConfig struct {
	ServiceURL string
	Timeout    int // seconds
	Device     string
	Model      string
	SampleRate int
	Mock       bool
}

type AnalyzerConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type MediaConfig struct {
	FFmpegPath      string
	TempDir         string
	MP3Bitrate      string
	AACBitrate      string
	OGGQuality      int
	FLACCompression int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	URLExpiry       time.Duration
}

// IsConfigured reports whether every credential needed for the archive is set.
func (c R2Config) IsConfigured() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != ""
}

type RateLimitConfig struct {
	UploadPerHour int
	MixPerMin     int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.body_limit_mb", "BODY_LIMIT_MB")
	_ = v.BindEnv("server.cors_origins", "CORS_ORIGINS")
	_ = v.BindEnv("redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("worker.backend", "WORKER_BACKEND")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = v.BindEnv("worker.queue_size", "WORKER_QUEUE_SIZE")
	_ = v.BindEnv("separator.service_url", "SEPARATOR_URL")
	_ = v.BindEnv("separator.timeout", "SEPARATOR_TIMEOUT")
	_ = v.BindEnv("separator.device", "SEPARATOR_DEVICE")
	_ = v.BindEnv("separator.model", "SEPARATOR_MODEL")
	_ = v.BindEnv("separator.sample_rate", "SEPARATOR_SAMPLE_RATE")
	_ = v.BindEnv("separator.mock", "SEPARATOR_MOCK")
	_ = v.BindEnv("analyzer.service_url", "ANALYZER_URL")
	_ = v.BindEnv("analyzer.timeout", "ANALYZER_TIMEOUT")
	_ = v.BindEnv("media.ffmpeg", "FFMPEG_PATH")
	_ = v.BindEnv("media.temp_dir", "MEDIA_TEMP_DIR")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("r2.url_expiry", "R2_URL_EXPIRY")

	setDefaults(v)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Worker.Backend {
	case BackendPool, BackendAsynq:
	default:
		return fmt.Errorf("worker.backend: unknown backend %q", c.Worker.Backend)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be at least 1, got %d", c.Worker.Concurrency)
	}
	if c.Worker.QueueSize < 0 {
		return fmt.Errorf("worker.queue_size must not be negative, got %d", c.Worker.QueueSize)
	}
	if c.Separator.SampleRate <= 0 {
		return fmt.Errorf("separator.sample_rate must be positive, got %d", c.Separator.SampleRate)
	}
	if c.Server.BodyLimitMB <= 0 {
		return fmt.Errorf("server.body_limit_mb must be positive, got %d", c.Server.BodyLimitMB)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.body_limit_mb", 500)
	v.SetDefault("server.cors_origins", "*")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("worker.backend", BackendPool)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.queue_size", 32)

	// Separator defaults: mock until a model service is configured
	v.SetDefault("separator.service_url", "")
	v.SetDefault("separator.timeout", 600)
	v.SetDefault("separator.device", "cpu")
	v.SetDefault("separator.model", "htdemucs_6s")
	v.SetDefault("separator.sample_rate", 44100)
	v.SetDefault("separator.mock", true)

	v.SetDefault("analyzer.service_url", "")
	v.SetDefault("analyzer.timeout", 60)

	v.SetDefault("media.ffmpeg", "ffmpeg")
	v.SetDefault("media.temp_dir", "")
	v.SetDefault("media.mp3_bitrate", "320k")
	v.SetDefault("media.aac_bitrate", "256k")
	v.SetDefault("media.ogg_quality", 6)
	v.SetDefault("media.flac_compression", 5)

	v.SetDefault("r2.url_expiry", time.Hour)

	v.SetDefault("ratelimit.upload_per_hour", 30)
	v.SetDefault("ratelimit.mix_per_min", 60)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Env:         v.GetString("server.env"),
			LogLevel:    v.GetString("server.log_level"),
			BodyLimitMB: v.GetInt("server.body_limit_mb"),
			CORSOrigins: v.GetString("server.cors_origins"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Worker: WorkerConfig{
			Backend:     v.GetString("worker.backend"),
			Concurrency: v.GetInt("worker.concurrency"),
			QueueSize:   v.GetInt("worker.queue_size"),
		},
		Separator: SeparatorConfig{
			ServiceURL: v.GetString("separator.service_url"),
			Timeout:    v.GetInt("separator.timeout"),
			Device:     v.GetString("separator.device"),
			Model:      v.GetString("separator.model"),
			SampleRate: v.GetInt("separator.sample_rate"),
			Mock:       v.GetBool("separator.mock"),
		},
		Analyzer: AnalyzerConfig{
			ServiceURL: v.GetString("analyzer.service_url"),
			Timeout:    v.GetInt("analyzer.timeout"),
		},
		Media: MediaConfig{
			FFmpegPath:      v.GetString("media.ffmpeg"),
			TempDir:         v.GetString("media.temp_dir"),
			MP3Bitrate:      v.GetString("media.mp3_bitrate"),
			AACBitrate:      v.GetString("media.aac_bitrate"),
			OGGQuality:      v.GetInt("media.ogg_quality"),
			FLACCompression: v.GetInt("media.flac_compression"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
			URLExpiry:       v.GetDuration("r2.url_expiry"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: v.GetInt("ratelimit.upload_per_hour"),
			MixPerMin:     v.GetInt("ratelimit.mix_per_min"),
		},
	}
}
