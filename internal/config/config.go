package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ProSocialFlow/internal/domain"
)

const (
	defaultTimezone     = "UTC"
	configPathEnv       = "PROSOCIALFLOW_CONFIG"
	httpAddrEnv         = "HTTP_ADDR"
	logLevelEnv         = "LOG_LEVEL"
	openAIAPIKeyEnv     = "OPENAI_API_KEY"
	openAIModelEnv      = "OPENAI_MODEL"
	openAIBaseURLEnv    = "OPENAI_BASE_URL"
	historyBackendEnv   = "HISTORY_BACKEND"
	databaseDSNEnv      = "DATABASE_DSN"
	redisAddrEnv        = "REDIS_ADDR"
	redisPasswordEnv    = "REDIS_PASSWORD"
	redisDBEnv          = "REDIS_DB"
	telegramTokenEnv    = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv   = "TELEGRAM_CHAT_ID"
	defaultHistoryLimit = domain.TopicHistoryLimit
)

// History backends understood by the storage registry.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds high-level settings required across the application.
type Config struct {
	Server     ServerConfig   `yaml:"server"`
	Logging    LoggingConfig  `yaml:"logging"`
	OpenAI     OpenAIConfig   `yaml:"openai"`
	History    HistoryConfig  `yaml:"history"`
	Image      ImageConfig    `yaml:"image"`
	Sessions   SessionConfig  `yaml:"sessions"`
	Telegram   TelegramConfig `yaml:"telegram"`
	Categories []string       `yaml:"categories"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OpenAIConfig defines how to contact the chat completions API.
type OpenAIConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	Model       string        `yaml:"model"`
	VisionModel string        `yaml:"visionModel"`
	APIKey      string        `yaml:"apiKey"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
}

// HistoryConfig selects and configures the topic history store.
type HistoryConfig struct {
	Backend  string         `yaml:"backend"`
	Limit    int            `yaml:"limit"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig describes Postgres connection details.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig describes Redis connection details.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ImageConfig wires the placeholder image service and date context.
type ImageConfig struct {
	Host     string         `yaml:"host"`
	Size     int            `yaml:"size"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the image timezone string to a time.Location.
func (i ImageConfig) Location() *time.Location {
	if i.location != nil {
		return i.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// SessionConfig bounds the in-memory workflow sessions.
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// TelegramConfig wires all data required to publish posts.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether publishing is configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads the YAML file named by PROSOCIALFLOW_CONFIG (if set) and applies environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom reads YAML configuration from path (if non-empty) and applies environment overrides.
func LoadFrom(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := Parse(raw)
			if err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Categories) == 0 {
		cfg.Categories = append([]string(nil), domain.DefaultCategories...)
	}

	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, err
	}
	return fileCfg, nil
}

// Validate reports settings that cannot produce a working service.
func (c Config) Validate() error {
	var errs []error

	switch c.History.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.History.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("history.postgres.dsn is required for the postgres backend"))
		}
	case BackendRedis:
		if c.History.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("history.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown history backend %q", c.History.Backend))
	}

	for _, name := range c.Categories {
		if name == "" || strings.TrimSpace(name) != name {
			errs = append(errs, fmt.Errorf("category %q must be non-blank without leading or trailing spaces", name))
		}
	}

	if c.History.Limit <= 0 {
		errs = append(errs, fmt.Errorf("history.limit must be positive"))
	}
	if c.Image.Size <= 0 {
		errs = append(errs, fmt.Errorf("image.size must be positive"))
	}
	if strings.TrimSpace(c.Image.Host) == "" {
		errs = append(errs, fmt.Errorf("image.host is required"))
	}
	if c.OpenAI.Model == "" {
		errs = append(errs, fmt.Errorf("openai.model is required"))
	}

	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(openAIBaseURLEnv); v != "" {
		c.OpenAI.BaseURL = v
	}

	if v := os.Getenv(historyBackendEnv); v != "" {
		c.History.Backend = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.History.Postgres.DSN = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.History.Redis.Addr = v
	}

	if v := os.Getenv(redisPasswordEnv); v != "" {
		c.History.Redis.Password = v
	}

	if v := os.Getenv(redisDBEnv); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.History.Redis.DB = db
		} else {
			log.Printf("config: invalid %s=%q, keeping %d", redisDBEnv, v, c.History.Redis.DB)
		}
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Image.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Image.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if len(override.Server.AllowedOrigins) > 0 {
		base.Server.AllowedOrigins = override.Server.AllowedOrigins
	}
	if override.Server.ShutdownTimeout > 0 {
		base.Server.ShutdownTimeout = override.Server.ShutdownTimeout
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.OpenAI.BaseURL != "" {
		base.OpenAI.BaseURL = override.OpenAI.BaseURL
	}
	if override.OpenAI.Model != "" {
		base.OpenAI.Model = override.OpenAI.Model
	}
	if override.OpenAI.VisionModel != "" {
		base.OpenAI.VisionModel = override.OpenAI.VisionModel
	}
	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}
	if override.OpenAI.Timeout > 0 {
		base.OpenAI.Timeout = override.OpenAI.Timeout
	}
	if override.OpenAI.Temperature > 0 {
		base.OpenAI.Temperature = override.OpenAI.Temperature
	}

	if override.History.Backend != "" {
		base.History.Backend = strings.ToLower(override.History.Backend)
	}
	if override.History.Limit > 0 {
		base.History.Limit = override.History.Limit
	}
	if override.History.Postgres.DSN != "" {
		base.History.Postgres = override.History.Postgres
	}
	if override.History.Redis.Addr != "" {
		base.History.Redis.Addr = override.History.Redis.Addr
		base.History.Redis.Password = override.History.Redis.Password
		base.History.Redis.DB = override.History.Redis.DB
	}
	if override.History.Redis.Prefix != "" {
		base.History.Redis.Prefix = override.History.Redis.Prefix
	}

	if override.Image.Host != "" {
		base.Image.Host = override.Image.Host
	}
	if override.Image.Size > 0 {
		base.Image.Size = override.Image.Size
	}
	if override.Image.Timezone != "" {
		base.Image.Timezone = override.Image.Timezone
	}

	if override.Sessions.IdleTimeout > 0 {
		base.Sessions.IdleTimeout = override.Sessions.IdleTimeout
	}
	if override.Sessions.SweepInterval > 0 {
		base.Sessions.SweepInterval = override.Sessions.SweepInterval
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.ChatID != "" {
		base.Telegram.ChatID = override.Telegram.ChatID
	}

	if len(override.Categories) > 0 {
		base.Categories = override.Categories
	}

	return base
}

// Default returns the built-in configuration without file or environment overrides.
func Default() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			VisionModel: "gpt-4o-mini",
			Timeout:     60 * time.Second,
		},
		History: HistoryConfig{
			Backend: BackendMemory,
			Limit:   defaultHistoryLimit,
			Redis:   RedisConfig{Prefix: "topic_history"},
		},
		Image: ImageConfig{
			Host:     "picsum.photos",
			Size:     512,
			Timezone: defaultTimezone,
			location: tz,
		},
		Sessions: SessionConfig{
			IdleTimeout:   2 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Categories: append([]string(nil), domain.DefaultCategories...),
	}
}
