package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "ENCYCLOPEDIA_CONFIG"
)

// Config holds high-level settings required across the application.
type Config struct {
	HTTP          HTTPConfig         `yaml:"http"`
	Database      DatabaseConfig     `yaml:"database"`
	Logging       LoggingConfig      `yaml:"logging"`
	Auth          AuthConfig         `yaml:"auth"`
	Generation    GenerationConfig   `yaml:"generation"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Ollama        OllamaConfig       `yaml:"ollama"`
	ML            MLConfig           `yaml:"ml"`
	Redis         RedisConfig        `yaml:"redis"`
	S3            S3Config           `yaml:"s3"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
}

// DatabaseConfig selects the store. Driver is postgres, sqlite or memory.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuthConfig verifies bearer tokens issued by the identity provider.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
}

// GenerationConfig sets batch defaults and the retry schedule.
type GenerationConfig struct {
	Backend           string        `yaml:"backend"`
	MaxRetriesPerItem int           `yaml:"maxRetriesPerItem"`
	RetryDelay        time.Duration `yaml:"retryDelay"`
	FailureDelay      time.Duration `yaml:"failureDelay"`
	MinWords          int           `yaml:"minWords"`
	MaxWords          int           `yaml:"maxWords"`
}

// ChatGPTConfig defines how to contact an OpenAI-compatible API.
type ChatGPTConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// OllamaConfig points at a local Ollama daemon.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// MLConfig describes the category classification service.
type MLConfig struct {
	InferenceURL string `yaml:"inferenceUrl"`
	APIKey       string `yaml:"apiKey"`
}

// RedisConfig enables the slug cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// S3Config enables image uploads when Bucket is set.
type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	AccessKey    string `yaml:"accessKey"`
	SecretKey    string `yaml:"secretKey"`
	PublicURL    string `yaml:"publicUrl"`
	UsePathStyle bool   `yaml:"usePathStyle"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   int64  `yaml:"chatId"`
}

// SchedulerConfig defines recurring generation batches.
type SchedulerConfig struct {
	Timezone string         `yaml:"timezone"`
	Jobs     []JobConfig    `yaml:"jobs"`
	location *time.Location `yaml:"-"`
}

// JobConfig is one recurring batch.
type JobConfig struct {
	Name              string   `yaml:"name"`
	Cron              string   `yaml:"cron"`
	Topics            []string `yaml:"topics"`
	Count             int      `yaml:"count"`
	MinWords          int      `yaml:"minWords"`
	MaxWords          int      `yaml:"maxWords"`
	MaxRetriesPerItem int      `yaml:"maxRetriesPerItem"`
	RequesterID       string   `yaml:"requesterId"`
	RequesterName     string   `yaml:"requesterName"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// envOverrides are the secrets and endpoints that deployments set through the
// environment rather than the YAML file.
type envOverrides struct {
	HTTPAddr       string `envconfig:"HTTP_ADDR"`
	DatabaseDriver string `envconfig:"DATABASE_DRIVER"`
	DatabaseDSN    string `envconfig:"DATABASE_DSN"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
	JWTSecret      string `envconfig:"JWT_SECRET"`
	ChatGPTAPIKey  string `envconfig:"CHATGPT_API_KEY"`
	ChatGPTModel   string `envconfig:"CHATGPT_MODEL"`
	OllamaHost     string `envconfig:"OLLAMA_HOST"`
	RedisAddr      string `envconfig:"REDIS_ADDR"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`
	TelegramToken  string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := cfg.merge(raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// merge decodes raw over the current values; keys absent from raw keep theirs.
func (c *Config) merge(raw []byte) error {
	merged := *c
	if err := yaml.Unmarshal(raw, &merged); err != nil {
		return err
	}
	*c = merged
	return nil
}

func (c *Config) applyEnvOverrides() {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		log.Printf("config: cannot read environment: %v", err)
		return
	}

	setString(&c.HTTP.Addr, env.HTTPAddr)
	setString(&c.Database.Driver, env.DatabaseDriver)
	setString(&c.Database.DSN, env.DatabaseDSN)
	setString(&c.Logging.Level, env.LogLevel)
	setString(&c.Auth.JWTSecret, env.JWTSecret)
	setString(&c.ChatGPT.APIKey, env.ChatGPTAPIKey)
	setString(&c.ChatGPT.Model, env.ChatGPTModel)
	setString(&c.Ollama.Host, env.OllamaHost)
	setString(&c.Redis.Addr, env.RedisAddr)
	setString(&c.Redis.Password, env.RedisPassword)
	setString(&c.S3.AccessKey, env.S3AccessKey)
	setString(&c.S3.SecretKey, env.S3SecretKey)
	setString(&c.Notifications.Telegram.BotToken, env.TelegramToken)
	if env.TelegramChatID != 0 {
		c.Notifications.Telegram.ChatID = env.TelegramChatID
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  5 << 20,
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:encyclopedia.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Generation: GenerationConfig{
			Backend:           "chatgpt",
			MaxRetriesPerItem: 3,
			RetryDelay:        time.Second,
			FailureDelay:      2 * time.Second,
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You write neutral, well-sourced encyclopedia articles.",
			Timeout:      60 * time.Second,
		},
		Ollama:    OllamaConfig{Host: "http://127.0.0.1:11434", Model: "llama3.1"},
		Redis:     RedisConfig{TTL: time.Hour},
		S3:        S3Config{Region: "us-east-1"},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone, location: tz},
	}
}
