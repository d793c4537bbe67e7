package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Database pool. A turn holds a connection only for its single append
	// transaction, so a small pool covers many chats.
	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"8"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`

	// Language model
	LLMProvider     string `env:"LLM_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	GeminiModel     string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	OpenRouterKey   string `env:"OPENROUTER_API_KEY"`
	OpenRouterModel string `env:"OPENROUTER_MODEL" envDefault:"z-ai/glm-4.5-air:free"`
	OpenRouterURL   string `env:"OPENROUTER_API_URL" envDefault:"https://openrouter.ai/api/v1"`
	Classifier      string `env:"CLASSIFIER" envDefault:"chain"`
	SystemPrompt    string `env:"SYSTEM_PROMPT" envDefault:"You are a helpful assistant. Answer in markdown."`

	// Data sources
	WeatherAPIKey string `env:"WEATHER_API_KEY"`
	WeatherURL    string `env:"WEATHER_API_URL" envDefault:"https://api.openweathermap.org/data/2.5"`
	NewsAPIKey    string `env:"NEWS_API_KEY"`
	NewsURL       string `env:"NEWS_API_URL" envDefault:"https://newsapi.org/v2"`
	TrainURL      string `env:"TRAIN_API_URL" envDefault:"https://api.deutschebahn.com/timetables/v1"`
	TrainClientID string `env:"TRAIN_CLIENT_ID"`
	TrainAPIKey   string `env:"TRAIN_API_KEY"`

	// Server (metrics)
	Port int `env:"PORT" envDefault:"3000"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Telegram logging
	LogTelegramChatID int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int   `env:"LOG_TOPIC_ERROR"`
	LogTopicNewChat   int   `env:"LOG_TOPIC_NEW_CHAT"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderOpenRouter:
		if c.OpenRouterKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required for provider %q", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", c.DBMinConns)
	}

	switch c.Classifier {
	case ClassifierKeyword, ClassifierModel, ClassifierChain:
	default:
		return fmt.Errorf("unknown CLASSIFIER %q", c.Classifier)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
