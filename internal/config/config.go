package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Chat     ChatConfig
	Admin    AdminConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	AnalyticsLogPath   string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	SessionStore       string // "memory" or "redis"
	SessionTTL         time.Duration
}

type DatabaseConfig struct {
	Driver     string // "sqlite" or "postgres"
	Connection string
}

type ChatConfig struct {
	Provider          string // "dify" or "ollama"
	BaseURL           string
	OllamaBaseURL     string
	APIKey            string
	Model             string
	ReadTimeout       time.Duration
	SuggestionTimeout time.Duration
	PromptInstruction string
}

type AdminConfig struct {
	Password  string
	JWTSecret string
	TokenTTL  time.Duration
}

// DefaultPromptInstruction asks the service to answer in Thai.
const DefaultPromptInstruction = "\n\n(คำสั่ง: กรุณาตอบเป็นภาษาไทยเท่านั้น)"

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			AnalyticsLogPath:   getEnv("ANALYTICS_LOG_PATH", "analytics.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			SessionStore:       strings.ToLower(getEnv("SESSION_STORE", "memory")),
			SessionTTL:         getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Connection: getEnv("DB_CONNECTION_STRING", "chat_logs.db"),
		},
		Chat: ChatConfig{
			Provider:          strings.ToLower(getEnv("CHAT_PROVIDER", "dify")),
			BaseURL:           getEnv("DIFY_API_URL", "https://api.dify.ai/v1"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			APIKey:            getEnv("DIFY_API_KEY", ""),
			Model:             getEnv("CHAT_MODEL", "qwen3"),
			ReadTimeout:       getEnvAsDuration("CHAT_READ_TIMEOUT", 60*time.Second),
			SuggestionTimeout: getEnvAsDuration("CHAT_SUGGESTION_TIMEOUT", 10*time.Second),
			PromptInstruction: getEnv("CHAT_PROMPT_INSTRUCTION", DefaultPromptInstruction),
		},
		Admin: AdminConfig{
			Password:  getEnv("ADMIN_PASSWORD", "admin"),
			JWTSecret: getEnv("JWT_SECRET", "change-me"),
			TokenTTL:  getEnvAsDuration("ADMIN_TOKEN_TTL", 8*time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs := getEnvAsInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// ProviderBaseURL is the endpoint of the selected conversation provider.
func (c ChatConfig) ProviderBaseURL() string {
	if c.Provider == "ollama" {
		return c.OllamaBaseURL
	}
	return c.BaseURL
}
