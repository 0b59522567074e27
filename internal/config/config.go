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
	Port           string
	ChatWebhookURL string
	LeadWebhookURL string
	WebhookTimeout time.Duration

	SessionStore string // "memory" or "redis"
	RedisURL     string
	SessionTTL   time.Duration

	DBPath string
	DBDSN  string // when set, postgres is used instead of sqlite

	AllowedOrigins []string

	OpenAIAPIKey string

	PushName   string
	InstanceID string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		ChatWebhookURL: getEnv("CHAT_WEBHOOK_URL", "https://webh.procexai.tech/webhook/TizerpaLife"),
		LeadWebhookURL: getEnv("LEAD_WEBHOOK_URL", "https://webh.procexai.tech/webhook/TizerpaLife-Formulario"),
		WebhookTimeout: time.Duration(getEnvInt("WEBHOOK_TIMEOUT_MS", 120000)) * time.Millisecond,
		SessionStore:   getEnv("SESSION_STORE", "memory"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379"),
		SessionTTL:     time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		DBPath:         getEnv("DB_PATH", "./concierge.db"),
		DBDSN:          getEnv("DB_DSN", ""),
		AllowedOrigins: splitEnv("ALLOWED_ORIGINS"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		PushName:       getEnv("PUSH_NAME", "Visitante Web"),
		InstanceID:     getEnv("INSTANCE_ID", "web-client-integration"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func splitEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
