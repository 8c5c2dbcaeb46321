package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort        string
	AppMode        string
	LogMode        string
	DBHost         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBPort         string
	RedisEnabled   bool
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	AdminJWTSecret string
	Outbox         OutboxConfig
}

type OutboxConfig struct {
	Enabled bool
	// Interval between dispatcher ticks.
	Interval  time.Duration
	BatchSize int
	// StaleProcessingAfter requeues PROCESSING events claimed longer ago than this. Zero disables it.
	StaleProcessingAfter time.Duration
	BackoffStep          time.Duration
	BackoffMax           time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:        getEnv("APP_PORT", "8080"),
		AppMode:        getEnv("APP_MODE", "debug"),
		LogMode:        getEnv("LOG_MODE", "development"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "salesflow"),
		DBPort:         getEnv("DB_PORT", "5432"),
		RedisEnabled:   getEnvAsBool("REDIS_ENABLED", true),
		RedisHost:      getEnv("REDIS_HOST", "localhost"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		Outbox: OutboxConfig{
			Enabled:              getEnvAsBool("OUTBOX_ENABLED", true),
			Interval:             time.Duration(getEnvAsInt("OUTBOX_INTERVAL_MS", 5000)) * time.Millisecond,
			BatchSize:            getEnvAsInt("OUTBOX_BATCH_SIZE", 20),
			StaleProcessingAfter: time.Duration(getEnvAsInt("OUTBOX_STALE_PROCESSING_MIN", 0)) * time.Minute,
			BackoffStep:          time.Duration(getEnvAsInt("OUTBOX_BACKOFF_STEP_SEC", 60)) * time.Second,
			BackoffMax:           time.Duration(getEnvAsInt("OUTBOX_BACKOFF_MAX_SEC", 600)) * time.Second,
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
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
