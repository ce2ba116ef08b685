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
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string
	JWTSecret  string
	ServerPort string
	LogMode    string

	CORSOrigins string
	RedisAddr   string

	TrashRetention     time.Duration
	TrashPurgeInterval time.Duration

	AdminEmail    string
	AdminPassword string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	return &Config{
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", "postgres"),
		DBName:             getEnv("DB_NAME", "life_lessons"),
		DBPath:             getEnv("DB_PATH", "life_lessons.db"),
		JWTSecret:          getEnv("JWT_SECRET", "secret"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		LogMode:            getEnv("LOG_MODE", "development"),
		CORSOrigins:        getEnv("CORS_ORIGINS", "*"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		TrashRetention:     time.Duration(getEnvInt("TRASH_RETENTION_DAYS", 30)) * 24 * time.Hour,
		TrashPurgeInterval: getEnvDuration("TRASH_PURGE_INTERVAL", 0),
		AdminEmail:         getEnv("ADMIN_EMAIL", ""),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return defaultValue
	}
	return i
}

// getEnvDuration accepts Go durations ("6h") and bare seconds ("3600").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
