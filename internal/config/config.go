package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	// MariaDB接続設定（DBNameが空ならインメモリストアで起動）
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// サーバー設定
	ServerPort string
	Env        string

	// CORS設定
	AllowedOrigins []string

	// RabbitMQ設定（空ならイベント再配信なしで起動）
	RabbitMQURI string

	// タイムアウト設定
	StoreTimeout   time.Duration
	PublishTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() Config {
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "3306"
	}

	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://127.0.0.1:3000"
	}

	cfg := Config{
		DBHost:         dbHost,
		DBPort:         dbPort,
		DBUser:         dbUser,
		DBPassword:     dbPassword,
		DBName:         dbName,
		ServerPort:     serverPort,
		Env:            env,
		AllowedOrigins: strings.Split(allowedOrigins, ","),
		RabbitMQURI:    os.Getenv("RABBITMQ_URI"),
		StoreTimeout:   durationFromEnv("STORE_TIMEOUT_MS", 5000),
		PublishTimeout: durationFromEnv("PUBLISH_TIMEOUT_MS", 2000),
	}

	for i := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
	}

	return cfg
}

// durationFromEnv reads a millisecond value with a fallback default
func durationFromEnv(key string, defaultMs int) time.Duration {
	ms := defaultMs
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			ms = parsed
		}
	}
	return time.Duration(ms) * time.Millisecond
}
