package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort string

	JWTSecret string

	RedisURL             string
	RealtimeRedisChannel string

	// RealtimeAllowedOrigins restricts browser WebSocket origins; empty allows any.
	RealtimeAllowedOrigins []string

	FCMProjectID   string
	FCMClientEmail string
	FCMPrivateKey  string

	ExpoPushEnabled bool

	WorkerCount     int
	PushConcurrency int

	LogLevel string
}

// FCMEnabled reports whether Firebase credentials were provided.
func (c *Config) FCMEnabled() bool {
	return c.FCMProjectID != "" && c.FCMClientEmail != "" && c.FCMPrivateKey != ""
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "require"
	}

	workerCount, err := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	if err != nil || workerCount <= 0 {
		workerCount = 2
	}

	pushConcurrency, err := strconv.Atoi(os.Getenv("PUSH_CONCURRENCY"))
	if err != nil || pushConcurrency <= 0 {
		pushConcurrency = 4
	}

	expoEnabled, err := strconv.ParseBool(os.Getenv("EXPO_PUSH_ENABLED"))
	if err != nil {
		expoEnabled = true
	}

	var allowedOrigins []string
	for _, origin := range strings.Split(os.Getenv("REALTIME_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins = append(allowedOrigins, origin)
		}
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  sslMode,

		ServerPort: serverPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisURL:             os.Getenv("REDIS_URL"),
		RealtimeRedisChannel: os.Getenv("REALTIME_REDIS_CHANNEL"),

		RealtimeAllowedOrigins: allowedOrigins,

		FCMProjectID:   os.Getenv("FCM_PROJECT_ID"),
		FCMClientEmail: os.Getenv("FCM_CLIENT_EMAIL"),
		FCMPrivateKey:  os.Getenv("FCM_PRIVATE_KEY"),

		ExpoPushEnabled: expoEnabled,

		WorkerCount:     workerCount,
		PushConcurrency: pushConcurrency,

		LogLevel: logLevel,
	}, nil
}
