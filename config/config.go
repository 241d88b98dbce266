package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	// TrustProxyHeaders takes client addresses from X-Forwarded-For and
	// X-Real-IP. It is off unless a trusted proxy sets those headers.
	TrustProxyHeaders bool
	LogLevel          string
	LogFormat         string
	Database          DatabaseConfig
	Auth              AuthConfig
	Admin             AdminConfig
	Redis             RedisConfig
	RateLimit         RateLimitConfig
	MQ                MQConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	UseSSL       bool
	QueryTimeout time.Duration
}

// AuthConfig configures token signing and password hashing.
type AuthConfig struct {
	JWTSecret       string
	TokenTTL        time.Duration
	Issuer          string
	BcryptCost      int
	HashConcurrency int
}

// AdminConfig seeds the first administrator account.
type AdminConfig struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RedisConfig is optional; an empty Addr disables token revocation
// and login rate limiting.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type RateLimitConfig struct {
	LoginAttempts int
	Window        time.Duration
}

type MQConfig struct {
	Backend        string
	AccountChannel string
	RabbitMQ       RabbitMQConfig
	PubSub         PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

const (
	MQBackendNone     = "none"
	MQBackendRabbitMQ = "rabbitmq"
	MQBackendPubSub   = "pubsub"
	MQBackendMemory   = "memory"
)

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnvInt("DB_PORT", 5432),
		User:         getEnv("DB_USER", "mentorlink"),
		Password:     getEnv("DB_PASSWORD", "password"),
		DBName:       getEnv("DB_NAME", "mentorlink_db"),
		UseSSL:       getEnvBool("DB_SSL", false),
		QueryTimeout: getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second),
	}

	authConfig := AuthConfig{
		JWTSecret:       strings.TrimSpace(getEnv("JWT_SECRET", "")),
		TokenTTL:        getEnvDuration("JWT_TTL", 7*24*time.Hour),
		Issuer:          getEnv("JWT_ISSUER", "mentorlink"),
		BcryptCost:      getEnvInt("BCRYPT_COST", 10),
		HashConcurrency: getEnvInt("HASH_CONCURRENCY", 0),
	}

	return Config{
		ServerPort:        getEnvInt("SERVER_PORT", 8080),
		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		Database:          dbConfig,
		Auth:              authConfig,
		Admin: AdminConfig{
			Email:     getEnv("ADMIN_EMAIL", ""),
			Password:  getEnv("ADMIN_PASSWORD", ""),
			FirstName: getEnv("ADMIN_FIRST_NAME", "Admin"),
			LastName:  getEnv("ADMIN_LAST_NAME", "Mentorlink"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "mentorlink:"),
		},
		RateLimit: RateLimitConfig{
			LoginAttempts: getEnvInt("LOGIN_RATE_LIMIT", 10),
			Window:        getEnvDuration("LOGIN_RATE_WINDOW", time.Minute),
		},
		MQ: MQConfig{
			Backend:        strings.ToLower(getEnv("MQ_BACKEND", MQBackendNone)),
			AccountChannel: getEnv("MQ_ACCOUNT_CHANNEL", "account-events"),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 0),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
		if seconds, err := strconv.Atoi(strings.TrimSpace(valueStr)); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
