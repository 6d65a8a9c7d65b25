package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	defaultJWTSecret   = "change-me-in-production"
	defaultResetSecret = "change-me-too"
	minSecretLength    = 32
)

type Config struct {
	DBUser           string
	DBPassword       string
	DBHost           string
	DBPort           string
	DBName           string
	DBMaxOpenConns   int
	DBConnectRetries int

	JWTSecret     string
	TokenTTL      time.Duration
	ResetSecret   string
	ResetTokenTTL time.Duration
	FrontendURL   string

	EmailHost     string
	EmailPort     int
	EmailUsername string
	EmailPassword string
	EmailFrom     string

	RabbitMQURL     string
	OrderExchange   string
	OrderQueue      string
	DeadLetterQueue string
	MaxPriority     int

	RedisAddr                 string
	RedisPassword             string
	LoginMaxAttempts          int
	LoginWindow               time.Duration
	RegisterMaxAttempts       int
	RegisterWindow            time.Duration
	ForgotPasswordMaxAttempts int
	ForgotPasswordWindow      time.Duration

	Port           string
	CORSOrigins    []string
	TrustedProxies []string
	LogLevel       string
	LogFormat      string
	GinMode        string
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	return &Config{
		DBUser:           getEnv("DB_USER", "ecommerce_user"),
		DBPassword:       getEnvFromFile("DB_PASSWORD_FILE", "DB_PASSWORD", ""),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "3306"),
		DBName:           getEnv("DB_NAME", "ecommerce"),
		DBMaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 10),

		JWTSecret:     getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", defaultJWTSecret),
		TokenTTL:      getEnvDuration("TOKEN_TTL", 24*time.Hour),
		ResetSecret:   getEnvFromFile("RESET_SECRET_FILE", "RESET_SECRET", defaultResetSecret),
		ResetTokenTTL: getEnvDuration("RESET_TOKEN_TTL", 30*time.Minute),
		FrontendURL:   strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),

		EmailHost:     getEnv("EMAIL_HOST", "smtp.gmail.com"),
		EmailPort:     getEnvInt("EMAIL_PORT", 587),
		EmailUsername: getEnv("EMAIL_USERNAME", ""),
		EmailPassword: getEnvFromFile("EMAIL_PASSWORD_FILE", "EMAIL_PASSWORD", ""),
		EmailFrom:     getEnv("EMAIL_FROM", ""),

		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		OrderExchange:   getEnv("ORDER_EXCHANGE", "orders_exchange"),
		OrderQueue:      getEnv("ORDER_QUEUE", "orders_queue"),
		DeadLetterQueue: getEnv("DEAD_LETTER_QUEUE", "dead_letter_queue"),
		MaxPriority:     10,

		RedisAddr:                 getEnv("REDIS_ADDR", ""),
		RedisPassword:             getEnvFromFile("REDIS_PASSWORD_FILE", "REDIS_PASSWORD", ""),
		LoginMaxAttempts:          getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:               getEnvDuration("LOGIN_WINDOW", 15*time.Minute),
		RegisterMaxAttempts:       getEnvInt("REGISTER_MAX_ATTEMPTS", 10),
		RegisterWindow:            getEnvDuration("REGISTER_WINDOW", 30*time.Minute),
		ForgotPasswordMaxAttempts: getEnvInt("FORGOT_PASSWORD_MAX_ATTEMPTS", 3),
		ForgotPasswordWindow:      getEnvDuration("FORGOT_PASSWORD_WINDOW", 10*time.Minute),

		Port: getEnv("PORT", "5000"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
			"http://localhost:3001",
			"http://localhost:3002",
		}),
		TrustedProxies: getEnvList("TRUSTED_PROXIES", nil),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		GinMode:        getEnv("GIN_MODE", "release"),
	}
}

// ValidateSecrets rejects the built-in signing secrets, short secrets and a
// shared access/reset secret in release mode. Other modes only warn.
func (c *Config) ValidateSecrets() error {
	var problems []error
	check := func(name, value, builtin string) {
		switch {
		case value == "" || value == builtin:
			problems = append(problems, fmt.Errorf("%s is not set", name))
		case len(value) < minSecretLength:
			problems = append(problems, fmt.Errorf("%s must be at least %d characters", name, minSecretLength))
		}
	}
	check("JWT_SECRET", c.JWTSecret, defaultJWTSecret)
	check("RESET_SECRET", c.ResetSecret, defaultResetSecret)
	if c.JWTSecret != "" && c.JWTSecret == c.ResetSecret {
		problems = append(problems, errors.New("JWT_SECRET and RESET_SECRET must differ"))
	}

	err := errors.Join(problems...)
	if err == nil {
		return nil
	}
	if c.GinMode != "release" {
		log.Warn().Err(err).Str("gin_mode", c.GinMode).Msg("insecure token secrets, do not use outside development")
		return nil
	}
	return err
}

// EventsEnabled reports whether a broker is configured.
func (c *Config) EventsEnabled() bool {
	return c.RabbitMQURL != ""
}

// MailEnabled reports whether SMTP credentials are complete.
func (c *Config) MailEnabled() bool {
	return c.EmailUsername != "" && c.EmailPassword != "" && c.EmailFrom != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
		log.Warn().Str("file", filePath).Msgf("could not read %s, falling back to %s", fileKey, envKey)
	}
	return getEnv(envKey, defaultValue)
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid duration, using default")
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
