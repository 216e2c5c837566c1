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
	ServiceName string

	ServerPort int
	LogLevel   string

	DatabaseURL    string
	DBMaxOpenConns int

	JWTAccessSecret []byte

	AuthHTTPURL    string
	CatalogHTTPURL string

	KafkaBrokers []string
	EventsTopic  string

	RedisAddr     string
	RedisPassword string

	GatewaySecretKey       string
	GatewaySignatureSecret []byte
	Currency               string

	ReconcileSchedule string
	ReconcileBatch    int
	ReconcileGrace    time.Duration
}

func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "fulfillment"),

		ServerPort: EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:   EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxOpenConns: EnvIntDefault("DB_MAX_OPEN_CONNS", 20),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),

		AuthHTTPURL:    os.Getenv("AUTH_URL"),
		CatalogHTTPURL: os.Getenv("CATALOG_URL"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		EventsTopic:  EnvDefault("EVENTS_TOPIC", "order_events"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		GatewaySecretKey:       os.Getenv("GATEWAY_SECRET_KEY"),
		GatewaySignatureSecret: []byte(os.Getenv("GATEWAY_SIGNATURE_SECRET")),
		Currency:               EnvDefault("CURRENCY", "inr"),

		ReconcileSchedule: EnvDefault("RECONCILE_SCHEDULE", "@every 1m"),
		ReconcileBatch:    EnvIntDefault("RECONCILE_BATCH", 50),
		ReconcileGrace:    EnvDurationDefault("RECONCILE_GRACE", 2*time.Minute),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}
