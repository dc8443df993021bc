package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	SecretKey  string

	InternalSecretKey string

	RedisAddr         string
	ProductCacheTTL   time.Duration
	KafkaBrokers      []string
	NotificationTopic string
	AdminNotifyEmail  string

	CartTTL        time.Duration
	PriceTolerance decimal.Decimal
	RequestTimeout time.Duration
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    getEnv("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),
		SecretKey:  os.Getenv("SECRET_KEY"),

		InternalSecretKey: os.Getenv("INTERNAL_SECRET_KEY"),

		RedisAddr:         os.Getenv("REDIS_ADDR"),
		ProductCacheTTL:   time.Duration(getInt("PRODUCT_CACHE_TTL_SECONDS", 30)) * time.Second,
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		NotificationTopic: getEnv("NOTIFICATION_TOPIC", "storefront-notifications"),
		AdminNotifyEmail:  os.Getenv("ADMIN_NOTIFY_EMAIL"),

		CartTTL:        time.Duration(getInt("CART_TTL_HOURS", 24*30)) * time.Hour,
		PriceTolerance: getDecimal("PRICE_TOLERANCE", "0.01"),
		RequestTimeout: time.Duration(getInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDecimal(key, fallback string) decimal.Decimal {
	v := getEnv(key, fallback)
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return decimal.RequireFromString(fallback)
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
