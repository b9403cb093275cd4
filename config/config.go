package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Checkout CheckoutConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type UpstreamConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	TimeoutSeconds int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicCheckout string
	ConsumerGroup string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

type CheckoutConfig struct {
	IdempotencyTTLSeconds int
	LockStaleSeconds      int
	RedirectBaseURL       string
	RequireCSRF           bool
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	upstreamTimeout, _ := strconv.Atoi(getEnv("UPSTREAM_TIMEOUT_SECONDS", "30"))
	idempotencyTTL, _ := strconv.Atoi(getEnv("IDEMPOTENCY_TTL_SECONDS", "86400"))
	lockStale, _ := strconv.Atoi(getEnv("LOCK_STALE_SECONDS", "60"))

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Upstream: UpstreamConfig{
			BaseURL:        getEnv("WOO_BASE_URL", "http://localhost:8000"),
			ConsumerKey:    getEnv("WOO_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("WOO_CONSUMER_SECRET", ""),
			TimeoutSeconds: upstreamTimeout,
		},
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Enabled:       getEnv("KAFKA_ENABLED", "false") == "true",
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicCheckout: getEnv("KAFKA_TOPIC_CHECKOUT_EVENTS", "checkout-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "checkout-service-group"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
		Checkout: CheckoutConfig{
			IdempotencyTTLSeconds: idempotencyTTL,
			LockStaleSeconds:      lockStale,
			RedirectBaseURL:       getEnv("REDIRECT_BASE_URL", "http://localhost:3000"),
			RequireCSRF:           getEnv("REQUIRE_CSRF", "false") == "true",
		},
	}

	log.Printf("Config loaded: env=%s, port=%s", cfg.Server.Env, cfg.Server.Port)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
