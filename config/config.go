package config

import (
	"os"
	"strconv"
	"time"
)

type MTNConfig struct {
	BaseURL           string
	SubscriptionKey   string
	APIUser           string
	APIKey            string
	TargetEnvironment string
	CallbackURL       string
}

type OrangeConfig struct {
	BaseURL        string
	MerchantKey    string
	ConsumerKey    string
	ConsumerSecret string
	ReturnURL      string
	CancelURL      string
	NotifURL       string
}

type Config struct {
	// Server configuration
	Port        string
	Environment string
	AppBaseURL  string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUUID         string

	// Gateway configuration
	MTN    MTNConfig
	Orange OrangeConfig

	// Payment configuration
	Currency        string
	VerifyInterval  time.Duration
	VerifyWindow    time.Duration
	SessionTTL      time.Duration
	OperatorKeyHash string

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),
		AppBaseURL:  getEnv("APP_BASE_URL", "http://localhost:3000"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUUID:         getEnv("PUBNUB_UUID", "eventez-payments"),

		// MTN Mobile Money collections API
		MTN: MTNConfig{
			BaseURL:           getEnv("MTN_API_BASE_URL", "https://sandbox.momodeveloper.mtn.com"),
			SubscriptionKey:   getEnv("MTN_SUBSCRIPTION_KEY", ""),
			APIUser:           getEnv("MTN_API_USER", ""),
			APIKey:            getEnv("MTN_API_KEY", ""),
			TargetEnvironment: getEnv("MTN_TARGET_ENVIRONMENT", "sandbox"),
			CallbackURL:       getEnv("MTN_CALLBACK_URL", ""),
		},

		// Orange Money web payment API
		Orange: OrangeConfig{
			BaseURL:        getEnv("ORANGE_API_BASE_URL", "https://api.orange.com"),
			MerchantKey:    getEnv("ORANGE_MERCHANT_KEY", ""),
			ConsumerKey:    getEnv("ORANGE_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("ORANGE_CONSUMER_SECRET", ""),
			ReturnURL:      getEnv("ORANGE_RETURN_URL", "http://localhost:3000/payments/return"),
			CancelURL:      getEnv("ORANGE_CANCEL_URL", "http://localhost:3000/payments/cancel"),
			NotifURL:       getEnv("ORANGE_NOTIF_URL", "http://localhost:8090/api/payments/orange/notify"),
		},

		// Payments
		Currency:        getEnv("PAYMENT_CURRENCY", "XAF"),
		VerifyInterval:  getEnvAsDuration("VERIFY_INTERVAL", "5s"),
		VerifyWindow:    getEnvAsDuration("VERIFY_WINDOW", "30s"),
		SessionTTL:      getEnvAsDuration("PAYMENT_SESSION_TTL", "10m"),
		OperatorKeyHash: getEnv("OPERATOR_KEY_HASH", ""),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
