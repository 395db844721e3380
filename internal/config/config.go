package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultNotificationPath = "/api/payment/notification"

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	AuthJWTSecret string

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Catalog   CatalogConfig
	Payment   PaymentConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Reconcile ReconcileConfig
}

// TelemetryConfig accepts the standard OTEL_* variables so collectors can be
// pointed at the service without app-specific names.
type TelemetryConfig struct {
	LogLevel         string
	LogFormat        string
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

type CatalogConfig struct {
	BaseURL        string
	APIToken       string
	TimeoutSeconds int
	CacheTTLSecs   int
}

type PaymentConfig struct {
	Provider        string
	ServerKey       string
	ClientKey       string
	Production      bool
	ConfirmStatus   bool
	NotificationURL string
	TimeoutSeconds  int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled          bool
	PurchaseRate     float64
	PurchaseBurst    int
	PurchaseKeyTTLMs int64
}

type ReconcileConfig struct {
	Enabled            bool
	IntervalSeconds    int
	StaleAfterSeconds  int
	ExpireAfterSeconds int
	BatchSize          int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "fotoyou"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      ":" + getenv("PORT", "3000"),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", getenv("JWT_SECRET", ""))),
		Telemetry: TelemetryConfig{
			LogLevel:         strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat:        strings.ToLower(getenv("LOG_FORMAT", "json")),
			Enabled:          getenvBool("OTEL_ENABLED", true),
			ExporterEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
			ExporterProtocol: strings.ToLower(getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "fotoyou"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "fotoyou.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Catalog: CatalogConfig{
			BaseURL:        strings.TrimRight(getenv("CATALOG_BASE_URL", "https://story-api.dicoding.dev/v1"), "/"),
			APIToken:       strings.TrimSpace(getenv("CATALOG_API_TOKEN", getenv("DICODING_API_TOKEN", ""))),
			TimeoutSeconds: getenvInt("CATALOG_TIMEOUT_SECONDS", 10),
			CacheTTLSecs:   getenvInt("STORY_CACHE_TTL_SECONDS", 60),
		},
		Payment: PaymentConfig{
			Provider:        strings.ToLower(getenv("PAYMENT_PROVIDER", "midtrans")),
			ServerKey:       strings.TrimSpace(getenv("MIDTRANS_SERVER_KEY", "")),
			ClientKey:       strings.TrimSpace(getenv("MIDTRANS_CLIENT_KEY", "")),
			Production:      getenvBool("MIDTRANS_PRODUCTION", false),
			ConfirmStatus:   getenvBool("MIDTRANS_CONFIRM_STATUS", true),
			NotificationURL: notificationURL(),
			TimeoutSeconds:  getenvInt("PAYMENT_TIMEOUT_SECONDS", 15),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:          getenvBool("RATE_LIMIT_ENABLED", true),
			PurchaseRate:     getenvFloat("PURCHASE_RATE_PER_SECOND", 0.2),
			PurchaseBurst:    getenvInt("PURCHASE_BURST", 5),
			PurchaseKeyTTLMs: getenvInt64("PURCHASE_RATE_KEY_TTL_MS", 10*60*1000),
		},
		Reconcile: ReconcileConfig{
			Enabled:            getenvBool("RECONCILE_ENABLED", true),
			IntervalSeconds:    getenvInt("RECONCILE_INTERVAL_SECONDS", 60),
			StaleAfterSeconds:  getenvInt("RECONCILE_STALE_AFTER_SECONDS", 15*60),
			ExpireAfterSeconds: getenvInt("RECONCILE_EXPIRE_AFTER_SECONDS", 24*60*60),
			BatchSize:          getenvInt("RECONCILE_BATCH_SIZE", 50),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func notificationURL() string {
	if explicit := strings.TrimSpace(os.Getenv("PAYMENT_NOTIFICATION_URL")); explicit != "" {
		return explicit
	}
	public := strings.TrimRight(strings.TrimSpace(os.Getenv("NGROK_PUBLIC_URL")), "/")
	if public == "" {
		return ""
	}
	return public + defaultNotificationPath
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
