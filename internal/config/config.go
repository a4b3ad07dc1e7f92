package config

import (
	"time"

	"github.com/eygar/service-booking/pkg/config"
)

// AuthConfig describes the remote identity service used to verify bearer tokens.
type AuthConfig struct {
	BaseURL    string
	VerifyPath string
	MePath     string
	Timeout    time.Duration
	CacheTTL   time.Duration
	CacheSize  int
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port             string
	AppEnv           string
	PublicBaseURL    string
	QRCodeDir        string
	RateLimit        string
	CORSOrigins      []string
	LogFile          string
	RedisURL         string
	ServiceJWTSecret string
	DBConfig         config.DatabaseConfig
	KafkaConfig      config.KafkaConfig
	AuthConfig       AuthConfig
}

// Load reads configuration from BOOKING_* environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("BOOKING")
	if err != nil {
		return nil, err
	}

	v.SetDefault("DB_NAME", "bookings")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3007")
	v.SetDefault("QRCODE_DIR", "static/qrcodes")
	v.SetDefault("RATE_LIMIT", "300-M")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("AUTH_BASE_URL", "http://127.0.0.1:8000")
	v.SetDefault("AUTH_VERIFY_PATH", "/api/v1/auth/token/verify/")
	v.SetDefault("AUTH_ME_PATH", "/api/v1/auth/me/")
	v.SetDefault("AUTH_CACHE_SIZE", 5000)

	return &ServiceConfig{
		Port:             config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:           config.GetAppEnv(v),
		PublicBaseURL:    v.GetString("PUBLIC_BASE_URL"),
		QRCodeDir:        v.GetString("QRCODE_DIR"),
		RateLimit:        v.GetString("RATE_LIMIT"),
		CORSOrigins:      config.GetList(v, "CORS_ORIGINS"),
		LogFile:          v.GetString("LOG_FILE"),
		RedisURL:         v.GetString("REDIS_URL"),
		ServiceJWTSecret: v.GetString("SERVICE_JWT_SECRET"),
		DBConfig:         config.LoadDatabaseConfig(v, "DB_NAME"),
		KafkaConfig:      config.LoadKafkaConfig(v),
		AuthConfig: AuthConfig{
			BaseURL:    v.GetString("AUTH_BASE_URL"),
			VerifyPath: v.GetString("AUTH_VERIFY_PATH"),
			MePath:     v.GetString("AUTH_ME_PATH"),
			Timeout:    config.GetDuration(v, "AUTH_TIMEOUT", 2500*time.Millisecond),
			CacheTTL:   config.GetDuration(v, "AUTH_CACHE_TTL", 15*time.Second),
			CacheSize:  v.GetInt("AUTH_CACHE_SIZE"),
		},
	}, nil
}
