package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Env                 string
	Port                string
	AllowedOrigin       string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	TierCacheTTLSeconds int
	AuthSecret          string
	LogLevel            string
	LogFormat           string
	DefaultTierID       string
	ReturnExpiryDays    int
	ShutdownTimeoutSecs int
}

// Load reads the configuration from the environment. A config.yaml in the
// working directory may provide the same keys; environment variables win.
func Load() Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TIER_CACHE_TTL_SECONDS", 300)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("RETURN_EXPIRY_DAYS", 180)
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 8)

	ttl := v.GetInt("TIER_CACHE_TTL_SECONDS")
	if ttl < 1 {
		ttl = 300
	}
	returnDays := v.GetInt("RETURN_EXPIRY_DAYS")
	if returnDays < 1 {
		returnDays = 180
	}
	shutdown := v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")
	if shutdown < 1 {
		shutdown = 8
	}

	return Config{
		Env:                 strings.ToLower(v.GetString("APP_ENV")),
		Port:                v.GetString("PORT"),
		AllowedOrigin:       v.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             v.GetInt("REDIS_DB"),
		TierCacheTTLSeconds: ttl,
		AuthSecret:          strings.TrimSpace(v.GetString("AUTH_SECRET")),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogFormat:           v.GetString("LOG_FORMAT"),
		DefaultTierID:       strings.TrimSpace(v.GetString("DEFAULT_TIER_ID")),
		ReturnExpiryDays:    returnDays,
		ShutdownTimeoutSecs: shutdown,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}
