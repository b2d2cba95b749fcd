package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	Portal      PortalConfig
	QR          QRConfig
}

// PortalConfig holds SamaraEnergo portal connection settings
type PortalConfig struct {
	BaseURL  string
	User     string
	Password string
	Language string
	Timeout  time.Duration
	RateRPS  float64
}

// QRConfig holds QR locator thresholds
type QRConfig struct {
	MinHeight int
	RatioMin  float64
	RatioMax  float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "samaraenergo-client"),
		Portal: PortalConfig{
			BaseURL:  getEnv("SAMARAENERGO_BASE_URL", ""),
			User:     getEnv("SAMARAENERGO_USER", ""),
			Password: getEnv("SAMARAENERGO_PASSWORD", ""),
			Language: getEnv("SAMARAENERGO_LANGUAGE", "RU"),
			Timeout:  time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
			RateRPS:  getEnvAsFloat("RATE_LIMIT_RPS", 0),
		},
		QR: QRConfig{
			MinHeight: getEnvAsInt("QR_MIN_HEIGHT", 400),
			RatioMin:  getEnvAsFloat("QR_RATIO_MIN", 0.9),
			RatioMax:  getEnvAsFloat("QR_RATIO_MAX", 1.1),
		},
	}

	// Validate required fields
	if cfg.Portal.User == "" {
		return nil, fmt.Errorf("SAMARAENERGO_USER is required but not set in environment variables")
	}
	if cfg.Portal.Password == "" {
		return nil, fmt.Errorf("SAMARAENERGO_PASSWORD is required but not set in environment variables")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
