// Package config provides environment-based configuration management
package config

import (
	"fmt"
	"os"
	"strconv"
)

// DBConfig holds MySQL connection parameters
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// RedisConfig holds Redis connection parameters for the profile cache
type RedisConfig struct {
	Addr string // Format: host:port
}

// MongoConfig holds MongoDB connection parameters for the blob store
type MongoConfig struct {
	URI      string
	Database string
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Port int

	// PublicBaseURL is this instance's externally reachable base URL.
	// Relative attachment links and template header samples are rewritten
	// against it before being handed to the send API.
	PublicBaseURL string
}

// Config aggregates all configuration sections
type Config struct {
	DB    DBConfig
	Redis RedisConfig
	Mongo MongoConfig
	App   AppConfig
}

// LoadConfig reads configuration from environment variables.
// Returns an error if critical variables are missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnvAsInt("DB_PORT", 3306)
	cfg.DB.User = getEnv("DB_USER", "root")
	cfg.DB.Password = getEnv("DB_PASS", "")
	cfg.DB.Database = getEnv("DB_NAME", "whatsapp_gateway")

	if cfg.DB.Password == "" {
		return nil, fmt.Errorf("DB_PASS environment variable is required")
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")

	cfg.Mongo.URI = getEnv("MONGO_URI", "mongodb://localhost:27017")
	cfg.Mongo.Database = getEnv("MONGO_DB", "whatsapp_gateway")

	cfg.App.Port = getEnvAsInt("APP_PORT", 8080)
	cfg.App.PublicBaseURL = getEnv("PUBLIC_BASE_URL", "")

	if cfg.App.PublicBaseURL == "" {
		return nil, fmt.Errorf("PUBLIC_BASE_URL environment variable is required")
	}

	return cfg, nil
}

// GetDSN returns the MySQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// getEnv reads environment variable with fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads environment variable as integer with fallback default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
