package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs from the environment: Plaid API
// credentials, MongoDB connection details and upload settings.
type Config struct {
	Port string

	PlaidClientID    string
	PlaidSecret      string
	PlaidEnv         string
	PlaidRedirectURI string

	DBUser       string
	DBPassword   string
	DBHost       string
	DBPort       string
	DBName       string
	DBAuthSource string

	MaxUploadBytes int64
	GCSBucket      string
}

const defaultMaxUploadBytes = 16 << 20 // 16MB, matches the upload cap

// Load reads configuration from a .env file (if present) and the process
// environment. Missing optional values fall back to defaults; Validate
// reports the required ones.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load(".env")

	cfg := &Config{
		Port: getenv("PORT", "8000"),

		PlaidClientID:    os.Getenv("PLAID_CLIENT_ID"),
		PlaidSecret:      os.Getenv("PLAID_SECRET"),
		PlaidEnv:         getenv("PLAID_ENV", "sandbox"),
		PlaidRedirectURI: os.Getenv("PLAID_REDIRECT_URI"),

		DBUser:       os.Getenv("DB_USER"),
		DBPassword:   os.Getenv("DB_PASSWORD"),
		DBHost:       getenv("DB_HOST", "localhost"),
		DBPort:       getenv("DB_PORT", "27017"),
		DBName:       getenv("DB_NAME", "expenses"),
		DBAuthSource: getenv("DB_AUTH_SOURCE", "admin"),

		MaxUploadBytes: defaultMaxUploadBytes,
		GCSBucket:      os.Getenv("GCS_BUCKET"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the required settings and reports every missing variable
// by name.
func (c *Config) Validate() error {
	var missing []string
	if c.PlaidClientID == "" {
		missing = append(missing, "PLAID_CLIENT_ID")
	}
	if c.PlaidSecret == "" {
		missing = append(missing, "PLAID_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	switch strings.ToLower(c.PlaidEnv) {
	case "sandbox", "development", "production":
	default:
		return fmt.Errorf("PLAID_ENV must be one of: sandbox, development, production (got %q)", c.PlaidEnv)
	}

	return nil
}

// MongoURI builds the connection string, URL-escaping credentials so that
// special characters in passwords survive.
func (c *Config) MongoURI() string {
	if c.DBUser != "" && c.DBPassword != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=%s",
			url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword),
			c.DBHost, c.DBPort, c.DBName, c.DBAuthSource)
	}
	return fmt.Sprintf("mongodb://%s:%s/%s", c.DBHost, c.DBPort, c.DBName)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
