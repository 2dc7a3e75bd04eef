package config

import (
	"os"
	"strconv"
)

type Config struct {
	DB      DBConfig
	Drive   DriveConfig
	MinIO   MinIOConfig
	Session SessionConfig
	Server  ServerConfig
}

type DBConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DriveConfig locates the directory tree that mirrors the folders table.
type DriveConfig struct {
	Path string
}

// MinIOConfig configures the optional upload replica. An empty Endpoint
// disables it.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

type SessionConfig struct {
	Secret          string
	ExpirationHours int
	CookieName      string
	SecureCookie    bool
}

type ServerConfig struct {
	Port          string
	UploadLimitMB int
}

const DefaultSessionSecret = "change-me-in-production"

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Path:     getEnv("DB_PATH", "./data/opendrive.db"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "opendrive"),
			Password: getEnv("DB_PASSWORD", "opendrive_secret"),
			Name:     getEnv("DB_NAME", "opendrive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Drive: DriveConfig{
			Path: getEnv("DRIVE_PATH", "./data/drive"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "opendrive"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "opendrive_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "opendrive"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Session: SessionConfig{
			Secret:          getEnv("SESSION_SECRET", DefaultSessionSecret),
			ExpirationHours: getEnvAsInt("SESSION_EXPIRATION_HOURS", 24),
			CookieName:      getEnv("SESSION_COOKIE_NAME", "opendrive_session"),
			SecureCookie:    getEnvAsBool("SESSION_SECURE_COOKIE", false),
		},
		Server: ServerConfig{
			Port:          getEnv("SERVER_PORT", "8080"),
			UploadLimitMB: getEnvAsInt("UPLOAD_LIMIT_MB", 100),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
