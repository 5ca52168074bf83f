package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Admin    AdminConfig
	Codes    CodesConfig
	AWS      AWSConfig
	Worker   WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	ShutdownTimeout    int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:5173)
}

// StorageConfig selects where forms and registrations live.
type StorageConfig struct {
	Driver string // memory | postgres
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/eventdesk?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis:
// no code archiving and live events stay on this instance.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AdminConfig holds the admin account and session settings.
type AdminConfig struct {
	Username     string
	PasswordHash string // bcrypt
	// Password is a plaintext fallback for local development; it is hashed at
	// startup when PasswordHash is empty.
	Password     string
	JWTSecret    string
	SessionHours int
	SecureCookie bool
}

// CodesConfig holds verification code settings.
type CodesConfig struct {
	VerifyBaseURL string
	QRSize        int
}

// AWSConfig holds AWS credentials and the QR archive bucket. An empty
// CodesBucket disables archiving.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	CodesBucket          string
	S3Endpoint           string
	PresignExpireMinutes int
}

// WorkerConfig controls the code archive worker.
type WorkerConfig struct {
	// InProcess runs the archive worker inside the API server instead of cmd/worker.
	InProcess bool
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// ArchiveEnabled reports whether QR images are archived to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.Redis.Addr != "" && c.AWS.CodesBucket != ""
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			ShutdownTimeout:    getEnvInt("SHUTDOWN_TIMEOUT_SEC", 15),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", DriverMemory)),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "eventdesk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			Password:     getEnv("ADMIN_PASSWORD", ""),
			JWTSecret:    getEnv("JWT_SECRET", "change-me-in-production"),
			SessionHours: getEnvInt("ADMIN_SESSION_HOURS", 12),
			SecureCookie: getEnvBool("ADMIN_COOKIE_SECURE", false),
		},
		Codes: CodesConfig{
			VerifyBaseURL: getEnv("VERIFY_BASE_URL", "http://localhost:8080/verify"),
			QRSize:        getEnvInt("QR_SIZE", 256),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			CodesBucket:          getEnv("AWS_S3_CODES_BUCKET", ""),
			S3Endpoint:           getEnv("AWS_S3_ENDPOINT", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Worker: WorkerConfig{
			InProcess: getEnvBool("WORKER_IN_PROCESS", false),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverMemory, DriverPostgres, c.Storage.Driver)
	}
	if c.Admin.Username == "" {
		return fmt.Errorf("ADMIN_USERNAME must not be empty")
	}
	if c.Admin.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	u, err := url.Parse(c.Codes.VerifyBaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("VERIFY_BASE_URL must be an absolute URL, got %q", c.Codes.VerifyBaseURL)
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
