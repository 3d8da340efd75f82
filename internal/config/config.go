package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Storage  StorageConfig
	Payroll  PayrollConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Name           string
	Version        string
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// RedisConfig is optional. An empty Addr means run locks stay in process.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// KafkaConfig is optional. No brokers means events are dropped.
type KafkaConfig struct {
	Brokers []string
}

// StorageConfig is optional. An empty BasePath disables the payslip archive.
type StorageConfig struct {
	BasePath string
	BaseURL  string
}

type PayrollConfig struct {
	PFWageCeiling       bool
	LeaveDeductionBasis string
	Workers             int
	RunLockTTL          time.Duration
	AutoRunDay          int
	AutoRunSchedule     string
	Currency            string
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only
func FromEnv() (*Config, error) {
	config := &Config{}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	dbMaxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "cmlabs-payroll"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(dbMaxConns),
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config.Redis = RedisConfig{
		Addr:      getEnv("REDIS_ADDR", ""),
		Password:  getEnv("REDIS_PASSWORD", ""),
		DB:        redisDB,
		KeyPrefix: getEnv("REDIS_KEY_PREFIX", "payroll:lock:"),
	}

	config.Kafka = KafkaConfig{
		Brokers: getEnvSlice("KAFKA_BROKERS"),
	}

	config.Storage = StorageConfig{
		BasePath: getEnv("STORAGE_BASE_PATH", ""),
		BaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8080/api/v1/files"),
	}

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Name:           getEnv("APP_NAME", "payroll-cmlabs"),
		Version:        getEnv("APP_VERSION", "v1.0.0"),
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	pfCeiling, err := strconv.ParseBool(getEnv("PAYROLL_PF_WAGE_CEILING", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_PF_WAGE_CEILING: %w", err)
	}
	workers, err := strconv.Atoi(getEnv("PAYROLL_WORKERS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_WORKERS: %w", err)
	}
	lockTTL, err := time.ParseDuration(getEnv("PAYROLL_RUN_LOCK_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_RUN_LOCK_TTL: %w", err)
	}
	autoRunDay, err := strconv.Atoi(getEnv("PAYROLL_AUTO_RUN_DAY", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_AUTO_RUN_DAY: %w", err)
	}

	config.Payroll = PayrollConfig{
		PFWageCeiling:       pfCeiling,
		LeaveDeductionBasis: strings.ToLower(getEnv("PAYROLL_LEAVE_DEDUCTION_BASIS", "net")),
		Workers:             workers,
		RunLockTTL:          lockTTL,
		AutoRunDay:          autoRunDay,
		AutoRunSchedule:     getEnv("PAYROLL_AUTO_RUN_SCHEDULE", "0 * * * *"),
		Currency:            strings.ToUpper(getEnv("PAYROLL_CURRENCY", "INR")),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Payroll.LeaveDeductionBasis != "net" && c.Payroll.LeaveDeductionBasis != "gross" {
		return fmt.Errorf("PAYROLL_LEAVE_DEDUCTION_BASIS must be net or gross")
	}
	if c.Payroll.Workers <= 0 {
		return fmt.Errorf("PAYROLL_WORKERS must be positive")
	}
	if c.Payroll.RunLockTTL <= 0 {
		return fmt.Errorf("PAYROLL_RUN_LOCK_TTL must be positive")
	}
	// 28 keeps the day present in every month
	if c.Payroll.AutoRunDay < 0 || c.Payroll.AutoRunDay > 28 {
		return fmt.Errorf("PAYROLL_AUTO_RUN_DAY must be between 0 and 28")
	}
	if len(c.Payroll.Currency) != 3 {
		return fmt.Errorf("PAYROLL_CURRENCY must be a 3-letter code")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
