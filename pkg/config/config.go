package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultJWTSecret      = "your-secret-key-change-in-production"
	sandboxConsumerKey    = "test_consumer_key_dev"
	sandboxConsumerSecret = "test_consumer_secret_dev"
	sandboxPassKey        = "test_passkey_dev"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OTel     OTelConfig     `mapstructure:"otel"`
	MPesa    MPesaConfig    `mapstructure:"mpesa"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	Version     string `mapstructure:"version"`
	Timezone    string `mapstructure:"timezone"`
}

// Location resolves the configured timezone, falling back to UTC
func (a *AppConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// MigrationURL returns the connection URL understood by the pgx/v5 migrate driver
func (d *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds Kafka/Redpanda connection settings
type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	ClientID    string   `mapstructure:"client_id"`
	TicketTopic string   `mapstructure:"ticket_topic"`
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServiceName   string `mapstructure:"service_name"`
	CollectorAddr string `mapstructure:"collector_addr"`
}

// MPesaConfig holds the M-Pesa STK push credentials and endpoints
type MPesaConfig struct {
	ConsumerKey    string        `mapstructure:"consumer_key"`
	ConsumerSecret string        `mapstructure:"consumer_secret"`
	ShortCode      string        `mapstructure:"shortcode"`
	PassKey        string        `mapstructure:"passkey"`
	CallbackURL    string        `mapstructure:"callback_url"`
	CallbackSecret string        `mapstructure:"callback_secret"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	// InitiationGrace is how long a push may go without a checkout id before it is failed.
	// It must exceed the gateway timeout.
	InitiationGrace time.Duration `mapstructure:"initiation_grace"`
}

// IsSandbox reports whether the development credentials are still in use
func (m *MPesaConfig) IsSandbox() bool {
	return m.ConsumerKey == sandboxConsumerKey ||
		m.ConsumerSecret == sandboxConsumerSecret ||
		m.PassKey == sandboxPassKey
}

// BookingConfig holds reservation rules
type BookingConfig struct {
	ReservationWindow time.Duration `mapstructure:"reservation_window"`
	MinQuantity       int           `mapstructure:"min_quantity"`
	MaxQuantity       int           `mapstructure:"max_quantity"`
}

// WorkerConfig holds background worker settings
type WorkerConfig struct {
	ExpiryInterval  time.Duration `mapstructure:"expiry_interval"`
	ExpiryBatchSize int           `mapstructure:"expiry_batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PollMinAge      time.Duration `mapstructure:"poll_min_age"`
	PollBatchSize   int           `mapstructure:"poll_batch_size"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// A missing .env is fine, environment variables may carry everything
	_ = v.ReadInConfig()

	return load(v)
}

// LoadWithPath loads configuration from a specific path
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	if err := bindConfig(v, cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_NAME", "eventify")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_DEBUG", true)
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("APP_TIMEZONE", "UTC")

	// Server defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	// Database defaults
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_DBNAME", "eventify")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", "30m")

	// Redis defaults
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")

	// Kafka defaults
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CLIENT_ID", "eventify")
	v.SetDefault("KAFKA_TICKET_TOPIC", "ticket.issued")

	// JWT defaults
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "eventify")

	// OTel defaults
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "eventify")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")

	// M-Pesa sandbox defaults
	v.SetDefault("MPESA_CONSUMER_KEY", sandboxConsumerKey)
	v.SetDefault("MPESA_CONSUMER_SECRET", sandboxConsumerSecret)
	v.SetDefault("MPESA_SHORTCODE", "174379")
	v.SetDefault("MPESA_PASSKEY", sandboxPassKey)
	v.SetDefault("MPESA_CALLBACK_URL", "https://example.com/callback")
	v.SetDefault("MPESA_CALLBACK_SECRET", "")
	v.SetDefault("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke")
	v.SetDefault("MPESA_TIMEOUT", "30s")
	v.SetDefault("MPESA_TOKEN_TTL", "55m")
	v.SetDefault("MPESA_INITIATION_GRACE", "2m")

	// Booking defaults
	v.SetDefault("BOOKING_RESERVATION_WINDOW", "30m")
	v.SetDefault("BOOKING_MIN_QUANTITY", 1)
	v.SetDefault("BOOKING_MAX_QUANTITY", 10)

	// Worker defaults
	v.SetDefault("WORKER_EXPIRY_INTERVAL", "5s")
	v.SetDefault("WORKER_EXPIRY_BATCH_SIZE", 100)
	v.SetDefault("WORKER_POLL_INTERVAL", "30s")
	v.SetDefault("WORKER_POLL_MIN_AGE", "1m")
	v.SetDefault("WORKER_POLL_BATCH_SIZE", 50)
}

func bindConfig(v *viper.Viper, cfg *Config) error {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Debug = v.GetBool("APP_DEBUG")
	cfg.App.Version = v.GetString("APP_VERSION")
	cfg.App.Timezone = v.GetString("APP_TIMEZONE")

	// Server
	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")

	// Database
	cfg.Database.Host = v.GetString("DATABASE_HOST")
	cfg.Database.Port = v.GetInt("DATABASE_PORT")
	cfg.Database.User = v.GetString("DATABASE_USER")
	cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	cfg.Database.DBName = v.GetString("DATABASE_DBNAME")
	cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	cfg.Database.MaxOpenConns = v.GetInt("DATABASE_MAX_OPEN_CONNS")
	cfg.Database.MaxIdleConns = v.GetInt("DATABASE_MAX_IDLE_CONNS")
	cfg.Database.ConnMaxLifetime = v.GetDuration("DATABASE_CONN_MAX_LIFETIME")
	cfg.Database.ConnMaxIdleTime = v.GetDuration("DATABASE_CONN_MAX_IDLE_TIME")

	// Redis
	cfg.Redis.Enabled = v.GetBool("REDIS_ENABLED")
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.MinIdleConns = v.GetInt("REDIS_MIN_IDLE_CONNS")
	cfg.Redis.DialTimeout = v.GetDuration("REDIS_DIAL_TIMEOUT")
	cfg.Redis.ReadTimeout = v.GetDuration("REDIS_READ_TIMEOUT")
	cfg.Redis.WriteTimeout = v.GetDuration("REDIS_WRITE_TIMEOUT")

	// Kafka
	cfg.Kafka.Enabled = v.GetBool("KAFKA_ENABLED")
	cfg.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.ClientID = v.GetString("KAFKA_CLIENT_ID")
	cfg.Kafka.TicketTopic = v.GetString("KAFKA_TICKET_TOPIC")

	// JWT
	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.Issuer = v.GetString("JWT_ISSUER")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")

	// M-Pesa
	cfg.MPesa.ConsumerKey = v.GetString("MPESA_CONSUMER_KEY")
	cfg.MPesa.ConsumerSecret = v.GetString("MPESA_CONSUMER_SECRET")
	cfg.MPesa.ShortCode = v.GetString("MPESA_SHORTCODE")
	cfg.MPesa.PassKey = v.GetString("MPESA_PASSKEY")
	cfg.MPesa.CallbackURL = v.GetString("MPESA_CALLBACK_URL")
	cfg.MPesa.CallbackSecret = v.GetString("MPESA_CALLBACK_SECRET")
	cfg.MPesa.BaseURL = strings.TrimRight(v.GetString("MPESA_BASE_URL"), "/")
	cfg.MPesa.Timeout = v.GetDuration("MPESA_TIMEOUT")
	cfg.MPesa.TokenTTL = v.GetDuration("MPESA_TOKEN_TTL")
	cfg.MPesa.InitiationGrace = v.GetDuration("MPESA_INITIATION_GRACE")

	// Booking
	cfg.Booking.ReservationWindow = v.GetDuration("BOOKING_RESERVATION_WINDOW")
	cfg.Booking.MinQuantity = v.GetInt("BOOKING_MIN_QUANTITY")
	cfg.Booking.MaxQuantity = v.GetInt("BOOKING_MAX_QUANTITY")

	// Workers
	cfg.Worker.ExpiryInterval = v.GetDuration("WORKER_EXPIRY_INTERVAL")
	cfg.Worker.ExpiryBatchSize = v.GetInt("WORKER_EXPIRY_BATCH_SIZE")
	cfg.Worker.PollInterval = v.GetDuration("WORKER_POLL_INTERVAL")
	cfg.Worker.PollMinAge = v.GetDuration("WORKER_POLL_MIN_AGE")
	cfg.Worker.PollBatchSize = v.GetInt("WORKER_POLL_BATCH_SIZE")

	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.MPesa.ShortCode == "" || c.MPesa.PassKey == "" {
		return fmt.Errorf("mpesa shortcode and passkey are required")
	}

	if c.MPesa.CallbackURL == "" {
		return fmt.Errorf("mpesa callback url is required")
	}

	if c.MPesa.Timeout <= 0 {
		return fmt.Errorf("mpesa timeout must be positive")
	}

	if c.MPesa.InitiationGrace <= c.MPesa.Timeout {
		return fmt.Errorf("mpesa initiation grace must be longer than the mpesa timeout")
	}

	if c.Booking.ReservationWindow <= 0 {
		return fmt.Errorf("booking reservation window must be positive")
	}

	if c.Booking.MinQuantity < 1 || c.Booking.MaxQuantity < c.Booking.MinQuantity {
		return fmt.Errorf("invalid booking quantity bounds: %d..%d", c.Booking.MinQuantity, c.Booking.MaxQuantity)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	if c.IsProduction() {
		if c.JWT.Secret == defaultJWTSecret {
			return fmt.Errorf("JWT secret must be changed in production")
		}
		if c.MPesa.IsSandbox() {
			return fmt.Errorf("mpesa sandbox credentials cannot be used in production")
		}
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
