package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig
	Log           LogConfig
	HTTP          HTTPConfig
	Gateway       GatewayConfig
	Storage       StorageConfig
	Redis         RedisConfig
	Database      DatabaseConfig
	Printing      PrintingConfig
	ObjectStorage ObjectStorageConfig
	Catalog       CatalogConfig
	Telemetry     TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
	// NodeID distinguishes instances in generated document numbers (0-1023)
	NodeID int64
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// GatewayConfig selects how submitted orders are persisted
type GatewayConfig struct {
	// Mode is "remote", "local" or empty (remote when BaseURL is set)
	Mode            string
	BaseURL         string
	Timeout         time.Duration
	SalesLatency    time.Duration
	PurchaseLatency time.Duration
	// DistributedLock serializes local writes across instances through Redis
	DistributedLock bool
	LockTTL         time.Duration
}

// StorageConfig selects the key-value store behind the local gateway
type StorageConfig struct {
	Driver     string // memory, redis, sqlite, postgres
	MaxBytes   int    // memory driver quota, 0 = unlimited
	SQLitePath string
	KeyPrefix  string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// PrintingConfig holds invoice rendering settings
type PrintingConfig struct {
	Enabled     bool
	Backend     string // filesystem, s3
	OutputDir   string
	ChromePath  string
	Timeout     time.Duration
	CompanyName string
	ClosingNote string
}

// ObjectStorageConfig holds S3-compatible storage settings for printed documents
type ObjectStorageConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	Prefix       string
}

// CatalogConfig configures where reference data comes from. With a base URL
// the reference endpoints are called; otherwise the static lists are served.
type CatalogConfig struct {
	BaseURL   string
	Timeout   time.Duration
	Products  []CatalogProduct
	Suppliers []CatalogParty
	Customers []CatalogParty
}

// CatalogProduct is a statically configured product
type CatalogProduct struct {
	ID          string  `mapstructure:"id"`
	Name        string  `mapstructure:"name"`
	DefaultCost float64 `mapstructure:"default_cost"`
}

// CatalogParty is a statically configured supplier or customer
type CatalogParty struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool    // Expose Prometheus metrics on /metrics

	// MetricsExportInterval is the OTLP push interval when Enabled
	MetricsExportInterval time.Duration
	LogsEnabled           bool // Bridge zap logs to the collector
	DBTracing             bool
	SlowQueryThreshold    time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ORDERDESK_ prefix (e.g., ORDERDESK_GATEWAY_MODE)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("ORDERDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:   v.GetString("app.name"),
			Env:    v.GetString("app.env"),
			Port:   v.GetString("app.port"),
			NodeID: v.GetInt64("app.node_id"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Gateway: GatewayConfig{
			Mode:            strings.ToLower(v.GetString("gateway.mode")),
			BaseURL:         v.GetString("gateway.base_url"),
			Timeout:         v.GetDuration("gateway.timeout"),
			SalesLatency:    v.GetDuration("gateway.sales_latency"),
			PurchaseLatency: v.GetDuration("gateway.purchase_latency"),
			DistributedLock: v.GetBool("gateway.distributed_lock"),
			LockTTL:         v.GetDuration("gateway.lock_ttl"),
		},
		Storage: StorageConfig{
			Driver:     strings.ToLower(v.GetString("storage.driver")),
			MaxBytes:   v.GetInt("storage.max_bytes"),
			SQLitePath: v.GetString("storage.sqlite_path"),
			KeyPrefix:  v.GetString("storage.key_prefix"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Printing: PrintingConfig{
			Enabled:     v.GetBool("printing.enabled"),
			Backend:     strings.ToLower(v.GetString("printing.backend")),
			OutputDir:   v.GetString("printing.output_dir"),
			ChromePath:  v.GetString("printing.chrome_path"),
			Timeout:     v.GetDuration("printing.timeout"),
			CompanyName: v.GetString("printing.company_name"),
			ClosingNote: v.GetString("printing.closing_note"),
		},
		ObjectStorage: ObjectStorageConfig{
			Endpoint:     v.GetString("object_storage.endpoint"),
			Region:       v.GetString("object_storage.region"),
			Bucket:       v.GetString("object_storage.bucket"),
			AccessKey:    v.GetString("object_storage.access_key"),
			SecretKey:    v.GetString("object_storage.secret_key"),
			UseSSL:       v.GetBool("object_storage.use_ssl"),
			UsePathStyle: v.GetBool("object_storage.use_path_style"),
			Prefix:       v.GetString("object_storage.prefix"),
		},
		Catalog: CatalogConfig{
			BaseURL: v.GetString("catalog.base_url"),
			Timeout: v.GetDuration("catalog.timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    !v.IsSet("telemetry.metrics_enabled") || v.GetBool("telemetry.metrics_enabled"),

			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
			LogsEnabled:           v.GetBool("telemetry.logs_enabled"),
			DBTracing:             v.GetBool("telemetry.db_tracing"),
			SlowQueryThreshold:    v.GetDuration("telemetry.slow_query_threshold"),
		},
	}

	if err := v.UnmarshalKey("catalog.products", &cfg.Catalog.Products); err != nil {
		return nil, fmt.Errorf("error reading catalog.products: %w", err)
	}
	if err := v.UnmarshalKey("catalog.suppliers", &cfg.Catalog.Suppliers); err != nil {
		return nil, fmt.Errorf("error reading catalog.suppliers: %w", err)
	}
	if err := v.UnmarshalKey("catalog.customers", &cfg.Catalog.Customers); err != nil {
		return nil, fmt.Errorf("error reading catalog.customers: %w", err)
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "orderdesk"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	// NOTE: CORS origins have no "*" fallback; cross-origin callers must be listed.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 10 * time.Second
	}
	if cfg.Gateway.SalesLatency == 0 {
		cfg.Gateway.SalesLatency = 400 * time.Millisecond
	}
	if cfg.Gateway.PurchaseLatency == 0 {
		cfg.Gateway.PurchaseLatency = 500 * time.Millisecond
	}
	if cfg.Gateway.LockTTL == 0 {
		cfg.Gateway.LockTTL = 5 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "orderdesk.db"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "orderdesk:"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "orderdesk"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Printing.Backend == "" {
		cfg.Printing.Backend = "filesystem"
	}
	if cfg.Printing.OutputDir == "" {
		cfg.Printing.OutputDir = "invoices"
	}
	if cfg.Printing.Timeout == 0 {
		cfg.Printing.Timeout = 30 * time.Second
	}
	if cfg.Printing.ClosingNote == "" {
		cfg.Printing.ClosingNote = "Thank you for your business!"
	}
	if cfg.ObjectStorage.Region == "" {
		cfg.ObjectStorage.Region = "us-east-1"
	}
	if cfg.ObjectStorage.Prefix == "" {
		cfg.ObjectStorage.Prefix = "invoices/"
	}
	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = 10 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "orderdesk"
	}
	if cfg.Telemetry.MetricsExportInterval == 0 {
		cfg.Telemetry.MetricsExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.SlowQueryThreshold == 0 {
		cfg.Telemetry.SlowQueryThreshold = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Gateway.Mode {
	case "", "remote", "local":
	default:
		return fmt.Errorf("gateway.mode must be remote or local, got %q", c.Gateway.Mode)
	}
	if c.Gateway.Mode == "remote" && c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required when gateway.mode is remote")
	}
	if c.Gateway.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Gateway.BaseURL); err != nil {
			return fmt.Errorf("gateway.base_url is invalid: %w", err)
		}
	}
	if c.Gateway.SalesLatency < 0 || c.Gateway.PurchaseLatency < 0 {
		return fmt.Errorf("gateway latencies cannot be negative")
	}

	switch c.Storage.Driver {
	case "memory", "redis", "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver must be one of memory, redis, sqlite, postgres, got %q", c.Storage.Driver)
	}
	if c.Storage.MaxBytes < 0 {
		return fmt.Errorf("storage.max_bytes cannot be negative")
	}

	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.NodeID < 0 || c.App.NodeID > 1023 {
		return fmt.Errorf("app.node_id must be between 0 and 1023, got %d", c.App.NodeID)
	}

	switch c.Printing.Backend {
	case "filesystem":
	case "s3":
		if c.Printing.Enabled && c.ObjectStorage.Bucket == "" {
			return fmt.Errorf("object_storage.bucket is required when printing.backend is s3")
		}
	default:
		return fmt.Errorf("printing.backend must be filesystem or s3, got %q", c.Printing.Backend)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Storage.Driver == "memory" && c.Gateway.Mode != "remote" {
			return fmt.Errorf("storage.driver cannot be memory in production")
		}
		if c.Storage.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
