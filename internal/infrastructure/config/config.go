package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Config holds the application settings read from helix.toml and HELIX_ environment variables.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Memory    MemoryConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
	Encrypter EncrypterConfig
	Debug     DebugConfig
	Migration MigrationConfig
}

// AppConfig holds application-wide settings
type AppConfig struct {
	Name     string
	Env      string // overrides runtime/environment when set
	Timezone string
	Root     string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Host             string
	Port             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
	MaxBodyBytes     int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	DefaultRoute     bool // route /:controller/*action into core.CallAction
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds named database connections
type DatabaseConfig struct {
	Default     string
	Connections map[string]ConnectionConfig
}

// ConnectionConfig holds settings of one database connection
type ConnectionConfig struct {
	Driver          string // postgres, sqlite
	DSN             string // used as-is when set
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

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// MemoryConfig selects where runtime data is kept
type MemoryConfig struct {
	Driver string // file, redis
	Prefix string
	TTL    time.Duration
}

// CacheConfig holds cache store settings
type CacheConfig struct {
	Default         string // memory, redis
	Prefix          string
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// StorageConfig holds named storage buckets
type StorageConfig struct {
	Default string
	Buckets map[string]BucketConfig
}

// BucketConfig describes one storage bucket
type BucketConfig struct {
	Driver       string // local, s3
	Directory    string // local driver root
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Prefix       string
	PublicURL    string
	UsePathStyle bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
}

// EncrypterConfig holds the base64 encoded application key
type EncrypterConfig struct {
	Key string
}

// DebugConfig controls snapshot persistence
type DebugConfig struct {
	Snapshots    bool
	MaxSnapshots int
}

// MigrationConfig holds migration settings
type MigrationConfig struct {
	Connection string
	Table      string
}

// Supported drivers
var (
	databaseDrivers = []string{"postgres", "sqlite"}
	memoryDrivers   = []string{"file", "redis"}
	cacheDrivers    = []string{"memory", "redis"}
	storageDrivers  = []string{"local", "s3"}
)

// Load loads configuration from helix.toml and environment variables
// Priority (highest to lowest):
// 1. Environment variables with HELIX_ prefix (e.g., HELIX_HTTP_PORT)
// 2. helix.toml in the given paths (".", "./config" when none are given)
// 3. Built-in defaults
func Load(paths ...string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), paths...)
}

// LoadFs is Load reading helix.toml from fs.
func LoadFs(fs afero.Fs, paths ...string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)

	v.SetConfigName("helix")
	v.SetConfigType("toml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("HELIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:     v.GetString("app.name"),
			Env:      v.GetString("app.env"),
			Timezone: v.GetString("app.timezone"),
			Root:     v.GetString("app.root"),
		},
		HTTP: HTTPConfig{
			Host:             v.GetString("http.host"),
			Port:             v.GetString("http.port"),
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodyBytes:     v.GetInt64("http.max_body_bytes"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			DefaultRoute:     !v.IsSet("http.default_route") || v.GetBool("http.default_route"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Default:     v.GetString("database.default"),
			Connections: loadConnections(v),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Memory: MemoryConfig{
			Driver: v.GetString("memory.driver"),
			Prefix: v.GetString("memory.prefix"),
			TTL:    v.GetDuration("memory.ttl"),
		},
		Cache: CacheConfig{
			Default:         v.GetString("cache.default"),
			Prefix:          v.GetString("cache.prefix"),
			DefaultTTL:      v.GetDuration("cache.default_ttl"),
			CleanupInterval: v.GetDuration("cache.cleanup_interval"),
		},
		Storage: StorageConfig{
			Default: v.GetString("storage.default"),
			Buckets: loadBuckets(v),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
		Encrypter: EncrypterConfig{
			Key: v.GetString("encrypter.key"),
		},
		Debug: DebugConfig{
			Snapshots:    v.GetBool("debug.snapshots"),
			MaxSnapshots: v.GetInt("debug.max_snapshots"),
		},
		Migration: MigrationConfig{
			Connection: v.GetString("migration.connection"),
			Table:      v.GetString("migration.table"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadConnections(v *viper.Viper) map[string]ConnectionConfig {
	out := make(map[string]ConnectionConfig)
	for name := range v.GetStringMap("database.connections") {
		key := "database.connections." + name + "."
		out[name] = ConnectionConfig{
			Driver:          v.GetString(key + "driver"),
			DSN:             v.GetString(key + "dsn"),
			Host:            v.GetString(key + "host"),
			Port:            v.GetInt(key + "port"),
			User:            v.GetString(key + "user"),
			Password:        v.GetString(key + "password"),
			DBName:          v.GetString(key + "dbname"),
			SSLMode:         v.GetString(key + "sslmode"),
			MaxOpenConns:    v.GetInt(key + "max_open_conns"),
			MaxIdleConns:    v.GetInt(key + "max_idle_conns"),
			ConnMaxLifetime: v.GetInt(key + "conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt(key + "conn_max_idle_time"),
		}
	}
	return out
}

func loadBuckets(v *viper.Viper) map[string]BucketConfig {
	out := make(map[string]BucketConfig)
	for name := range v.GetStringMap("storage.buckets") {
		key := "storage.buckets." + name + "."
		out[name] = BucketConfig{
			Driver:       v.GetString(key + "driver"),
			Directory:    v.GetString(key + "directory"),
			Bucket:       v.GetString(key + "bucket"),
			Region:       v.GetString(key + "region"),
			Endpoint:     v.GetString(key + "endpoint"),
			AccessKey:    v.GetString(key + "access_key"),
			SecretKey:    v.GetString(key + "secret_key"),
			Prefix:       v.GetString(key + "prefix"),
			PublicURL:    v.GetString(key + "public_url"),
			UsePathStyle: v.GetBool(key + "use_path_style"),
		}
	}
	return out
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "helix"
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "UTC"
	}
	if cfg.App.Root == "" {
		cfg.App.Root = "."
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 10 << 20
	}
	// An empty origin list allows no cross-origin requests until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
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

	if cfg.Database.Default == "" {
		cfg.Database.Default = "default"
	}
	if len(cfg.Database.Connections) == 0 {
		cfg.Database.Connections = map[string]ConnectionConfig{
			"default": {Driver: "sqlite", DSN: "helix.db"},
		}
	}
	for name, conn := range cfg.Database.Connections {
		cfg.Database.Connections[name] = conn.withDefaults()
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Memory.Driver == "" {
		cfg.Memory.Driver = "file"
	}
	if cfg.Memory.Prefix == "" {
		cfg.Memory.Prefix = "helix:memory:"
	}
	if cfg.Cache.Default == "" {
		cfg.Cache.Default = "memory"
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "helix:cache:"
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = time.Hour
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = 5 * time.Minute
	}

	if cfg.Storage.Default == "" {
		cfg.Storage.Default = "local"
	}
	if len(cfg.Storage.Buckets) == 0 {
		cfg.Storage.Buckets = map[string]BucketConfig{
			"local": {Driver: "local", Directory: "webroot/uploads", PublicURL: "/uploads"},
		}
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Debug.MaxSnapshots == 0 {
		cfg.Debug.MaxSnapshots = 20
	}
	if cfg.Migration.Connection == "" {
		cfg.Migration.Connection = cfg.Database.Default
	}
	if cfg.Migration.Table == "" {
		cfg.Migration.Table = "migrations"
	}
}

func (c ConnectionConfig) withDefaults() ConnectionConfig {
	if c.Driver == "" {
		c.Driver = "postgres"
	}
	if c.Driver == "postgres" {
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 5432
		}
		if c.User == "" {
			c.User = "postgres"
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 60
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 30
	}
	return c
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if _, ok := c.Database.Connections[c.Database.Default]; !ok {
		return fmt.Errorf("database.default %q is not a configured connection", c.Database.Default)
	}
	for _, name := range sortedKeys(c.Database.Connections) {
		conn := c.Database.Connections[name]
		if !slices.Contains(databaseDrivers, conn.Driver) {
			return fmt.Errorf("database.connections.%s.driver %q is not supported", name, conn.Driver)
		}
		if conn.MaxOpenConns <= 0 {
			return fmt.Errorf("database.connections.%s.max_open_conns must be positive", name)
		}
		if conn.MaxIdleConns < 0 {
			return fmt.Errorf("database.connections.%s.max_idle_conns cannot be negative", name)
		}
		if conn.MaxIdleConns > conn.MaxOpenConns {
			return fmt.Errorf("database.connections.%s.max_idle_conns (%d) cannot exceed max_open_conns (%d)",
				name, conn.MaxIdleConns, conn.MaxOpenConns)
		}
	}
	if !slices.Contains(memoryDrivers, c.Memory.Driver) {
		return fmt.Errorf("memory.driver %q is not supported", c.Memory.Driver)
	}
	if !slices.Contains(cacheDrivers, c.Cache.Default) {
		return fmt.Errorf("cache.default %q is not supported", c.Cache.Default)
	}
	if _, ok := c.Storage.Buckets[c.Storage.Default]; !ok {
		return fmt.Errorf("storage.default %q is not a configured bucket", c.Storage.Default)
	}
	for _, name := range sortedKeys(c.Storage.Buckets) {
		if driver := c.Storage.Buckets[name].Driver; !slices.Contains(storageDrivers, driver) {
			return fmt.Errorf("storage.buckets.%s.driver %q is not supported", name, driver)
		}
	}

	if c.App.Env == "production" {
		if c.Encrypter.Key == "" {
			return fmt.Errorf("encrypter.key is required in production")
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

// ConnectionString returns the driver specific connection string with properly escaped values
func (c *ConnectionConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == "sqlite" {
		return c.DBName
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port of the HTTP listener
func (h *HTTPConfig) Addr() string {
	return h.Host + ":" + h.Port
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
