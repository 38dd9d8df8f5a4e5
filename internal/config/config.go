// Package config loads gateway configuration from YAML, .env files and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the root gateway configuration.
type Config struct {
	Environment string            `yaml:"environment"`
	ServiceName string            `yaml:"service_name"`
	Log         LogConfig         `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`
	Admin       AdminConfig       `yaml:"admin"`
	Auth        AuthConfig        `yaml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	PromptStore PromptStoreConfig `yaml:"prompt_store"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Streaming   StreamingConfig   `yaml:"streaming"`
	Usage       UsageConfig       `yaml:"usage"`
	Registry    RegistryConfig    `yaml:"registry"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the gRPC listener.
type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              string        `yaml:"port"`
	AdvertiseAddress  string        `yaml:"advertise_address"`
	TLSCertFile       string        `yaml:"tls_cert_file"`
	TLSKeyFile        string        `yaml:"tls_key_file"`
	EnableReflection  bool          `yaml:"enable_reflection"`
	MaxRecvMsgSize    int           `yaml:"max_recv_msg_size"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// Address returns host:port for the gRPC listener.
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

// AdminConfig configures the admin HTTP server.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
}

// Address returns host:port for the admin listener.
func (a AdminConfig) Address() string {
	return a.Host + ":" + a.Port
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Disabled  bool   `yaml:"disabled"`
}

// RateLimitConfig configures the per-application token bucket.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	IdleTTL           time.Duration `yaml:"idle_ttl"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Name          string `yaml:"name"`
	SSLMode       string `yaml:"ssl_mode"`
	MaxConns      int32  `yaml:"max_conns"`
	RunMigrations bool   `yaml:"run_migrations"`
}

// DSN returns the pgx connection string.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslMode)
}

// RedisConfig configures the prompt config cache.
type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     string        `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// LocalCacheSize bounds the in-process tier. Negative disables it.
	LocalCacheSize int           `yaml:"local_cache_size"`
	LocalCacheTTL  time.Duration `yaml:"local_cache_ttl"`
}

// Address returns host:port for redis.
func (r RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}

// PromptStoreConfig selects the prompt config backend.
type PromptStoreConfig struct {
	// Backend is "postgres" or "file".
	Backend  string        `yaml:"backend"`
	FilePath string        `yaml:"file_path"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// ProviderConfig configures one model vendor upstream.
type ProviderConfig struct {
	// Type selects the connector: "openai" for OpenAI compatible APIs or
	// "cohere". Empty means the vendor name when it is a known type, else
	// "openai".
	Type    string        `yaml:"type"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	// Pricing maps model types to their token prices.
	Pricing map[string]ModelPricing `yaml:"pricing"`
}

// ConnectorType resolves Type for the provider registered as vendor.
func (p ProviderConfig) ConnectorType(vendor string) string {
	if p.Type != "" {
		return p.Type
	}
	if _, ok := connectorTypes[vendor]; ok {
		return vendor
	}
	return "openai"
}

var connectorTypes = map[string]struct{}{"openai": {}, "cohere": {}}

// ModelPricing is the price of TokenUnitSize tokens. Prices are decimal
// strings so they survive YAML without float rounding.
type ModelPricing struct {
	InputTokenPrice  string `yaml:"input_token_price"`
	OutputTokenPrice string `yaml:"output_token_price"`
	TokenUnitSize    int64  `yaml:"token_unit_size"`
}

// ProvidersConfig maps model vendor names to upstream providers.
type ProvidersConfig map[string]ProviderConfig

// StreamingConfig controls how provider chunks are reshaped.
type StreamingConfig struct {
	BufferType      string  `yaml:"buffer_type"`
	TokenThreshold  int     `yaml:"token_threshold"`
	TokensPerSecond float64 `yaml:"tokens_per_second"`
}

// UsageConfig selects the usage record sinks.
type UsageConfig struct {
	Postgres       bool          `yaml:"postgres"`
	RetentionDays  int           `yaml:"retention_days"`
	KafkaBrokers   []string      `yaml:"kafka_brokers"`
	KafkaTopic     string        `yaml:"kafka_topic"`
	AMQPURL        string        `yaml:"amqp_url"`
	AMQPExchange   string        `yaml:"amqp_exchange"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// RegistryConfig configures etcd service registration.
type RegistryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Endpoints   []string      `yaml:"endpoints"`
	TTL         time.Duration `yaml:"ttl"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Environment: "development",
		ServiceName: "prompt-gateway",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "50051",
			MaxRecvMsgSize:    4 << 20,
			ShutdownTimeout:   15 * time.Second,
			ConnectionTimeout: 10 * time.Second,
		},
		Admin: AdminConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    "8080",
		},
		Auth: AuthConfig{
			Issuer: "helix-gateway",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
			IdleTTL:           10 * time.Minute,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          "5432",
			User:          "helix",
			Password:      "secret",
			Name:          "helix_gateway",
			SSLMode:       "disable",
			MaxConns:      10,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			PoolSize: 10,
			Timeout:  5 * time.Second,
			CacheTTL: 30 * time.Minute,

			LocalCacheSize: 1000,
			LocalCacheTTL:  time.Minute,
		},
		PromptStore: PromptStoreConfig{
			Backend:  "postgres",
			Debounce: 250 * time.Millisecond,
		},
		Providers: ProvidersConfig{
			"openai": {
				BaseURL: "https://api.openai.com/v1",
				Timeout: 60 * time.Second,
				Pricing: map[string]ModelPricing{
					"gpt-3.5-turbo":     {InputTokenPrice: "0.0015", OutputTokenPrice: "0.002", TokenUnitSize: 1_000},
					"gpt-3.5-turbo-16k": {InputTokenPrice: "0.003", OutputTokenPrice: "0.004", TokenUnitSize: 1_000},
					"gpt-4":             {InputTokenPrice: "0.03", OutputTokenPrice: "0.06", TokenUnitSize: 1_000},
					"gpt-4-32k":         {InputTokenPrice: "0.06", OutputTokenPrice: "0.12", TokenUnitSize: 1_000},
				},
			},
			"cohere": {
				BaseURL: "https://api.cohere.ai/v1",
				Timeout: 60 * time.Second,
				Pricing: map[string]ModelPricing{
					"command":               {InputTokenPrice: "1.00", OutputTokenPrice: "2.00", TokenUnitSize: 1_000_000},
					"command-nightly":       {InputTokenPrice: "1.00", OutputTokenPrice: "2.00", TokenUnitSize: 1_000_000},
					"command-light":         {InputTokenPrice: "0.30", OutputTokenPrice: "0.60", TokenUnitSize: 1_000_000},
					"command-light-nightly": {InputTokenPrice: "0.30", OutputTokenPrice: "0.60", TokenUnitSize: 1_000_000},
				},
			},
		},
		Streaming: StreamingConfig{
			BufferType:     "passthrough",
			TokenThreshold: 5,
		},
		Usage: UsageConfig{
			Postgres:       true,
			RetentionDays:  30,
			KafkaTopic:     "prompt-request-records",
			AMQPExchange:   "prompt.records",
			PublishTimeout: 5 * time.Second,
		},
		Registry: RegistryConfig{
			TTL:         15 * time.Second,
			DialTimeout: 5 * time.Second,
		},
	}
}

// Load reads the optional .env file, the optional YAML file at path and
// finally applies environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("GATEWAY_ENV", c.Environment)
	c.ServiceName = getEnv("SERVICE_NAME", c.ServiceName)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Server.Host = getEnv("GRPC_HOST", c.Server.Host)
	c.Server.Port = getEnv("GRPC_PORT", c.Server.Port)
	c.Server.AdvertiseAddress = getEnv("GRPC_ADVERTISE_ADDRESS", c.Server.AdvertiseAddress)
	c.Server.TLSCertFile = getEnv("GRPC_TLS_CERT_FILE", c.Server.TLSCertFile)
	c.Server.TLSKeyFile = getEnv("GRPC_TLS_KEY_FILE", c.Server.TLSKeyFile)
	c.Admin.Port = getEnv("ADMIN_PORT", c.Admin.Port)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Disabled = getEnvBool("AUTH_DISABLED", c.Auth.Disabled)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnv("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.PromptStore.Backend = getEnv("PROMPT_STORE_BACKEND", c.PromptStore.Backend)
	c.PromptStore.FilePath = getEnv("PROMPT_STORE_FILE", c.PromptStore.FilePath)

	for vendor, env := range map[string]string{"openai": "OPENAI_API_KEY", "cohere": "COHERE_API_KEY"} {
		key := os.Getenv(env)
		if key == "" {
			continue
		}
		if c.Providers == nil {
			c.Providers = ProvidersConfig{}
		}
		provider := c.Providers[vendor]
		provider.APIKey = key
		c.Providers[vendor] = provider
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Usage.KafkaBrokers = splitList(brokers)
	}
	c.Usage.AMQPURL = getEnv("AMQP_URL", c.Usage.AMQPURL)

	if endpoints := os.Getenv("ETCD_ENDPOINTS"); endpoints != "" {
		c.Registry.Enabled = true
		c.Registry.Endpoints = splitList(endpoints)
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required unless auth is disabled"))
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.tls_cert_file and server.tls_key_file must be set together"))
	}
	switch c.PromptStore.Backend {
	case "postgres":
	case "file":
		if c.PromptStore.FilePath == "" {
			errs = append(errs, errors.New("prompt_store.file_path is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown prompt_store.backend %q", c.PromptStore.Backend))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_second must be positive"))
	}
	if c.Registry.Enabled && len(c.Registry.Endpoints) == 0 {
		errs = append(errs, errors.New("registry.endpoints is required when the registry is enabled"))
	}
	for vendor, provider := range c.Providers {
		if _, ok := connectorTypes[provider.ConnectorType(vendor)]; !ok {
			errs = append(errs, fmt.Errorf("providers.%s.type %q is not supported", vendor, provider.Type))
		}
		for model, pricing := range provider.Pricing {
			errs = append(errs, pricing.validate(vendor, model)...)
		}
	}

	return errors.Join(errs...)
}

func (p ModelPricing) validate(vendor, model string) []error {
	var errs []error
	prefix := fmt.Sprintf("providers.%s.pricing.%s", vendor, model)
	if _, err := decimal.NewFromString(p.InputTokenPrice); err != nil {
		errs = append(errs, fmt.Errorf("%s.input_token_price: %w", prefix, err))
	}
	if _, err := decimal.NewFromString(p.OutputTokenPrice); err != nil {
		errs = append(errs, fmt.Errorf("%s.output_token_price: %w", prefix, err))
	}
	if p.TokenUnitSize <= 0 {
		errs = append(errs, fmt.Errorf("%s.token_unit_size must be positive", prefix))
	}
	return errs
}

// IsTest reports whether the gateway runs under tests.
func (c *Config) IsTest() bool {
	return c.Environment == "test"
}

// IsProduction reports whether the gateway runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
