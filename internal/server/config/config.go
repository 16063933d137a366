// Package config handles configuration for the auth server: defaults, an
// optional JSON file, environment variables and command-line flags, applied
// in that order.
package config

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config holds runtime settings for the auth server.
//
// Environment variable names follow the deployment's .env files (PORT, DB_*,
// REDIS_*, RABBITMQ_*, JWT_SECRET); the rest are specific to this service.
type Config struct {
	Env            string `env:"ENV"`
	LogLevel       string `env:"LOG_LEVEL"`
	Port           int    `env:"PORT"`
	GRPCHealthAddr string `env:"GRPC_HEALTH_ADDR"`

	DBHost         string `env:"DB_HOST"`
	DBPort         int    `env:"DB_PORT"`
	DBUser         string `env:"DB_USER"`
	DBPassword     string `env:"DB_PASSWORD"`
	DBName         string `env:"DB_NAME"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS"`

	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	RabbitMQUser      string   `env:"RABBITMQ_USER"`
	RabbitMQPassword  string   `env:"RABBITMQ_PASSWORD"`
	RabbitMQHost      string   `env:"RABBITMQ_HOST"`
	RabbitMQPort      int      `env:"RABBITMQ_PORT"`
	RabbitMQExchanges []string `env:"RABBITMQ_EXCHANGES" envSeparator:","`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL"`
	CacheTTL  time.Duration `env:"CACHE_TTL"`

	StoreTimeout   time.Duration `env:"STORE_TIMEOUT"`
	CacheTimeout   time.Duration `env:"CACHE_TIMEOUT"`
	BrokerTimeout  time.Duration `env:"BROKER_TIMEOUT"`
	ReconnectDelay time.Duration `env:"BROKER_RECONNECT_DELAY"`

	ReadyAttempts int           `env:"READY_ATTEMPTS"`
	ReadyInterval time.Duration `env:"READY_INTERVAL"`

	NodeID int64 `env:"NODE_ID"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secrets below are insecure and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.Env = "development"
	c.LogLevel = "info"
	c.Port = 5001
	c.GRPCHealthAddr = ":50051"

	c.DBHost = "localhost"
	c.DBPort = 5432
	c.DBUser = "postgres"
	c.DBPassword = "postgres"
	c.DBName = "auth"
	c.DBMaxOpenConns = 10

	c.RedisHost = "localhost"
	c.RedisPort = 6379
	c.RedisPassword = ""

	c.RabbitMQUser = "admin"
	c.RabbitMQPassword = "password"
	c.RabbitMQHost = "localhost"
	c.RabbitMQPort = 5672
	c.RabbitMQExchanges = []string{"auth_exchange", "dlx_exchange"}

	c.JWTSecret = "secretKey"
	c.TokenTTL = 24 * time.Hour
	c.CacheTTL = 24 * time.Hour

	c.StoreTimeout = 3 * time.Second
	c.CacheTimeout = time.Second
	c.BrokerTimeout = 2 * time.Second
	c.ReconnectDelay = 5 * time.Second

	c.ReadyAttempts = 5
	c.ReadyInterval = 5 * time.Second

	c.NodeID = 1
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
// Malformed input panics, mirroring flag.PanicOnError.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, errors.New("port must be in 1..65535"))
	}
	if c.ReadyAttempts <= 0 {
		errs = append(errs, errors.New("ready attempts must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}
	if c.DBMaxOpenConns <= 0 {
		errs = append(errs, errors.New("db max open conns must be positive"))
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		errs = append(errs, errors.New("node id must be in 0..1023"))
	}
	return errors.Join(errs...)
}

// HTTPAddr is the listen address of the HTTP API.
func (c *Config) HTTPAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// DatabaseDSN renders the pgx connection URL.
func (c *Config) DatabaseDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// RedisAddr is host:port of the cache.
func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

// RabbitMQURL renders the AMQP connection URL.
func (c *Config) RabbitMQURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.RabbitMQUser, c.RabbitMQPassword),
		Host:   net.JoinHostPort(c.RabbitMQHost, strconv.Itoa(c.RabbitMQPort)),
		Path:   "/",
	}
	return u.String()
}
