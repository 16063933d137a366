package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "5s" and integer nanoseconds are accepted.
type JsonConfig struct {
	Env            string `json:"env"`
	LogLevel       string `json:"log_level"`
	Port           int    `json:"port"`
	GRPCHealthAddr string `json:"grpc_health_addr"`

	DBHost         string `json:"db_host"`
	DBPort         int    `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"db_password"`
	DBName         string `json:"db_name"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	RedisHost     string `json:"redis_host"`
	RedisPort     int    `json:"redis_port"`
	RedisPassword string `json:"redis_password"`

	RabbitMQUser      string   `json:"rabbitmq_user"`
	RabbitMQPassword  string   `json:"rabbitmq_password"`
	RabbitMQHost      string   `json:"rabbitmq_host"`
	RabbitMQPort      int      `json:"rabbitmq_port"`
	RabbitMQExchanges []string `json:"rabbitmq_exchanges"`

	JWTSecret string         `json:"jwt_secret"`
	TokenTTL  timex.Duration `json:"token_ttl"`
	CacheTTL  timex.Duration `json:"cache_ttl"`

	StoreTimeout   timex.Duration `json:"store_timeout"`
	CacheTimeout   timex.Duration `json:"cache_timeout"`
	BrokerTimeout  timex.Duration `json:"broker_timeout"`
	ReconnectDelay timex.Duration `json:"broker_reconnect_delay"`

	ReadyAttempts int            `json:"ready_attempts"`
	ReadyInterval timex.Duration `json:"ready_interval"`

	NodeID *int64 `json:"node_id"`
}

// parseJson loads the file named by -c / -config, if any, and copies every
// field that is present (non-zero) onto config. Unreadable files or invalid
// JSON panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.Env, c.Env)
	setString(&config.LogLevel, c.LogLevel)
	setInt(&config.Port, c.Port)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)

	setString(&config.DBHost, c.DBHost)
	setInt(&config.DBPort, c.DBPort)
	setString(&config.DBUser, c.DBUser)
	setString(&config.DBPassword, c.DBPassword)
	setString(&config.DBName, c.DBName)
	setInt(&config.DBMaxOpenConns, c.DBMaxOpenConns)

	setString(&config.RedisHost, c.RedisHost)
	setInt(&config.RedisPort, c.RedisPort)
	setString(&config.RedisPassword, c.RedisPassword)

	setString(&config.RabbitMQUser, c.RabbitMQUser)
	setString(&config.RabbitMQPassword, c.RabbitMQPassword)
	setString(&config.RabbitMQHost, c.RabbitMQHost)
	setInt(&config.RabbitMQPort, c.RabbitMQPort)
	if len(c.RabbitMQExchanges) > 0 {
		config.RabbitMQExchanges = c.RabbitMQExchanges
	}

	setString(&config.JWTSecret, c.JWTSecret)
	setDuration(&config.TokenTTL, c.TokenTTL)
	setDuration(&config.CacheTTL, c.CacheTTL)

	setDuration(&config.StoreTimeout, c.StoreTimeout)
	setDuration(&config.CacheTimeout, c.CacheTimeout)
	setDuration(&config.BrokerTimeout, c.BrokerTimeout)
	setDuration(&config.ReconnectDelay, c.ReconnectDelay)

	setInt(&config.ReadyAttempts, c.ReadyAttempts)
	setDuration(&config.ReadyInterval, c.ReadyInterval)

	if c.NodeID != nil {
		config.NodeID = *c.NodeID
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
