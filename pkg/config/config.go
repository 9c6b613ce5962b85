package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Poll      PollConfig      `mapstructure:"poll"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Market    MarketConfig    `mapstructure:"market"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Feed      FeedConfig      `mapstructure:"feed"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"` // "json" or "console"
}

type PollConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	OnStart      bool          `mapstructure:"on_start"`
}

type TrackerConfig struct {
	HistorySize int `mapstructure:"history_size"`
}

type MarketConfig struct {
	Source         string `mapstructure:"source"` // marketstack, redis, simulator
	MarketstackURL string `mapstructure:"marketstack_url"`
	MarketstackKey string `mapstructure:"marketstack_key"`
}

type StorageConfig struct {
	SymbolsFile string `mapstructure:"symbols_file"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	GroupID     string   `mapstructure:"group_id"`
	AlertsTopic string   `mapstructure:"alerts_topic"`
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
}

type GatewayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
type NotifyConfig struct {
	Kafka bool `mapstructure:"kafka"`
}

// FeedConfig drives the synthetic tick generator.
type FeedConfig struct {
	Symbols  []string      `mapstructure:"symbols"`
	Interval time.Duration `mapstructure:"interval"`
}

var sources = map[string]bool{"marketstack": true, "redis": true, "simulator": true}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// .env values become real env vars so AutomaticEnv picks them up.
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	// "poll.interval" -> "POLL_INTERVAL"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flat env vars only reach nested keys once bound.
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.development", "logger.encoding")
	bindEnv(v, "poll.interval", "poll.fetch_timeout", "poll.on_start")
	bindEnv(v, "tracker.history_size")
	bindEnv(v, "market.source", "market.marketstack_url", "market.marketstack_key")
	bindEnv(v, "storage.symbols_file")
	bindEnv(v, "redis.addr", "redis.password", "redis.db", "redis.ttl")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id", "kafka.alerts_topic")
	bindEnv(v, "processor.num_workers")
	bindEnv(v, "gateway.enabled")
	bindEnv(v, "notify.kafka")
	bindEnv(v, "feed.symbols", "feed.interval")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.development", false)
	v.SetDefault("logger.encoding", "console")

	v.SetDefault("poll.interval", 300*time.Second)
	v.SetDefault("poll.fetch_timeout", 10*time.Second)
	v.SetDefault("poll.on_start", true)

	v.SetDefault("tracker.history_size", 10)

	v.SetDefault("market.source", "marketstack")
	v.SetDefault("market.marketstack_url", "http://api.marketstack.com")
	v.SetDefault("market.marketstack_key", "")

	v.SetDefault("storage.symbols_file", "stocks.txt")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_ticks")
	v.SetDefault("kafka.group_id", "stock-processor-group")
	v.SetDefault("kafka.alerts_topic", "price_alerts")

	v.SetDefault("processor.num_workers", 4)

	v.SetDefault("gateway.enabled", false)
	v.SetDefault("notify.kafka", false)

	v.SetDefault("feed.symbols", []string{"AAPL", "GOOG", "TSLA", "AMZN"})
	v.SetDefault("feed.interval", 100*time.Millisecond)
}

// Validate rejects settings the tracker cannot run with.
func (c *Config) Validate() error {
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.Poll.FetchTimeout)
	}
	if c.Tracker.HistorySize < 1 {
		return fmt.Errorf("history size must be at least 1, got %d", c.Tracker.HistorySize)
	}
	if !sources[c.Market.Source] {
		return fmt.Errorf("unknown market source %q", c.Market.Source)
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	if c.Processor.NumWorkers < 1 {
		return fmt.Errorf("processor needs at least one worker, got %d", c.Processor.NumWorkers)
	}
	if c.Feed.Interval <= 0 {
		return fmt.Errorf("feed interval must be positive, got %s", c.Feed.Interval)
	}
	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
