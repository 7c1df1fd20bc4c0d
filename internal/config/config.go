package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter/bybit"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter/deribit"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter/okx"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter/venues"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/logger"
)

// Config holds all application configuration.
type Config struct {
	Env        string `mapstructure:"env"`
	Log        LogConfig
	HTTP       HTTPConfig
	Selection  adapter.Selection
	Venues     VenuesConfig
	WS         WSConfig
	Health     HealthConfig
	Simulation SimulationConfig
	Redis      RedisConfig
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// VenuesConfig holds per-venue endpoints.
type VenuesConfig struct {
	BybitURL           string `mapstructure:"bybit_url"`
	BybitDepth         int    `mapstructure:"bybit_depth"`
	OKXURL             string `mapstructure:"okx_url"`
	OKXPingIntervalSec int    `mapstructure:"okx_ping_interval_sec"`
	DeribitURL         string `mapstructure:"deribit_url"`
	DeribitInterval    string `mapstructure:"deribit_interval"`
}

// WSConfig holds transport timeouts.
type WSConfig struct {
	HandshakeTimeoutMs int `mapstructure:"handshake_timeout_ms"`
	IdleTimeoutSec     int `mapstructure:"idle_timeout_sec"`
}

// HealthConfig holds feed freshness settings.
type HealthConfig struct {
	StaleThresholdMs int `mapstructure:"stale_threshold_ms"`
	CoolOffMs        int `mapstructure:"cool_off_ms"`
}

// SimulationConfig holds simulator settings.
type SimulationConfig struct {
	ImbalanceDepth int `mapstructure:"imbalance_depth"`
	HistorySize    int `mapstructure:"history_size"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load reads an optional .env file, then configuration from environment
// variables prefixed with OBVIEW_.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("OBVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("env", "development")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 5)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("selection.venue", string(adapter.VenueBybit))
	v.SetDefault("selection.symbol", "BTCUSDT")

	// Venue defaults
	v.SetDefault("venues.bybit.url", bybit.DefaultURL)
	v.SetDefault("venues.bybit.depth", bybit.DefaultDepth)
	v.SetDefault("venues.okx.url", okx.DefaultURL)
	v.SetDefault("venues.okx.ping_interval_sec", int(okx.DefaultPingInterval/time.Second))
	v.SetDefault("venues.deribit.url", deribit.DefaultURL)
	v.SetDefault("venues.deribit.interval", deribit.DefaultInterval)

	// Transport defaults
	v.SetDefault("ws.handshake_timeout_ms", 10000)
	v.SetDefault("ws.idle_timeout_sec", 60)

	v.SetDefault("health.stale_threshold_ms", 5000)
	v.SetDefault("health.cool_off_ms", 0)

	v.SetDefault("simulation.imbalance_depth", 15)
	v.SetDefault("simulation.history_size", 100)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	cfg := &Config{}

	cfg.Env = v.GetString("env")

	cfg.Log = LogConfig{
		Level:      v.GetString("log.level"),
		File:       v.GetString("log.file"),
		MaxSizeMB:  v.GetInt("log.max_size_mb"),
		MaxBackups: v.GetInt("log.max_backups"),
		MaxAgeDays: v.GetInt("log.max_age_days"),
	}

	cfg.HTTP = HTTPConfig{Addr: v.GetString("http.addr")}

	venue, err := adapter.ParseVenue(v.GetString("selection.venue"))
	if err != nil {
		return nil, fmt.Errorf("config: selection.venue: %w", err)
	}
	cfg.Selection = adapter.Selection{Venue: venue, Symbol: v.GetString("selection.symbol")}

	cfg.Venues = VenuesConfig{
		BybitURL:           v.GetString("venues.bybit.url"),
		BybitDepth:         v.GetInt("venues.bybit.depth"),
		OKXURL:             v.GetString("venues.okx.url"),
		OKXPingIntervalSec: v.GetInt("venues.okx.ping_interval_sec"),
		DeribitURL:         v.GetString("venues.deribit.url"),
		DeribitInterval:    v.GetString("venues.deribit.interval"),
	}

	cfg.WS = WSConfig{
		HandshakeTimeoutMs: v.GetInt("ws.handshake_timeout_ms"),
		IdleTimeoutSec:     v.GetInt("ws.idle_timeout_sec"),
	}

	cfg.Health = HealthConfig{
		StaleThresholdMs: v.GetInt("health.stale_threshold_ms"),
		CoolOffMs:        v.GetInt("health.cool_off_ms"),
	}

	cfg.Simulation = SimulationConfig{
		ImbalanceDepth: v.GetInt("simulation.imbalance_depth"),
		HistorySize:    v.GetInt("simulation.history_size"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("redis.enabled"),
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}

	return cfg, nil
}

// Development reports whether env is development.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// Logger returns the logger settings.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:       c.Log.Level,
		Development: c.Development(),
		File:        c.Log.File,
		MaxSizeMB:   c.Log.MaxSizeMB,
		MaxBackups:  c.Log.MaxBackups,
		MaxAgeDays:  c.Log.MaxAgeDays,
		Compress:    true,
	}
}

// VenueRegistry returns adapter settings for every venue.
func (c *Config) VenueRegistry() venues.Config {
	return venues.Config{
		Bybit: bybit.Config{URL: c.Venues.BybitURL, Depth: c.Venues.BybitDepth},
		OKX: okx.Config{
			URL:          c.Venues.OKXURL,
			PingInterval: time.Duration(c.Venues.OKXPingIntervalSec) * time.Second,
		},
		Deribit: deribit.Config{URL: c.Venues.DeribitURL, Interval: c.Venues.DeribitInterval},
	}
}

// Transport returns the websocket template used for every venue connection.
func (c *Config) Transport() adapter.WSConfig {
	ws := adapter.DefaultWSConfig("")
	ws.HandshakeTimeout = time.Duration(c.WS.HandshakeTimeoutMs) * time.Millisecond
	ws.IdleTimeout = time.Duration(c.WS.IdleTimeoutSec) * time.Second
	return ws
}

// Monitor returns the feed freshness settings.
func (c *Config) Monitor() adapter.FeedMonitorConfig {
	return adapter.FeedMonitorConfig{
		StaleThreshold: time.Duration(c.Health.StaleThresholdMs) * time.Millisecond,
		CoolOff:        time.Duration(c.Health.CoolOffMs) * time.Millisecond,
	}
}
