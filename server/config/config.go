// Package config loads the server configuration from defaults, an optional
// roomcast.yaml, ROOMCAST_* environment variables and bound flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ponyo877/roomcast/server/domain"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "ROOMCAST"
	configFileName = "roomcast"
)

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Store     StoreConfig     `mapstructure:"store"`
	Query     QueryConfig     `mapstructure:"query"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Transport TransportConfig `mapstructure:"transport"`
	Hub       HubConfig       `mapstructure:"hub"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type HTTPConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type GRPCConfig struct {
	Address string `mapstructure:"address"`
}

type StoreConfig struct {
	Driver    string `mapstructure:"driver"` // "memory" or "sqlite"
	DSN       string `mapstructure:"dsn"`
	Retention int    `mapstructure:"retention"`
}

type QueryConfig struct {
	DefaultLimit int `mapstructure:"defaultLimit"`
}

type BroadcastConfig struct {
	TypingScope string `mapstructure:"typingScope"`
	ReadScope   string `mapstructure:"readScope"`
}

type TransportConfig struct {
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	SendBuffer   int           `mapstructure:"sendBuffer"`
}

type HubConfig struct {
	InboxSize int `mapstructure:"inboxSize"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlpEndpoint"`
	ServiceName  string `mapstructure:"serviceName"`
}

// SetDefaults registers every key so environment overrides apply to all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.address", ":5000")
	v.SetDefault("http.allowedOrigins", []string{"http://localhost:5173", "http://localhost:5174"})
	v.SetDefault("grpc.address", ":50051")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", ":memory:")
	v.SetDefault("store.retention", 100)
	v.SetDefault("query.defaultLimit", domain.DefaultQueryLimit)
	v.SetDefault("broadcast.typingScope", string(domain.ScopeRoom))
	v.SetDefault("broadcast.readScope", string(domain.ScopeRoom))
	v.SetDefault("transport.readTimeout", "60s")
	v.SetDefault("transport.writeTimeout", "10s")
	v.SetDefault("transport.sendBuffer", 256)
	v.SetDefault("hub.inboxSize", 1024)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.otlpEndpoint", "")
	v.SetDefault("telemetry.serviceName", "roomcast")
}

// Load reads configuration into a Config. configFile overrides the default
// lookup of roomcast.yaml in the working directory.
func Load(logger *slog.Logger, v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Debug("Config file not found, relying on defaults and environment")
	} else {
		logger.Info("Loaded config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.BroadcastPolicy(); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("store.driver: unknown driver %q (want memory or sqlite)", c.Store.Driver)
	}
	if c.Store.Retention < 1 {
		return fmt.Errorf("store.retention must be positive, got %d", c.Store.Retention)
	}
	if c.Query.DefaultLimit < 1 {
		return fmt.Errorf("query.defaultLimit must be positive, got %d", c.Query.DefaultLimit)
	}
	return nil
}

func (c Config) BroadcastPolicy() (domain.BroadcastPolicy, error) {
	typing, err := domain.ParseScope(c.Broadcast.TypingScope)
	if err != nil {
		return domain.BroadcastPolicy{}, err
	}
	read, err := domain.ParseScope(c.Broadcast.ReadScope)
	if err != nil {
		return domain.BroadcastPolicy{}, err
	}
	return domain.BroadcastPolicy{TypingScope: typing, ReadScope: read}, nil
}
