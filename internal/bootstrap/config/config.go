package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"serafin/internal/bootstrap/logging"
	"serafin/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	GenAI    GenAIConfig    `mapstructure:"genai"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Server   ServerConfig   `mapstructure:"server"`
	Events   EventsConfig   `mapstructure:"events"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CatalogConfig struct {
	File      string `mapstructure:"file"`
	HotReload bool   `mapstructure:"hot_reload"`
}

type GenAIConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	SceneModel      string  `mapstructure:"scene_model"`
	ChatModel       string  `mapstructure:"chat_model"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxOutputTokens int64   `mapstructure:"max_output_tokens"`
}

type MonitorConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	CaptureTimeout time.Duration `mapstructure:"capture_timeout"`
	ReadLimit      int           `mapstructure:"read_limit"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(logCtx, v)

	v.SetEnvPrefix("SERAFIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	if cfg.Catalog.File == "" {
		return Config{}, errors.New("catalog.file is required")
	}
	if !monitorIntervalAllowed(cfg.Monitor.Interval) {
		return Config{}, errors.New("monitor.interval must be one of 30s, 60s, 120s, 300s")
	}

	if cfg.GenAI.APIKey == "" {
		// Absence of the key is not fatal: scene analysis routes to the
		// fallback generator and chat answers with a refusal message.
		logging.Warn(logCtx, "genai.api_key is empty, analyzer will use fallback results")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("catalog_file", cfg.Catalog.File),
		slog.Duration("monitor_interval", cfg.Monitor.Interval),
	)

	return cfg, nil
}

// AnalysisIntervals are the selectable scheduler cadences.
var AnalysisIntervals = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
	300 * time.Second,
}

func monitorIntervalAllowed(interval time.Duration) bool {
	for _, allowed := range AnalysisIntervals {
		if interval == allowed {
			return true
		}
	}
	return false
}

func setDefaults(ctx context.Context, v *viper.Viper) {
	if ctx == nil {
		return
	}

	v.SetDefault("app.name", "serafin")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".serafin/state/observations.sqlite")
	v.SetDefault("catalog.file", "configs/cameras.toml")
	v.SetDefault("catalog.hot_reload", true)
	v.SetDefault("genai.scene_model", "gpt-4o-mini")
	v.SetDefault("genai.chat_model", "gpt-4o-mini")
	v.SetDefault("genai.temperature", 0.7)
	v.SetDefault("genai.max_output_tokens", 800)
	v.SetDefault("monitor.interval", time.Minute)
	v.SetDefault("monitor.retry_delay", time.Second)
	v.SetDefault("monitor.capture_timeout", 10*time.Second)
	v.SetDefault("monitor.read_limit", 20)
	v.SetDefault("server.addr", ":8787")
	v.SetDefault("events.subject", "serafin.activity")
}
