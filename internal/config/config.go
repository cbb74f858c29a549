package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Host           string   `mapstructure:"host"`
		Port           int      `mapstructure:"port"`
		Debug          bool     `mapstructure:"debug"`
		TrustedProxies []string `mapstructure:"trusted_proxies"`
	} `mapstructure:"server"`

	Workers struct {
		Count     int `mapstructure:"count"`
		QueueSize int `mapstructure:"queue_size"`
	} `mapstructure:"workers"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Geo struct {
		Token         string        `mapstructure:"token"`
		CacheTTL      time.Duration `mapstructure:"cache_ttl"`
		LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
		LockTTL       time.Duration `mapstructure:"lock_ttl"`
		LockWait      time.Duration `mapstructure:"lock_wait"`
	} `mapstructure:"geo"`

	Response struct {
		Type    string `mapstructure:"type"`
		PNGPath string `mapstructure:"png_path"`
	} `mapstructure:"response"`

	Redis struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Store struct {
		Driver  string        `mapstructure:"driver"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"store"`

	Mongo struct {
		URI      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
	} `mapstructure:"mongo"`

	SQL struct {
		DSN  string `mapstructure:"dsn"`
		Path string `mapstructure:"path"`
	} `mapstructure:"sql"`

	Metrics struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"metrics"`
}

// Addr is the public listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

var envBindings = map[string]string{
	"server.host":            "HOST",
	"server.port":            "PORT",
	"server.debug":           "DEBUG",
	"server.trusted_proxies": "TRUSTED_PROXIES",
	"workers.count":          "WORKERS",
	"workers.queue_size":     "WORKER_QUEUE_SIZE",
	"log.level":              "LOG_LEVEL",
	"geo.token":              "IPINFO_ACCESS_TOKEN",
	"geo.cache_ttl":          "GEO_CACHE_TTL",
	"geo.lookup_timeout":     "GEO_LOOKUP_TIMEOUT",
	"geo.lock_ttl":           "GEO_LOCK_TTL",
	"geo.lock_wait":          "GEO_LOCK_WAIT",
	"response.type":          "RETURN_TYPE",
	"response.png_path":      "RESPONSE_PNG_PATH",
	"redis.host":             "REDIS_HOST",
	"redis.port":             "REDIS_PORT",
	"redis.password":         "REDIS_PASSWORD",
	"redis.db":               "REDIS_DB",
	"store.driver":           "STORE_DRIVER",
	"store.timeout":          "STORE_TIMEOUT",
	"mongo.uri":              "MONGO_URI",
	"mongo.database":         "MONGO_DATABASE",
	"sql.dsn":                "SQL_DSN",
	"sql.path":               "SQL_PATH",
	"metrics.addr":           "METRICS_ADDR",
}

// LoadConfig loads the configuration from file, .env, environment variables and command-line arguments.
// Order of precedence: defaults < config file < .env < env vars < cmd flags.
func LoadConfig(configPath, envFile string, args []string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", true)
	v.SetDefault("server.trusted_proxies", []string{"0.0.0.0/0", "::/0"})
	v.SetDefault("workers.count", 1)
	v.SetDefault("workers.queue_size", 1024)
	v.SetDefault("log.level", "")
	v.SetDefault("geo.token", "")
	v.SetDefault("geo.cache_ttl", 14*24*time.Hour)
	v.SetDefault("geo.lookup_timeout", 3*time.Second)
	v.SetDefault("geo.lock_ttl", 10*time.Second)
	v.SetDefault("geo.lock_wait", 5*time.Second)
	v.SetDefault("response.type", "png")
	v.SetDefault("response.png_path", "")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.driver", "mongo")
	v.SetDefault("store.timeout", 5*time.Second)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "misuse")
	v.SetDefault("sql.dsn", "")
	v.SetDefault("sql.path", "db.sqlite")
	v.SetDefault("metrics.addr", ":9090")

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("config_path", configPath).Msg("Failed to read config file, relying on defaults, env, and flags")
		}
	}

	// .env never overrides variables already present in the process environment.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("env_file", envFile).Msg("Failed to read env file")
		}
	}

	for key, env := range envBindings {
		bindEnvOrPanic(v, key, env)
	}

	flags := flag.NewFlagSet("misuse-recorder", flag.ContinueOnError)
	port := flags.Int("port", 0, "Override listen port")
	workers := flags.Int("workers", 0, "Override capture worker count")
	logLevel := flags.String("log-level", "", "Override log level")
	storeDriver := flags.String("store-driver", "", "Override history store driver (mongo|sqlite|postgres|mysql)")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *port > 0 {
		v.Set("server.port", *port)
	}
	if *workers > 0 {
		v.Set("workers.count", *workers)
	}
	if *logLevel != "" {
		v.Set("log.level", *logLevel)
	}
	if *storeDriver != "" {
		v.Set("store.driver", *storeDriver)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
		if cfg.Server.Debug {
			cfg.Log.Level = "debug"
		}
	}
	cfg.Response.Type = strings.ToLower(strings.TrimSpace(cfg.Response.Type))
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func bindEnvOrPanic(v *viper.Viper, key, env string) {
	if err := v.BindEnv(key, env); err != nil {
		log.Fatal().Err(err).Msgf("Failed to bind environment variable %s to key %s", env, key)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be within 1-65535, got %d", cfg.Server.Port)
	}
	if cfg.Workers.Count <= 0 {
		return fmt.Errorf("worker count must be > 0, got %d", cfg.Workers.Count)
	}
	if cfg.Workers.QueueSize <= 0 {
		return fmt.Errorf("worker queue_size must be > 0, got %d", cfg.Workers.QueueSize)
	}

	switch cfg.Response.Type {
	case "png", "text":
	default:
		return fmt.Errorf("response type must be png or text, got %q", cfg.Response.Type)
	}

	switch cfg.Store.Driver {
	case "mongo":
		if cfg.Mongo.URI == "" {
			log.Warn().Msg("MONGO_URI not provided, using default")
		}
	case "sqlite":
	case "postgres", "mysql":
		if cfg.SQL.DSN == "" {
			return fmt.Errorf("store driver %s requires sql.dsn", cfg.Store.Driver)
		}
	default:
		return fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	if cfg.Geo.Token == "" {
		log.Warn().Msg("IPINFO_ACCESS_TOKEN not provided, geo lookups use the anonymous tier")
	}
	if cfg.Geo.CacheTTL <= 0 || cfg.Geo.LookupTimeout <= 0 || cfg.Geo.LockTTL <= 0 || cfg.Geo.LockWait <= 0 {
		return errors.New("geo cache_ttl, lookup_timeout, lock_ttl and lock_wait must be > 0")
	}
	if cfg.Geo.LockTTL <= cfg.Geo.LookupTimeout {
		return fmt.Errorf("geo lock_ttl (%s) must exceed lookup_timeout (%s)", cfg.Geo.LockTTL, cfg.Geo.LookupTimeout)
	}
	if cfg.Store.Timeout <= 0 {
		return fmt.Errorf("store timeout must be > 0, got %s", cfg.Store.Timeout)
	}

	return nil
}
