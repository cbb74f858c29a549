package helpers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cankoe/misuse-recorder/internal/config"
	"github.com/cankoe/misuse-recorder/internal/database"
	"github.com/cankoe/misuse-recorder/internal/history"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type AppComponents struct {
	Config      *config.Config
	RedisClient *redis.Client
	History     history.Store
}

func InitializeCommonComponents(ctx context.Context, serviceName string) (*AppComponents, error) {
	cfg, err := config.LoadConfig("config/config.yaml", ".env", os.Args[1:])
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	ConfigureLogging(cfg)
	log.Info().Msgf("Starting %s service with log level %s...", serviceName, zerolog.GlobalLevel().String())

	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}

	store, err := OpenHistory(ctx, cfg)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	return &AppComponents{
		Config:      cfg,
		RedisClient: redisClient,
		History:     store,
	}, nil
}

// ConfigureLogging sets the global zerolog level; debug mode also switches to
// human-readable console output.
func ConfigureLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Msgf("Invalid log level '%s', defaulting to info", cfg.Log.Level)
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.Server.Debug {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// OpenHistory connects the history store selected by store.driver.
func OpenHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.Store.Driver {
	case "mongo":
		client, err := database.NewMongoClient(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		return history.NewMongoStore(client, client.Database(cfg.Mongo.Database)), nil
	default:
		db, err := database.OpenSQL(database.SQLConfig{
			Driver: cfg.Store.Driver,
			DSN:    cfg.SQL.DSN,
			Path:   cfg.SQL.Path,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
		}
		store, err := history.NewSQLStore(db)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", cfg.Store.Driver).Msg("SQL history store ready")
		return store, nil
	}
}

func (c *AppComponents) CloseAll(ctx context.Context) {
	if err := c.History.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to close history store")
	}
	if err := c.RedisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close Redis client")
	}
}
