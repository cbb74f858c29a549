package main

import (
	"context"
	"time"

	"github.com/cankoe/misuse-recorder/internal/helpers"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connects and pings Redis and the configured history store.
	components, err := helpers.InitializeCommonComponents(ctx, "test-connections")
	if err != nil {
		log.Fatal().Err(err).Msg("Connection check failed")
	}
	defer components.CloseAll(context.Background())

	if err := components.History.Ping(ctx); err != nil {
		log.Fatal().Err(err).Str("driver", components.Config.Store.Driver).Msg("History store ping failed")
	}
	log.Info().Str("driver", components.Config.Store.Driver).Msg("History store connected successfully!")

	if err := components.RedisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("Redis ping failed")
	}
	log.Info().Msg("Redis connected successfully!")
}
