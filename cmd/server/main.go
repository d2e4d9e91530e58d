package main

import (
	"context"

	"github.com/oggyb/matchpoint/internal/app"
	"github.com/oggyb/matchpoint/internal/auth"
	"github.com/oggyb/matchpoint/internal/cache"
	"github.com/oggyb/matchpoint/internal/config"
	"github.com/oggyb/matchpoint/internal/db"
	"github.com/oggyb/matchpoint/internal/event"
	"github.com/oggyb/matchpoint/internal/hub"
	"github.com/oggyb/matchpoint/internal/logger"
	"github.com/oggyb/matchpoint/internal/server"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	// Realtime fabric: presence hub with a Redis relay for multi-process
	// deployments, plus the event bus feeding the notification router.
	presence := hub.New(log, hub.Options{
		SendBuffer:  cfg.Limits.SendBuffer,
		GroupBuffer: cfg.Limits.GroupBuffer,
		Relay:       cache.NewBroadcastRelay(redisCache),
	})
	bus := event.NewBus()
	event.NewRouter(presence, log).Bind(bus)

	appCtx := app.New(database, redisCache, log, bus, presence, cfg)

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	relayCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := presence.RunRelay(relayCtx); err != nil && relayCtx.Err() == nil {
			log.Error("relay listener stopped", "err", err)
		}
	}()

	srv := server.New(appCtx, auth.NewJWTVerifier(cfg.Auth.JWTSecret))
	if err := srv.Start(); err != nil {
		log.Error("failed to start http server", "err", err)
	}
}
