package app

import (
	"log/slog"

	"github.com/oggyb/matchpoint/internal/cache"
	"github.com/oggyb/matchpoint/internal/config"
	"github.com/oggyb/matchpoint/internal/event"
	"github.com/oggyb/matchpoint/internal/hub"
	"gorm.io/gorm"
)

// AppContext holds shared dependencies (DB, Redis, Logger, event bus,
// presence hub, config).
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Bus        *event.Bus
	Hub        *hub.Hub
	Cfg        *config.Config
}

// New creates a new AppContext
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, bus *event.Bus, h *hub.Hub, cfg *config.Config) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Bus:        bus,
		Hub:        h,
		Cfg:        cfg,
	}
}
