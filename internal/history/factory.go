package history

import (
	"context"
	"fmt"
	"time"

	"github.com/ziadkadry99/claimwise/internal/config"
	"github.com/ziadkadry99/claimwise/internal/db"
)

// New builds the store selected by cfg. database is only used by the
// sqlite backend.
func New(ctx context.Context, cfg config.HistoryConfig, database *db.DB) (Store, error) {
	switch cfg.Backend {
	case config.HistorySQLite, "":
		if database == nil {
			return nil, fmt.Errorf("sqlite history requires a database")
		}
		return NewSQLiteStore(database, cfg.MaxMessages), nil
	case config.HistoryRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:        cfg.RedisAddr,
			DB:          cfg.RedisDB,
			Prefix:      cfg.RedisKey,
			MaxMessages: cfg.MaxMessages,
			TTL:         time.Duration(cfg.TTL) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.Backend)
	}
}
