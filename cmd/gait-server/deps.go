package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gorm.io/gorm/logger"

	"github.com/DTPriya20/click-gait/internal/classifier"
	"github.com/DTPriya20/click-gait/internal/config"
	"github.com/DTPriya20/click-gait/internal/store"
	"github.com/DTPriya20/click-gait/internal/store/cookie"
	"github.com/DTPriya20/click-gait/internal/store/memory"
	"github.com/DTPriya20/click-gait/internal/store/postgres"
	"github.com/DTPriya20/click-gait/internal/store/redis"
	"github.com/DTPriya20/click-gait/internal/store/sqlite"
	"github.com/DTPriya20/click-gait/internal/watcher"
)

const purgeInterval = 5 * time.Minute

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	ttl := cfg.SessionTTL()

	switch cfg.Store {
	case config.StoreMemory:
		st := memory.New(ttl)
		st.StartCleanup(memory.CleanupInterval)
		return st, nil
	case config.StoreSQLite:
		return sqlite.NewStore(sqlite.Config{Path: cfg.DBPath, MaxConns: cfg.MaxConns, TTL: ttl})
	case config.StorePostgres:
		return postgres.NewStore(postgres.Config{DSN: cfg.PostgresDSN, MaxConns: cfg.MaxConns, TTL: ttl, LogLevel: logger.Warn})
	case config.StoreRedis:
		return redis.NewStore(ctx, redis.Config{Addr: cfg.RedisAddr, MaxIdle: cfg.MaxConns, TTL: ttl})
	case config.StoreCookie:
		return cookie.NewStore(cookie.Config{Secret: cfg.SessionSecret, TTL: ttl})
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// openClassifier connects to the remote classifier when one is configured,
// otherwise loads the local model. A missing local model is not fatal: the
// model watcher loads it once it appears.
func openClassifier(cfg *config.Config) (classifier.Classifier, func(), error) {
	if cfg.ClassifierAddr != "" {
		conn, err := grpc.NewClient(cfg.ClassifierAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("dial classifier: %w", err)
		}
		log.Info().Str("addr", cfg.ClassifierAddr).Msg("Using remote classifier")
		return classifier.NewRemote(conn), func() { _ = conn.Close() }, nil
	}

	local, err := classifier.NewLocal(cfg.ModelPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.ModelPath).Msg("Classifier model not loaded, predictions unavailable until it is")
		local = classifier.NewLocalPending(cfg.ModelPath)
	}
	return local, func() {}, nil
}

type expiringStore interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// purgeExpired removes expired rows from database-backed stores until ctx ends.
func purgeExpired(ctx context.Context, st store.Store) error {
	es, ok := st.(expiringStore)
	if !ok {
		return nil
	}
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := es.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to purge expired sessions")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("Purged expired sessions")
			}
		}
	}
}

// startWatchers reloads the local model when its file changes and stops the
// server when the settings file changes so the supervisor restarts it with
// the new settings.
func startWatchers(cls classifier.Classifier, stop context.CancelFunc) func() {
	var watchers []*watcher.Watcher

	if local, ok := cls.(*classifier.Local); ok && local.Path() != "" {
		w, err := watcher.New(local.Path(), func(c watcher.Change) {
			if c.Removed {
				log.Warn().Str("path", c.Path).Msg("Model file removed, keeping loaded model")
				return
			}
			if err := local.Reload(); err != nil {
				log.Error().Err(err).Str("path", c.Path).Msg("Model reload failed, keeping previous model")
			}
		})
		if err == nil {
			if err = w.Start(); err == nil {
				watchers = append(watchers, w)
			}
		}
		if err != nil {
			log.Warn().Err(err).Str("path", local.Path()).Msg("Model hot reload disabled")
		}
	}

	w, err := watcher.New(config.SettingsPath(), func(c watcher.Change) {
		log.Info().Str("path", c.Path).Msg("Settings changed, exiting for restart")
		stop()
	})
	if err == nil {
		if err = w.Start(); err == nil {
			watchers = append(watchers, w)
		}
	}
	if err != nil {
		log.Warn().Err(err).Msg("Settings watcher disabled")
	}

	return func() {
		for _, w := range watchers {
			_ = w.Stop()
		}
	}
}
