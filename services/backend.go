// services/backend.go - Store selection from configuration
package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wizzzard/config"
	"wizzzard/database"
	"wizzzard/docstore"
	"wizzzard/logger"
)

// Backend bundles the stores a process runs on.
type Backend struct {
	Quizzes docstore.Store
	Users   UserStore
	Broker  docstore.Broker
}

// OpenBackend connects the configured quiz and user stores. Change
// notifications go through Redis when RedisURL is set so several replicas
// can serve the same session.
func OpenBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	var broker docstore.Broker
	if cfg.RedisURL != "" {
		rb, err := docstore.NewRedisBroker(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Log.Info("✅ Redis broker connected")
		broker = rb
	} else {
		broker = docstore.NewLocalBroker()
	}

	switch cfg.StoreBackend {
	case "memory":
		logger.Log.Warn("Using in-memory store, data is lost on restart")
		return &Backend{
			Quizzes: docstore.NewMemoryStore(broker),
			Users:   NewMemoryUserStore(),
			Broker:  broker,
		}, nil

	case "postgres":
		db, err := database.InitDB(cfg)
		if err != nil {
			_ = broker.Close()
			return nil, err
		}
		return &Backend{
			Quizzes: docstore.NewGormStore(db, broker),
			Users:   NewGormUserStore(db),
			Broker:  broker,
		}, nil
	}

	_ = broker.Close()
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// Close releases the broker and database connection.
func (b *Backend) Close() {
	if err := b.Broker.Close(); err != nil {
		logger.Log.Warn("failed to close broker", zap.Error(err))
	}
	if err := database.CloseDB(); err != nil {
		logger.Log.Warn("failed to close database", zap.Error(err))
	}
}
