// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, drains queued notifications, then tears
// down the Kafka writer and DB connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if s := svc; s != nil {
		logger.Info("stopping job scheduler")
		s.scheduler.Stop()

		logger.Info("draining notification dispatcher")
		s.dispatcher.Stop()
		if err := s.publisher.Close(); err != nil {
			logger.Warn("notification publisher close failed", zap.Error(err))
		}

		s.limiter.Stop()
		svc = nil
	}

	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("Redis close failed", zap.Error(err))
		}
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
