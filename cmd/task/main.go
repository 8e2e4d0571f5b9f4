package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"bundlesync/internal/platform"
	pkgasynq "bundlesync/pkg/asynq"
	"bundlesync/pkg/config"
	"bundlesync/pkg/db"
	"bundlesync/pkg/logger"
	"bundlesync/pkg/redis"
	"bundlesync/services/bundle"
	"bundlesync/services/sync"
	synctask "bundlesync/services/sync/task"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		pkgasynq.Server,
		platform.Module,
		bundle.Module,
		sync.Module,
		synctask.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
