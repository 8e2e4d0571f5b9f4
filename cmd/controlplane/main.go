package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"bundlesync/internal/platform"
	pkgasynq "bundlesync/pkg/asynq"
	"bundlesync/pkg/config"
	"bundlesync/pkg/db"
	"bundlesync/pkg/health"
	"bundlesync/pkg/httpapi"
	"bundlesync/pkg/logger"
	"bundlesync/pkg/redis"
	"bundlesync/pkg/server"
	"bundlesync/services/admin"
	"bundlesync/services/bundle"
	"bundlesync/services/checkout"
	"bundlesync/services/sync"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		pkgasynq.Client,
		health.Module,
		httpapi.Module,
		fx.Provide(provideSnowflakeNode),
		platform.Module,
		bundle.Module,
		sync.Module,
		admin.Module,
		checkout.Module,
		server.ProvideHTTPServer,
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

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
