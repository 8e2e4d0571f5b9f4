package httpapi

import (
	"bundlesync/pkg/config"
	"bundlesync/pkg/health"
	"bundlesync/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(ProvideEngine),
	fx.Invoke(registerHealthRoutes),
)

// ProvideEngine builds the shared gin engine all services register routes on.
func ProvideEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.Error())
	return engine
}

func registerHealthRoutes(engine *gin.Engine, svc health.HealthService) {
	engine.GET("/healthz", svc.Liveness)
	engine.GET("/readyz", svc.Readiness)
}
