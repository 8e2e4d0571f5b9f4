package admin

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("admin.module",
	fx.Provide(
		NewService,
		NewHandler,
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(h *Handler, engine *gin.Engine) {
	h.Register(engine)
}
