package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/nfinit-engine/internal/config"
	httpapi "github.com/yungbote/nfinit-engine/internal/http"
	"github.com/yungbote/nfinit-engine/internal/observability"
	"github.com/yungbote/nfinit-engine/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg *config.Config, handlers Handlers, metrics *observability.Metrics) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	serviceName := ""
	if cfg.Observability.Tracing.Enabled {
		serviceName = cfg.ServiceName
	}
	return httpapi.NewRouter(httpapi.RouterConfig{
		Log:             log,
		ServiceName:     serviceName,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		MaxRequestBytes: cfg.HTTP.MaxRequestBytes,
		Metrics:         metrics,
		GeometryHandler: handlers.Geometry,
		HealthHandler:   handlers.Health,
	})
}
