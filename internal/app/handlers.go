package app

import (
	httpH "github.com/yungbote/nfinit-engine/internal/http/handlers"
	"github.com/yungbote/nfinit-engine/internal/platform/logger"
)

type Handlers struct {
	Geometry *httpH.GeometryHandler
	Health   *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Geometry: httpH.NewGeometryHandler(log, services.Geometry),
		Health:   httpH.NewHealthHandler(services.Geometry),
	}
}
