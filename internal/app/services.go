package app

import (
	"github.com/yungbote/nfinit-engine/internal/config"
	"github.com/yungbote/nfinit-engine/internal/engine"
	"github.com/yungbote/nfinit-engine/internal/export"
	"github.com/yungbote/nfinit-engine/internal/platform/logger"
	"github.com/yungbote/nfinit-engine/internal/services"

	// Registers the built-in kernel.
	_ "github.com/yungbote/nfinit-engine/internal/kernel/facet"
)

type Services struct {
	Executor   *engine.Executor
	Dispatcher *export.Dispatcher
	Geometry   services.GeometryService
}

// WireServices builds the execution pipeline shared by the HTTP API and the CLI.
func WireServices(log *logger.Logger, cfg *config.Config) Services {
	log.Info("Wiring services...")
	executor := engine.NewExecutor(engine.Config{
		Kernel:        cfg.Engine.Kernel,
		Timeout:       cfg.Engine.Timeout.Duration,
		MaxSteps:      cfg.Engine.MaxSteps,
		MaxConcurrent: cfg.Engine.MaxConcurrent,
	}, log)
	dispatcher := export.NewDispatcher(cfg.Export.TempDir, log)
	return Services{
		Executor:   executor,
		Dispatcher: dispatcher,
		Geometry:   services.NewGeometryService(log, executor, dispatcher),
	}
}
