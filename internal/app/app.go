package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nfinit-engine/internal/config"
	httpapi "github.com/yungbote/nfinit-engine/internal/http"
	"github.com/yungbote/nfinit-engine/internal/observability"
	"github.com/yungbote/nfinit-engine/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Config   *config.Config
	Router   *gin.Engine
	Services Services

	server       *http.Server
	shutdownOTel func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig wires the service from an already loaded configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tr := cfg.Observability.Tracing
	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     tr.Enabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Version:     cfg.Version,
		Endpoint:    tr.Endpoint,
		Headers:     tr.Headers,
		Insecure:    tr.Insecure,
		SampleRatio: tr.SampleRatio,
	})
	metrics := observability.Init(log, cfg.Observability.MetricsEnabled)

	serviceset := WireServices(log, cfg)
	handlerset := wireHandlers(log, serviceset)
	router := wireRouter(log, cfg, handlerset, metrics)

	if err := serviceset.Geometry.Ready(); err != nil {
		log.Warn("geometry kernel not ready; requests will fail until it is", "kernel", cfg.Engine.Kernel, "error", err)
	}

	return &App{
		Log:      log,
		Config:   cfg,
		Router:   router,
		Services: serviceset,
		server: httpapi.NewServer(httpapi.ServerConfig{
			Addr:              cfg.HTTP.Addr,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
			IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
		}, router),
		shutdownOTel: shutdownOTel,
	}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return errors.New("app not initialized")
	}
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("http server listening", "addr", a.Config.HTTP.Addr, "kernel", a.Config.Engine.Kernel)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.Log.Info("shutting down",
			"reason", context.Cause(ctx).Error(),
			"timeout", a.Config.HTTP.ShutdownTimeout.Duration.String(),
		)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.shutdownOTel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		if err := a.shutdownOTel(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
		a.shutdownOTel = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
