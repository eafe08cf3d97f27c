package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yungbote/nfinit-engine/internal/engine"
	"github.com/yungbote/nfinit-engine/internal/export"
	"github.com/yungbote/nfinit-engine/internal/platform/logger"
	"github.com/yungbote/nfinit-engine/internal/preview"
)

// GeometryService runs geometry scripts and turns their result into files.
// The format is validated by the caller before any script work starts.
type GeometryService interface {
	// Export executes code and serializes the resolved shape. The caller owns
	// the returned artifact and must call Cleanup after delivering it.
	Export(ctx context.Context, code string, format export.Format) (*export.Artifact, error)
	// Preview executes code and renders the resolved shape as a PNG.
	Preview(ctx context.Context, code string, opts preview.Options) ([]byte, error)
	// Ready reports whether the configured kernel can be imported.
	Ready() error
}

type geometryService struct {
	log        *logger.Logger
	executor   *engine.Executor
	dispatcher *export.Dispatcher
}

func NewGeometryService(log *logger.Logger, executor *engine.Executor, dispatcher *export.Dispatcher) GeometryService {
	if log == nil {
		log = logger.NewNop()
	}
	return &geometryService{
		log:        log.With("service", "GeometryService"),
		executor:   executor,
		dispatcher: dispatcher,
	}
}

func (s *geometryService) Export(ctx context.Context, code string, format export.Format) (*export.Artifact, error) {
	res, err := s.executor.Run(ctx, code)
	if err != nil {
		return nil, err
	}
	art, err := s.dispatcher.Export(ctx, res.Namespace, res.Shape, format)
	if err != nil {
		return nil, err
	}
	s.log.Info("geometry exported",
		"format", format.Keyword,
		"result", res.Name,
		"tier", res.Tier.String(),
		"bytes", art.Size,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return art, nil
}

func (s *geometryService) Preview(ctx context.Context, code string, opts preview.Options) ([]byte, error) {
	res, err := s.executor.Run(ctx, code)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := preview.Render(res.Shape.Mesh(), opts, &buf); err != nil {
		return nil, fmt.Errorf("%w: preview: %w", export.ErrExportFailed, err)
	}
	return buf.Bytes(), nil
}

func (s *geometryService) Ready() error {
	return s.executor.Ready()
}
