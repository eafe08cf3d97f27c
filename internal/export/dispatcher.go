// Package export runs a kernel serializer into a private temporary directory
// and hands the produced file to the caller together with its cleanup.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/nfinit-engine/internal/kernel"
	"github.com/yungbote/nfinit-engine/internal/observability"
	"github.com/yungbote/nfinit-engine/internal/platform/ctxutil"
	"github.com/yungbote/nfinit-engine/internal/platform/logger"
)

var ErrExportFailed = errors.New("export failed")

// Serializers is the exporter table a shape was produced with.
type Serializers interface {
	Exporter(format string) (kernel.Exporter, bool)
}

type Dispatcher struct {
	root   string
	log    *logger.Logger
	tracer trace.Tracer
}

// NewDispatcher allocates job directories under root, or the system temp
// directory when root is empty.
func NewDispatcher(root string, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{
		root:   root,
		log:    log.With("component", "export"),
		tracer: otel.Tracer("github.com/yungbote/nfinit-engine/internal/export"),
	}
}

// Artifact is a serialized file awaiting delivery. Callers must call Cleanup
// once the file has been streamed.
type Artifact struct {
	Format Format
	JobID  string
	Path   string
	Size   int64

	dir  string
	log  *logger.Logger
	once sync.Once
}

// Cleanup removes the job directory. It is safe to call more than once and
// never fails; removal errors are only logged.
func (a *Artifact) Cleanup() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		if err := os.RemoveAll(a.dir); err != nil {
			a.log.Debug("export cleanup failed", "job_id", a.JobID, "dir", a.dir, "error", err)
			observability.Current().IncCleanupFailure()
		}
	})
}

// Export writes shape with the serializer for f into a fresh job directory.
// Every failure wraps ErrExportFailed and leaves nothing on disk. The job id is
// the request id carried by ctx, if any; the directory name stays unique
// either way.
func (d *Dispatcher) Export(ctx context.Context, set Serializers, shape kernel.Shape, f Format) (*Artifact, error) {
	jobID := ctxutil.RequestID(ctx)
	if !ctxutil.ValidID(jobID) {
		jobID = uuid.NewString()
	}
	_, span := d.tracer.Start(ctx, "export.Write", trace.WithAttributes(
		attribute.String("export.format", f.Keyword),
		attribute.String("export.job_id", jobID),
	))
	defer span.End()

	art, err := d.export(set, shape, f, jobID)
	status := "ok"
	var size int64
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		d.log.Warn("export failed", "job_id", jobID, "format", f.Keyword, "error", err)
	} else {
		size = art.Size
		span.SetAttributes(attribute.Int64("export.bytes", size))
	}
	observability.Current().ObserveExport(f.Keyword, status, size)
	return art, err
}

func (d *Dispatcher) export(set Serializers, shape kernel.Shape, f Format, jobID string) (*Artifact, error) {
	exp, ok := set.Exporter(f.Kernel)
	if !ok || exp == nil {
		return nil, fmt.Errorf("%w: no %s serializer", ErrExportFailed, f.Kernel)
	}
	if shape == nil {
		return nil, fmt.Errorf("%w: no shape", ErrExportFailed)
	}

	dir, err := os.MkdirTemp(d.root, "nfinit-"+jobID+"-")
	if err != nil {
		return nil, fmt.Errorf("%w: allocate job directory: %w", ErrExportFailed, err)
	}
	art := &Artifact{
		Format: f,
		JobID:  jobID,
		Path:   filepath.Join(dir, "output."+f.Ext),
		dir:    dir,
		log:    d.log,
	}

	wrote, err := runExporter(exp, shape, art.Path, kernel.ExportOptions{Binary: f.Binary})
	switch {
	case err != nil:
		art.Cleanup()
		return nil, fmt.Errorf("%w: %s serializer: %w", ErrExportFailed, f.Kernel, err)
	case !wrote:
		art.Cleanup()
		return nil, fmt.Errorf("%w: %s serializer reported failure", ErrExportFailed, f.Kernel)
	}

	info, err := os.Stat(art.Path)
	switch {
	case err != nil:
		art.Cleanup()
		return nil, fmt.Errorf("%w: %s serializer wrote no file: %w", ErrExportFailed, f.Kernel, err)
	case info.Size() == 0:
		art.Cleanup()
		return nil, fmt.Errorf("%w: %s serializer wrote an empty file", ErrExportFailed, f.Kernel)
	}
	art.Size = info.Size()
	d.log.Debug("export written", "job_id", jobID, "format", f.Keyword, "bytes", art.Size)
	return art, nil
}

func runExporter(exp kernel.Exporter, shape kernel.Shape, path string, opts kernel.ExportOptions) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok, err = false, fmt.Errorf("serializer panic: %v", rec)
		}
	}()
	return exp(shape, path, opts)
}
