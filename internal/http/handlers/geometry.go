package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nfinit-engine/internal/engine"
	"github.com/yungbote/nfinit-engine/internal/export"
	"github.com/yungbote/nfinit-engine/internal/http/response"
	"github.com/yungbote/nfinit-engine/internal/kernel"
	"github.com/yungbote/nfinit-engine/internal/platform/apierr"
	"github.com/yungbote/nfinit-engine/internal/platform/ctxutil"
	"github.com/yungbote/nfinit-engine/internal/platform/logger"
	"github.com/yungbote/nfinit-engine/internal/preview"
	"github.com/yungbote/nfinit-engine/internal/services"
)

type GeometryHandler struct {
	log      *logger.Logger
	geometry services.GeometryService
}

func NewGeometryHandler(log *logger.Logger, geometry services.GeometryService) *GeometryHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &GeometryHandler{log: log.With("handler", "GeometryHandler"), geometry: geometry}
}

type meshRequest struct {
	Code   string `json:"code"`
	Format string `json:"format"`
}

type exportRequest struct {
	Code   string `json:"code"`
	Format string `json:"format"`
}

type previewRequest struct {
	Code   string `json:"code"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// POST /generate-mesh
func (h *GeometryHandler) GenerateMesh(c *gin.Context) {
	var req meshRequest
	if ae := bindRequest(c, &req, &req.Code); ae != nil {
		response.RespondAPIError(c, ae)
		return
	}
	format, err := export.ParseMeshFormat(req.Format)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.export(c, req.Code, format)
}

// POST /export
func (h *GeometryHandler) Export(c *gin.Context) {
	var req exportRequest
	if ae := bindRequest(c, &req, &req.Code); ae != nil {
		response.RespondAPIError(c, ae)
		return
	}
	format, err := export.ParseExportFormat(req.Format)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.export(c, req.Code, format)
}

// POST /preview
func (h *GeometryHandler) Preview(c *gin.Context) {
	var req previewRequest
	if ae := bindRequest(c, &req, &req.Code); ae != nil {
		response.RespondAPIError(c, ae)
		return
	}
	png, err := h.geometry.Preview(c.Request.Context(), req.Code, preview.Options{Width: req.Width, Height: req.Height})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="preview.png"`)
	c.Data(http.StatusOK, "image/png", png)
}

func (h *GeometryHandler) export(c *gin.Context, code string, format export.Format) {
	art, err := h.geometry.Export(c.Request.Context(), code, format)
	if err != nil {
		h.fail(c, err)
		return
	}
	// Runs after the body below has been written.
	defer art.Cleanup()

	f, err := os.Open(art.Path)
	if err != nil {
		h.fail(c, fmt.Errorf("%w: open output: %w", export.ErrExportFailed, err))
		return
	}
	defer f.Close()

	c.DataFromReader(http.StatusOK, art.Size, format.ContentType, f, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, format.Filename),
	})
}

func (h *GeometryHandler) fail(c *gin.Context, err error) {
	ae := Classify(err)
	if ae.Server() {
		fields := []interface{}{"status", ae.Status, "code", ae.Code, "error", err}
		h.log.Error("geometry request failed", append(fields, ctxutil.LogFields(c.Request.Context())...)...)
	}
	response.RespondAPIError(c, ae)
}

// bindRequest decodes the JSON body into dst and requires a non-blank code.
func bindRequest(c *gin.Context, dst any, code *string) *apierr.Error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.Newf(http.StatusRequestEntityTooLarge, "request_too_large",
				"request body exceeds %d bytes", tooLarge.Limit)
		}
		return apierr.Newf(http.StatusBadRequest, "invalid_request", "invalid request body: %w", err)
	}
	if strings.TrimSpace(*code) == "" {
		return apierr.New(http.StatusBadRequest, "invalid_request", errors.New("code is required"))
	}
	return nil
}

// Classify maps a pipeline error to its HTTP status, API code and the message
// shown to the caller.
func Classify(err error) *apierr.Error {
	if ae, ok := apierr.From(err); ok {
		return ae
	}
	switch {
	case errors.Is(err, kernel.ErrUnavailable):
		return apierr.Newf(http.StatusServiceUnavailable, "environment_unavailable",
			"Geometry kernel is not available: %v. Set NFINIT_KERNEL to one of: %s",
			err, strings.Join(kernel.Libraries(), ", "))
	case errors.Is(err, export.ErrInvalidFormat):
		return apierr.New(http.StatusBadRequest, "invalid_format", err)
	case errors.Is(err, engine.ErrNoResult):
		return apierr.New(http.StatusBadRequest, "no_result", engine.ErrNoResult)
	case errors.Is(err, engine.ErrLimitExceeded):
		return apierr.Newf(http.StatusBadRequest, "limit_exceeded", "Code execution failed: %v", err)
	case errors.Is(err, engine.ErrScriptExecution):
		return apierr.Newf(http.StatusBadRequest, "script_error", "Code execution failed: %v", err)
	case errors.Is(err, export.ErrExportFailed):
		return apierr.Newf(http.StatusInternalServerError, "export_failed", "Export failed: %v", err)
	default:
		return apierr.New(http.StatusInternalServerError, "internal_error", errors.New("internal server error"))
	}
}
