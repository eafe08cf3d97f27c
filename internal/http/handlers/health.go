package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nfinit-engine/internal/http/response"
	"github.com/yungbote/nfinit-engine/internal/services"
)

type HealthHandler struct {
	geometry services.GeometryService
}

func NewHealthHandler(geometry services.GeometryService) *HealthHandler {
	return &HealthHandler{geometry: geometry}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Ready fails while the configured kernel cannot be imported.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.geometry != nil {
		if err := h.geometry.Ready(); err != nil {
			response.RespondAPIError(c, Classify(err))
			return
		}
	}
	c.String(http.StatusOK, "ok")
}
