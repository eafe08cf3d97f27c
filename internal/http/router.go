package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/nfinit-engine/internal/http/handlers"
	httpMW "github.com/yungbote/nfinit-engine/internal/http/middleware"
	"github.com/yungbote/nfinit-engine/internal/observability"
	"github.com/yungbote/nfinit-engine/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	// MaxRequestBytes caps JSON request bodies. Zero disables the cap.
	MaxRequestBytes int64
	Metrics         *observability.Metrics

	GeometryHandler *httpH.GeometryHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Recover(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Geometry
	if cfg.GeometryHandler != nil {
		geometry := r.Group("/", httpMW.LimitBody(cfg.MaxRequestBytes))
		geometry.POST("/generate-mesh", cfg.GeometryHandler.GenerateMesh)
		geometry.POST("/export", cfg.GeometryHandler.Export)
		geometry.POST("/preview", cfg.GeometryHandler.Preview)
	}

	return r
}
