package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(requestLogger(logger.Named("http")))
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version, cfg.Dependencies...)
	router.GET("/health", health.Status)

	api := router.Group("/api")

	if cfg.Runs != nil {
		importsController := NewImportsController(cfg.Runs, cfg.Queue, cfg.SyncTrigger, logger)
		api.POST("/imports", importsController.StartImport)
		api.GET("/imports", importsController.ListImports)
		api.GET("/imports/:id", importsController.GetImport)
		api.POST("/imports/sync", importsController.SyncNow)
	}

	if cfg.Audit != nil {
		auditController := NewAuditController(cfg.Audit, logger)
		api.GET("/audit", auditController.ListEvents)
	}

	if cfg.TaskStatus != nil {
		tasksController := NewTasksController(cfg.TaskStatus, logger)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
	}

	return router
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("Request", fields...)
		case c.Request.URL.Path == "/health":
			logger.Debug("Request", fields...)
		default:
			logger.Info("Request", fields...)
		}
	}
}
