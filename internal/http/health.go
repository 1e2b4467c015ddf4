package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/courseimport/internal/database"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"

	checkDisabled = "disabled"
	checkOK       = "ok"

	pingTimeout = 2 * time.Second
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Dependency is a component reported next to the database.
// A failing required dependency makes the service unhealthy, any other failure degrades it.
// A nil Pinger is reported as disabled.
type Dependency struct {
	Name     string
	Required bool
	Pinger   Pinger
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	db           *database.Database
	version      string
	dependencies []Dependency
}

func NewHealthController(db *database.Database, version string, dependencies ...Dependency) *HealthController {
	return &HealthController{
		db:           db,
		version:      version,
		dependencies: dependencies,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.dependencies)+1)
	status := statusHealthy

	if h.db == nil {
		checks["database"] = "not configured"
	} else if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "error: " + err.Error()
		status = statusUnhealthy
	} else {
		checks["database"] = checkOK
	}

	for _, dep := range h.dependencies {
		if dep.Pinger == nil {
			checks[dep.Name] = checkDisabled
			continue
		}
		if err := dep.Pinger.Ping(ctx); err != nil {
			checks[dep.Name] = "error: " + err.Error()
			if dep.Required {
				status = statusUnhealthy
			} else if status == statusHealthy {
				status = statusDegraded
			}
			continue
		}
		checks[dep.Name] = checkOK
	}

	statusCode := http.StatusOK
	if status == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	})
}
