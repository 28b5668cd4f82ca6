package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"workbench/internal/domain"
	"workbench/internal/registry"
	"workbench/internal/service"
)

const (
	ServiceName = "sql-workbench"
	Version     = "1.0.0"
)

type HealthResponse struct {
	Status           string                       `json:"status"`
	Timestamp        time.Time                    `json:"timestamp"`
	Service          string                       `json:"service"`
	Version          string                       `json:"version"`
	ActiveConnection *domain.ConnectionDescriptor `json:"activeConnection"`
	Subscribers      int                          `json:"subscribers"`
	Message          string                       `json:"message,omitempty"`
}

type HealthController struct {
	registry *registry.Registry
	hub      *service.Hub
}

func NewHealthController(r *registry.Registry, hub *service.Hub) *HealthController {
	return &HealthController{registry: r, hub: hub}
}

// HealthCheck reports whether the connection store can be read.
func (hc *HealthController) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Service:     ServiceName,
		Version:     Version,
		Subscribers: hc.hub.Subscribers(),
	}

	active, ok, err := hc.registry.Active(c.Request.Context())
	switch {
	case err != nil:
		response.Status = "unhealthy"
		response.Message = "Connection store unavailable: " + err.Error()
	case ok:
		response.ActiveConnection = &active
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}
