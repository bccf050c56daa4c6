package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is an optional dependency checked by /ready. A failing check degrades
// the report without taking the instance out of rotation.
type Check struct {
	Name   string
	Pinger Pinger
}

type HealthHandler struct {
	database Pinger
	optional []Check
}

func NewHealthHandler(database Pinger, optional ...Check) *HealthHandler {
	return &HealthHandler{database: database, optional: optional}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := gin.H{}
	if h.database == nil || h.database.Ping(ctx) != nil {
		checks["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": checks})
		return
	}
	checks["database"] = "ok"

	status := "ready"
	for _, chk := range h.optional {
		if chk.Pinger == nil {
			continue
		}
		if err := chk.Pinger.Ping(ctx); err != nil {
			checks[chk.Name] = "error"
			status = "degraded"
			continue
		}
		checks[chk.Name] = "ok"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "checks": checks})
}
