package handlers

import (
	"context"
	"net/http"

	"github.com/feyza/backend/internal/jobs"
	"github.com/gin-gonic/gin"
)

type Backfiller interface {
	Run(ctx context.Context, jobs []string) (*jobs.BackfillResult, error)
}

type Reconciler interface {
	Run(ctx context.Context) (*jobs.ReconcileResult, error)
}

type AdminHandler struct {
	backfill  Backfiller
	reconcile Reconciler
}

func NewAdminHandler(backfill Backfiller, reconcile Reconciler) *AdminHandler {
	return &AdminHandler{backfill: backfill, reconcile: reconcile}
}

func (h *AdminHandler) SystemHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Backfill runs synchronously; the jobs query selects a subset of
// tiers,vouches,scores and defaults to all three.
func (h *AdminHandler) Backfill(c *gin.Context) {
	selected, err := jobs.ParseJobs(c.Query("jobs"))
	if err != nil {
		respondError(c, err, "backfill_failed")
		return
	}
	res, err := h.backfill.Run(c.Request.Context(), selected)
	if err != nil {
		respondError(c, err, "backfill_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": selected, "result": res})
}

func (h *AdminHandler) Reconcile(c *gin.Context) {
	res, err := h.reconcile.Run(c.Request.Context())
	if err != nil {
		respondError(c, err, "reconcile_failed")
		return
	}
	c.JSON(http.StatusOK, res)
}
