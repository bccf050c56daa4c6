package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/settings"
	"github.com/gin-gonic/gin"
)

type ScoreService interface {
	GetFreshScore(ctx context.Context, userID string, maxAge time.Duration) (*trust.Score, bool, error)
	Recalculate(ctx context.Context, userID string) (*trust.Score, error)
}

type TierService interface {
	GetTier(ctx context.Context, userID string, freshness time.Duration) (*trust.TierInfo, error)
}

type EventHistory interface {
	History(ctx context.Context, userID string, limit, offset int32) ([]trust.Event, error)
}

type SettingsProvider interface {
	Get(ctx context.Context) (settings.Settings, error)
}

type TrustHandler struct {
	scores   ScoreService
	tiers    TierService
	events   EventHistory
	settings SettingsProvider
}

func NewTrustHandler(scores ScoreService, tiers TierService, events EventHistory, settings SettingsProvider) *TrustHandler {
	return &TrustHandler{scores: scores, tiers: tiers, events: events, settings: settings}
}

// current serves defaults when the settings store is unreachable.
func (h *TrustHandler) current(ctx context.Context) settings.Settings {
	s, _ := h.settings.Get(ctx)
	return s
}

func (h *TrustHandler) GetScore(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_user_id"})
		return
	}
	maxAge := h.current(c.Request.Context()).ScoreStaleAfter
	if raw, set := c.GetQuery("max_age"); set {
		d, ok := parseMaxAge(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_max_age"})
			return
		}
		maxAge = d
	}
	score, recalculated, err := h.scores.GetFreshScore(c.Request.Context(), userID, maxAge)
	if err != nil {
		respondError(c, err, "trust_score_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"trust_score": score, "recalculated": recalculated})
}

func (h *TrustHandler) Recalculate(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_user_id"})
		return
	}
	if !canActFor(c, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	score, err := h.scores.Recalculate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "recalculate_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"trust_score": score, "recalculated": true})
}

func (h *TrustHandler) GetTier(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_user_id"})
		return
	}
	info, err := h.tiers.GetTier(c.Request.Context(), userID, h.current(c.Request.Context()).TierFreshness)
	if err != nil {
		respondError(c, err, "trust_tier_failed")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *TrustHandler) ListEvents(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_user_id"})
		return
	}
	if !canActFor(c, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	limit, offset := pageParams(c)
	items, err := h.events.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err, "trust_events_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
