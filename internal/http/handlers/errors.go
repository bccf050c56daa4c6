package handlers

import (
	"errors"
	"net/http"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto the API's status codes. code names the
// failed operation and is only surfaced for unexpected errors.
func respondError(c *gin.Context, err error, code string) {
	var verr *trust.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "field": verr.Field, "message": verr.Message})
	case errors.Is(err, trust.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, trust.ErrInvalidTier):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tier"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": code})
	}
}
