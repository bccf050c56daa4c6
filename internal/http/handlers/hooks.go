package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/feyza/backend/internal/domain/reputation"
	"github.com/feyza/backend/internal/domain/trust"
	"github.com/gin-gonic/gin"
)

type TrustHooks interface {
	OnLoanActivated(ctx context.Context, borrowerID, loanID string) (*reputation.ActivationResult, error)
	OnPaymentCompleted(ctx context.Context, in reputation.PaymentInput) (*reputation.PaymentResult, error)
	OnPaymentFailed(ctx context.Context, in reputation.PaymentFailedInput) (*reputation.PaymentResult, error)
	OnLoanDefaulted(ctx context.Context, in reputation.DefaultInput) (*reputation.DefaultResult, error)
}

// HooksHandler receives lifecycle notifications from the lending service.
// Every response carries success; side-effect failures ride along in the
// body and never turn a recorded primary effect into an error status.
type HooksHandler struct {
	hooks TrustHooks
}

func NewHooksHandler(hooks TrustHooks) *HooksHandler {
	return &HooksHandler{hooks: hooks}
}

func hookFailure(c *gin.Context, err error) {
	var verr *trust.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Error()})
	case errors.Is(err, trust.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not_found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "hook_failed"})
	}
}

func (h *HooksHandler) LoanActivated(c *gin.Context) {
	var req struct {
		BorrowerID string `json:"borrower_id"`
		LoanID     string `json:"loan_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request"})
		return
	}
	res, err := h.hooks.OnLoanActivated(c.Request.Context(), strings.TrimSpace(req.BorrowerID), strings.TrimSpace(req.LoanID))
	if err != nil {
		hookFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *HooksHandler) PaymentCompleted(c *gin.Context) {
	var req reputation.PaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request"})
		return
	}
	res, err := h.hooks.OnPaymentCompleted(c.Request.Context(), req)
	if err != nil {
		hookFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *HooksHandler) PaymentFailed(c *gin.Context) {
	var req reputation.PaymentFailedInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request"})
		return
	}
	res, err := h.hooks.OnPaymentFailed(c.Request.Context(), req)
	if err != nil {
		hookFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *HooksHandler) LoanDefaulted(c *gin.Context) {
	var req reputation.DefaultInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request"})
		return
	}
	res, err := h.hooks.OnLoanDefaulted(c.Request.Context(), req)
	if err != nil {
		hookFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
