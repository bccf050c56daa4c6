package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/feyza/backend/internal/domain/vouch"
	"github.com/feyza/backend/internal/graph"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type VouchService interface {
	CreateVouch(ctx context.Context, in vouch.CreateInput) (*vouch.CreateResult, error)
	RevokeVouch(ctx context.Context, vouchID, voucherID string) (*vouch.RevokeResult, error)
	RequestVouch(ctx context.Context, requesterID, voucherID, message string) (*trust.VouchRequest, error)
	AcceptRequest(ctx context.Context, requestID, voucherID string, in vouch.AcceptInput) (*vouch.CreateResult, error)
	DeclineRequest(ctx context.Context, requestID, voucherID string) (*trust.VouchRequest, error)
	ListForUser(ctx context.Context, userID string) (given, received []trust.Vouch, err error)
}

type NetworkReader interface {
	Network(ctx context.Context, userID string, depth int) ([]graph.Edge, error)
}

type VouchHandler struct {
	vouches VouchService
	network NetworkReader
}

// NewVouchHandler takes a nil network when no graph store is configured.
func NewVouchHandler(vouches VouchService, network NetworkReader) *VouchHandler {
	return &VouchHandler{vouches: vouches, network: network}
}

type vouchTermsRequest struct {
	VouchType    string `json:"vouch_type"`
	Relationship string `json:"relationship"`
	KnownYears   int    `json:"known_years"`
	Message      string `json:"message"`
}

func (r vouchTermsRequest) accept() vouch.AcceptInput {
	return vouch.AcceptInput{
		VouchType:    trust.VouchType(strings.ToLower(strings.TrimSpace(r.VouchType))),
		Relationship: trust.Relationship(strings.ToLower(strings.TrimSpace(r.Relationship))),
		KnownYears:   r.KnownYears,
		Message:      strings.TrimSpace(r.Message),
	}
}

func (h *VouchHandler) CreateVouch(c *gin.Context) {
	var req struct {
		VoucheeID string `json:"vouchee_id"`
		vouchTermsRequest
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	voucheeID := strings.TrimSpace(req.VoucheeID)
	if _, err := uuid.Parse(voucheeID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_vouchee_id"})
		return
	}
	terms := req.accept()
	res, err := h.vouches.CreateVouch(c.Request.Context(), vouch.CreateInput{
		VoucherID:    currentUserID(c),
		VoucheeID:    voucheeID,
		VouchType:    terms.VouchType,
		Relationship: terms.Relationship,
		KnownYears:   terms.KnownYears,
		Message:      terms.Message,
	})
	if err != nil {
		respondError(c, err, "create_vouch_failed")
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h *VouchHandler) RevokeVouch(c *gin.Context) {
	vouchID, ok := uuidParam(c, "vouchId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_vouch_id"})
		return
	}
	res, err := h.vouches.RevokeVouch(c.Request.Context(), vouchID, currentUserID(c))
	if err != nil {
		respondError(c, err, "revoke_vouch_failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *VouchHandler) RequestVouch(c *gin.Context) {
	var req struct {
		VoucherID string `json:"voucher_id"`
		Message   string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	voucherID := strings.TrimSpace(req.VoucherID)
	if _, err := uuid.Parse(voucherID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_voucher_id"})
		return
	}
	out, err := h.vouches.RequestVouch(c.Request.Context(), currentUserID(c), voucherID, req.Message)
	if err != nil {
		respondError(c, err, "request_vouch_failed")
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *VouchHandler) AcceptRequest(c *gin.Context) {
	requestID, ok := uuidParam(c, "requestId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_id"})
		return
	}
	var req vouchTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	res, err := h.vouches.AcceptRequest(c.Request.Context(), requestID, currentUserID(c), req.accept())
	if err != nil {
		respondError(c, err, "accept_request_failed")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *VouchHandler) DeclineRequest(c *gin.Context) {
	requestID, ok := uuidParam(c, "requestId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_id"})
		return
	}
	out, err := h.vouches.DeclineRequest(c.Request.Context(), requestID, currentUserID(c))
	if err != nil {
		respondError(c, err, "decline_request_failed")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *VouchHandler) ListVouches(c *gin.Context) {
	userID, ok := uuidParam(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_user_id"})
		return
	}
	given, received, err := h.vouches.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "list_vouches_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"given": given, "received": received})
}

func (h *VouchHandler) GetNetwork(c *gin.Context) {
	if h.network == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vouch_graph_unavailable"})
		return
	}
	userID, ok := uuidParam(c, "userId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_user_id"})
		return
	}
	depth := graph.DefaultNetworkDepth
	if raw := strings.TrimSpace(c.Query("depth")); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 1 || d > graph.MaxNetworkDepth {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_depth"})
			return
		}
		depth = d
	}
	edges, err := h.network.Network(c.Request.Context(), userID, depth)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "vouch_graph_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "depth": depth, "edges": edges})
}
