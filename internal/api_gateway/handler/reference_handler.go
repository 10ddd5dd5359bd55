package handler

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vendweave-gateway/internal/api_gateway/middleware"
	"github.com/vendweave-gateway/internal/api_gateway/service"
	"github.com/vendweave-gateway/internal/domain/reference"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/domain/verification"
)

// ReferenceHandler handles HTTP requests for reference governance
type ReferenceHandler struct {
	referenceService service.ReferenceService
	logger           *slog.Logger
}

// NewReferenceHandler creates a new reference handler
func NewReferenceHandler(logger *slog.Logger, referenceService service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{
		referenceService: referenceService,
		logger:           logger,
	}
}

// Reserve claims a reference code for an order before the customer pays
func (h *ReferenceHandler) Reserve(c *gin.Context) {
	var req ReserveReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, _ := verification.ParseAmount(req.Amount)

	ref, err := h.referenceService.Reserve(c.Request.Context(), shared.VerificationAttempt{
		OrderID:        strings.TrimSpace(req.OrderID),
		ExpectedAmount: amount,
		PaymentMethod:  req.PaymentMethod,
		Reference:      strings.TrimSpace(req.Reference),
		CorrelationID:  middleware.GetCorrelationID(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, reference.ErrActiveReferenceExists):
			RespondConflict(c, "Reference "+req.Reference+" is already active in this store")
		case errors.Is(err, reference.ErrGovernanceDisabled):
			RespondUnavailable(c, "Reference governance is disabled")
		case errors.Is(err, reference.ErrEmptyReference), errors.Is(err, reference.ErrEmptyOrderID):
			RespondBadRequest(c, err.Error())
		default:
			h.logger.Error("Failed to reserve reference", "reference", req.Reference, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapReferenceToResponse(ref))
}

// Cancel aborts a reserved reference
func (h *ReferenceHandler) Cancel(c *gin.Context) {
	code := strings.TrimSpace(c.Param("reference"))

	ref, err := h.referenceService.Cancel(c.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, reference.ErrReferenceNotFound{}), errors.Is(err, reference.ErrStoreMismatch):
			RespondNotFound(c, "Reference not found")
		case errors.Is(err, reference.ErrNotCancellable):
			RespondConflict(c, "Only reserved references can be cancelled")
		case errors.Is(err, reference.ErrGovernanceDisabled):
			RespondUnavailable(c, "Reference governance is disabled")
		default:
			h.logger.Error("Failed to cancel reference", "reference", code, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, mapReferenceToResponse(ref))
}

// Stats reports how many references sit in each lifecycle state
func (h *ReferenceHandler) Stats(c *gin.Context) {
	counts, err := h.referenceService.Stats(c.Request.Context())
	if err != nil {
		if errors.Is(err, reference.ErrGovernanceDisabled) {
			RespondUnavailable(c, "Reference governance is disabled")
			return
		}
		h.logger.Error("Failed to get reference stats", "error", err)
		RespondInternalError(c)
		return
	}

	stats := make(map[string]int64, len(reference.AllStatuses))
	for _, status := range reference.AllStatuses {
		stats[status.Lower()] = counts[status]
	}

	RespondOK(c, stats)
}
