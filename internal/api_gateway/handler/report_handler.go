package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vendweave-gateway/internal/api_gateway/service"
	"github.com/vendweave-gateway/internal/domain/audit"
	"github.com/vendweave-gateway/internal/domain/financial"
)

// ReportHandler handles HTTP requests for financial and audit reporting
type ReportHandler struct {
	reportService service.ReportService
	logger        *slog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(logger *slog.Logger, reportService service.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// FinancialStats reports how many financial records sit in each status
func (h *ReportHandler) FinancialStats(c *gin.Context) {
	counts, err := h.reportService.FinancialStats(c.Request.Context())
	if err != nil {
		if errors.Is(err, financial.ErrFinancialDisabled) {
			RespondUnavailable(c, "Financial tracking is disabled")
			return
		}
		h.logger.Error("Failed to get financial stats", "error", err)
		RespondInternalError(c)
		return
	}

	stats := make(map[string]int64, len(financial.AllStatuses))
	for _, status := range financial.AllStatuses {
		stats[strings.ToLower(string(status))] = counts[status]
	}

	RespondOK(c, stats)
}

// Reconciliation totals every gateway's payments for an order
func (h *ReportHandler) Reconciliation(c *gin.Context) {
	orderID := c.Param("order_id")

	reconciliation, err := h.reportService.Reconcile(c.Request.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, financial.ErrNoOrderRecords):
			RespondNotFound(c, "No financial records for order "+orderID)
		case errors.Is(err, financial.ErrFinancialDisabled):
			RespondUnavailable(c, "Financial tracking is disabled")
		default:
			h.logger.Error("Failed to reconcile order", "order_id", orderID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, reconciliation)
}

// Events lists the audit trail of verification outcomes for an order, newest first
func (h *ReportHandler) Events(c *gin.Context) {
	orderID := c.Param("order_id")

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.reportService.OrderEvents(c.Request.Context(), orderID, pagination.Limit, pagination.Offset)
	if err != nil {
		h.logger.Error("Failed to get order events", "order_id", orderID, "error", err)
		RespondInternalError(c)
		return
	}

	if entries == nil {
		entries = []*audit.Entry{}
	}

	RespondWithPaginatedData(c, http.StatusOK, entries, pagination.Limit, pagination.Offset, total)
}
