package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/vendweave-gateway/internal/api_gateway/middleware"
	"github.com/vendweave-gateway/internal/api_gateway/service"
	"github.com/vendweave-gateway/internal/domain/shared"
	"github.com/vendweave-gateway/internal/domain/verification"
)

// PaymentHandler handles HTTP requests for payment verification
type PaymentHandler struct {
	paymentService service.PaymentService
	reportService  service.ReportService
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, paymentService service.PaymentService, reportService service.ReportService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		reportService:  reportService,
		logger:         logger,
	}
}

// Verify checks a claimed payment and answers with the verification result
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, ok := h.bindAmount(c, req.Amount)
	if !ok {
		return
	}
	if !h.bindPaymentMethod(c, req.PaymentMethod) {
		return
	}

	result := h.paymentService.VerifyPayment(c.Request.Context(), shared.VerificationAttempt{
		OrderID:        strings.TrimSpace(req.OrderID),
		ExpectedAmount: amount,
		PaymentMethod:  req.PaymentMethod,
		TrxID:          strings.TrimSpace(req.TrxID),
		Reference:      strings.TrimSpace(req.Reference),
		CorrelationID:  middleware.GetCorrelationID(c),
	})

	RespondResult(c, result, nil)
}

// Poll is Verify for clients that poll by order while the customer pays
func (h *PaymentHandler) Poll(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		RespondBadRequest(c, "Order ID is required")
		return
	}

	var query PollQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.logger.Error("Invalid poll parameters", "error", err)
		RespondBadRequest(c, "Invalid query parameters")
		return
	}

	var rawAmount interface{}
	if query.Amount != "" {
		rawAmount = query.Amount
	}
	amount, ok := h.bindAmount(c, rawAmount)
	if !ok {
		return
	}
	if !h.bindPaymentMethod(c, query.PaymentMethod) {
		return
	}

	result := h.paymentService.VerifyPayment(c.Request.Context(), shared.VerificationAttempt{
		OrderID:        orderID,
		ExpectedAmount: amount,
		PaymentMethod:  query.PaymentMethod,
		TrxID:          strings.TrimSpace(query.TrxID),
		Reference:      strings.TrimSpace(query.Reference),
		CorrelationID:  middleware.GetCorrelationID(c),
	})

	limits := h.paymentService.PollingLimits()
	RespondResult(c, result, gin.H{
		"order_id": orderID,
		"polling": PollingResponse{
			IntervalMS:     limits.Interval.Milliseconds(),
			MaxRequests:    limits.MaxRequests,
			TimeoutSeconds: int64(limits.Timeout.Seconds()),
		},
	})
}

// ResolveAmount picks the payable amount out of an arbitrary order payload
func (h *PaymentHandler) ResolveAmount(c *gin.Context) {
	var orderData map[string]interface{}
	if err := c.ShouldBindJSON(&orderData); err != nil {
		h.logger.Error("Invalid order payload", "error", err)
		RespondBadRequest(c, "Order payload must be a JSON object")
		return
	}

	amount := h.reportService.ResolveAmount(orderData)
	RespondOK(c, gin.H{"amount": amount.StringFixed(2)})
}

// bindAmount writes the validation error itself and reports whether the handler may continue
func (h *PaymentHandler) bindAmount(c *gin.Context, raw interface{}) (decimal.Decimal, bool) {
	if verification.ValueString(raw) == "" {
		RespondWithError(c, http.StatusBadRequest, CodeMissingAmount, "Amount is required")
		return decimal.Zero, false
	}

	amount, ok := verification.ParseAmount(raw)
	if !ok || !amount.IsPositive() {
		h.logger.Info("Rejected amount", "amount", verification.ValueString(raw))
		RespondWithError(c, http.StatusBadRequest, CodeInvalidAmount, "Amount must be a positive number")
		return decimal.Zero, false
	}

	return amount, true
}

func (h *PaymentHandler) bindPaymentMethod(c *gin.Context, method string) bool {
	if shared.NormalizePaymentMethod(method) == "" {
		RespondWithError(c, http.StatusBadRequest, CodeMissingPaymentMethod, "Payment method is required")
		return false
	}
	return true
}
