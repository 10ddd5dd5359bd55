package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/vendweave-gateway/internal/api_gateway/handler"
	"github.com/vendweave-gateway/internal/api_gateway/middleware"
)

const serviceName = "vendweave-gateway"

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	pollLimiter *limiter.Limiter,
	paymentHandler *handler.PaymentHandler,
	referenceHandler *handler.ReferenceHandler,
	reportHandler *handler.ReportHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	throttle := middleware.RateLimit(logger, pollLimiter)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/payments/verify", throttle, paymentHandler.Verify)

		orders := v1.Group("/orders")
		{
			orders.POST("/resolve-amount", paymentHandler.ResolveAmount)
			orders.GET("/:order_id/poll", throttle, paymentHandler.Poll)
			orders.GET("/:order_id/reconciliation", reportHandler.Reconciliation)
			orders.GET("/:order_id/events", reportHandler.Events)
		}

		// Reference governance
		references := v1.Group("/references")
		{
			references.POST("", referenceHandler.Reserve)
			references.GET("/stats", referenceHandler.Stats)
			references.DELETE("/:reference", referenceHandler.Cancel)
		}

		v1.GET("/financial-records/stats", reportHandler.FinancialStats)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName, "timestamp": time.Now().UTC()})
	})
}
