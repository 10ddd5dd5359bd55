package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/vendweave-gateway/internal/domain/verification"
)

const panicMessage = "Verification could not be completed, retry the request"

// Recovery answers a panic with a failed verification result so polling clients keep a
// single response shape and retry.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			correlationID := GetCorrelationID(c)
			orderID := c.Param("order_id")

			logger.Error("Panic recovered",
				"error", fmt.Sprint(recovered),
				"stack", string(debug.Stack()),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"route", c.FullPath(),
				"order_id", orderID,
				"correlation_id", correlationID,
			)

			body := verification.Failed(verification.CodeInternalError, panicMessage).ToMap()
			if orderID != "" {
				body["order_id"] = orderID
			}
			if correlationID != "" {
				body["correlation_id"] = correlationID
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		}()

		c.Next()
	}
}
