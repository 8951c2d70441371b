package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/nutridesk/nutridesk/internal/billing/domain"
	obsmetrics "github.com/nutridesk/nutridesk/internal/observability/metrics"
)

// WebhookLiveness answers the processor's endpoint check. No auth: the
// response carries no state beyond the current time.
func (s *Server) WebhookLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   s.clock.Now().Format(time.RFC3339),
	})
}

// HandleStripeWebhook hands the raw body to the reconciler. The body must
// not be re-serialized before verification. A duplicate delivery is
// acknowledged like a fresh one so the processor stops retrying it.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	start := time.Now()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		observeWebhook("unknown", http.StatusBadRequest, start)
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.billingSvc.IngestWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billingdomain.ErrEventAlreadyProcessed):
			observeWebhook(result.EventType, http.StatusOK, start)
			c.JSON(http.StatusOK, gin.H{"received": true})
		case errors.Is(err, billingdomain.ErrInvalidSignature),
			errors.Is(err, billingdomain.ErrInvalidPayload):
			observeWebhook(result.EventType, http.StatusBadRequest, start)
			AbortWithError(c, err)
		default:
			observeWebhook(result.EventType, http.StatusInternalServerError, start)
			AbortWithError(c, err)
		}
		return
	}

	observeWebhook(result.EventType, http.StatusOK, start)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func observeWebhook(eventType string, status int, start time.Time) {
	obsmetrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
	obsmetrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
}
