package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/internal/service"
	"github.com/souldream/billing-service/pkg/logger"
)

// WebhookHandler обработчик вебхуков PayPal
type WebhookHandler struct {
	webhookSvc service.WebhookService
	log        *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(webhookSvc service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookSvc: webhookSvc,
		log:        log,
	}
}

// HandlePayPalWebhook принимает вебхук-событие PayPal.
// 200 возвращается только после полного применения события:
// на любой другой код PayPal доставит событие повторно.
func (h *WebhookHandler) HandlePayPalWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warn("Failed to read webhook body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	headers := domain.WebhookHeaders{
		TransmissionID:   c.GetHeader("Paypal-Transmission-Id"),
		TransmissionTime: c.GetHeader("Paypal-Transmission-Time"),
		TransmissionSig:  c.GetHeader("Paypal-Transmission-Sig"),
		CertURL:          c.GetHeader("Paypal-Cert-Url"),
		AuthAlgo:         c.GetHeader("Paypal-Auth-Algo"),
	}

	if err := h.webhookSvc.ProcessWebhook(c.Request.Context(), headers, body); err != nil {
		switch {
		case errors.Is(err, domain.ErrWebhookVerificationFailed):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Webhook verification failed"})
		case errors.Is(err, domain.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed webhook event"})
		default:
			h.log.Error("Failed to process webhook: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GetWebhookEvents возвращает последние записи журнала событий
func (h *WebhookHandler) GetWebhookEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.webhookSvc.GetRecentEvents(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("Failed to get webhook events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get webhook events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
