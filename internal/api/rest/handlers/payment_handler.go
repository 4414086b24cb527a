package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/souldream/billing-service/internal/api/rest/middleware"
	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/internal/service"
	"github.com/souldream/billing-service/pkg/logger"
)

// PaymentHandler обработчик разовых платежей и истории
type PaymentHandler struct {
	paymentSvc service.PaymentService
	log        *logger.Logger
}

// NewPaymentHandler создает новый обработчик платежей
func NewPaymentHandler(paymentSvc service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentSvc: paymentSvc,
		log:        log,
	}
}

// CreateOrder создает разовый заказ PayPal
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	var req domain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.paymentSvc.CreateOrder(c.Request.Context(), userID, req)
	if err != nil {
		h.log.Error("Failed to create order: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// CaptureOrder списывает средства по одобренному заказу
func (h *PaymentHandler) CaptureOrder(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	orderID := c.Param("id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order id is required"})
		return
	}

	payment, err := h.paymentSvc.CaptureOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOperation) {
			c.JSON(http.StatusConflict, gin.H{"error": "Order is not completed"})
			return
		}
		h.log.Error("Failed to capture order: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to capture order"})
		return
	}

	c.JSON(http.StatusOK, payment)
}

// GetPayments возвращает историю платежей пользователя
func (h *PaymentHandler) GetPayments(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	payments, err := h.paymentSvc.GetHistory(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Failed to get payment history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get payment history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
