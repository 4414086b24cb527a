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

// SubscriptionHandler обработчик жизненного цикла подписок
type SubscriptionHandler struct {
	subscriptionSvc service.SubscriptionService
	log             *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(subscriptionSvc service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionSvc: subscriptionSvc,
		log:             log,
	}
}

// CreateSubscription оформляет подписку на план
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	var req domain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.subscriptionSvc.Subscribe(c.Request.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPlanNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
		case errors.Is(err, domain.ErrSubscriptionExists):
			c.JSON(http.StatusConflict, gin.H{"error": "Active subscription already exists"})
		case errors.Is(err, domain.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan id"})
		default:
			h.log.Error("Failed to create subscription: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ConfirmSubscription подтверждает подписку после одобрения в PayPal.
// Вызывается GET-редиректом со страницы одобрения, идентификатор
// подписки PayPal приходит в query-параметре subscription_id.
func (h *SubscriptionHandler) ConfirmSubscription(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	providerSubscriptionID := c.Query("subscription_id")
	if providerSubscriptionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subscription_id query parameter is required"})
		return
	}

	sub, err := h.subscriptionSvc.Confirm(c.Request.Context(), userID, providerSubscriptionID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSubscriptionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		case errors.Is(err, domain.ErrInvalidOperation):
			c.JSON(http.StatusConflict, gin.H{"error": "Subscription is not approved yet"})
		default:
			h.log.Error("Failed to confirm subscription: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm subscription"})
		}
		return
	}

	c.JSON(http.StatusOK, sub)
}

// GetCurrentSubscription возвращает активную подписку пользователя
func (h *SubscriptionHandler) GetCurrentSubscription(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	sub, err := h.subscriptionSvc.GetCurrent(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSubscription) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No active subscription"})
			return
		}
		h.log.Error("Failed to get current subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get subscription"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// CancelSubscription немедленно отменяет активную подписку
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	// Тело запроса необязательно: без него причина остается пустой
	var req domain.CancelSubscriptionRequest
	_ = c.ShouldBindJSON(&req)

	sub, err := h.subscriptionSvc.Cancel(c.Request.Context(), userID, req.Reason)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSubscription) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No active subscription"})
			return
		}
		h.log.Error("Failed to cancel subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel subscription"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// SuspendSubscription приостанавливает активную подписку
func (h *SubscriptionHandler) SuspendSubscription(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	var req domain.SuspendSubscriptionRequest
	_ = c.ShouldBindJSON(&req)

	sub, err := h.subscriptionSvc.Suspend(c.Request.Context(), userID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoActiveSubscription):
			c.JSON(http.StatusNotFound, gin.H{"error": "No active subscription"})
		case errors.Is(err, domain.ErrInvalidOperation):
			c.JSON(http.StatusConflict, gin.H{"error": "Subscription cannot be suspended"})
		default:
			h.log.Error("Failed to suspend subscription: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to suspend subscription"})
		}
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ReactivateSubscription возобновляет приостановленную подписку
func (h *SubscriptionHandler) ReactivateSubscription(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
		return
	}

	sub, err := h.subscriptionSvc.Reactivate(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSubscriptionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "No suspended subscription"})
		case errors.Is(err, domain.ErrInvalidOperation):
			c.JSON(http.StatusConflict, gin.H{"error": "Subscription cannot be reactivated"})
		default:
			h.log.Error("Failed to reactivate subscription: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reactivate subscription"})
		}
		return
	}

	c.JSON(http.StatusOK, sub)
}
