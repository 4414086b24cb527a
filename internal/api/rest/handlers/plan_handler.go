package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/souldream/billing-service/internal/service"
	"github.com/souldream/billing-service/pkg/logger"
)

// PlanHandler обработчик каталога тарифных планов
type PlanHandler struct {
	subscriptionSvc service.SubscriptionService
	log             *logger.Logger
}

// NewPlanHandler создает новый обработчик планов
func NewPlanHandler(subscriptionSvc service.SubscriptionService, log *logger.Logger) *PlanHandler {
	return &PlanHandler{
		subscriptionSvc: subscriptionSvc,
		log:             log,
	}
}

// GetPlans возвращает доступные тарифные планы
func (h *PlanHandler) GetPlans(c *gin.Context) {
	plans, err := h.subscriptionSvc.ListPlans(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list plans: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list plans"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}
