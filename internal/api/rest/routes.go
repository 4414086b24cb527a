package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/souldream/billing-service/config"
	"github.com/souldream/billing-service/internal/api/rest/handlers"
	"github.com/souldream/billing-service/internal/api/rest/middleware"
	"github.com/souldream/billing-service/internal/service"
	"github.com/souldream/billing-service/pkg/logger"
)

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(
	cfg *config.Config,
	subscriptionSvc service.SubscriptionService,
	paymentSvc service.PaymentService,
	webhookSvc service.WebhookService,
	registry *prometheus.Registry,
	log *logger.Logger,
) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	planHandler := handlers.NewPlanHandler(subscriptionSvc, log)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionSvc, log)
	paymentHandler := handlers.NewPaymentHandler(paymentSvc, log)
	webhookHandler := handlers.NewWebhookHandler(webhookSvc, log)

	v1 := r.Group("/api/v1")
	{
		// Каталог планов доступен без аутентификации
		v1.GET("/plans", planHandler.GetPlans)

		authorized := v1.Group("")
		authorized.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret, log))
		{
			subscriptions := authorized.Group("/subscriptions")
			{
				subscriptions.POST("", subscriptionHandler.CreateSubscription)
				// Подтверждение приходит GET-редиректом со страницы
				// одобрения PayPal
				subscriptions.GET("/confirm", subscriptionHandler.ConfirmSubscription)
				subscriptions.GET("/current", subscriptionHandler.GetCurrentSubscription)
				subscriptions.POST("/cancel", subscriptionHandler.CancelSubscription)
				subscriptions.POST("/suspend", subscriptionHandler.SuspendSubscription)
				subscriptions.POST("/reactivate", subscriptionHandler.ReactivateSubscription)
			}

			payments := authorized.Group("/payments")
			{
				payments.GET("", paymentHandler.GetPayments)
				payments.POST("/orders", paymentHandler.CreateOrder)
				payments.POST("/orders/:id/capture", paymentHandler.CaptureOrder)
			}

			authorized.GET("/webhook-events", webhookHandler.GetWebhookEvents)
		}
	}

	// Вебхуки на корневом уровне роутера: PayPal аутентифицируется
	// подписью события, а не JWT
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/paypal", webhookHandler.HandlePayPalWebhook)
	}

	return r
}
