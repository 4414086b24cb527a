package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/souldream/billing-service/config"
	"github.com/souldream/billing-service/internal/api/rest"
	"github.com/souldream/billing-service/internal/integration/paypal"
	"github.com/souldream/billing-service/internal/kafka"
	"github.com/souldream/billing-service/internal/metrics"
	"github.com/souldream/billing-service/internal/repository"
	"github.com/souldream/billing-service/internal/repository/postgres"
	"github.com/souldream/billing-service/internal/service"
	"github.com/souldream/billing-service/pkg/logger"
)

var log *logger.Logger

func init() {
	logLevel := logger.INFO
	if os.Getenv("DEBUG") == "true" {
		logLevel = logger.DEBUG
	}
	log = logger.New(logLevel)
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация Prometheus
	promRegistry := prometheus.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(promRegistry, log)

	// Подключение к базе данных
	dbPool, err := postgres.NewConnection(ctx, cfg.Database.GetDSN(), log)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	planRepo := postgres.NewPostgresPlanRepository(dbPool, log)
	paymentRepo := postgres.NewPostgresPaymentRepository(dbPool, log)
	profileRepo := postgres.NewPostgresProfileRepository(dbPool, log)
	eventRepo := postgres.NewPostgresWebhookEventRepository(dbPool, log)

	var subRepo repository.SubscriptionRepository = postgres.NewPostgresSubscriptionRepository(dbPool, log)

	// Кеширование подписок через Redis, если он включен
	if cfg.Redis.Enabled {
		redisCache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()

		subRepo = repository.NewCachedSubscriptionRepository(subRepo, redisCache, log)
	}

	// Инициализация Kafka продюсера, если он включен
	var producer kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureKafkaTopics(cfg.Kafka.Brokers, log); err != nil {
			log.Fatal("Failed to ensure Kafka topics: %v", err)
		}

		producer, err = kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Fatal("Failed to create Kafka producer: %v", err)
		}
		defer producer.Close()
	}

	// Клиент PayPal
	paypalClient := paypal.NewClient(paypal.Config{
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		WebhookID:    cfg.PayPal.WebhookID,
		BrandName:    cfg.PayPal.BrandName,
		Live:         cfg.PayPal.Live,
	}, log)

	// Сервисы
	subscriptionSvc := service.NewSubscriptionService(planRepo, subRepo, profileRepo, paypalClient, producer, billingMetrics, log)
	paymentSvc := service.NewPaymentService(paypalClient, paymentRepo, producer, billingMetrics, log)
	webhookSvc := service.NewWebhookService(paypalClient, subRepo, planRepo, paymentRepo, profileRepo, eventRepo, producer, billingMetrics, log)

	// Установка режима Gin
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Настройка маршрутизатора и запуск HTTP сервера
	router := rest.SetupRouter(cfg, subscriptionSvc, paymentSvc, webhookSvc, promRegistry, log)
	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}
