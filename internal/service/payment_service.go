package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/internal/kafka"
	"github.com/souldream/billing-service/internal/metrics"
	"github.com/souldream/billing-service/internal/repository"
	"github.com/souldream/billing-service/pkg/logger"
)

// CreateOrderResponse результат создания разового заказа
type CreateOrderResponse struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	ApprovalURL string `json:"approval_url"`
}

// PaymentService интерфейс сервиса разовых платежей и истории
type PaymentService interface {
	// CreateOrder создает разовый заказ PayPal
	CreateOrder(ctx context.Context, userID uuid.UUID, req domain.CreateOrderRequest) (CreateOrderResponse, error)

	// CaptureOrder списывает средства по одобренному заказу.
	// Повторное списание того же заказа идемпотентно.
	CaptureOrder(ctx context.Context, userID uuid.UUID, orderID string) (domain.PaymentRecord, error)

	// GetHistory возвращает историю платежей пользователя
	GetHistory(ctx context.Context, userID uuid.UUID) ([]domain.PaymentRecord, error)
}

type paymentService struct {
	gateway     OrderGateway
	paymentRepo repository.PaymentRepository
	producer    kafka.Producer
	metrics     metrics.BillingMetrics
	log         *logger.Logger
}

// NewPaymentService создает новый сервис платежей
func NewPaymentService(
	gateway OrderGateway,
	paymentRepo repository.PaymentRepository,
	producer kafka.Producer,
	billingMetrics metrics.BillingMetrics,
	log *logger.Logger,
) PaymentService {
	return &paymentService{
		gateway:     gateway,
		paymentRepo: paymentRepo,
		producer:    producer,
		metrics:     billingMetrics,
		log:         log,
	}
}

// CreateOrder создает разовый заказ PayPal
func (s *paymentService) CreateOrder(ctx context.Context, userID uuid.UUID, req domain.CreateOrderRequest) (CreateOrderResponse, error) {
	s.log.Debug("Creating order: user %s, %.2f %s", userID, req.Amount, req.Currency)

	order, err := s.gateway.CreateOrder(ctx, req.Amount, req.Currency, req.Description)
	if err != nil {
		return CreateOrderResponse{}, fmt.Errorf("provider order creation failed: %w", err)
	}

	return CreateOrderResponse{
		OrderID:     order.ID,
		Status:      order.Status,
		ApprovalURL: order.ApprovalURL(),
	}, nil
}

// CaptureOrder списывает средства по одобренному заказу
func (s *paymentService) CaptureOrder(ctx context.Context, userID uuid.UUID, orderID string) (domain.PaymentRecord, error) {
	s.log.Debug("Capturing order: user %s, order %s", userID, orderID)

	order, err := s.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		return domain.PaymentRecord{}, fmt.Errorf("provider capture failed: %w", err)
	}

	if order.Status != "COMPLETED" {
		s.log.Warn("Order %s capture not completed: %s", orderID, order.Status)
		return domain.PaymentRecord{}, domain.ErrInvalidOperation
	}

	payment := domain.PaymentRecord{
		UserID:            userID,
		ProviderPaymentID: order.ID,
		Status:            domain.PaymentStatusCompleted,
		Method:            string(domain.PaymentProviderPayPal),
	}
	if capture := order.FirstCapture(); capture != nil {
		payment.ProviderPaymentID = capture.ID
		if capture.Amount != nil {
			if value, parseErr := strconv.ParseFloat(capture.Amount.Value, 64); parseErr == nil {
				payment.Amount = value
			}
			payment.Currency = capture.Amount.CurrencyCode
		}
	}

	created, err := s.paymentRepo.Create(ctx, payment)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Заказ уже списан ранее: повторный вызов не создает
			// вторую запись в журнале
			s.log.Info("Order %s already captured for user %s", orderID, userID)
			return payment, nil
		}
		return domain.PaymentRecord{}, fmt.Errorf("failed to record payment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObservePaymentAmount(created.Amount, created.Currency)
	}
	if s.producer != nil {
		if err := s.producer.PublishPaymentEvent(ctx, created); err != nil {
			s.log.Warn("Failed to publish payment event: %v", err)
		}
	}

	s.log.Info("Order %s captured: payment %s, user %s", orderID, created.ProviderPaymentID, userID)
	return created, nil
}

// GetHistory возвращает историю платежей пользователя
func (s *paymentService) GetHistory(ctx context.Context, userID uuid.UUID) ([]domain.PaymentRecord, error) {
	return s.paymentRepo.GetByUserID(ctx, userID)
}
