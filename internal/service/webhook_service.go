package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/internal/kafka"
	"github.com/souldream/billing-service/internal/metrics"
	"github.com/souldream/billing-service/internal/repository"
	"github.com/souldream/billing-service/pkg/logger"
)

// WebhookService интерфейс сервиса обработки вебхуков PayPal
type WebhookService interface {
	// ProcessWebhook проверяет подпись события и применяет его к
	// состоянию подписок. Обработка синхронная: успешный возврат
	// означает, что событие полностью применено.
	ProcessWebhook(ctx context.Context, headers domain.WebhookHeaders, body []byte) error

	// GetRecentEvents возвращает последние записи журнала событий
	GetRecentEvents(ctx context.Context, limit int) ([]domain.WebhookEvent, error)
}

type webhookService struct {
	verifier    WebhookVerifier
	subRepo     repository.SubscriptionRepository
	planRepo    repository.PlanRepository
	paymentRepo repository.PaymentRepository
	profileRepo repository.ProfileRepository
	eventRepo   repository.WebhookEventRepository
	producer    kafka.Producer
	metrics     metrics.BillingMetrics
	log         *logger.Logger
}

// NewWebhookService создает новый сервис обработки вебхуков
func NewWebhookService(
	verifier WebhookVerifier,
	subRepo repository.SubscriptionRepository,
	planRepo repository.PlanRepository,
	paymentRepo repository.PaymentRepository,
	profileRepo repository.ProfileRepository,
	eventRepo repository.WebhookEventRepository,
	producer kafka.Producer,
	billingMetrics metrics.BillingMetrics,
	log *logger.Logger,
) WebhookService {
	return &webhookService{
		verifier:    verifier,
		subRepo:     subRepo,
		planRepo:    planRepo,
		paymentRepo: paymentRepo,
		profileRepo: profileRepo,
		eventRepo:   eventRepo,
		producer:    producer,
		metrics:     billingMetrics,
		log:         log,
	}
}

// ProcessWebhook проверяет подпись и применяет событие
func (s *webhookService) ProcessWebhook(ctx context.Context, headers domain.WebhookHeaders, body []byte) error {
	verified, err := s.verifier.VerifyWebhookSignature(ctx, headers, body)
	if err != nil {
		// Сбой самой проверки равносилен отказу: событие с
		// недоказанной подлинностью дальше не проходит
		s.log.Error("Webhook verification call failed: %v", err)
		verified = false
	}
	if !verified {
		s.countEvent("unknown", "rejected")
		return domain.ErrWebhookVerificationFailed
	}

	var event domain.ProviderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Warn("Failed to decode webhook event: %v", err)
		return domain.ErrInvalidInput
	}

	s.log.Info("Processing webhook event: %s (%s)", event.EventType, event.ID)

	resourceID, applyErr := s.applyEvent(ctx, event)

	status := domain.WebhookEventStatusProcessed
	outcome := "processed"
	errorMessage := ""
	if applyErr != nil {
		if errors.Is(applyErr, errSkipEvent) {
			status = domain.WebhookEventStatusSkipped
			outcome = "skipped"
			applyErr = nil
		} else {
			status = domain.WebhookEventStatusFailed
			outcome = "failed"
			errorMessage = applyErr.Error()
		}
	}

	s.recordEvent(ctx, event, body, status, resourceID, errorMessage)
	s.countEvent(event.EventType, outcome)

	if applyErr != nil {
		return fmt.Errorf("failed to apply webhook event %s: %w", event.ID, applyErr)
	}
	return nil
}

// errSkipEvent событие подлинное, но применять нечего
var errSkipEvent = errors.New("event skipped")

// applyEvent применяет событие к состоянию подписок.
// Переходы абсолютные: повторная доставка события приводит систему
// в то же состояние, что и первая.
func (s *webhookService) applyEvent(ctx context.Context, event domain.ProviderEvent) (string, error) {
	switch event.EventType {
	case domain.EventTypeSubscriptionCreated, domain.EventTypeSubscriptionActivated:
		return s.applySubscriptionStatus(ctx, event, domain.SubscriptionStatusActive)

	case domain.EventTypeSubscriptionCancelled, domain.EventTypeSubscriptionExpired:
		return s.applySubscriptionStatus(ctx, event, domain.SubscriptionStatusCancelled)

	case domain.EventTypeSubscriptionSuspended:
		return s.applySubscriptionStatus(ctx, event, domain.SubscriptionStatusSuspended)

	case domain.EventTypePaymentSaleCompleted, domain.EventTypeCaptureCompleted:
		return s.applyPayment(ctx, event)

	default:
		// Неизвестные типы подтверждаются без обработки, чтобы
		// провайдер не доставлял их повторно
		s.log.Warn("Ignoring unknown webhook event type: %s", event.EventType)
		return "", errSkipEvent
	}
}

// applySubscriptionStatus переводит подписку в указанный статус
func (s *webhookService) applySubscriptionStatus(ctx context.Context, event domain.ProviderEvent, status domain.SubscriptionStatus) (string, error) {
	var resource domain.SubscriptionResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return "", fmt.Errorf("failed to decode subscription resource: %w", err)
	}

	sub, err := s.subRepo.GetByProviderSubscriptionID(ctx, resource.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Подписка неизвестна этому сервису: возможно, событие
			// от другого окружения на общем вебхуке
			s.log.Warn("Webhook for unknown subscription %s, event %s", resource.ID, event.ID)
			return resource.ID, errSkipEvent
		}
		return resource.ID, fmt.Errorf("failed to load subscription: %w", err)
	}

	if sub.Status == status {
		// Переход уже применен: подтверждением или более ранней доставкой
		return resource.ID, nil
	}

	plan, err := s.planRepo.GetByID(ctx, sub.PlanID)
	if err != nil {
		return resource.ID, fmt.Errorf("failed to load plan: %w", err)
	}

	now := time.Now()
	topic := ""
	tier := domain.TierFree

	switch status {
	case domain.SubscriptionStatusActive:
		sub.Status = domain.SubscriptionStatusActive
		sub.CurrentPeriodStart = now
		if resource.BillingInfo != nil && resource.BillingInfo.NextBillingTime != nil {
			sub.CurrentPeriodEnd = *resource.BillingInfo.NextBillingTime
		} else {
			sub.CurrentPeriodEnd = calculatePeriodEnd(now, plan.Interval)
		}
		topic = kafka.TopicSubscriptionActivated
		tier = plan.Name

	case domain.SubscriptionStatusCancelled:
		sub.Status = domain.SubscriptionStatusCancelled
		if sub.CanceledAt == nil {
			sub.CanceledAt = &now
		}
		topic = kafka.TopicSubscriptionCancelled

	case domain.SubscriptionStatusSuspended:
		sub.Status = domain.SubscriptionStatusSuspended
		topic = kafka.TopicSubscriptionSuspended
	}

	if err := s.subRepo.Update(ctx, sub); err != nil {
		return resource.ID, fmt.Errorf("failed to update subscription: %w", err)
	}

	if err := s.profileRepo.UpdateTier(ctx, sub.UserID, tier); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return resource.ID, fmt.Errorf("failed to update profile tier: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncSubscriptionTransition(string(sub.Status))
	}
	if s.producer != nil && topic != "" {
		if err := s.producer.PublishSubscriptionEvent(ctx, topic, sub); err != nil {
			s.log.Warn("Failed to publish subscription event: %s: %v", topic, err)
		}
	}

	if status == domain.SubscriptionStatusActive && resource.BillingInfo != nil && resource.BillingInfo.LastPayment != nil {
		s.recordActivationPayment(ctx, sub, plan, resource, event.Resource)
	}

	s.log.Info("Subscription %s moved to %s by webhook event %s", sub.ID, sub.Status, event.ID)
	return resource.ID, nil
}

// recordActivationPayment фиксирует первый платеж, пришедший вместе
// с событием активации подписки. Сбой записи не отменяет переход.
func (s *webhookService) recordActivationPayment(ctx context.Context, sub domain.Subscription, plan domain.Plan, resource domain.SubscriptionResource, rawPayload []byte) {
	last := resource.BillingInfo.LastPayment

	payment := domain.PaymentRecord{
		UserID:            sub.UserID,
		SubscriptionID:    &sub.ID,
		ProviderPaymentID: resource.ID,
		Amount:            plan.Price,
		Currency:          plan.Currency,
		Status:            domain.PaymentStatusCompleted,
		Method:            string(domain.PaymentProviderPayPal),
		RawPayload:        rawPayload,
	}
	if value, parseErr := strconv.ParseFloat(last.Amount.Value, 64); parseErr == nil {
		payment.Amount = value
	}
	if last.Amount.CurrencyCode != "" {
		payment.Currency = last.Amount.CurrencyCode
	}

	created, err := s.paymentRepo.Create(ctx, payment)
	if err != nil {
		// Дубликат означает, что платеж уже записан более ранней доставкой
		if !errors.Is(err, repository.ErrDuplicate) {
			s.log.Warn("Failed to record activation payment for subscription %s: %v", sub.ID, err)
		}
		return
	}

	if s.metrics != nil {
		s.metrics.ObservePaymentAmount(created.Amount, created.Currency)
	}
	if s.producer != nil {
		if err := s.producer.PublishPaymentEvent(ctx, created); err != nil {
			s.log.Warn("Failed to publish payment event: %v", err)
		}
	}
}

// applyPayment записывает платеж и продлевает оплаченный период
func (s *webhookService) applyPayment(ctx context.Context, event domain.ProviderEvent) (string, error) {
	var resource domain.PaymentResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return "", fmt.Errorf("failed to decode payment resource: %w", err)
	}

	providerSubID := resource.SubscriptionID()
	if providerSubID == "" {
		s.log.Warn("Payment event %s without subscription reference", event.ID)
		return resource.ID, errSkipEvent
	}

	sub, err := s.subRepo.GetByProviderSubscriptionID(ctx, providerSubID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("Payment webhook for unknown subscription %s, event %s", providerSubID, event.ID)
			return resource.ID, errSkipEvent
		}
		return resource.ID, fmt.Errorf("failed to load subscription: %w", err)
	}

	plan, err := s.planRepo.GetByID(ctx, sub.PlanID)
	if err != nil {
		return resource.ID, fmt.Errorf("failed to load plan: %w", err)
	}

	payment := domain.PaymentRecord{
		UserID:            sub.UserID,
		SubscriptionID:    &sub.ID,
		ProviderPaymentID: resource.ID,
		Currency:          plan.Currency,
		Amount:            plan.Price,
		Status:            domain.PaymentStatusCompleted,
		Method:            string(domain.PaymentProviderPayPal),
		RawPayload:        event.Resource,
	}
	if resource.Amount != nil {
		if value, parseErr := strconv.ParseFloat(resource.Amount.Value, 64); parseErr == nil {
			payment.Amount = value
		}
		if resource.Amount.CurrencyCode != "" {
			payment.Currency = resource.Amount.CurrencyCode
		}
	}

	created, err := s.paymentRepo.Create(ctx, payment)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Платеж уже записан предыдущей доставкой события
			return resource.ID, nil
		}
		return resource.ID, fmt.Errorf("failed to record payment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObservePaymentAmount(created.Amount, created.Currency)
	}
	if s.producer != nil {
		if err := s.producer.PublishPaymentEvent(ctx, created); err != nil {
			s.log.Warn("Failed to publish payment event: %v", err)
		}
	}

	// Запоздавший платеж по уже отмененной подписке остается в журнале,
	// но не возвращает отмененную подписку к жизни
	if sub.Status == domain.SubscriptionStatusCancelled {
		s.log.Warn("Payment %s arrived for cancelled subscription %s, status left unchanged",
			created.ProviderPaymentID, sub.ID)
		return resource.ID, nil
	}

	// Успешное списание продлевает оплаченный период и
	// гарантирует активный статус подписки
	now := time.Now()
	sub.Status = domain.SubscriptionStatusActive
	sub.CurrentPeriodStart = now
	if resource.SupplementaryData != nil && resource.SupplementaryData.NextBillingDate != nil {
		sub.CurrentPeriodEnd = *resource.SupplementaryData.NextBillingDate
	} else {
		sub.CurrentPeriodEnd = calculatePeriodEnd(now, plan.Interval)
	}

	if err := s.subRepo.Update(ctx, sub); err != nil {
		return resource.ID, fmt.Errorf("failed to update subscription: %w", err)
	}

	if err := s.profileRepo.UpdateTier(ctx, sub.UserID, plan.Name); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return resource.ID, fmt.Errorf("failed to update profile tier: %w", err)
	}

	s.log.Info("Payment %s recorded for subscription %s, period extended to %s",
		created.ProviderPaymentID, sub.ID, sub.CurrentPeriodEnd.Format(time.RFC3339))
	return resource.ID, nil
}

// recordEvent добавляет запись в журнал событий.
// Сбой журнала логируется, но не меняет исход обработки.
func (s *webhookService) recordEvent(ctx context.Context, event domain.ProviderEvent, body []byte, status domain.WebhookEventStatus, resourceID, errorMessage string) {
	now := time.Now()
	record := domain.WebhookEvent{
		ExternalID:   event.ID,
		Type:         event.EventType,
		Status:       status,
		ResourceID:   resourceID,
		Payload:      body,
		ErrorMessage: errorMessage,
		ProcessedAt:  &now,
	}

	if _, err := s.eventRepo.Create(ctx, record); err != nil {
		s.log.Error("Failed to record webhook event %s: %v", event.ID, err)
	}
}

func (s *webhookService) countEvent(eventType, outcome string) {
	if s.metrics != nil {
		s.metrics.IncWebhookEvent(eventType, outcome)
	}
}

// GetRecentEvents возвращает последние записи журнала событий
func (s *webhookService) GetRecentEvents(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.eventRepo.GetRecent(ctx, limit)
}
