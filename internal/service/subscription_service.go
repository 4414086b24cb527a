package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/internal/integration/paypal"
	"github.com/souldream/billing-service/internal/kafka"
	"github.com/souldream/billing-service/internal/metrics"
	"github.com/souldream/billing-service/internal/repository"
	"github.com/souldream/billing-service/pkg/logger"
)

// SubscriptionService интерфейс сервиса для работы с подписками
type SubscriptionService interface {
	// ListPlans возвращает доступные тарифные планы
	ListPlans(ctx context.Context) ([]domain.Plan, error)

	// Subscribe оформляет подписку на план. Для платных планов
	// возвращается ссылка на страницу одобрения PayPal и подписка
	// остается в статусе pending до подтверждения.
	Subscribe(ctx context.Context, userID uuid.UUID, req domain.CreateSubscriptionRequest) (domain.CreateSubscriptionResponse, error)

	// Confirm подтверждает подписку после возврата пользователя
	// со страницы одобрения. Повторный вызов идемпотентен.
	Confirm(ctx context.Context, userID uuid.UUID, providerSubscriptionID string) (domain.Subscription, error)

	// GetCurrent возвращает активную подписку пользователя
	GetCurrent(ctx context.Context, userID uuid.UUID) (domain.Subscription, error)

	// Cancel немедленно отменяет активную подписку пользователя
	Cancel(ctx context.Context, userID uuid.UUID, reason string) (domain.Subscription, error)

	// Suspend приостанавливает активную подписку пользователя
	Suspend(ctx context.Context, userID uuid.UUID, reason string) (domain.Subscription, error)

	// Reactivate возобновляет приостановленную подписку пользователя
	Reactivate(ctx context.Context, userID uuid.UUID) (domain.Subscription, error)
}

type subscriptionService struct {
	planRepo    repository.PlanRepository
	subRepo     repository.SubscriptionRepository
	profileRepo repository.ProfileRepository
	gateway     ProviderGateway
	producer    kafka.Producer
	metrics     metrics.BillingMetrics
	log         *logger.Logger
}

// NewSubscriptionService создает новый сервис для работы с подписками.
// producer и metrics могут быть nil, если Kafka или метрики отключены.
func NewSubscriptionService(
	planRepo repository.PlanRepository,
	subRepo repository.SubscriptionRepository,
	profileRepo repository.ProfileRepository,
	gateway ProviderGateway,
	producer kafka.Producer,
	billingMetrics metrics.BillingMetrics,
	log *logger.Logger,
) SubscriptionService {
	return &subscriptionService{
		planRepo:    planRepo,
		subRepo:     subRepo,
		profileRepo: profileRepo,
		gateway:     gateway,
		producer:    producer,
		metrics:     billingMetrics,
		log:         log,
	}
}

// ListPlans возвращает доступные тарифные планы
func (s *subscriptionService) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	return s.planRepo.GetAll(ctx)
}

// Subscribe оформляет подписку на план
func (s *subscriptionService) Subscribe(ctx context.Context, userID uuid.UUID, req domain.CreateSubscriptionRequest) (domain.CreateSubscriptionResponse, error) {
	s.log.Debug("Creating subscription: user %s, plan %s", userID, req.PlanID)

	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		return domain.CreateSubscriptionResponse{}, domain.ErrInvalidInput
	}

	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.CreateSubscriptionResponse{}, domain.ErrPlanNotFound
		}
		return domain.CreateSubscriptionResponse{}, fmt.Errorf("failed to load plan: %w", err)
	}

	if _, err := s.subRepo.GetActiveByUserID(ctx, userID); err == nil {
		return domain.CreateSubscriptionResponse{}, domain.ErrSubscriptionExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.CreateSubscriptionResponse{}, fmt.Errorf("failed to check active subscription: %w", err)
	}

	// Бесплатный план активируется сразу, без обращения к провайдеру
	if plan.IsFree() {
		return s.subscribeFree(ctx, userID, plan)
	}

	providerPlanID, err := s.ensureProviderPlan(ctx, plan)
	if err != nil {
		return domain.CreateSubscriptionResponse{}, err
	}

	resp, err := s.gateway.CreateSubscription(ctx, paypal.CreateSubscriptionParams{
		ProviderPlanID: providerPlanID,
		UserID:         userID,
		PlanID:         plan.ID,
		ReturnURL:      req.ReturnURL,
		CancelURL:      req.CancelURL,
	})
	if err != nil {
		s.log.Error("Failed to create PayPal subscription: user %s: %v", userID, err)
		return domain.CreateSubscriptionResponse{}, fmt.Errorf("provider subscription failed: %w", err)
	}

	now := time.Now()
	sub := domain.Subscription{
		UserID:                 userID,
		PlanID:                 plan.ID,
		Status:                 domain.SubscriptionStatusPending,
		Provider:               domain.PaymentProviderPayPal,
		ProviderSubscriptionID: &resp.ID,
		CurrentPeriodStart:     now,
		CurrentPeriodEnd:       now,
	}

	created, err := s.subRepo.Create(ctx, sub)
	if err != nil {
		return domain.CreateSubscriptionResponse{}, fmt.Errorf("failed to store subscription: %w", err)
	}

	s.log.Info("Subscription %s created in pending state: user %s, provider id %s", created.ID, userID, resp.ID)

	return domain.CreateSubscriptionResponse{
		ID:          created.ID.String(),
		Status:      created.Status,
		ApprovalURL: resp.ApprovalURL(),
	}, nil
}

// subscribeFree активирует бесплатный план без участия провайдера.
// Период всегда годовой: бесплатный план не выставляет счетов, и его
// интервал не влияет на срок действия записи.
func (s *subscriptionService) subscribeFree(ctx context.Context, userID uuid.UUID, plan domain.Plan) (domain.CreateSubscriptionResponse, error) {
	now := time.Now()
	sub := domain.Subscription{
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             domain.SubscriptionStatusActive,
		Provider:           domain.PaymentProviderNone,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(1, 0, 0),
	}

	created, err := s.subRepo.Create(ctx, sub)
	if err != nil {
		return domain.CreateSubscriptionResponse{}, fmt.Errorf("failed to store subscription: %w", err)
	}

	if err := s.profileRepo.UpdateTier(ctx, userID, plan.Name); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.CreateSubscriptionResponse{}, fmt.Errorf("failed to update profile tier: %w", err)
	}

	s.notifyTransition(ctx, kafka.TopicSubscriptionActivated, created)

	s.log.Info("Free subscription %s activated: user %s", created.ID, userID)

	return domain.CreateSubscriptionResponse{
		ID:     created.ID.String(),
		Status: created.Status,
	}, nil
}

// ensureProviderPlan лениво материализует план в каталоге PayPal.
// Детерминированные PayPal-Request-Id у CreateProduct и CreatePlan
// гарантируют, что гонка двух запросов сойдется в одни и те же
// сущности провайдера.
func (s *subscriptionService) ensureProviderPlan(ctx context.Context, plan domain.Plan) (string, error) {
	if plan.PayPalPlanID != nil {
		return *plan.PayPalPlanID, nil
	}

	var productID string
	if plan.PayPalProductID != nil {
		productID = *plan.PayPalProductID
	} else {
		id, err := s.gateway.CreateProduct(ctx, plan)
		if err != nil {
			return "", fmt.Errorf("provider product creation failed: %w", err)
		}
		productID = id
	}

	providerPlanID, err := s.gateway.CreatePlan(ctx, plan, productID)
	if err != nil {
		return "", fmt.Errorf("provider plan creation failed: %w", err)
	}

	if err := s.planRepo.SetProviderIDs(ctx, plan.ID, productID, providerPlanID); err != nil {
		// Конкурирующий первый покупатель мог успеть записать
		// идентификаторы: перечитываем план и принимаем их
		stored, readErr := s.planRepo.GetByID(ctx, plan.ID)
		if readErr == nil && stored.PayPalPlanID != nil {
			return *stored.PayPalPlanID, nil
		}
		return "", fmt.Errorf("failed to store provider plan ids: %w", err)
	}

	return providerPlanID, nil
}

// Confirm подтверждает подписку после одобрения пользователем
func (s *subscriptionService) Confirm(ctx context.Context, userID uuid.UUID, providerSubscriptionID string) (domain.Subscription, error) {
	sub, err := s.subRepo.GetByProviderSubscriptionID(ctx, providerSubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, domain.ErrSubscriptionNotFound
		}
		return domain.Subscription{}, fmt.Errorf("failed to load subscription: %w", err)
	}

	if sub.UserID != userID {
		return domain.Subscription{}, domain.ErrSubscriptionNotFound
	}

	// Подписка уже активирована: подтверждением или вебхуком
	if sub.Status == domain.SubscriptionStatusActive {
		return sub, nil
	}
	if sub.Status != domain.SubscriptionStatusPending {
		return domain.Subscription{}, domain.ErrInvalidOperation
	}

	remote, err := s.gateway.GetSubscription(ctx, providerSubscriptionID)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to query provider subscription: %w", err)
	}

	if remote.Status != "ACTIVE" {
		s.log.Warn("Subscription %s not yet active at provider: %s", sub.ID, remote.Status)
		return domain.Subscription{}, domain.ErrInvalidOperation
	}

	plan, err := s.planRepo.GetByID(ctx, sub.PlanID)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to load plan: %w", err)
	}

	now := time.Now()
	sub.Status = domain.SubscriptionStatusActive
	sub.CurrentPeriodStart = now
	if remote.BillingInfo != nil && remote.BillingInfo.NextBillingTime != nil {
		sub.CurrentPeriodEnd = *remote.BillingInfo.NextBillingTime
	} else {
		sub.CurrentPeriodEnd = calculatePeriodEnd(now, plan.Interval)
	}

	if err := s.subRepo.Update(ctx, sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to update subscription: %w", err)
	}

	if err := s.profileRepo.UpdateTier(ctx, userID, plan.Name); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Subscription{}, fmt.Errorf("failed to update profile tier: %w", err)
	}

	s.notifyTransition(ctx, kafka.TopicSubscriptionActivated, sub)

	s.log.Info("Subscription %s confirmed and activated: user %s", sub.ID, userID)
	return sub, nil
}

// GetCurrent возвращает активную подписку пользователя
func (s *subscriptionService) GetCurrent(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	sub, err := s.subRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, domain.ErrNoActiveSubscription
		}
		return domain.Subscription{}, fmt.Errorf("failed to load active subscription: %w", err)
	}

	return sub, nil
}

// Cancel немедленно отменяет активную подписку пользователя.
// Если активной подписки нет, провайдер не вызывается.
func (s *subscriptionService) Cancel(ctx context.Context, userID uuid.UUID, reason string) (domain.Subscription, error) {
	sub, err := s.subRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, domain.ErrNoActiveSubscription
		}
		return domain.Subscription{}, fmt.Errorf("failed to load active subscription: %w", err)
	}

	if sub.Provider == domain.PaymentProviderPayPal && sub.ProviderSubscriptionID != nil {
		if err := s.gateway.CancelSubscription(ctx, *sub.ProviderSubscriptionID, reason); err != nil {
			return domain.Subscription{}, fmt.Errorf("provider cancellation failed: %w", err)
		}
	}

	now := time.Now()
	sub.Status = domain.SubscriptionStatusCancelled
	sub.CanceledAt = &now
	sub.CancelAtPeriodEnd = false

	if err := s.subRepo.Update(ctx, sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to update subscription: %w", err)
	}

	if err := s.profileRepo.UpdateTier(ctx, userID, domain.TierFree); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Subscription{}, fmt.Errorf("failed to update profile tier: %w", err)
	}

	s.notifyTransition(ctx, kafka.TopicSubscriptionCancelled, sub)

	s.log.Info("Subscription %s cancelled: user %s", sub.ID, userID)
	return sub, nil
}

// Suspend приостанавливает активную подписку пользователя
func (s *subscriptionService) Suspend(ctx context.Context, userID uuid.UUID, reason string) (domain.Subscription, error) {
	sub, err := s.subRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Subscription{}, domain.ErrNoActiveSubscription
		}
		return domain.Subscription{}, fmt.Errorf("failed to load active subscription: %w", err)
	}

	if sub.Provider != domain.PaymentProviderPayPal || sub.ProviderSubscriptionID == nil {
		return domain.Subscription{}, domain.ErrInvalidOperation
	}

	if err := s.gateway.SuspendSubscription(ctx, *sub.ProviderSubscriptionID, reason); err != nil {
		return domain.Subscription{}, fmt.Errorf("provider suspension failed: %w", err)
	}

	sub.Status = domain.SubscriptionStatusSuspended
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to update subscription: %w", err)
	}

	if err := s.profileRepo.UpdateTier(ctx, userID, domain.TierFree); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Subscription{}, fmt.Errorf("failed to update profile tier: %w", err)
	}

	s.notifyTransition(ctx, kafka.TopicSubscriptionSuspended, sub)

	s.log.Info("Subscription %s suspended: user %s", sub.ID, userID)
	return sub, nil
}

// Reactivate возобновляет последнюю приостановленную подписку пользователя
func (s *subscriptionService) Reactivate(ctx context.Context, userID uuid.UUID) (domain.Subscription, error) {
	subs, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	var suspended *domain.Subscription
	for i := range subs {
		if subs[i].Status != domain.SubscriptionStatusSuspended {
			continue
		}
		if suspended == nil || subs[i].CreatedAt.After(suspended.CreatedAt) {
			suspended = &subs[i]
		}
	}
	if suspended == nil {
		return domain.Subscription{}, domain.ErrSubscriptionNotFound
	}

	sub := *suspended
	if sub.ProviderSubscriptionID == nil {
		return domain.Subscription{}, domain.ErrInvalidOperation
	}

	if err := s.gateway.ActivateSubscription(ctx, *sub.ProviderSubscriptionID); err != nil {
		return domain.Subscription{}, fmt.Errorf("provider reactivation failed: %w", err)
	}

	plan, err := s.planRepo.GetByID(ctx, sub.PlanID)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to load plan: %w", err)
	}

	sub.Status = domain.SubscriptionStatusActive
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to update subscription: %w", err)
	}

	if err := s.profileRepo.UpdateTier(ctx, userID, plan.Name); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.Subscription{}, fmt.Errorf("failed to update profile tier: %w", err)
	}

	s.notifyTransition(ctx, kafka.TopicSubscriptionActivated, sub)

	s.log.Info("Subscription %s reactivated: user %s", sub.ID, userID)
	return sub, nil
}

// notifyTransition публикует событие перехода и обновляет метрики.
// Сбой публикации не откатывает переход: состояние в БД первично.
func (s *subscriptionService) notifyTransition(ctx context.Context, topic string, sub domain.Subscription) {
	if s.metrics != nil {
		s.metrics.IncSubscriptionTransition(string(sub.Status))
	}
	if s.producer == nil {
		return
	}
	if err := s.producer.PublishSubscriptionEvent(ctx, topic, sub); err != nil {
		s.log.Warn("Failed to publish subscription event: %s: %v", topic, err)
	}
}

// calculatePeriodEnd возвращает конец оплаченного периода
func calculatePeriodEnd(start time.Time, interval domain.PlanInterval) time.Time {
	if interval == domain.PlanIntervalYear {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
