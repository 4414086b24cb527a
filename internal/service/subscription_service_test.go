package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/internal/integration/paypal"
	"github.com/souldream/billing-service/internal/repository"
	"github.com/souldream/billing-service/pkg/logger"
)

func newTestLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

// fakeGateway подменяет провайдера в тестах и считает обращения к нему
type fakeGateway struct {
	createProductCalls int
	createPlanCalls    int
	createSubCalls     int
	getSubCalls        int
	cancelCalls        int
	suspendCalls       int
	activateCalls      int

	failCreateSubscription bool
	remoteStatus           string
	nextBillingTime        *time.Time
	lastCreateParams       paypal.CreateSubscriptionParams
}

func (g *fakeGateway) CreateProduct(ctx context.Context, plan domain.Plan) (string, error) {
	g.createProductCalls++
	return "PROD-" + plan.ID.String(), nil
}

func (g *fakeGateway) CreatePlan(ctx context.Context, plan domain.Plan, productID string) (string, error) {
	g.createPlanCalls++
	return "P-" + plan.ID.String(), nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, params paypal.CreateSubscriptionParams) (*paypal.SubscriptionResponse, error) {
	g.createSubCalls++
	g.lastCreateParams = params
	if g.failCreateSubscription {
		return nil, &paypal.APIError{Status: 422, Code: "UNPROCESSABLE_ENTITY", Message: "plan is not active"}
	}
	return &paypal.SubscriptionResponse{
		ID:     "I-TESTSUB",
		Status: "APPROVAL_PENDING",
		Links: []paypal.Link{
			{Href: "https://www.sandbox.paypal.com/webapps/billing/subscriptions?ba_token=BA-1", Rel: "approve", Method: "GET"},
		},
	}, nil
}

func (g *fakeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*paypal.SubscriptionResponse, error) {
	g.getSubCalls++
	status := g.remoteStatus
	if status == "" {
		status = "ACTIVE"
	}
	resp := &paypal.SubscriptionResponse{ID: subscriptionID, Status: status}
	if g.nextBillingTime != nil {
		resp.BillingInfo = &paypal.SubscriptionBillingInfo{NextBillingTime: g.nextBillingTime}
	}
	return resp, nil
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	g.cancelCalls++
	return nil
}

func (g *fakeGateway) SuspendSubscription(ctx context.Context, subscriptionID, reason string) error {
	g.suspendCalls++
	return nil
}

func (g *fakeGateway) ActivateSubscription(ctx context.Context, subscriptionID string) error {
	g.activateCalls++
	return nil
}

func (g *fakeGateway) totalCalls() int {
	return g.createProductCalls + g.createPlanCalls + g.createSubCalls +
		g.getSubCalls + g.cancelCalls + g.suspendCalls + g.activateCalls
}

type serviceFixture struct {
	svc         SubscriptionService
	gateway     *fakeGateway
	planRepo    *repository.InMemoryPlanRepository
	subRepo     *repository.InMemorySubscriptionRepository
	profileRepo *repository.InMemoryProfileRepository
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	log := newTestLogger()

	f := &serviceFixture{
		gateway:     &fakeGateway{},
		planRepo:    repository.NewInMemoryPlanRepository(log),
		subRepo:     repository.NewInMemorySubscriptionRepository(log),
		profileRepo: repository.NewInMemoryProfileRepository(log),
	}
	f.svc = NewSubscriptionService(f.planRepo, f.subRepo, f.profileRepo, f.gateway, nil, nil, log)
	return f
}

func (f *serviceFixture) createPlan(t *testing.T, name string, price float64, interval domain.PlanInterval) domain.Plan {
	t.Helper()
	plan, err := f.planRepo.Create(context.Background(), domain.Plan{
		Name:     name,
		Price:    price,
		Currency: "USD",
		Interval: interval,
	})
	require.NoError(t, err)
	return plan
}

func TestSubscribeFreePlanActivatesImmediately(t *testing.T) {
	f := newServiceFixture(t)
	plan := f.createPlan(t, "free", 0, domain.PlanIntervalMonth)
	userID := uuid.New()

	resp, err := f.svc.Subscribe(context.Background(), userID, domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, resp.Status)
	assert.Empty(t, resp.ApprovalURL)
	assert.Zero(t, f.gateway.totalCalls(), "free plan must not touch the provider")

	// Бесплатный план получает годовой период независимо от интервала
	sub, err := f.subRepo.GetActiveByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().AddDate(1, 0, 0), sub.CurrentPeriodEnd, time.Minute)

	tier, err := f.profileRepo.GetTier(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "free", tier)
}

func TestSubscribePaidPlanCreatesPendingSubscription(t *testing.T) {
	f := newServiceFixture(t)
	plan := f.createPlan(t, "pro", 9.99, domain.PlanIntervalMonth)
	userID := uuid.New()

	resp, err := f.svc.Subscribe(context.Background(), userID, domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPending, resp.Status)
	assert.NotEmpty(t, resp.ApprovalURL)

	// Каталог материализован лениво и сохранен
	assert.Equal(t, 1, f.gateway.createProductCalls)
	assert.Equal(t, 1, f.gateway.createPlanCalls)
	stored, err := f.planRepo.GetByID(context.Background(), plan.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PayPalPlanID)

	sub, err := f.subRepo.GetByProviderSubscriptionID(context.Background(), "I-TESTSUB")
	require.NoError(t, err)
	assert.Equal(t, userID, sub.UserID)
	assert.Equal(t, domain.SubscriptionStatusPending, sub.Status)
}

func TestSubscribeReusesMaterializedPlan(t *testing.T) {
	f := newServiceFixture(t)
	plan := f.createPlan(t, "pro", 9.99, domain.PlanIntervalMonth)

	productID := "PROD-EXISTING"
	providerPlanID := "P-EXISTING"
	require.NoError(t, f.planRepo.SetProviderIDs(context.Background(), plan.ID, productID, providerPlanID))

	_, err := f.svc.Subscribe(context.Background(), uuid.New(), domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})

	require.NoError(t, err)
	assert.Zero(t, f.gateway.createProductCalls)
	assert.Zero(t, f.gateway.createPlanCalls)
}

// conflictedPlanRepo имитирует проигрыш гонки за каталог: собственная
// запись отклоняется, а повторное чтение уже видит идентификаторы,
// сохраненные конкурирующим первым покупателем
type conflictedPlanRepo struct {
	*repository.InMemoryPlanRepository
}

func (r *conflictedPlanRepo) SetProviderIDs(ctx context.Context, id uuid.UUID, productID, providerPlanID string) error {
	_ = r.InMemoryPlanRepository.SetProviderIDs(ctx, id, "PROD-RIVAL", "P-RIVAL")
	return errors.New("update conflict")
}

func TestSubscribeAdoptsConcurrentlyMaterializedPlan(t *testing.T) {
	log := newTestLogger()
	planRepo := &conflictedPlanRepo{InMemoryPlanRepository: repository.NewInMemoryPlanRepository(log)}
	subRepo := repository.NewInMemorySubscriptionRepository(log)
	profileRepo := repository.NewInMemoryProfileRepository(log)
	gateway := &fakeGateway{}
	svc := NewSubscriptionService(planRepo, subRepo, profileRepo, gateway, nil, nil, log)

	plan, err := planRepo.InMemoryPlanRepository.Create(context.Background(), domain.Plan{
		Name:     "pro",
		Price:    9.99,
		Currency: "USD",
		Interval: domain.PlanIntervalMonth,
	})
	require.NoError(t, err)

	resp, err := svc.Subscribe(context.Background(), uuid.New(), domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPending, resp.Status)
	assert.Equal(t, "P-RIVAL", gateway.lastCreateParams.ProviderPlanID, "plan id stored by the concurrent writer must be adopted")
}

func TestSubscribeProviderErrorLeavesNoSubscription(t *testing.T) {
	f := newServiceFixture(t)
	plan := f.createPlan(t, "pro", 9.99, domain.PlanIntervalMonth)
	f.gateway.failCreateSubscription = true
	userID := uuid.New()

	_, err := f.svc.Subscribe(context.Background(), userID, domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})

	require.Error(t, err)
	var apiErr *paypal.APIError
	assert.ErrorAs(t, err, &apiErr)

	subs, repoErr := f.subRepo.GetByUserID(context.Background(), userID)
	require.NoError(t, repoErr)
	assert.Empty(t, subs, "failed provider call must not leave a subscription row")
}

func TestSubscribeRejectsSecondActiveSubscription(t *testing.T) {
	f := newServiceFixture(t)
	plan := f.createPlan(t, "free", 0, domain.PlanIntervalMonth)
	userID := uuid.New()

	_, err := f.svc.Subscribe(context.Background(), userID, domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})
	require.NoError(t, err)

	_, err = f.svc.Subscribe(context.Background(), userID, domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})
	assert.ErrorIs(t, err, domain.ErrSubscriptionExists)
}

func TestSubscribeUnknownPlan(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Subscribe(context.Background(), uuid.New(), domain.CreateSubscriptionRequest{
		PlanID:    uuid.New().String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestConfirmActivatesPendingSubscription(t *testing.T) {
	f := newServiceFixture(t)
	plan := f.createPlan(t, "pro", 9.99, domain.PlanIntervalMonth)
	userID := uuid.New()
	nextBilling := time.Now().AddDate(0, 1, 0).Truncate(time.Second)
	f.gateway.nextBillingTime = &nextBilling

	_, err := f.svc.Subscribe(context.Background(), userID, domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})
	require.NoError(t, err)

	sub, err := f.svc.Confirm(context.Background(), userID, "I-TESTSUB")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.CurrentPeriodEnd.Equal(nextBilling))

	tier, err := f.profileRepo.GetTier(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "pro", tier)
}

func TestConfirmIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	plan := f.createPlan(t, "pro", 9.99, domain.PlanIntervalMonth)
	userID := uuid.New()

	_, err := f.svc.Subscribe(context.Background(), userID, domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})
	require.NoError(t, err)

	first, err := f.svc.Confirm(context.Background(), userID, "I-TESTSUB")
	require.NoError(t, err)

	second, err := f.svc.Confirm(context.Background(), userID, "I-TESTSUB")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.SubscriptionStatusActive, second.Status)
	assert.Equal(t, 1, f.gateway.getSubCalls, "repeated confirm must not query the provider again")
}

func TestConfirmRejectsForeignSubscription(t *testing.T) {
	f := newServiceFixture(t)
	plan := f.createPlan(t, "pro", 9.99, domain.PlanIntervalMonth)
	owner := uuid.New()

	_, err := f.svc.Subscribe(context.Background(), owner, domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), uuid.New(), "I-TESTSUB")
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestCancelWithoutActiveSubscription(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Cancel(context.Background(), uuid.New(), "changed my mind")

	assert.ErrorIs(t, err, domain.ErrNoActiveSubscription)
	assert.Zero(t, f.gateway.totalCalls(), "cancellation without a subscription must not call the provider")
}

func TestCancelActiveSubscriptionImmediately(t *testing.T) {
	f := newServiceFixture(t)
	plan := f.createPlan(t, "pro", 9.99, domain.PlanIntervalMonth)
	userID := uuid.New()

	_, err := f.svc.Subscribe(context.Background(), userID, domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), userID, "I-TESTSUB")
	require.NoError(t, err)

	sub, err := f.svc.Cancel(context.Background(), userID, "too expensive")
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionStatusCancelled, sub.Status)
	assert.NotNil(t, sub.CanceledAt)
	assert.False(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, 1, f.gateway.cancelCalls)

	tier, err := f.profileRepo.GetTier(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, tier)

	_, err = f.subRepo.GetActiveByUserID(context.Background(), userID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestCancelFreeSubscriptionSkipsProvider(t *testing.T) {
	f := newServiceFixture(t)
	plan := f.createPlan(t, "free", 0, domain.PlanIntervalMonth)
	userID := uuid.New()

	_, err := f.svc.Subscribe(context.Background(), userID, domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})
	require.NoError(t, err)

	sub, err := f.svc.Cancel(context.Background(), userID, "")
	require.NoError(t, err)

	assert.Equal(t, domain.SubscriptionStatusCancelled, sub.Status)
	assert.Zero(t, f.gateway.cancelCalls)
}

func TestSuspendAndReactivate(t *testing.T) {
	f := newServiceFixture(t)
	plan := f.createPlan(t, "pro", 9.99, domain.PlanIntervalMonth)
	userID := uuid.New()

	_, err := f.svc.Subscribe(context.Background(), userID, domain.CreateSubscriptionRequest{
		PlanID:    plan.ID.String(),
		ReturnURL: "https://app.example.com/return",
		CancelURL: "https://app.example.com/cancel",
	})
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), userID, "I-TESTSUB")
	require.NoError(t, err)

	suspended, err := f.svc.Suspend(context.Background(), userID, "vacation")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusSuspended, suspended.Status)
	assert.Equal(t, 1, f.gateway.suspendCalls)

	tier, err := f.profileRepo.GetTier(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, tier)

	reactivated, err := f.svc.Reactivate(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, reactivated.Status)
	assert.Equal(t, 1, f.gateway.activateCalls)

	tier, err = f.profileRepo.GetTier(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "pro", tier)
}

func TestGetCurrentWithoutSubscription(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.GetCurrent(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNoActiveSubscription)
}
