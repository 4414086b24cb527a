package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/internal/repository"
)

// fakeVerifier подменяет проверку подписи вебхуков
type fakeVerifier struct {
	verified bool
	err      error
	calls    int
}

func (v *fakeVerifier) VerifyWebhookSignature(ctx context.Context, headers domain.WebhookHeaders, body []byte) (bool, error) {
	v.calls++
	return v.verified, v.err
}

type webhookFixture struct {
	svc         WebhookService
	verifier    *fakeVerifier
	planRepo    *repository.InMemoryPlanRepository
	subRepo     *repository.InMemorySubscriptionRepository
	paymentRepo *repository.InMemoryPaymentRepository
	profileRepo *repository.InMemoryProfileRepository
	eventRepo   *repository.InMemoryWebhookEventRepository
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	log := newTestLogger()

	f := &webhookFixture{
		verifier:    &fakeVerifier{verified: true},
		planRepo:    repository.NewInMemoryPlanRepository(log),
		subRepo:     repository.NewInMemorySubscriptionRepository(log),
		paymentRepo: repository.NewInMemoryPaymentRepository(log),
		profileRepo: repository.NewInMemoryProfileRepository(log),
		eventRepo:   repository.NewInMemoryWebhookEventRepository(log),
	}
	f.svc = NewWebhookService(f.verifier, f.subRepo, f.planRepo, f.paymentRepo, f.profileRepo, f.eventRepo, nil, nil, log)
	return f
}

// seedSubscription создает план и подписку в заданном статусе
func (f *webhookFixture) seedSubscription(t *testing.T, status domain.SubscriptionStatus) domain.Subscription {
	t.Helper()

	plan, err := f.planRepo.Create(context.Background(), domain.Plan{
		Name:     "pro",
		Price:    9.99,
		Currency: "USD",
		Interval: domain.PlanIntervalMonth,
	})
	require.NoError(t, err)

	providerID := "I-SEEDED"
	now := time.Now()
	sub, err := f.subRepo.Create(context.Background(), domain.Subscription{
		UserID:                 uuid.New(),
		PlanID:                 plan.ID,
		Status:                 status,
		Provider:               domain.PaymentProviderPayPal,
		ProviderSubscriptionID: &providerID,
		CurrentPeriodStart:     now,
		CurrentPeriodEnd:       now,
	})
	require.NoError(t, err)
	return sub
}

func subscriptionEventBody(t *testing.T, eventType, providerSubID string, nextBilling *time.Time) []byte {
	t.Helper()

	resource := map[string]interface{}{
		"id":     providerSubID,
		"status": "ACTIVE",
	}
	if nextBilling != nil {
		resource["billing_info"] = map[string]interface{}{
			"next_billing_time": nextBilling.Format(time.RFC3339),
		}
	}

	body, err := json.Marshal(map[string]interface{}{
		"id":          "WH-" + uuid.NewString(),
		"event_type":  eventType,
		"create_time": time.Now().Format(time.RFC3339),
		"resource":    resource,
	})
	require.NoError(t, err)
	return body
}

func paymentEventBody(t *testing.T, paymentID, providerSubID string) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{
		"id":          "WH-" + uuid.NewString(),
		"event_type":  domain.EventTypePaymentSaleCompleted,
		"create_time": time.Now().Format(time.RFC3339),
		"resource": map[string]interface{}{
			"id":                   paymentID,
			"billing_agreement_id": providerSubID,
			"amount": map[string]string{
				"value":         "9.99",
				"currency_code": "USD",
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestProcessWebhookRejectsUnverified(t *testing.T) {
	f := newWebhookFixture(t)
	f.verifier.verified = false
	sub := f.seedSubscription(t, domain.SubscriptionStatusPending)

	body := subscriptionEventBody(t, domain.EventTypeSubscriptionActivated, *sub.ProviderSubscriptionID, nil)
	err := f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body)

	assert.ErrorIs(t, err, domain.ErrWebhookVerificationFailed)

	stored, repoErr := f.subRepo.GetByID(context.Background(), sub.ID)
	require.NoError(t, repoErr)
	assert.Equal(t, domain.SubscriptionStatusPending, stored.Status, "unverified event must not mutate state")
}

func TestProcessWebhookVerificationErrorRejectsEvent(t *testing.T) {
	f := newWebhookFixture(t)
	f.verifier.verified = false
	f.verifier.err = fmt.Errorf("verify endpoint unavailable")
	sub := f.seedSubscription(t, domain.SubscriptionStatusPending)

	body := subscriptionEventBody(t, domain.EventTypeSubscriptionActivated, *sub.ProviderSubscriptionID, nil)
	err := f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body)

	// Недоступность самой проверки означает отказ, а не внутреннюю ошибку
	assert.ErrorIs(t, err, domain.ErrWebhookVerificationFailed)

	stored, repoErr := f.subRepo.GetByID(context.Background(), sub.ID)
	require.NoError(t, repoErr)
	assert.Equal(t, domain.SubscriptionStatusPending, stored.Status)
}

func TestProcessWebhookActivatesSubscription(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedSubscription(t, domain.SubscriptionStatusPending)
	nextBilling := time.Now().AddDate(0, 1, 0).Truncate(time.Second)

	body := subscriptionEventBody(t, domain.EventTypeSubscriptionActivated, *sub.ProviderSubscriptionID, &nextBilling)
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))

	stored, err := f.subRepo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, stored.Status)
	assert.True(t, stored.CurrentPeriodEnd.Equal(nextBilling))

	tier, err := f.profileRepo.GetTier(context.Background(), sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, "pro", tier)
}

func TestProcessWebhookCreatedActivatesSubscription(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedSubscription(t, domain.SubscriptionStatusPending)
	nextBilling := time.Now().AddDate(0, 1, 0).Truncate(time.Second)

	body := subscriptionEventBody(t, domain.EventTypeSubscriptionCreated, *sub.ProviderSubscriptionID, &nextBilling)
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))

	stored, err := f.subRepo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, stored.Status)
	assert.True(t, stored.CurrentPeriodEnd.Equal(nextBilling))

	tier, err := f.profileRepo.GetTier(context.Background(), sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, "pro", tier)
}

func TestProcessWebhookCreatedRecordsInitialPayment(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedSubscription(t, domain.SubscriptionStatusPending)

	body, err := json.Marshal(map[string]interface{}{
		"id":          "WH-" + uuid.NewString(),
		"event_type":  domain.EventTypeSubscriptionCreated,
		"create_time": time.Now().Format(time.RFC3339),
		"resource": map[string]interface{}{
			"id":     *sub.ProviderSubscriptionID,
			"status": "ACTIVE",
			"billing_info": map[string]interface{}{
				"next_billing_time": time.Now().AddDate(0, 1, 0).Format(time.RFC3339),
				"last_payment": map[string]interface{}{
					"amount": map[string]string{
						"value":         "9.99",
						"currency_code": "USD",
					},
				},
			},
		},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))
	// Повторная доставка не дублирует запись платежа
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))

	payments, err := f.paymentRepo.GetByUserID(context.Background(), sub.UserID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, *sub.ProviderSubscriptionID, payments[0].ProviderPaymentID)
	assert.InDelta(t, 9.99, payments[0].Amount, 0.001)
}

func TestProcessWebhookActivatedReplayIsIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedSubscription(t, domain.SubscriptionStatusPending)
	nextBilling := time.Now().AddDate(0, 1, 0).Truncate(time.Second)

	body := subscriptionEventBody(t, domain.EventTypeSubscriptionActivated, *sub.ProviderSubscriptionID, &nextBilling)
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))

	stored, err := f.subRepo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, stored.Status)
	assert.True(t, stored.CurrentPeriodEnd.Equal(nextBilling))
}

func TestProcessWebhookCancelsSubscription(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedSubscription(t, domain.SubscriptionStatusActive)

	body := subscriptionEventBody(t, domain.EventTypeSubscriptionCancelled, *sub.ProviderSubscriptionID, nil)
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))

	stored, err := f.subRepo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, stored.Status)
	assert.NotNil(t, stored.CanceledAt)

	tier, err := f.profileRepo.GetTier(context.Background(), sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, tier)
}

func TestProcessWebhookSuspendsSubscription(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedSubscription(t, domain.SubscriptionStatusActive)

	body := subscriptionEventBody(t, domain.EventTypeSubscriptionSuspended, *sub.ProviderSubscriptionID, nil)
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))

	stored, err := f.subRepo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusSuspended, stored.Status)
}

func TestProcessWebhookUnknownTypeAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedSubscription(t, domain.SubscriptionStatusActive)

	body := subscriptionEventBody(t, "BILLING.SUBSCRIPTION.UPDATED", *sub.ProviderSubscriptionID, nil)
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))

	stored, err := f.subRepo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, stored.Status, "unknown event type must not mutate state")

	events, err := f.eventRepo.GetRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.WebhookEventStatusSkipped, events[0].Status)
}

func TestProcessWebhookUnknownSubscriptionAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	body := subscriptionEventBody(t, domain.EventTypeSubscriptionActivated, "I-SOMEBODY-ELSE", nil)
	err := f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body)

	require.NoError(t, err, "event for an unknown subscription must be acknowledged")

	events, repoErr := f.eventRepo.GetRecent(context.Background(), 10)
	require.NoError(t, repoErr)
	require.Len(t, events, 1)
	assert.Equal(t, domain.WebhookEventStatusSkipped, events[0].Status)
}

func TestProcessWebhookPaymentExtendsPeriod(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedSubscription(t, domain.SubscriptionStatusActive)

	body := paymentEventBody(t, "PAY-1", *sub.ProviderSubscriptionID)
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))

	stored, err := f.subRepo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, stored.Status)
	assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), stored.CurrentPeriodEnd, time.Minute)

	payments, err := f.paymentRepo.GetByUserID(context.Background(), sub.UserID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "PAY-1", payments[0].ProviderPaymentID)
	assert.InDelta(t, 9.99, payments[0].Amount, 0.001)
}

func TestProcessWebhookPaymentReplayRecordsOnce(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedSubscription(t, domain.SubscriptionStatusActive)

	body := paymentEventBody(t, "PAY-1", *sub.ProviderSubscriptionID)
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))

	payments, err := f.paymentRepo.GetByUserID(context.Background(), sub.UserID)
	require.NoError(t, err)
	assert.Len(t, payments, 1, "replayed payment event must not duplicate the ledger record")
}

func TestProcessWebhookPaymentAfterCancellationDoesNotReactivate(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedSubscription(t, domain.SubscriptionStatusCancelled)

	body := paymentEventBody(t, "PAY-LATE", *sub.ProviderSubscriptionID)
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))

	// Запоздавший платеж остается в журнале, но не воскрешает подписку
	stored, err := f.subRepo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, stored.Status)

	tier, err := f.profileRepo.GetTier(context.Background(), sub.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, tier)

	payments, err := f.paymentRepo.GetByUserID(context.Background(), sub.UserID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestProcessWebhookMalformedBody(t *testing.T) {
	f := newWebhookFixture(t)

	err := f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, []byte("not json"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProcessWebhookWritesAuditLedger(t *testing.T) {
	f := newWebhookFixture(t)
	sub := f.seedSubscription(t, domain.SubscriptionStatusPending)

	body := subscriptionEventBody(t, domain.EventTypeSubscriptionActivated, *sub.ProviderSubscriptionID, nil)
	require.NoError(t, f.svc.ProcessWebhook(context.Background(), domain.WebhookHeaders{}, body))

	events, err := f.eventRepo.GetRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeSubscriptionActivated, events[0].Type)
	assert.Equal(t, domain.WebhookEventStatusProcessed, events[0].Status)
	assert.Equal(t, *sub.ProviderSubscriptionID, events[0].ResourceID)
	assert.NotNil(t, events[0].ProcessedAt)
}
