package repository

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/souldream/billing-service/internal/domain"
	"github.com/souldream/billing-service/pkg/logger"
)

func newTestLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

func TestInMemorySubscriptionRepositoryLookups(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(newTestLogger())
	userID := uuid.New()
	providerID := "I-LOOKUP"

	created, err := repo.Create(context.Background(), domain.Subscription{
		UserID:                 userID,
		PlanID:                 uuid.New(),
		Status:                 domain.SubscriptionStatusActive,
		Provider:               domain.PaymentProviderPayPal,
		ProviderSubscriptionID: &providerID,
	})
	require.NoError(t, err)

	byProvider, err := repo.GetByProviderSubscriptionID(context.Background(), providerID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byProvider.ID)

	active, err := repo.GetActiveByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, active.ID)

	_, err = repo.GetByProviderSubscriptionID(context.Background(), "I-MISSING")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetActiveByUserID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemorySubscriptionRepositoryActiveExcludesOtherStatuses(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(newTestLogger())
	userID := uuid.New()

	for _, status := range []domain.SubscriptionStatus{
		domain.SubscriptionStatusPending,
		domain.SubscriptionStatusCancelled,
		domain.SubscriptionStatusSuspended,
	} {
		_, err := repo.Create(context.Background(), domain.Subscription{
			UserID: userID,
			PlanID: uuid.New(),
			Status: status,
		})
		require.NoError(t, err)
	}

	_, err := repo.GetActiveByUserID(context.Background(), userID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryPaymentRepositoryRejectsDuplicateProviderID(t *testing.T) {
	repo := NewInMemoryPaymentRepository(newTestLogger())
	userID := uuid.New()

	payment := domain.PaymentRecord{
		UserID:            userID,
		ProviderPaymentID: "PAY-1",
		Amount:            9.99,
		Currency:          "USD",
		Status:            domain.PaymentStatusCompleted,
	}

	_, err := repo.Create(context.Background(), payment)
	require.NoError(t, err)

	_, err = repo.Create(context.Background(), payment)
	assert.ErrorIs(t, err, ErrDuplicate)

	payments, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestInMemoryPlanRepositorySetProviderIDs(t *testing.T) {
	repo := NewInMemoryPlanRepository(newTestLogger())

	plan, err := repo.Create(context.Background(), domain.Plan{
		Name:     "pro",
		Price:    9.99,
		Currency: "USD",
		Interval: domain.PlanIntervalMonth,
	})
	require.NoError(t, err)

	require.NoError(t, repo.SetProviderIDs(context.Background(), plan.ID, "PROD-1", "P-1"))

	stored, err := repo.GetByID(context.Background(), plan.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PayPalProductID)
	require.NotNil(t, stored.PayPalPlanID)
	assert.Equal(t, "PROD-1", *stored.PayPalProductID)
	assert.Equal(t, "P-1", *stored.PayPalPlanID)

	assert.ErrorIs(t, repo.SetProviderIDs(context.Background(), uuid.New(), "PROD-2", "P-2"), ErrNotFound)
}
