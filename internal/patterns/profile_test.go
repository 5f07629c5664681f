package patterns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ========================================
// MOCK REPOSITORY
// ========================================

type mockPatternsRepository struct {
	mock.Mock
}

func (m *mockPatternsRepository) GetRecentPayments(ctx context.Context, userID uuid.UUID, limit int) ([]PaymentRecord, error) {
	args := m.Called(ctx, userID, limit)
	payments, _ := args.Get(0).([]PaymentRecord)
	return payments, args.Error(1)
}

func (m *mockPatternsRepository) GetActiveModels(ctx context.Context) ([]AnalysisModel, error) {
	args := m.Called(ctx)
	models, _ := args.Get(0).([]AnalysisModel)
	return models, args.Error(1)
}

func (m *mockPatternsRepository) CreateAnalysisLog(ctx context.Context, log *AnalysisLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

// ========================================
// HELPERS
// ========================================

func paymentAt(amount float64, at time.Time, method, country, device string) PaymentRecord {
	return PaymentRecord{
		ID:                uuid.New(),
		Amount:            amount,
		PaymentMethod:     method,
		Country:           country,
		DeviceFingerprint: device,
		CreatedAt:         at,
	}
}

func newTestBuilder(repo RepositoryInterface) *ProfileBuilder {
	cache := NewProfileCache(5*time.Minute, nil, nil)
	return NewProfileBuilder(repo, cache, 100, nil)
}

// ========================================
// TESTS
// ========================================

func TestBuild_EmptyHistoryReturnsNeutralDefault(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	repo.On("GetRecentPayments", ctx, userID, 100).Return([]PaymentRecord{}, nil).Once()

	profile := newTestBuilder(repo).Build(ctx, userID)

	require.NotNil(t, profile)
	assert.Equal(t, 0, profile.PaymentCount)
	assert.Equal(t, 50.0, profile.NewLocationRisk)
	assert.Equal(t, 50.0, profile.NewDeviceRisk)
	assert.Equal(t, -1, profile.PeakHour)
	assert.Empty(t, profile.PrimaryCountry)
	assert.Empty(t, profile.PrimaryDevice)
	repo.AssertExpectations(t)
}

func TestBuild_FetchErrorFailsOpenToDefault(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	repo.On("GetRecentPayments", ctx, userID, 100).Return(nil, errors.New("db down")).Once()

	profile := newTestBuilder(repo).Build(ctx, userID)

	require.NotNil(t, profile)
	assert.Equal(t, 50.0, profile.NewLocationRisk)
	assert.Equal(t, 50.0, profile.NewDeviceRisk)
}

func TestBuild_AmountStatistics(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)

	payments := []PaymentRecord{
		paymentAt(100, base, "card", "JP", "dev-1"),
		paymentAt(200, base.Add(-24*time.Hour), "card", "JP", "dev-1"),
		paymentAt(300, base.Add(-48*time.Hour), "card", "JP", "dev-1"),
	}

	repo := new(mockPatternsRepository)
	repo.On("GetRecentPayments", ctx, userID, 100).Return(payments, nil).Once()

	profile := newTestBuilder(repo).Build(ctx, userID)

	assert.Equal(t, 3, profile.PaymentCount)
	assert.InDelta(t, 200.0, profile.AverageAmount, 0.001)
	assert.InDelta(t, 200.0, profile.MedianAmount, 0.001)
	assert.InDelta(t, 81.6497, profile.AmountStdDev, 0.001)
	// Single country and device mean full stability, zero novelty risk
	assert.Equal(t, "JP", profile.PrimaryCountry)
	assert.InDelta(t, 0.0, profile.NewLocationRisk, 0.001)
	assert.Equal(t, "dev-1", profile.PrimaryDevice)
	assert.InDelta(t, 0.0, profile.NewDeviceRisk, 0.001)
	assert.Equal(t, 14, profile.PeakHour)
}

func TestBuild_PeakHourTieBreaksFirstEncountered(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	// Hours 9 and 17 each appear once; 9 is first in recency order
	payments := []PaymentRecord{
		paymentAt(100, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC), "card", "JP", "dev-1"),
		paymentAt(100, time.Date(2026, 2, 9, 17, 0, 0, 0, time.UTC), "card", "JP", "dev-1"),
	}

	repo := new(mockPatternsRepository)
	repo.On("GetRecentPayments", ctx, userID, 100).Return(payments, nil).Once()

	profile := newTestBuilder(repo).Build(ctx, userID)
	assert.Equal(t, 9, profile.PeakHour)
}

func TestBuild_MethodRanking(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)

	payments := []PaymentRecord{
		paymentAt(100, base, "bank", "JP", "dev-1"),
		paymentAt(100, base.Add(-1*time.Hour), "card", "JP", "dev-1"),
		paymentAt(100, base.Add(-2*time.Hour), "card", "JP", "dev-1"),
		paymentAt(100, base.Add(-3*time.Hour), "card", "JP", "dev-1"),
	}

	repo := new(mockPatternsRepository)
	repo.On("GetRecentPayments", ctx, userID, 100).Return(payments, nil).Once()

	profile := newTestBuilder(repo).Build(ctx, userID)

	require.Len(t, profile.PaymentMethods, 2)
	assert.Equal(t, "card", profile.PaymentMethods[0].Method)
	assert.Equal(t, 3, profile.PaymentMethods[0].Count)
	assert.InDelta(t, 0.75, profile.PaymentMethods[0].Frequency, 0.001)
	assert.Equal(t, "bank", profile.PaymentMethods[1].Method)
}

func TestBuild_LocationStabilityDrivesRisk(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)

	// 3 of 4 payments in JP: stability 0.75, risk 25, travel 0.25
	payments := []PaymentRecord{
		paymentAt(100, base, "card", "JP", "dev-1"),
		paymentAt(100, base.Add(-1*time.Hour), "card", "JP", "dev-1"),
		paymentAt(100, base.Add(-2*time.Hour), "card", "JP", "dev-1"),
		paymentAt(100, base.Add(-3*time.Hour), "card", "US", "dev-1"),
	}

	repo := new(mockPatternsRepository)
	repo.On("GetRecentPayments", ctx, userID, 100).Return(payments, nil).Once()

	profile := newTestBuilder(repo).Build(ctx, userID)

	assert.Equal(t, "JP", profile.PrimaryCountry)
	assert.InDelta(t, 0.25, profile.TravelFrequency, 0.001)
	assert.InDelta(t, 25.0, profile.NewLocationRisk, 0.001)
}

func TestBuild_SecondCallServedFromCache(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	payments := []PaymentRecord{
		paymentAt(100, time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC), "card", "JP", "dev-1"),
	}

	repo := new(mockPatternsRepository)
	repo.On("GetRecentPayments", ctx, userID, 100).Return(payments, nil).Once()

	builder := newTestBuilder(repo)
	first := builder.Build(ctx, userID)
	second := builder.Build(ctx, userID)

	assert.Same(t, first, second)
	repo.AssertExpectations(t)
}

func TestBuild_CacheExpiresByTTL(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	payments := []PaymentRecord{
		paymentAt(100, time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC), "card", "JP", "dev-1"),
	}

	repo := new(mockPatternsRepository)
	repo.On("GetRecentPayments", ctx, userID, 100).Return(payments, nil).Twice()

	base := time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC)
	current := base
	clock := func() time.Time { return current }

	cache := NewProfileCache(5*time.Minute, nil, clock)
	builder := NewProfileBuilder(repo, cache, 100, clock)

	builder.Build(ctx, userID)
	current = base.Add(6 * time.Minute)
	builder.Build(ctx, userID)

	repo.AssertExpectations(t)
}

func TestAmountConsistency(t *testing.T) {
	assert.InDelta(t, 1.0, amountConsistency(100, 0), 0.001)
	assert.InDelta(t, 0.5, amountConsistency(100, 50), 0.001)
	assert.Equal(t, 0.0, amountConsistency(100, 150))
	assert.Equal(t, 0.5, amountConsistency(0, 0))
}
