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

func establishedProfile(userID uuid.UUID) *UserPaymentProfile {
	return &UserPaymentProfile{
		UserID:        userID,
		PaymentCount:  50,
		AverageAmount: 100,
		MedianAmount:  100,
		AmountStdDev:  10,
		PaymentMethods: []MethodUsage{
			{Method: "card", Count: 45, Frequency: 0.9},
			{Method: "bank", Count: 5, Frequency: 0.1},
		},
		PeakHour:        14,
		PeakDay:         time.Tuesday,
		PrimaryCountry:  "JP",
		NewLocationRisk: 10,
		PrimaryDevice:   "dev-1",
		NewDeviceRisk:   10,
	}
}

func statisticalOnly(repo *mockPatternsRepository) {
	repo.On("GetActiveModels", mock.Anything).Return([]AnalysisModel{
		{ID: uuid.New(), Name: "statistical", Type: ModelStatistical, Version: "v1", Accuracy: 1.0, IsActive: true},
	}, nil)
}

func normalInput(userID uuid.UUID) *PaymentInput {
	return &PaymentInput{
		UserID:        userID,
		Amount:        100,
		PaymentMethod: "card",
		Country:       "JP",
		// Fingerprint left empty: an unset attempt-side fingerprint never
		// counts as a new device.
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
	}
}

func TestAnalyze_NoTriggersOnNeutralDefaultProfile(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	statisticalOnly(repo)
	repo.On("CreateAnalysisLog", mock.Anything, mock.Anything).Return(nil).Once()

	builder := newTestBuilder(new(mockPatternsRepository))
	profile := builder.defaultProfile(userID)

	input := &PaymentInput{
		UserID:        userID,
		Amount:        50,
		PaymentMethod: "card",
		Country:       "JP",
		Timestamp:     time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC),
	}

	result := NewAnomalyScorer(repo, nil).Analyze(ctx, input, profile)

	// A first-time payer has no habits to deviate from; nothing triggers
	assert.False(t, result.IsAnomaly)
	assert.Equal(t, 0.0, result.AnomalyScore)
	assert.Empty(t, result.RiskFactors)
	repo.AssertExpectations(t)
}

func TestAnalyze_AmountDeviationTriggers(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	statisticalOnly(repo)
	repo.On("CreateAnalysisLog", mock.Anything, mock.MatchedBy(func(l *AnalysisLog) bool {
		return l.UserID == userID && l.IsAnomaly && l.AnomalyScore == 100
	})).Return(nil).Once()

	input := normalInput(userID)
	input.Amount = 200 // ten standard deviations out

	result := NewAnomalyScorer(repo, nil).Analyze(ctx, input, establishedProfile(userID))

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, 100.0, result.AnomalyScore)
	require.Len(t, result.RiskFactors, 1)
	assert.Equal(t, "amount_deviation", result.RiskFactors[0].Factor)
	assert.Contains(t, result.DetectedPatterns, "amount_deviation")
	// One corroborating signal
	assert.InDelta(t, 50.0, result.Confidence, 0.001)
	repo.AssertExpectations(t)
}

func TestAnalyze_QuietFactorsDoNotDiluteScore(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	statisticalOnly(repo)
	repo.On("CreateAnalysisLog", mock.Anything, mock.Anything).Return(nil)

	scorer := NewAnomalyScorer(repo, nil)
	profile := establishedProfile(userID)

	// Only the new-payment-method factor triggers; the average is over the
	// single triggered factor, not all five dimensions.
	input := normalInput(userID)
	input.PaymentMethod = "crypto"

	result := scorer.Analyze(ctx, input, profile)
	assert.True(t, result.IsAnomaly)
	assert.Equal(t, 80.0, result.AnomalyScore)
	require.Len(t, result.RiskFactors, 1)
	assert.Equal(t, "new_payment_method", result.RiskFactors[0].Factor)
}

func TestAnalyze_MultipleTriggersRaiseConfidence(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	statisticalOnly(repo)
	repo.On("CreateAnalysisLog", mock.Anything, mock.Anything).Return(nil)

	input := normalInput(userID)
	input.Amount = 200                 // amount triggers at 100
	input.Country = "RU"               // location triggers at NewLocationRisk 10
	input.DeviceFingerprint = "dev-9"  // device triggers at NewDeviceRisk 10

	result := NewAnomalyScorer(repo, nil).Analyze(ctx, input, establishedProfile(userID))

	// (100 + 10 + 10) / 3 triggered factors
	assert.InDelta(t, 40.0, result.AnomalyScore, 0.001)
	assert.False(t, result.IsAnomaly)
	assert.InDelta(t, 90.0, result.Confidence, 0.001)
	assert.Len(t, result.RiskFactors, 3)
}

func TestAnalyze_UnusualHourTriggers(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	statisticalOnly(repo)
	repo.On("CreateAnalysisLog", mock.Anything, mock.Anything).Return(nil)

	input := normalInput(userID)
	// 03:00 against a 14:00 peak is 11 hours of circular distance
	input.Timestamp = time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)

	result := NewAnomalyScorer(repo, nil).Analyze(ctx, input, establishedProfile(userID))

	require.Len(t, result.RiskFactors, 1)
	assert.Equal(t, "unusual_hour", result.RiskFactors[0].Factor)
	assert.InDelta(t, 80.0, result.AnomalyScore, 0.001) // 30 + (11-6)*10
}

func TestAnalyze_AccuracyScalesButCountDivides(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	repo.On("GetActiveModels", mock.Anything).Return([]AnalysisModel{
		{ID: uuid.New(), Name: "stat-a", Type: ModelStatistical, Version: "v1", Accuracy: 0.5, IsActive: true},
		{ID: uuid.New(), Name: "stat-b", Type: ModelStatistical, Version: "v2", Accuracy: 0.5, IsActive: true},
	}, nil)
	repo.On("CreateAnalysisLog", mock.Anything, mock.Anything).Return(nil)

	input := normalInput(userID)
	input.PaymentMethod = "crypto" // statistical score 80 per model

	result := NewAnomalyScorer(repo, nil).Analyze(ctx, input, establishedProfile(userID))

	// (80*0.5 + 80*0.5) / 2 models: accuracy scales each output, the
	// denominator stays the model count.
	assert.InDelta(t, 40.0, result.AnomalyScore, 0.001)
	assert.False(t, result.IsAnomaly)
}

func TestAnalyze_ModelLoadErrorFailsSafe(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	repo.On("GetActiveModels", mock.Anything).Return(nil, errors.New("db down"))
	repo.On("CreateAnalysisLog", mock.Anything, mock.MatchedBy(func(l *AnalysisLog) bool {
		return l.ModelVersion == "fail_safe" && l.AnomalyScore == 100
	})).Return(nil).Once()

	result := NewAnomalyScorer(repo, nil).Analyze(ctx, normalInput(userID), establishedProfile(userID))

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, 100.0, result.AnomalyScore)
	assert.Equal(t, 0.0, result.Confidence)
	require.Len(t, result.RiskFactors, 1)
	assert.Equal(t, "system_error", result.RiskFactors[0].Factor)
	repo.AssertExpectations(t)
}

func TestAnalyze_LogPersistFailureKeepsResult(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	statisticalOnly(repo)
	repo.On("CreateAnalysisLog", mock.Anything, mock.Anything).Return(errors.New("insert failed")).Once()

	result := NewAnomalyScorer(repo, nil).Analyze(ctx, normalInput(userID), establishedProfile(userID))

	assert.False(t, result.IsAnomaly)
	repo.AssertExpectations(t)
}

func TestAnalyze_NoConfiguredModelsUsesBuiltinStatistical(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	repo.On("GetActiveModels", mock.Anything).Return([]AnalysisModel{}, nil)
	repo.On("CreateAnalysisLog", mock.Anything, mock.Anything).Return(nil)

	input := normalInput(userID)
	input.PaymentMethod = "crypto"

	result := NewAnomalyScorer(repo, nil).Analyze(ctx, input, establishedProfile(userID))
	assert.Equal(t, 80.0, result.AnomalyScore)
}

func TestAnalyze_HybridModelCarriesFeatureModelFactors(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := new(mockPatternsRepository)
	repo.On("GetActiveModels", mock.Anything).Return([]AnalysisModel{
		{ID: uuid.New(), Name: "hybrid", Type: ModelHybrid, Version: "v1", Accuracy: 1.0, IsActive: true},
	}, nil)
	repo.On("CreateAnalysisLog", mock.Anything, mock.Anything).Return(nil)

	// Every feature deviates, so the feature half scores net anomalous and
	// must surface its explaining factor alongside the statistical ones.
	input := normalInput(userID)
	input.Amount = 1000
	input.PaymentMethod = "crypto"
	input.Country = "US"
	input.DeviceFingerprint = "dev-99"
	input.Timestamp = time.Date(2026, 2, 10, 2, 0, 0, 0, time.UTC)

	result := NewAnomalyScorer(repo, nil).Analyze(ctx, input, establishedProfile(userID))

	names := make([]string, 0, len(result.RiskFactors))
	for _, f := range result.RiskFactors {
		names = append(names, f.Factor)
	}
	assert.Contains(t, names, "feature_model_anomaly")
	assert.Contains(t, names, "amount_deviation")
	assert.Contains(t, result.DetectedPatterns, "feature_model_anomaly")
}

func TestHourGap_Circular(t *testing.T) {
	assert.Equal(t, 0, hourGap(14, 14))
	assert.Equal(t, 6, hourGap(20, 14))
	assert.Equal(t, 11, hourGap(3, 14))
	assert.Equal(t, 2, hourGap(23, 1))
}
