package patterns

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/salonflow/salonflow-backend/pkg/logger"
	"go.uber.org/zap"
)

// Scoring thresholds for the statistical strategy. A factor contributes only
// when its deviation exceeds its threshold; quiet factors add nothing to the
// score and nothing to the averaging denominator.
const (
	amountZThreshold     = 2.0
	peakHourGapThreshold = 6 // hours from peak hour
	rareMethodFrequency  = 0.1
	anomalyThreshold     = 70.0
)

// AnomalyScorer scores payment attempts against a user's behavioral profile.
// It fails safe: any internal error produces a maximal-risk result, never a
// silently-clean one.
type AnomalyScorer struct {
	repo RepositoryInterface
	now  func() time.Time
}

// NewAnomalyScorer creates an anomaly scorer
func NewAnomalyScorer(repo RepositoryInterface, now func() time.Time) *AnomalyScorer {
	if now == nil {
		now = time.Now
	}
	return &AnomalyScorer{repo: repo, now: now}
}

// Analyze scores one payment attempt against a profile using every active
// model, combines the outputs, and persists an analysis log row.
func (s *AnomalyScorer) Analyze(ctx context.Context, input *PaymentInput, profile *UserPaymentProfile) *AnalysisResult {
	start := s.now()

	result, modelVersion, err := s.analyze(ctx, input, profile)
	if err != nil {
		logger.Error("Pattern analysis failed, returning maximal-risk result",
			zap.Error(err),
			zap.String("user_id", input.UserID.String()),
		)
		result = failSafeResult(err)
		modelVersion = "fail_safe"
	}

	s.persistLog(ctx, input, result, modelVersion, s.now().Sub(start))
	return result
}

func (s *AnomalyScorer) analyze(ctx context.Context, input *PaymentInput, profile *UserPaymentProfile) (result *AnalysisResult, modelVersion string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pattern analysis panic: %v", r)
		}
	}()

	models, err := s.repo.GetActiveModels(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load scoring models: %w", err)
	}

	// With no configured models, the statistical strategy runs at full weight
	if len(models) == 0 {
		models = []AnalysisModel{{Name: "statistical_default", Type: ModelStatistical, Version: "builtin", Accuracy: 1.0, IsActive: true}}
	}

	// Each model's score and confidence are scaled by its stored accuracy,
	// summed, and divided by the model count. Accuracy acts as a soft
	// multiplier here, not a normalized weight; this is the existing contract.
	var scoreSum, confidenceSum float64
	patterns := make([]string, 0)
	factors := make([]RiskFactor, 0)
	versions := ""

	for _, model := range models {
		modelScore, modelConfidence, modelPatterns, modelFactors := s.runModel(model, input, profile)
		scoreSum += modelScore * model.Accuracy
		confidenceSum += modelConfidence * model.Accuracy
		patterns = appendUnique(patterns, modelPatterns)
		factors = append(factors, modelFactors...)
		if versions != "" {
			versions += ","
		}
		versions += model.Name + ":" + model.Version
	}

	avgScore := clampScore(scoreSum / float64(len(models)))
	avgConfidence := clampScore(confidenceSum / float64(len(models)))

	result = &AnalysisResult{
		IsAnomaly:        avgScore > anomalyThreshold,
		AnomalyScore:     avgScore,
		Confidence:       avgConfidence,
		DetectedPatterns: patterns,
		RiskFactors:      factors,
		Recommendations:  recommendations(avgScore, factors),
	}
	return result, versions, nil
}

func (s *AnomalyScorer) runModel(model AnalysisModel, input *PaymentInput, profile *UserPaymentProfile) (float64, float64, []string, []RiskFactor) {
	switch model.Type {
	case ModelML:
		return s.scoreFeatures(input, profile)
	case ModelHybrid:
		statScore, statConf, statPatterns, statFactors := s.scoreStatistical(input, profile)
		mlScore, mlConf, mlPatterns, mlFactors := s.scoreFeatures(input, profile)
		return (statScore + mlScore) / 2, (statConf + mlConf) / 2,
			appendUnique(statPatterns, mlPatterns), append(statFactors, mlFactors...)
	default:
		return s.scoreStatistical(input, profile)
	}
}

// scoreStatistical checks each habit dimension and accumulates sub-scores for
// the dimensions whose deviation crosses its threshold. The final score is the
// average over triggered dimensions only.
func (s *AnomalyScorer) scoreStatistical(input *PaymentInput, profile *UserPaymentProfile) (float64, float64, []string, []RiskFactor) {
	patterns := make([]string, 0)
	factors := make([]RiskFactor, 0)
	total := 0.0
	triggered := 0

	// Amount deviation. Skipped when stddev is zero or unknown, so a
	// first-time payer is not flagged on amount alone.
	if profile.AmountStdDev > 0 {
		z := math.Abs(input.Amount-profile.AverageAmount) / profile.AmountStdDev
		if z > amountZThreshold {
			score := clampScore(40 + (z-amountZThreshold)*20)
			total += score
			triggered++
			patterns = append(patterns, "amount_deviation")
			factors = append(factors, RiskFactor{
				Factor:      "amount_deviation",
				Score:       score,
				Description: fmt.Sprintf("Amount %.2f deviates %.1f standard deviations from the user average %.2f", input.Amount, z, profile.AverageAmount),
			})
		}
	}

	// Time-of-day deviation against the peak activity hour
	if profile.PeakHour >= 0 {
		gap := hourGap(input.Timestamp.Hour(), profile.PeakHour)
		if gap > peakHourGapThreshold {
			score := clampScore(30 + float64(gap-peakHourGapThreshold)*10)
			total += score
			triggered++
			patterns = append(patterns, "unusual_hour")
			factors = append(factors, RiskFactor{
				Factor:      "unusual_hour",
				Score:       score,
				Description: fmt.Sprintf("Payment at hour %d, %d hours from usual peak hour %d", input.Timestamp.Hour(), gap, profile.PeakHour),
			})
		}
	}

	// Payment method rarity
	if len(profile.PaymentMethods) > 0 {
		freq := methodFrequency(profile, input.PaymentMethod)
		if freq == 0 {
			total += 80
			triggered++
			patterns = append(patterns, "new_payment_method")
			factors = append(factors, RiskFactor{
				Factor:      "new_payment_method",
				Score:       80,
				Description: fmt.Sprintf("Payment method %q never used before", input.PaymentMethod),
			})
		} else if freq < rareMethodFrequency {
			total += 50
			triggered++
			patterns = append(patterns, "rare_payment_method")
			factors = append(factors, RiskFactor{
				Factor:      "rare_payment_method",
				Score:       50,
				Description: fmt.Sprintf("Payment method %q used in %.0f%% of payments", input.PaymentMethod, freq*100),
			})
		}
	}

	// Location novelty. Only triggers when a primary country is known and the
	// attempt comes from somewhere else.
	if profile.PrimaryCountry != "" && input.Country != "" && input.Country != profile.PrimaryCountry {
		score := clampScore(profile.NewLocationRisk)
		total += score
		triggered++
		patterns = append(patterns, "new_location")
		factors = append(factors, RiskFactor{
			Factor:      "new_location",
			Score:       score,
			Description: fmt.Sprintf("Payment from %s, primary country is %s", input.Country, profile.PrimaryCountry),
		})
	}

	// Device novelty, same rule as location
	if profile.PrimaryDevice != "" && input.DeviceFingerprint != "" && input.DeviceFingerprint != profile.PrimaryDevice {
		score := clampScore(profile.NewDeviceRisk)
		total += score
		triggered++
		patterns = append(patterns, "new_device")
		factors = append(factors, RiskFactor{
			Factor:      "new_device",
			Score:       score,
			Description: "Payment from an unrecognized device fingerprint",
		})
	}

	if triggered == 0 {
		return 0, 30, patterns, factors
	}

	// Average over triggered factors only; confidence grows with the number
	// of corroborating signals.
	score := total / float64(triggered)
	confidence := clampScore(30 + float64(triggered)*20)
	return score, confidence, patterns, factors
}

// Feature weights for the ML-style model, a simple linear scorer squashed
// through a sigmoid.
var featureWeights = map[string]float64{
	"amount_ratio":    0.30,
	"hour_gap":        0.15,
	"method_rarity":   0.20,
	"location_change": 0.20,
	"device_change":   0.15,
}

const featureBias = -0.5

func (s *AnomalyScorer) scoreFeatures(input *PaymentInput, profile *UserPaymentProfile) (float64, float64, []string, []RiskFactor) {
	features := extractFeatures(input, profile)

	raw := featureBias
	for name, value := range features {
		if weight, ok := featureWeights[name]; ok {
			raw += weight * value
		}
	}

	score := sigmoid(raw) * 100
	// Confidence tracks how much history backs the features
	confidence := clampScore(40 + float64(profile.PaymentCount))

	factors := []RiskFactor{}
	patterns := []string{}
	// Above the sigmoid midpoint the weighted evidence is net anomalous
	if score > 50 {
		patterns = append(patterns, "feature_model_anomaly")
		factors = append(factors, RiskFactor{
			Factor:      "feature_model_anomaly",
			Score:       score,
			Description: "Weighted feature model scored this attempt as anomalous",
		})
	}
	return score, confidence, patterns, factors
}

func extractFeatures(input *PaymentInput, profile *UserPaymentProfile) map[string]float64 {
	features := make(map[string]float64)

	if profile.AverageAmount > 0 {
		features["amount_ratio"] = math.Min(input.Amount/(profile.AverageAmount*3), 1.0)
	}
	if profile.PeakHour >= 0 {
		features["hour_gap"] = float64(hourGap(input.Timestamp.Hour(), profile.PeakHour)) / 12.0
	}
	if len(profile.PaymentMethods) > 0 {
		features["method_rarity"] = 1 - methodFrequency(profile, input.PaymentMethod)
	}
	if profile.PrimaryCountry != "" && input.Country != "" && input.Country != profile.PrimaryCountry {
		features["location_change"] = 1.0
	}
	if profile.PrimaryDevice != "" && input.DeviceFingerprint != "" && input.DeviceFingerprint != profile.PrimaryDevice {
		features["device_change"] = 1.0
	}

	return features
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// hourGap returns the circular distance between two hours of day
func hourGap(a, b int) int {
	gap := a - b
	if gap < 0 {
		gap = -gap
	}
	if gap > 12 {
		gap = 24 - gap
	}
	return gap
}

func methodFrequency(profile *UserPaymentProfile, method string) float64 {
	for _, usage := range profile.PaymentMethods {
		if usage.Method == method {
			return usage.Frequency
		}
	}
	return 0
}

func clampScore(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

func appendUnique(existing []string, items []string) []string {
	for _, item := range items {
		found := false
		for _, e := range existing {
			if e == item {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, item)
		}
	}
	return existing
}

func recommendations(score float64, factors []RiskFactor) []string {
	recs := make([]string, 0)
	switch {
	case score > 90:
		recs = append(recs, "Block payment pending manual review")
	case score > anomalyThreshold:
		recs = append(recs, "Require additional verification before completing payment")
	case score > 40:
		recs = append(recs, "Flag payment for asynchronous review")
	}
	for _, f := range factors {
		if f.Factor == "new_device" {
			recs = append(recs, "Confirm the new device via registered contact channel")
		}
		if f.Factor == "new_location" {
			recs = append(recs, "Confirm recent travel with the account holder")
		}
	}
	return recs
}

// failSafeResult is the maximal-risk result returned when analysis itself fails
func failSafeResult(err error) *AnalysisResult {
	return &AnalysisResult{
		IsAnomaly:    true,
		AnomalyScore: 100,
		Confidence:   0,
		RiskFactors: []RiskFactor{{
			Factor:      "system_error",
			Score:       100,
			Description: err.Error(),
		}},
		Recommendations: []string{"Manual review required, automated analysis unavailable"},
	}
}

func (s *AnomalyScorer) persistLog(ctx context.Context, input *PaymentInput, result *AnalysisResult, modelVersion string, elapsed time.Duration) {
	entry := &AnalysisLog{
		ID:               uuid.New(),
		UserID:           input.UserID,
		Amount:           input.Amount,
		AnomalyScore:     result.AnomalyScore,
		Confidence:       result.Confidence,
		IsAnomaly:        result.IsAnomaly,
		DetectedPatterns: result.DetectedPatterns,
		RiskFactors:      result.RiskFactors,
		ModelVersion:     modelVersion,
		AnalysisTimeMS:   elapsed.Milliseconds(),
		CreatedAt:        s.now(),
	}
	if err := s.repo.CreateAnalysisLog(ctx, entry); err != nil {
		logger.Error("Failed to persist pattern analysis log",
			zap.Error(err),
			zap.String("user_id", input.UserID.String()),
		)
	}
}
