package patterns

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/salonflow/salonflow-backend/pkg/logger"
	"go.uber.org/zap"
)

// Default neutral risk for users with no payment history. A first-time payer
// is neither trusted nor flagged.
const neutralRisk = 50.0

// ProfileBuilder derives behavioral payment profiles from payment history.
// It fails open: a fetch error yields the neutral default profile, because a
// missing profile must not block a legitimate payer downstream.
type ProfileBuilder struct {
	repo    RepositoryInterface
	cache   *ProfileCache
	history int
	now     func() time.Time
}

// NewProfileBuilder creates a profile builder. history caps how many completed
// payments feed a profile.
func NewProfileBuilder(repo RepositoryInterface, cache *ProfileCache, history int, now func() time.Time) *ProfileBuilder {
	if history <= 0 {
		history = 100
	}
	if now == nil {
		now = time.Now
	}
	return &ProfileBuilder{repo: repo, cache: cache, history: history, now: now}
}

// Build returns the user's payment profile, from cache when fresh. It never
// returns an error.
func (b *ProfileBuilder) Build(ctx context.Context, userID uuid.UUID) *UserPaymentProfile {
	if cached := b.cache.Get(ctx, userID); cached != nil {
		return cached
	}

	payments, err := b.repo.GetRecentPayments(ctx, userID, b.history)
	if err != nil {
		logger.Error("Payment history fetch failed, using default profile",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return b.defaultProfile(userID)
	}

	profile := b.buildFromHistory(userID, payments)
	b.cache.Set(ctx, profile)
	return profile
}

// defaultProfile is the well-defined neutral profile for users without history
func (b *ProfileBuilder) defaultProfile(userID uuid.UUID) *UserPaymentProfile {
	return &UserPaymentProfile{
		UserID:          userID,
		PaymentCount:    0,
		PaymentMethods:  []MethodUsage{},
		PeakHour:        -1,
		PeakDay:         -1,
		NewLocationRisk: neutralRisk,
		NewDeviceRisk:   neutralRisk,
		Behavioral: BehavioralMetrics{
			AmountConsistency: 0.5,
		},
		BuiltAt: b.now(),
	}
}

func (b *ProfileBuilder) buildFromHistory(userID uuid.UUID, payments []PaymentRecord) *UserPaymentProfile {
	if len(payments) == 0 {
		return b.defaultProfile(userID)
	}

	amounts := make([]float64, len(payments))
	sessions := make([]float64, len(payments))
	for i, p := range payments {
		amounts[i] = p.Amount
		sessions[i] = p.SessionDuration
	}

	avg := mean(amounts)
	std := stdDev(amounts, avg)

	profile := &UserPaymentProfile{
		UserID:        userID,
		PaymentCount:  len(payments),
		AverageAmount: avg,
		MedianAmount:  median(amounts),
		AmountStdDev:  std,
		BuiltAt:       b.now(),
	}

	profile.PaymentMethods = rankMethods(payments)
	profile.PeakHour = modeInt(payments, func(p PaymentRecord) int { return p.CreatedAt.Hour() })
	profile.PeakDay = time.Weekday(modeInt(payments, func(p PaymentRecord) int { return int(p.CreatedAt.Weekday()) }))

	country, countryStability := primaryValue(payments, func(p PaymentRecord) string { return p.Country })
	profile.PrimaryCountry = country
	profile.TravelFrequency = 1 - countryStability
	profile.NewLocationRisk = riskFromStability(countryStability)

	device, deviceStability := primaryValue(payments, func(p PaymentRecord) string { return p.DeviceFingerprint })
	profile.PrimaryDevice = device
	profile.DeviceStability = deviceStability
	profile.NewDeviceRisk = riskFromStability(deviceStability)

	sessionMean := mean(sessions)
	profile.Behavioral = BehavioralMetrics{
		SessionDurationMean:   sessionMean,
		SessionDurationStdDev: stdDev(sessions, sessionMean),
		AmountConsistency:     amountConsistency(avg, std),
	}
	gapMean, gapStd := paymentGapStats(payments)
	profile.Behavioral.PaymentGapHoursMean = gapMean
	profile.Behavioral.PaymentGapHoursStdDev = gapStd

	return profile
}

// riskFromStability maps stability (fraction on the most frequent value) to a
// 0-100 risk score. Lower stability means higher new-value risk, capped at 100.
func riskFromStability(stability float64) float64 {
	risk := (1 - stability) * 100
	if risk > 100 {
		risk = 100
	}
	if risk < 0 {
		risk = 0
	}
	return risk
}

// amountConsistency maps the coefficient of variation into a 0..1 ratio where
// 1 means every payment is the same amount.
func amountConsistency(avg, std float64) float64 {
	if avg <= 0 {
		return 0.5
	}
	consistency := 1 - std/avg
	if consistency < 0 {
		return 0
	}
	return consistency
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func stdDev(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// modeInt returns the statistical mode of an extracted integer value. Ties
// break to the first-encountered value in iteration order, which is
// deterministic because payment history arrives in stable (recency) order.
func modeInt(payments []PaymentRecord, extract func(PaymentRecord) int) int {
	counts := make(map[int]int)
	best := extract(payments[0])
	bestCount := 0
	for _, p := range payments {
		v := extract(p)
		counts[v]++
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best
}

// primaryValue returns the most frequent non-empty extracted value and the
// fraction of all payments carrying it. Ties break first-encountered.
func primaryValue(payments []PaymentRecord, extract func(PaymentRecord) string) (string, float64) {
	counts := make(map[string]int)
	best := ""
	bestCount := 0
	for _, p := range payments {
		v := extract(p)
		if v == "" {
			continue
		}
		counts[v]++
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	if best == "" {
		return "", 0
	}
	return best, float64(bestCount) / float64(len(payments))
}

// rankMethods ranks payment methods by usage, most used first
func rankMethods(payments []PaymentRecord) []MethodUsage {
	byMethod := make(map[string]*MethodUsage)
	order := make([]string, 0)
	for _, p := range payments {
		usage, ok := byMethod[p.PaymentMethod]
		if !ok {
			usage = &MethodUsage{Method: p.PaymentMethod}
			byMethod[p.PaymentMethod] = usage
			order = append(order, p.PaymentMethod)
		}
		usage.Count++
		if p.CreatedAt.After(usage.LastUsedAt) {
			usage.LastUsedAt = p.CreatedAt
		}
	}

	ranked := make([]MethodUsage, 0, len(order))
	for _, method := range order {
		usage := byMethod[method]
		usage.Frequency = float64(usage.Count) / float64(len(payments))
		ranked = append(ranked, *usage)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	return ranked
}

// paymentGapStats computes mean and stddev of hours between consecutive payments
func paymentGapStats(payments []PaymentRecord) (float64, float64) {
	if len(payments) < 2 {
		return 0, 0
	}

	sorted := make([]PaymentRecord, len(payments))
	copy(sorted, payments)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].CreatedAt.Sub(sorted[i-1].CreatedAt).Hours())
	}

	gapMean := mean(gaps)
	return gapMean, stdDev(gaps, gapMean)
}
