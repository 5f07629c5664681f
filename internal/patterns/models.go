package patterns

import (
	"time"

	"github.com/google/uuid"
)

// PaymentRecord is one completed payment as read from payment history
type PaymentRecord struct {
	ID                uuid.UUID `json:"id"`
	Amount            float64   `json:"amount"`
	PaymentMethod     string    `json:"payment_method"`
	IPAddress         string    `json:"ip_address"`
	UserAgent         string    `json:"user_agent"`
	Country           string    `json:"country"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	SessionDuration   float64   `json:"session_duration"` // seconds
	CreatedAt         time.Time `json:"created_at"`
}

// MethodUsage ranks one payment method within a user's history
type MethodUsage struct {
	Method     string    `json:"method"`
	Count      int       `json:"count"`
	Frequency  float64   `json:"frequency"` // fraction of all payments
	LastUsedAt time.Time `json:"last_used_at"`
}

// BehavioralMetrics are secondary habit statistics derived from history
type BehavioralMetrics struct {
	SessionDurationMean   float64 `json:"session_duration_mean"`
	SessionDurationStdDev float64 `json:"session_duration_std_dev"`
	PaymentGapHoursMean   float64 `json:"payment_gap_hours_mean"`
	PaymentGapHoursStdDev float64 `json:"payment_gap_hours_std_dev"`
	AmountConsistency     float64 `json:"amount_consistency"` // 0..1, 1 = very consistent
}

// UserPaymentProfile is the derived, cached behavioral profile of one user.
// All fields come from at most the last 100 completed payments. A user with no
// history gets the neutral default profile, never an absent one.
type UserPaymentProfile struct {
	UserID          uuid.UUID     `json:"user_id"`
	PaymentCount    int           `json:"payment_count"`
	AverageAmount   float64       `json:"average_amount"`
	MedianAmount    float64       `json:"median_amount"`
	AmountStdDev    float64       `json:"amount_std_dev"`
	PaymentMethods  []MethodUsage `json:"payment_methods"`
	PeakHour        int           `json:"peak_hour"`
	PeakDay         time.Weekday  `json:"peak_day"`
	PrimaryCountry  string        `json:"primary_country"`
	TravelFrequency float64       `json:"travel_frequency"` // fraction of payments outside primary country
	NewLocationRisk float64       `json:"new_location_risk"` // 0..100
	PrimaryDevice   string        `json:"primary_device"`
	DeviceStability float64       `json:"device_stability"` // fraction on primary device
	NewDeviceRisk   float64       `json:"new_device_risk"`  // 0..100
	Behavioral      BehavioralMetrics `json:"behavioral"`
	BuiltAt         time.Time     `json:"built_at"`
}

// ModelType classifies a scoring model strategy
type ModelType string

const (
	ModelStatistical ModelType = "statistical"
	ModelML          ModelType = "ml"
	ModelHybrid      ModelType = "hybrid"
)

// AnalysisModel is a stored, named scoring strategy with an accuracy weight
type AnalysisModel struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Type     ModelType `json:"type"`
	Version  string    `json:"version"`
	Accuracy float64   `json:"accuracy"` // 0..1
	IsActive bool      `json:"is_active"`
}

// RiskFactor names one contributing anomaly signal
type RiskFactor struct {
	Factor      string  `json:"factor"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// AnalysisResult is the scorer's output for one payment attempt
type AnalysisResult struct {
	IsAnomaly        bool         `json:"is_anomaly"`
	AnomalyScore     float64      `json:"anomaly_score"` // 0..100
	Confidence       float64      `json:"confidence"`    // 0..100
	DetectedPatterns []string     `json:"detected_patterns"`
	RiskFactors      []RiskFactor `json:"risk_factors"`
	Recommendations  []string     `json:"recommendations"`
}

// AnalysisLog is the persisted audit row written once per scoring call
type AnalysisLog struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Amount           float64   `json:"amount"`
	AnomalyScore     float64   `json:"anomaly_score"`
	Confidence       float64   `json:"confidence"`
	IsAnomaly        bool      `json:"is_anomaly"`
	DetectedPatterns []string  `json:"detected_patterns"`
	RiskFactors      []RiskFactor `json:"risk_factors"`
	ModelVersion     string    `json:"model_version"`
	AnalysisTimeMS   int64     `json:"analysis_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// PaymentInput is the attempt-side input to the anomaly scorer
type PaymentInput struct {
	UserID            uuid.UUID `json:"user_id"`
	Amount            float64   `json:"amount"`
	PaymentMethod     string    `json:"payment_method"`
	Country           string    `json:"country"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	Timestamp         time.Time `json:"timestamp"`
}
