package points

import (
	"time"

	"github.com/google/uuid"
)

// Tier is a loyalty band derived from lifetime points earned
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// Lifetime-point thresholds for each tier and the earning multiplier it grants
var tierBands = []struct {
	Tier       Tier
	MinPoints  int
	Multiplier float64
}{
	{TierDiamond, 100000, 2.0},
	{TierPlatinum, 50000, 1.75},
	{TierGold, 20000, 1.5},
	{TierSilver, 5000, 1.25},
	{TierBronze, 0, 1.0},
}

// TierForLifetimePoints returns the tier band and multiplier for a lifetime total
func TierForLifetimePoints(lifetime int) (Tier, float64) {
	for _, band := range tierBands {
		if lifetime >= band.MinPoints {
			return band.Tier, band.Multiplier
		}
	}
	return TierBronze, 1.0
}

// UserPoints is the points-side view of a user account
type UserPoints struct {
	UserID          uuid.UUID `json:"user_id"`
	AvailablePoints int       `json:"available_points"`
	LifetimePoints  int       `json:"lifetime_points"`
	IsInfluencer    bool      `json:"is_influencer"`
}

// PointTransaction is one earning or redemption row
type PointTransaction struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int       `json:"amount"` // positive = earned, negative = redeemed
	Type      string    `json:"type"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidationResult is the common shape every validator returns. Business-rule
// failures populate Errors; advisory conditions populate Warnings.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *ValidationResult) addError(msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
}

func (r *ValidationResult) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// EarningValidation is the result of validating a point-earning request
type EarningValidation struct {
	ValidationResult
	EligibleAmount   float64 `json:"eligible_amount"`
	BasePoints       int     `json:"base_points"`
	InfluencerBonus  int     `json:"influencer_bonus"`
	TierBonus        int     `json:"tier_bonus"`
	CalculatedPoints int     `json:"calculated_points"`
	Tier             Tier    `json:"tier"`
	RemainingDaily   int     `json:"remaining_daily"`
}

// RedemptionValidation is the result of validating a point-redemption request
type RedemptionValidation struct {
	ValidationResult
	AvailableBalance  int     `json:"available_balance"`
	MaxRedeemable     int     `json:"max_redeemable"`
	RedemptionValue   float64 `json:"redemption_value"`
	BalanceAfter      int     `json:"balance_after"`
	PercentOfBalance  float64 `json:"percent_of_balance"`
}

// DailyLimitsResult reports current earning usage against daily/monthly caps
type DailyLimitsResult struct {
	ValidationResult
	EarnedToday      int `json:"earned_today"`
	EarnedThisMonth  int `json:"earned_this_month"`
	RemainingDaily   int `json:"remaining_daily"`
	RemainingMonthly int `json:"remaining_monthly"`
	DailyCap         int `json:"daily_cap"`
	MonthlyCap       int `json:"monthly_cap"`
}

// InfluencerValidation is the result of an influencer-eligibility check
type InfluencerValidation struct {
	ValidationResult
	Followers         int     `json:"followers"`
	EngagementRate    float64 `json:"engagement_rate"`
	RequiredFollowers int     `json:"required_followers"`
	RequiredRate      float64 `json:"required_rate"`
	Eligible          bool    `json:"eligible"`
}
