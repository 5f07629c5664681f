package points

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/salonflow/salonflow-backend/pkg/config"
	"github.com/salonflow/salonflow-backend/pkg/logger"
	"go.uber.org/zap"
)

const (
	balanceWarningFraction = 0.8
	headroomWarnFraction   = 0.1
	nearMissFactor         = 1.2
)

// Validation failures caused by the data layer all surface as this message;
// the caller gets IsValid=false, never a partial result.
const serviceErrorMessage = "Point validation is temporarily unavailable, please try again"

// Service validates point earning and redemption against configured limits.
// Business-rule failures come back as errors in the result value; data-layer
// failures convert to an invalid result with a generic service error.
type Service struct {
	repo RepositoryInterface
	cfg  config.PointsConfig
	now  func() time.Time
}

// NewService creates a points validation service
func NewService(repo RepositoryInterface, cfg config.PointsConfig, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, cfg: cfg, now: now}
}

// ValidatePointEarning checks whether a transaction may earn points and
// computes the point breakdown. Amounts above the eligible cap still earn,
// on the capped base.
func (s *Service) ValidatePointEarning(ctx context.Context, userID uuid.UUID, transactionAmount float64, isInfluencer bool) *EarningValidation {
	result := &EarningValidation{ValidationResult: ValidationResult{IsValid: true}}

	if transactionAmount < s.cfg.MinTransactionAmount {
		result.addError(fmt.Sprintf("Transaction amount must be at least %.0f to earn points", s.cfg.MinTransactionAmount))
		return result
	}

	eligible := transactionAmount
	if eligible > s.cfg.MaxEligibleAmount {
		eligible = s.cfg.MaxEligibleAmount
		result.addWarning(fmt.Sprintf("Points are earned on a maximum of %.0f per transaction", s.cfg.MaxEligibleAmount))
	}
	result.EligibleAmount = eligible

	user, err := s.repo.GetUserPoints(ctx, userID)
	if err != nil {
		return s.earningServiceError(userID, err)
	}

	tier, tierMultiplier := TierForLifetimePoints(user.LifetimePoints)
	result.Tier = tier

	base := int(math.Floor(eligible * s.cfg.EarningRate))
	result.BasePoints = base
	if isInfluencer {
		result.InfluencerBonus = int(math.Floor(float64(base) * (s.cfg.InfluencerMultiplier - 1)))
	}
	result.TierBonus = int(math.Floor(float64(base) * (tierMultiplier - 1)))
	result.CalculatedPoints = base + result.InfluencerBonus + result.TierBonus

	earnedToday, err := s.repo.SumEarnedSince(ctx, userID, startOfDay(s.now()))
	if err != nil {
		return s.earningServiceError(userID, err)
	}

	remaining := s.cfg.DailyEarnCap - earnedToday
	if remaining < 0 {
		remaining = 0
	}
	result.RemainingDaily = remaining

	if result.CalculatedPoints > remaining {
		result.addError(fmt.Sprintf("Earning %d points would exceed the remaining daily allowance of %d", result.CalculatedPoints, remaining))
	}
	return result
}

func (s *Service) earningServiceError(userID uuid.UUID, err error) *EarningValidation {
	logger.Error("Point earning validation failed on data access",
		zap.Error(err), zap.String("user_id", userID.String()))
	result := &EarningValidation{}
	result.addError(serviceErrorMessage)
	return result
}

// ValidatePointRedemption checks a redemption request against balance and
// the per-payment redemption cap.
func (s *Service) ValidatePointRedemption(ctx context.Context, userID uuid.UUID, pointsToRedeem int, paymentAmount float64) *RedemptionValidation {
	result := &RedemptionValidation{ValidationResult: ValidationResult{IsValid: true}}

	if pointsToRedeem < s.cfg.MinRedemptionPoints {
		result.addError(fmt.Sprintf("Minimum redemption is %d points", s.cfg.MinRedemptionPoints))
	}

	user, err := s.repo.GetUserPoints(ctx, userID)
	if err != nil {
		logger.Error("Point redemption validation failed on data access",
			zap.Error(err), zap.String("user_id", userID.String()))
		failed := &RedemptionValidation{}
		failed.addError(serviceErrorMessage)
		return failed
	}

	result.AvailableBalance = user.AvailablePoints
	if pointsToRedeem > user.AvailablePoints {
		result.addError("Insufficient points for this redemption")
	}

	// One point redeems one currency unit
	maxRedeemable := int(math.Floor(paymentAmount * s.cfg.MaxRedemptionPercent))
	result.MaxRedeemable = maxRedeemable
	if pointsToRedeem > maxRedeemable {
		result.addError(fmt.Sprintf("At most %d points may be redeemed on this payment", maxRedeemable))
	}

	result.RedemptionValue = float64(pointsToRedeem)
	result.BalanceAfter = user.AvailablePoints - pointsToRedeem
	if user.AvailablePoints > 0 {
		result.PercentOfBalance = float64(pointsToRedeem) / float64(user.AvailablePoints)
		if result.PercentOfBalance > balanceWarningFraction {
			result.addWarning(fmt.Sprintf("This redemption uses %.0f%% of your available balance", result.PercentOfBalance*100))
		}
	}
	return result
}

// ValidateDailyLimits reports today's and this month's earned points against
// the configured caps.
func (s *Service) ValidateDailyLimits(ctx context.Context, userID uuid.UUID) *DailyLimitsResult {
	result := &DailyLimitsResult{
		ValidationResult: ValidationResult{IsValid: true},
		DailyCap:         s.cfg.DailyEarnCap,
		MonthlyCap:       s.cfg.MonthlyEarnCap,
	}

	now := s.now()
	earnedToday, err := s.repo.SumEarnedSince(ctx, userID, startOfDay(now))
	if err != nil {
		return s.limitsServiceError(userID, err)
	}
	earnedThisMonth, err := s.repo.SumEarnedSince(ctx, userID, startOfMonth(now))
	if err != nil {
		return s.limitsServiceError(userID, err)
	}

	result.EarnedToday = earnedToday
	result.EarnedThisMonth = earnedThisMonth
	result.RemainingDaily = max(s.cfg.DailyEarnCap-earnedToday, 0)
	result.RemainingMonthly = max(s.cfg.MonthlyEarnCap-earnedThisMonth, 0)

	checkHeadroom(&result.ValidationResult, "daily", result.RemainingDaily, s.cfg.DailyEarnCap)
	checkHeadroom(&result.ValidationResult, "monthly", result.RemainingMonthly, s.cfg.MonthlyEarnCap)
	return result
}

func (s *Service) limitsServiceError(userID uuid.UUID, err error) *DailyLimitsResult {
	logger.Error("Daily limit validation failed on data access",
		zap.Error(err), zap.String("user_id", userID.String()))
	result := &DailyLimitsResult{DailyCap: s.cfg.DailyEarnCap, MonthlyCap: s.cfg.MonthlyEarnCap}
	result.addError(serviceErrorMessage)
	return result
}

func checkHeadroom(result *ValidationResult, window string, remaining, cap int) {
	if remaining <= 0 {
		result.addError(fmt.Sprintf("The %s earning limit has been reached", window))
		return
	}
	if float64(remaining) < float64(cap)*headroomWarnFraction {
		result.addWarning(fmt.Sprintf("Only %d points remain in the %s earning limit", remaining, window))
	}
}

// ValidateInfluencerStatus is a pure threshold check; it touches no storage
func (s *Service) ValidateInfluencerStatus(userID uuid.UUID, followers int, engagementRate float64) *InfluencerValidation {
	result := &InfluencerValidation{
		ValidationResult:  ValidationResult{IsValid: true},
		Followers:         followers,
		EngagementRate:    engagementRate,
		RequiredFollowers: s.cfg.InfluencerMinFollowers,
		RequiredRate:      s.cfg.InfluencerMinEngagement,
	}

	followersOK := followers >= s.cfg.InfluencerMinFollowers
	rateOK := engagementRate >= s.cfg.InfluencerMinEngagement
	result.Eligible = followersOK && rateOK

	if !followersOK {
		result.addError(fmt.Sprintf("At least %d followers required, have %d", s.cfg.InfluencerMinFollowers, followers))
		if float64(followers)*nearMissFactor >= float64(s.cfg.InfluencerMinFollowers) {
			result.addWarning("Follower count is within 20% of the influencer threshold")
		}
	}
	if !rateOK {
		result.addError(fmt.Sprintf("Engagement rate of at least %.1f%% required, have %.1f%%", s.cfg.InfluencerMinEngagement, engagementRate))
		if engagementRate*nearMissFactor >= s.cfg.InfluencerMinEngagement {
			result.addWarning("Engagement rate is within 20% of the influencer threshold")
		}
	}
	return result
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
