package blocking

import (
	"time"

	"github.com/google/uuid"
)

// uuidZero is the zero UUID, used to detect unset identifiers
var uuidZero uuid.UUID

// Severity is the ordinal risk label attached to rules, blacklist entries and decisions
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordinal position of a severity, for comparisons
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// MaxSeverity returns the higher of two severities
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// RuleType classifies how a blocking rule is managed
type RuleType string

const (
	RuleTypeAutomatic RuleType = "automatic"
	RuleTypeManual    RuleType = "manual"
	RuleTypeScheduled RuleType = "scheduled"
)

// Operator is a condition comparison operator
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpRegex       Operator = "regex"
)

// LogicalOp joins a condition's outcome with the running result of the chain
type LogicalOp string

const (
	LogicalAnd LogicalOp = "and"
	LogicalOr  LogicalOp = "or"
)

// ActionType classifies what a triggered rule does
type ActionType string

const (
	ActionBlockPayment        ActionType = "block_payment"
	ActionRequireVerification ActionType = "require_verification"
	ActionFlagForReview       ActionType = "flag_for_review"
	ActionAddToList           ActionType = "add_to_list"
	ActionNotifyAdmin         ActionType = "notify_admin"
)

// RuleCondition is one field/operator/value triple in a rule's condition chain.
// LogicalOp governs how this condition's outcome merges with the running result
// accumulated from earlier conditions.
type RuleCondition struct {
	Field     ContextField `json:"field"`
	Operator  Operator     `json:"operator"`
	Value     interface{}  `json:"value"`
	LogicalOp LogicalOp    `json:"logical_op,omitempty"`
}

// RuleAction is one action attached to a rule
type RuleAction struct {
	Type       ActionType             `json:"type"`
	Severity   Severity               `json:"severity"`
	Message    string                 `json:"message,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// BlockingRule is an admin-managed rule evaluated against payment attempts
type BlockingRule struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Type       RuleType        `json:"type"`
	Conditions []RuleCondition `json:"conditions"`
	Actions    []RuleAction    `json:"actions"`
	Priority   int             `json:"priority"`
	IsActive   bool            `json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ListEntryType identifies what a whitelist/blacklist entry matches against
type ListEntryType string

const (
	EntryTypeUser              ListEntryType = "user"
	EntryTypeIPAddress         ListEntryType = "ip_address"
	EntryTypeEmail             ListEntryType = "email"
	EntryTypePhone             ListEntryType = "phone"
	EntryTypeCardNumber        ListEntryType = "card_number"
	EntryTypeDeviceFingerprint ListEntryType = "device_fingerprint"
	// Blacklist only
	EntryTypeCountry ListEntryType = "country"
	EntryTypeISP     ListEntryType = "isp"
)

// WhitelistEntry exempts an identity value from all blocking evaluation
type WhitelistEntry struct {
	ID        uuid.UUID     `json:"id"`
	Type      ListEntryType `json:"type"`
	Value     string        `json:"value"`
	Reason    string        `json:"reason"`
	AddedBy   uuid.UUID     `json:"added_by"`
	IsActive  bool          `json:"is_active"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// BlacklistEntry forces a block for an identity value
type BlacklistEntry struct {
	ID        uuid.UUID     `json:"id"`
	Type      ListEntryType `json:"type"`
	Value     string        `json:"value"`
	Reason    string        `json:"reason"`
	Severity  Severity      `json:"severity"`
	AddedBy   uuid.UUID     `json:"added_by"`
	IsActive  bool          `json:"is_active"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// PaymentAttemptContext is the ephemeral per-request input to the decision engine.
// Identity fields beyond the required set are optional and used only for
// whitelist/blacklist matching.
type PaymentAttemptContext struct {
	UserID            uuid.UUID `json:"user_id"`
	PaymentID         uuid.UUID `json:"payment_id"`
	Amount            float64   `json:"amount"`
	PaymentMethod     string    `json:"payment_method"`
	IPAddress         string    `json:"ip_address"`
	UserAgent         string    `json:"user_agent"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	CardNumber        string    `json:"card_number,omitempty"`
	Country           string    `json:"country,omitempty"`
	ISP               string    `json:"isp,omitempty"`
	FraudScore        float64   `json:"fraud_score"`
	RiskLevel         Severity  `json:"risk_level"`
	RuleMatches       []string  `json:"rule_matches,omitempty"`
}

// RuleEvalResult is the outcome of evaluating one rule against one attempt
type RuleEvalResult struct {
	Triggered           bool         `json:"triggered"`
	ShouldBlock         bool         `json:"should_block"`
	Reason              string       `json:"reason"`
	Severity            Severity     `json:"severity"`
	Confidence          float64      `json:"confidence"`
	Actions             []RuleAction `json:"actions"`
	TriggeredConditions []string     `json:"triggered_conditions"`
}

// BlockingDecision is the terminal output of the decision engine
type BlockingDecision struct {
	ShouldBlock      bool                   `json:"should_block"`
	BlockingReason   string                 `json:"blocking_reason"`
	BlockingRule     string                 `json:"blocking_rule"`
	Severity         Severity               `json:"severity"`
	Confidence       float64                `json:"confidence"`
	Actions          []RuleAction           `json:"actions"`
	OverrideRequired bool                   `json:"override_required"`
	ReviewRequired   bool                   `json:"review_required"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// BlockingEvent is the audit record persisted for every blocking decision.
// Immutable once written except for override and resolution fields.
type BlockingEvent struct {
	ID             uuid.UUID    `json:"id"`
	UserID         uuid.UUID    `json:"user_id"`
	PaymentID      uuid.UUID    `json:"payment_id"`
	RuleName       string       `json:"rule_name"`
	Reason         string       `json:"reason"`
	Severity       Severity     `json:"severity"`
	Actions        []RuleAction `json:"actions"`
	OverriddenBy   *uuid.UUID   `json:"overridden_by,omitempty"`
	OverriddenAt   *time.Time   `json:"overridden_at,omitempty"`
	OverrideReason string       `json:"override_reason,omitempty"`
	Resolved       bool         `json:"resolved"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
	ResolutionNote string       `json:"resolution_note,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// BlockingAnalytics aggregates blocking events over a timeframe
type BlockingAnalytics struct {
	Timeframe            string             `json:"timeframe"`
	TotalBlocks          int64              `json:"total_blocks"`
	BySeverity           map[Severity]int64 `json:"by_severity"`
	ByRule               map[string]int64   `json:"by_rule"`
	OverrideRate         float64            `json:"override_rate"`
	AvgResolutionMinutes float64            `json:"avg_resolution_minutes"`
}

// FailPolicy names the error-handling contract of a component: on internal
// failure, default to permissive (open) or restrictive (closed) behavior.
type FailPolicy string

const (
	FailOpen   FailPolicy = "fail_open"
	FailClosed FailPolicy = "fail_closed"
)
