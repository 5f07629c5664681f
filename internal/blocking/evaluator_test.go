package blocking

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAttempt() *PaymentAttemptContext {
	return &PaymentAttemptContext{
		UserID:        uuid.New(),
		PaymentID:     uuid.New(),
		Amount:        15000,
		PaymentMethod: "card",
		IPAddress:     "203.0.113.7",
		UserAgent:     "Mozilla/5.0",
		Email:         "user@example.com",
		Country:       "JP",
		FraudScore:    10,
		RiskLevel:     SeverityLow,
	}
}

func blockRule(name string, conditions ...RuleCondition) *BlockingRule {
	return &BlockingRule{
		ID:         uuid.New(),
		Name:       name,
		Type:       RuleTypeAutomatic,
		Conditions: conditions,
		Actions:    []RuleAction{{Type: ActionBlockPayment, Severity: SeverityMedium}},
		Priority:   10,
		IsActive:   true,
	}
}

func TestEvaluate_Operators(t *testing.T) {
	evaluator := NewEvaluator()

	testCases := []struct {
		name      string
		condition RuleCondition
		triggered bool
	}{
		{
			name:      "equals is case-insensitive",
			condition: RuleCondition{Field: FieldPaymentMethod, Operator: OpEquals, Value: "CARD"},
			triggered: true,
		},
		{
			name:      "not_equals",
			condition: RuleCondition{Field: FieldCountry, Operator: OpNotEquals, Value: "US"},
			triggered: true,
		},
		{
			name:      "greater_than with numeric coercion",
			condition: RuleCondition{Field: FieldAmount, Operator: OpGreaterThan, Value: "10000"},
			triggered: true,
		},
		{
			name:      "less_than false when equal",
			condition: RuleCondition{Field: FieldAmount, Operator: OpLessThan, Value: 15000.0},
			triggered: false,
		},
		{
			name:      "contains is case-insensitive substring",
			condition: RuleCondition{Field: FieldUserAgent, Operator: OpContains, Value: "mozilla"},
			triggered: true,
		},
		{
			name:      "not_contains",
			condition: RuleCondition{Field: FieldUserAgent, Operator: OpNotContains, Value: "curl"},
			triggered: true,
		},
		{
			name:      "in against interface slice",
			condition: RuleCondition{Field: FieldCountry, Operator: OpIn, Value: []interface{}{"KR", "JP"}},
			triggered: true,
		},
		{
			name:      "in against comma-separated string",
			condition: RuleCondition{Field: FieldCountry, Operator: OpIn, Value: "KR, JP"},
			triggered: true,
		},
		{
			name:      "not_in",
			condition: RuleCondition{Field: FieldCountry, Operator: OpNotIn, Value: []string{"US", "GB"}},
			triggered: true,
		},
		{
			name:      "regex match",
			condition: RuleCondition{Field: FieldEmail, Operator: OpRegex, Value: `@example\.com$`},
			triggered: true,
		},
		{
			name:      "invalid regex evaluates to false",
			condition: RuleCondition{Field: FieldEmail, Operator: OpRegex, Value: "[unclosed"},
			triggered: false,
		},
		{
			name:      "missing optional field evaluates to false",
			condition: RuleCondition{Field: FieldCardNumber, Operator: OpEquals, Value: "anything"},
			triggered: false,
		},
		{
			name:      "missing field false even for not_equals",
			condition: RuleCondition{Field: FieldPhone, Operator: OpNotEquals, Value: "anything"},
			triggered: false,
		},
		{
			name:      "unknown operator evaluates to false",
			condition: RuleCondition{Field: FieldAmount, Operator: Operator("between"), Value: 1},
			triggered: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := evaluator.Evaluate(blockRule("op-test", tc.condition), testAttempt())
			assert.Equal(t, tc.triggered, result.Triggered)
		})
	}
}

func TestEvaluate_AndFalseShortCircuits(t *testing.T) {
	evaluator := NewEvaluator()

	// First condition fails; the invalid regex after it must never matter
	rule := blockRule("sc-and",
		RuleCondition{Field: FieldCountry, Operator: OpEquals, Value: "US"},
		RuleCondition{Field: FieldEmail, Operator: OpRegex, Value: "[broken", LogicalOp: LogicalAnd},
	)

	result := evaluator.Evaluate(rule, testAttempt())
	assert.False(t, result.Triggered)
	assert.False(t, result.ShouldBlock)
}

func TestEvaluate_OrTrueShortCircuits(t *testing.T) {
	evaluator := NewEvaluator()

	rule := blockRule("sc-or",
		RuleCondition{Field: FieldCountry, Operator: OpEquals, Value: "JP"},
		RuleCondition{Field: FieldAmount, Operator: OpGreaterThan, Value: 999999.0, LogicalOp: LogicalOr},
	)

	result := evaluator.Evaluate(rule, testAttempt())
	assert.True(t, result.Triggered)
	// Only the first condition was evaluated before the OR short-circuit
	require.Len(t, result.TriggeredConditions, 1)
}

func TestEvaluate_MixedChainLeftToRight(t *testing.T) {
	evaluator := NewEvaluator()

	// (country=JP AND amount>10000) then OR-merged with a failing condition:
	// running result is already true, so the chain short-circuits as met.
	rule := blockRule("chain",
		RuleCondition{Field: FieldCountry, Operator: OpEquals, Value: "JP"},
		RuleCondition{Field: FieldAmount, Operator: OpGreaterThan, Value: 10000.0, LogicalOp: LogicalAnd},
		RuleCondition{Field: FieldPaymentMethod, Operator: OpEquals, Value: "bank", LogicalOp: LogicalOr},
	)

	result := evaluator.Evaluate(rule, testAttempt())
	assert.True(t, result.Triggered)
	assert.Len(t, result.TriggeredConditions, 2)
}

func TestEvaluate_TriggeredWithoutBlockingAction(t *testing.T) {
	evaluator := NewEvaluator()

	rule := blockRule("flag-only", RuleCondition{Field: FieldCountry, Operator: OpEquals, Value: "JP"})
	rule.Actions = []RuleAction{{Type: ActionFlagForReview, Severity: SeverityLow}}

	result := evaluator.Evaluate(rule, testAttempt())
	assert.True(t, result.Triggered)
	assert.False(t, result.ShouldBlock)
}

func TestEvaluate_SeverityEscalatesNeverDeescalates(t *testing.T) {
	evaluator := NewEvaluator()
	rule := blockRule("sev", RuleCondition{Field: FieldCountry, Operator: OpEquals, Value: "JP"})
	rule.Actions = []RuleAction{{Type: ActionBlockPayment, Severity: SeverityHigh}}

	testCases := []struct {
		name       string
		fraudScore float64
		riskLevel  Severity
		expected   Severity
	}{
		{"low request risk keeps configured severity", 10, SeverityLow, SeverityHigh},
		{"medium thresholds cannot lower high", 45, SeverityMedium, SeverityHigh},
		{"score 90 escalates to critical", 90, SeverityLow, SeverityCritical},
		{"critical risk level escalates", 0, SeverityCritical, SeverityCritical},
		{"score 70 matches configured high", 70, SeverityLow, SeverityHigh},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			attempt := testAttempt()
			attempt.FraudScore = tc.fraudScore
			attempt.RiskLevel = tc.riskLevel

			result := evaluator.Evaluate(rule, attempt)
			require.True(t, result.Triggered)
			assert.Equal(t, tc.expected, result.Severity)
		})
	}
}

func TestEvaluate_ConfidenceFormula(t *testing.T) {
	evaluator := NewEvaluator()

	attempt := testAttempt()
	attempt.FraudScore = 50

	rule := blockRule("conf", RuleCondition{Field: FieldCountry, Operator: OpEquals, Value: "JP"})
	result := evaluator.Evaluate(rule, attempt)
	require.True(t, result.Triggered)
	// 50 base + 10 (one condition) + 10 (fraud 50/100*20) + 10 (automatic)
	assert.InDelta(t, 80.0, result.Confidence, 0.001)

	// Five conditions all matching: the per-condition boost caps at 30
	manual := blockRule("conf-cap",
		RuleCondition{Field: FieldCountry, Operator: OpEquals, Value: "JP"},
		RuleCondition{Field: FieldAmount, Operator: OpGreaterThan, Value: 1.0, LogicalOp: LogicalAnd},
		RuleCondition{Field: FieldPaymentMethod, Operator: OpEquals, Value: "card", LogicalOp: LogicalAnd},
		RuleCondition{Field: FieldEmail, Operator: OpContains, Value: "example", LogicalOp: LogicalAnd},
		RuleCondition{Field: FieldUserAgent, Operator: OpContains, Value: "mozilla", LogicalOp: LogicalAnd},
	)
	manual.Type = RuleTypeManual
	attempt.FraudScore = 0

	result = evaluator.Evaluate(manual, attempt)
	require.True(t, result.Triggered)
	assert.InDelta(t, 80.0, result.Confidence, 0.001) // 50 + 30 cap

	// Everything maxed still caps at 100
	auto := blockRule("conf-max",
		RuleCondition{Field: FieldCountry, Operator: OpEquals, Value: "JP"},
		RuleCondition{Field: FieldAmount, Operator: OpGreaterThan, Value: 1.0, LogicalOp: LogicalAnd},
		RuleCondition{Field: FieldPaymentMethod, Operator: OpEquals, Value: "card", LogicalOp: LogicalAnd},
		RuleCondition{Field: FieldEmail, Operator: OpContains, Value: "example", LogicalOp: LogicalAnd},
	)
	attempt.FraudScore = 100

	result = evaluator.Evaluate(auto, attempt)
	require.True(t, result.Triggered)
	assert.InDelta(t, 100.0, result.Confidence, 0.001)
}

func TestEvaluate_Deterministic(t *testing.T) {
	evaluator := NewEvaluator()
	rule := blockRule("repeat",
		RuleCondition{Field: FieldAmount, Operator: OpGreaterThan, Value: 10000.0},
		RuleCondition{Field: FieldCountry, Operator: OpEquals, Value: "JP", LogicalOp: LogicalAnd},
	)
	attempt := testAttempt()

	first := evaluator.Evaluate(rule, attempt)
	second := evaluator.Evaluate(rule, attempt)
	assert.Equal(t, first, second)
}

func TestEvaluate_EmptyConditions(t *testing.T) {
	evaluator := NewEvaluator()
	rule := blockRule("empty")

	result := evaluator.Evaluate(rule, testAttempt())
	assert.False(t, result.Triggered)
}
