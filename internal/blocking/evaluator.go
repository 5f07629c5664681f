package blocking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/salonflow/salonflow-backend/pkg/logger"
	"go.uber.org/zap"
)

// Confidence scoring constants for rule evaluation
const (
	confidenceBase              = 50.0
	confidencePerCondition      = 10.0
	confidenceConditionCap      = 30.0
	confidenceFraudScoreCap     = 20.0
	confidenceAutomaticBonus    = 10.0
	severityEscalateCritical    = 90.0
	severityEscalateHigh        = 70.0
	severityEscalateMedium      = 40.0
)

// Evaluator evaluates blocking rules against payment attempts. Evaluation is
// pure: the same rule and context always produce the same result.
type Evaluator struct{}

// NewEvaluator creates a rule evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate runs one rule against one payment attempt
func (e *Evaluator) Evaluate(rule *BlockingRule, attempt *PaymentAttemptContext) RuleEvalResult {
	result := RuleEvalResult{
		Severity: SeverityLow,
		Actions:  rule.Actions,
	}

	triggered, matched := e.evaluateConditions(rule, attempt)
	if !triggered {
		return result
	}

	result.Triggered = true
	result.TriggeredConditions = matched
	result.Reason = fmt.Sprintf("Rule %q matched: %s", rule.Name, strings.Join(matched, "; "))

	// A triggered rule only blocks if it carries a blocking action
	for _, action := range rule.Actions {
		if action.Type == ActionBlockPayment {
			result.ShouldBlock = true
			break
		}
	}

	result.Severity = e.deriveSeverity(rule, attempt)
	result.Confidence = e.deriveConfidence(rule, attempt, len(matched))

	return result
}

// evaluateConditions walks the condition chain left to right. The logical
// operator on condition i merges its outcome with the running result before
// condition i+1 is evaluated. AND-false and OR-true short-circuit.
func (e *Evaluator) evaluateConditions(rule *BlockingRule, attempt *PaymentAttemptContext) (bool, []string) {
	if len(rule.Conditions) == 0 {
		return false, nil
	}

	matched := make([]string, 0, len(rule.Conditions))

	evalOne := func(cond RuleCondition) bool {
		outcome := e.evaluateCondition(cond, attempt)
		if outcome {
			matched = append(matched, fmt.Sprintf("%s %s %v", cond.Field, cond.Operator, cond.Value))
		}
		return outcome
	}

	running := evalOne(rule.Conditions[0])

	for i := 1; i < len(rule.Conditions); i++ {
		op := rule.Conditions[i].LogicalOp
		if op == "" {
			op = LogicalAnd
		}

		// AND-false short-circuits remaining conditions as not-all-met;
		// OR-true short-circuits as met.
		if op == LogicalAnd && !running {
			return false, nil
		}
		if op == LogicalOr && running {
			break
		}

		outcome := evalOne(rule.Conditions[i])
		if op == LogicalOr {
			running = running || outcome
		} else {
			running = running && outcome
		}
	}

	if !running {
		return false, nil
	}
	return true, matched
}

// evaluateCondition evaluates one condition. Missing field values and malformed
// configuration (unknown operator, invalid regex) evaluate to false, never panic,
// so one bad admin-entered rule cannot take down the rest of evaluation.
func (e *Evaluator) evaluateCondition(cond RuleCondition, attempt *PaymentAttemptContext) bool {
	value, ok := attempt.FieldValue(cond.Field)
	if !ok {
		return false
	}

	switch cond.Operator {
	case OpEquals:
		return strings.EqualFold(toString(value), toString(cond.Value))
	case OpNotEquals:
		return !strings.EqualFold(toString(value), toString(cond.Value))
	case OpGreaterThan:
		a, aok := toFloat(value)
		b, bok := toFloat(cond.Value)
		return aok && bok && a > b
	case OpLessThan:
		a, aok := toFloat(value)
		b, bok := toFloat(cond.Value)
		return aok && bok && a < b
	case OpContains:
		return strings.Contains(strings.ToLower(toString(value)), strings.ToLower(toString(cond.Value)))
	case OpNotContains:
		return !strings.Contains(strings.ToLower(toString(value)), strings.ToLower(toString(cond.Value)))
	case OpIn:
		return inList(value, cond.Value)
	case OpNotIn:
		return !inList(value, cond.Value)
	case OpRegex:
		re, err := regexp.Compile(toString(cond.Value))
		if err != nil {
			logger.Warn("Invalid regex in blocking rule condition",
				zap.String("field", string(cond.Field)),
				zap.String("pattern", toString(cond.Value)),
			)
			return false
		}
		return re.MatchString(toString(value))
	default:
		return false
	}
}

// deriveSeverity starts from the rule's own strongest action severity and lets
// the attempt's fraud score / risk level escalate it. Request-level risk can
// only raise the configured severity, never lower it.
func (e *Evaluator) deriveSeverity(rule *BlockingRule, attempt *PaymentAttemptContext) Severity {
	severity := SeverityLow
	for _, action := range rule.Actions {
		severity = MaxSeverity(severity, action.Severity)
	}

	switch {
	case attempt.FraudScore >= severityEscalateCritical || attempt.RiskLevel == SeverityCritical:
		severity = MaxSeverity(severity, SeverityCritical)
	case attempt.FraudScore >= severityEscalateHigh || attempt.RiskLevel == SeverityHigh:
		severity = MaxSeverity(severity, SeverityHigh)
	case attempt.FraudScore >= severityEscalateMedium || attempt.RiskLevel == SeverityMedium:
		severity = MaxSeverity(severity, SeverityMedium)
	}

	return severity
}

// deriveConfidence computes evaluation confidence: base 50, +10 per triggered
// condition capped at 30, up to +20 scaled from the fraud score, +10 when the
// rule is automatic. Capped at 100.
func (e *Evaluator) deriveConfidence(rule *BlockingRule, attempt *PaymentAttemptContext, triggeredConditions int) float64 {
	confidence := confidenceBase

	conditionBoost := confidencePerCondition * float64(triggeredConditions)
	if conditionBoost > confidenceConditionCap {
		conditionBoost = confidenceConditionCap
	}
	confidence += conditionBoost

	score := attempt.FraudScore
	if score > 100 {
		score = 100
	}
	if score > 0 {
		confidence += score / 100 * confidenceFraudScoreCap
	}

	if rule.Type == RuleTypeAutomatic {
		confidence += confidenceAutomaticBonus
	}

	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

// toString coerces a condition or context value to string
func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// toFloat coerces a condition or context value to float64
func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// inList reports whether value appears in a list-typed condition value. The
// list may arrive as []interface{}, []string or a comma-separated string.
func inList(value interface{}, list interface{}) bool {
	needle := strings.ToLower(toString(value))

	switch t := list.(type) {
	case []interface{}:
		for _, item := range t {
			if strings.ToLower(toString(item)) == needle {
				return true
			}
		}
	case []string:
		for _, item := range t {
			if strings.ToLower(item) == needle {
				return true
			}
		}
	case string:
		for _, item := range strings.Split(t, ",") {
			if strings.ToLower(strings.TrimSpace(item)) == needle {
				return true
			}
		}
	}
	return false
}
