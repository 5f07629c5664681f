package blocking

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRule_UnknownField(t *testing.T) {
	rule := &BlockingRule{
		Name: "typo-rule",
		Conditions: []RuleCondition{
			{Field: FieldAmount, Operator: OpGreaterThan, Value: 100},
			{Field: ContextField("amout"), Operator: OpGreaterThan, Value: 100},
		},
	}

	err := ValidateRule(rule)
	require.Error(t, err)

	var unknownErr *UnknownFieldError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, ContextField("amout"), unknownErr.Field)
	assert.Equal(t, "typo-rule", unknownErr.Rule)
}

func TestValidateRule_AllKnownFields(t *testing.T) {
	rule := &BlockingRule{
		Name: "full-coverage",
		Conditions: []RuleCondition{
			{Field: FieldUserID, Operator: OpEquals, Value: "x"},
			{Field: FieldAmount, Operator: OpGreaterThan, Value: 1},
			{Field: FieldFraudScore, Operator: OpGreaterThan, Value: 1},
			{Field: FieldRiskLevel, Operator: OpEquals, Value: "high"},
			{Field: FieldISP, Operator: OpContains, Value: "tor"},
		},
	}
	assert.NoError(t, ValidateRule(rule))
}

func TestFieldValue_OptionalFieldsUnset(t *testing.T) {
	attempt := &PaymentAttemptContext{
		UserID:        uuid.New(),
		Amount:        100,
		PaymentMethod: "card",
	}

	_, ok := attempt.FieldValue(FieldEmail)
	assert.False(t, ok)
	_, ok = attempt.FieldValue(FieldCardNumber)
	assert.False(t, ok)
	_, ok = attempt.FieldValue(FieldRiskLevel)
	assert.False(t, ok)

	value, ok := attempt.FieldValue(FieldAmount)
	require.True(t, ok)
	assert.Equal(t, 100.0, value)
}

func TestListValue_ZeroUserID(t *testing.T) {
	attempt := &PaymentAttemptContext{IPAddress: "198.51.100.4"}

	_, ok := attempt.listValue(EntryTypeUser)
	assert.False(t, ok)

	value, ok := attempt.listValue(EntryTypeIPAddress)
	require.True(t, ok)
	assert.Equal(t, "198.51.100.4", value)
}
