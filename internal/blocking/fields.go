package blocking

import "fmt"

// ContextField is the closed set of payment-attempt fields a rule condition may
// reference. Rule configurations store snake_case names; keeping the set closed
// turns a typo in an admin-entered rule into a load-time error instead of a
// silently never-matching condition.
type ContextField string

const (
	FieldUserID            ContextField = "user_id"
	FieldAmount            ContextField = "amount"
	FieldPaymentMethod     ContextField = "payment_method"
	FieldIPAddress         ContextField = "ip_address"
	FieldUserAgent         ContextField = "user_agent"
	FieldDeviceFingerprint ContextField = "device_fingerprint"
	FieldEmail             ContextField = "email"
	FieldPhone             ContextField = "phone"
	FieldCardNumber        ContextField = "card_number"
	FieldCountry           ContextField = "country"
	FieldISP               ContextField = "isp"
	FieldFraudScore        ContextField = "fraud_score"
	FieldRiskLevel         ContextField = "risk_level"
)

var knownFields = map[ContextField]bool{
	FieldUserID:            true,
	FieldAmount:            true,
	FieldPaymentMethod:     true,
	FieldIPAddress:         true,
	FieldUserAgent:         true,
	FieldDeviceFingerprint: true,
	FieldEmail:             true,
	FieldPhone:             true,
	FieldCardNumber:        true,
	FieldCountry:           true,
	FieldISP:               true,
	FieldFraudScore:        true,
	FieldRiskLevel:         true,
}

// Known reports whether the field is part of the closed context field set
func (f ContextField) Known() bool {
	return knownFields[f]
}

// UnknownFieldError reports a rule condition referencing a field outside the
// closed context field set. Surfaced at rule load time, not evaluation time.
type UnknownFieldError struct {
	Rule  string
	Field ContextField
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("rule %q references unknown context field %q", e.Rule, e.Field)
}

// ValidateRule checks that every condition of a rule references a known field
func ValidateRule(rule *BlockingRule) error {
	for _, cond := range rule.Conditions {
		if !cond.Field.Known() {
			return &UnknownFieldError{Rule: rule.Name, Field: cond.Field}
		}
	}
	return nil
}

// FieldValue returns the typed value of a context field. The second return is
// false when the field is optional and unset on this attempt; a condition on an
// unset field never matches.
func (p *PaymentAttemptContext) FieldValue(f ContextField) (interface{}, bool) {
	switch f {
	case FieldUserID:
		return p.UserID.String(), true
	case FieldAmount:
		return p.Amount, true
	case FieldPaymentMethod:
		return p.PaymentMethod, p.PaymentMethod != ""
	case FieldIPAddress:
		return p.IPAddress, p.IPAddress != ""
	case FieldUserAgent:
		return p.UserAgent, p.UserAgent != ""
	case FieldDeviceFingerprint:
		return p.DeviceFingerprint, p.DeviceFingerprint != ""
	case FieldEmail:
		return p.Email, p.Email != ""
	case FieldPhone:
		return p.Phone, p.Phone != ""
	case FieldCardNumber:
		return p.CardNumber, p.CardNumber != ""
	case FieldCountry:
		return p.Country, p.Country != ""
	case FieldISP:
		return p.ISP, p.ISP != ""
	case FieldFraudScore:
		return p.FraudScore, true
	case FieldRiskLevel:
		return string(p.RiskLevel), p.RiskLevel != ""
	default:
		return nil, false
	}
}

var knownEntryTypes = map[ListEntryType]bool{
	EntryTypeUser:              true,
	EntryTypeIPAddress:         true,
	EntryTypeEmail:             true,
	EntryTypePhone:             true,
	EntryTypeCardNumber:        true,
	EntryTypeDeviceFingerprint: true,
	EntryTypeCountry:           true,
	EntryTypeISP:               true,
}

// Known reports whether the entry type is part of the closed list entry set
func (t ListEntryType) Known() bool {
	return knownEntryTypes[t]
}

// UnknownEntryTypeError reports a list entry with a type outside the closed
// entry type set. Surfaced when the entry is added, not at lookup time, so a
// typo cannot produce an entry that silently never matches any attempt.
type UnknownEntryTypeError struct {
	Type ListEntryType
}

func (e *UnknownEntryTypeError) Error() string {
	return fmt.Sprintf("unknown list entry type %q", e.Type)
}

// listValue returns the attempt's value for a whitelist/blacklist entry type.
// The second return is false when the attempt doesn't carry that identity field.
func (p *PaymentAttemptContext) listValue(t ListEntryType) (string, bool) {
	switch t {
	case EntryTypeUser:
		if p.UserID == (uuidZero) {
			return "", false
		}
		return p.UserID.String(), true
	case EntryTypeIPAddress:
		return p.IPAddress, p.IPAddress != ""
	case EntryTypeEmail:
		return p.Email, p.Email != ""
	case EntryTypePhone:
		return p.Phone, p.Phone != ""
	case EntryTypeCardNumber:
		return p.CardNumber, p.CardNumber != ""
	case EntryTypeDeviceFingerprint:
		return p.DeviceFingerprint, p.DeviceFingerprint != ""
	case EntryTypeCountry:
		return p.Country, p.Country != ""
	case EntryTypeISP:
		return p.ISP, p.ISP != ""
	default:
		return "", false
	}
}
