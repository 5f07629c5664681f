package blocking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/salonflow/salonflow-backend/pkg/logger"
	"go.uber.org/zap"
)

// Engine makes allow/block/review decisions for payment attempts. It fails
// closed: any internal error produces a blocking decision, never a silent allow.
type Engine struct {
	repo       RepositoryInterface
	evaluator  *Evaluator
	cache      *listCache
	now        func() time.Time
	failPolicy FailPolicy
}

// EngineOption customizes engine construction
type EngineOption func(*Engine)

// WithClock injects a clock, used by tests for TTL and expiry behavior
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
		e.cache.now = now
	}
}

// WithFailPolicy overrides the engine's error-handling policy. The default is
// FailClosed; a broken engine must never silently allow a payment.
func WithFailPolicy(policy FailPolicy) EngineOption {
	return func(e *Engine) {
		e.failPolicy = policy
	}
}

// NewEngine creates a blocking decision engine with a process-local rule and
// list cache refreshed at the given TTL.
func NewEngine(repo RepositoryInterface, cacheTTL time.Duration, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:       repo,
		evaluator:  NewEvaluator(),
		cache:      newListCache(repo, cacheTTL, nil),
		now:        time.Now,
		failPolicy: FailClosed,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MakeDecision evaluates a payment attempt and always returns a decision.
// Whitelist short-circuits everything; blacklist short-circuits rules; the
// highest-priority triggered blocking rule wins; any error fails closed.
func (e *Engine) MakeDecision(ctx context.Context, attempt *PaymentAttemptContext) *BlockingDecision {
	decision, err := e.decide(ctx, attempt)
	if err != nil {
		logger.Error("Blocking decision failed",
			zap.Error(err),
			zap.String("fail_policy", string(e.failPolicy)),
			zap.String("user_id", attempt.UserID.String()),
			zap.String("payment_id", attempt.PaymentID.String()),
		)
		if e.failPolicy == FailOpen {
			recordDecision("fail_open", SeverityLow)
			return &BlockingDecision{
				ShouldBlock:    false,
				BlockingReason: "Risk evaluation unavailable, configured to fail open",
				Severity:       SeverityLow,
				ReviewRequired: true,
			}
		}
		recordDecision("fail_safe", SeverityCritical)
		return failSafeDecision(err)
	}
	return decision
}

func (e *Engine) decide(ctx context.Context, attempt *PaymentAttemptContext) (*BlockingDecision, error) {
	// Stale caches are refreshed behind one TTL gate; a refresh failure with a
	// previously-populated cache degrades to stale data rather than an error.
	if err := e.cache.refreshIfStale(ctx); err != nil && !e.cache.populated() {
		return nil, fmt.Errorf("cache refresh: %w", err)
	}

	// 1. Whitelist precedence is absolute
	if entry := e.cache.whitelistMatch(attempt); entry != nil {
		recordDecision("allow", SeverityLow)
		return &BlockingDecision{
			ShouldBlock:    false,
			BlockingReason: "Whitelisted",
			Confidence:     100,
			Severity:       SeverityLow,
			Metadata: map[string]interface{}{
				"whitelist_type":  string(entry.Type),
				"whitelist_value": entry.Value,
			},
		}, nil
	}

	// 2. Blacklist forces a block before any rule runs
	if entry := e.cache.blacklistMatch(attempt); entry != nil {
		decision := &BlockingDecision{
			ShouldBlock:      true,
			BlockingReason:   fmt.Sprintf("Blacklisted %s: %s", entry.Type, entry.Reason),
			BlockingRule:     "blacklist_check",
			Severity:         entry.Severity,
			Confidence:       100,
			OverrideRequired: true,
			ReviewRequired:   true,
			Metadata: map[string]interface{}{
				"blacklist_type":  string(entry.Type),
				"blacklist_value": entry.Value,
			},
		}
		e.persistEvent(ctx, attempt, decision)
		recordDecision("block", entry.Severity)
		return decision, nil
	}

	// 3. Evaluate all active rules
	snap := e.cache.current()
	triggered := make([]ruleOutcome, 0)
	for _, rule := range snap.rules {
		result := e.evaluator.Evaluate(rule, attempt)
		if result.Triggered {
			triggered = append(triggered, ruleOutcome{rule: rule, result: result})
		}
	}

	if len(triggered) == 0 {
		recordDecision("allow", SeverityLow)
		return &BlockingDecision{
			ShouldBlock:    false,
			BlockingReason: "No blocking rules triggered",
			Severity:       SeverityLow,
			Confidence:     100,
		}, nil
	}

	// 4. Highest-priority blocking rule wins; ties fall to evaluation order
	var selected *ruleOutcome
	allActions := make([]RuleAction, 0)
	for i := range triggered {
		allActions = append(allActions, triggered[i].result.Actions...)
		if !triggered[i].result.ShouldBlock {
			continue
		}
		if selected == nil || triggered[i].rule.Priority > selected.rule.Priority {
			selected = &triggered[i]
		}
	}

	// 5. Rules triggered but none blocks: allow, still surfacing every action
	if selected == nil {
		recordDecision("review", SeverityLow)
		return &BlockingDecision{
			ShouldBlock:    false,
			BlockingReason: "Rules triggered without blocking actions",
			Severity:       SeverityLow,
			Confidence:     highestConfidence(triggered),
			Actions:        allActions,
		}, nil
	}

	decision := &BlockingDecision{
		ShouldBlock:      true,
		BlockingReason:   selected.result.Reason,
		BlockingRule:     selected.rule.Name,
		Severity:         selected.result.Severity,
		Confidence:       selected.result.Confidence,
		Actions:          selected.result.Actions,
		OverrideRequired: selected.rule.Type == RuleTypeAutomatic,
		ReviewRequired:   selected.result.Severity == SeverityCritical || selected.rule.Type == RuleTypeManual,
		Metadata: map[string]interface{}{
			"rule_id":              selected.rule.ID.String(),
			"triggered_conditions": selected.result.TriggeredConditions,
			"triggered_rules":      len(triggered),
		},
	}
	e.persistEvent(ctx, attempt, decision)
	recordDecision("block", decision.Severity)
	return decision, nil
}

type ruleOutcome struct {
	rule   *BlockingRule
	result RuleEvalResult
}

func highestConfidence(outcomes []ruleOutcome) float64 {
	best := 0.0
	for _, o := range outcomes {
		if o.result.Confidence > best {
			best = o.result.Confidence
		}
	}
	return best
}

// persistEvent writes the audit record for a blocking decision. The write is
// best-effort: the decision stands even if the audit insert fails.
func (e *Engine) persistEvent(ctx context.Context, attempt *PaymentAttemptContext, decision *BlockingDecision) {
	event := &BlockingEvent{
		ID:        uuid.New(),
		UserID:    attempt.UserID,
		PaymentID: attempt.PaymentID,
		RuleName:  decision.BlockingRule,
		Reason:    decision.BlockingReason,
		Severity:  decision.Severity,
		Actions:   decision.Actions,
		CreatedAt: e.now(),
	}
	if err := e.repo.CreateBlockingEvent(ctx, event); err != nil {
		logger.Error("Failed to persist blocking event",
			zap.Error(err),
			zap.String("payment_id", attempt.PaymentID.String()),
		)
	}
}

// failSafeDecision is the fail-closed terminal result for internal errors
func failSafeDecision(err error) *BlockingDecision {
	return &BlockingDecision{
		ShouldBlock:      true,
		BlockingReason:   "Risk evaluation unavailable",
		BlockingRule:     "fail_safe",
		Severity:         SeverityCritical,
		Confidence:       0,
		OverrideRequired: true,
		ReviewRequired:   true,
		Metadata: map[string]interface{}{
			"error": err.Error(),
		},
	}
}

// AddToWhitelist writes the entry through to storage and updates the in-memory
// cache synchronously.
func (e *Engine) AddToWhitelist(ctx context.Context, entry *WhitelistEntry) error {
	if !entry.Type.Known() {
		return &UnknownEntryTypeError{Type: entry.Type}
	}
	if entry.Type == EntryTypeCountry || entry.Type == EntryTypeISP {
		return fmt.Errorf("entry type %s is not allowed on the whitelist", entry.Type)
	}
	if entry.ID == uuidZero {
		entry.ID = uuid.New()
	}
	entry.IsActive = true
	entry.CreatedAt = e.now()

	if err := e.repo.CreateWhitelistEntry(ctx, entry); err != nil {
		return fmt.Errorf("create whitelist entry: %w", err)
	}
	e.cache.addWhitelist(entry)

	logger.Info("Whitelist entry added",
		zap.String("type", string(entry.Type)),
		zap.String("value", entry.Value),
		zap.String("added_by", entry.AddedBy.String()),
	)
	return nil
}

// AddToBlacklist writes the entry through to storage and updates the in-memory
// cache synchronously.
func (e *Engine) AddToBlacklist(ctx context.Context, entry *BlacklistEntry) error {
	if !entry.Type.Known() {
		return &UnknownEntryTypeError{Type: entry.Type}
	}
	if entry.ID == uuidZero {
		entry.ID = uuid.New()
	}
	if entry.Severity == "" {
		entry.Severity = SeverityMedium
	}
	entry.IsActive = true
	entry.CreatedAt = e.now()

	if err := e.repo.CreateBlacklistEntry(ctx, entry); err != nil {
		return fmt.Errorf("create blacklist entry: %w", err)
	}
	e.cache.addBlacklist(entry)

	logger.Info("Blacklist entry added",
		zap.String("type", string(entry.Type)),
		zap.String("value", entry.Value),
		zap.String("severity", string(entry.Severity)),
		zap.String("added_by", entry.AddedBy.String()),
	)
	return nil
}

// CreateRule validates and stores a new blocking rule. Unknown context fields
// are rejected here, at load time, rather than surfacing as never-matching
// conditions during evaluation.
func (e *Engine) CreateRule(ctx context.Context, rule *BlockingRule) error {
	if err := ValidateRule(rule); err != nil {
		return err
	}
	if rule.ID == uuidZero {
		rule.ID = uuid.New()
	}
	rule.CreatedAt = e.now()
	rule.UpdatedAt = rule.CreatedAt
	return e.repo.CreateRule(ctx, rule)
}

// OverrideEvent records an admin override of an automatic blocking decision
func (e *Engine) OverrideEvent(ctx context.Context, eventID, adminID uuid.UUID, reason string) error {
	return e.repo.OverrideBlockingEvent(ctx, eventID, adminID, reason)
}

// ResolveEvent marks a blocking event as resolved
func (e *Engine) ResolveEvent(ctx context.Context, eventID uuid.UUID, note string) error {
	return e.repo.ResolveBlockingEvent(ctx, eventID, note)
}

// GetAnalytics aggregates blocking events for a timeframe like "24h", "7d", "30d"
func (e *Engine) GetAnalytics(ctx context.Context, timeframe string) (*BlockingAnalytics, error) {
	var window time.Duration
	switch timeframe {
	case "24h":
		window = 24 * time.Hour
	case "7d":
		window = 7 * 24 * time.Hour
	case "30d":
		window = 30 * 24 * time.Hour
	default:
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}

	to := e.now()
	analytics, err := e.repo.GetBlockingAnalytics(ctx, to.Add(-window), to)
	if err != nil {
		return nil, err
	}
	analytics.Timeframe = timeframe
	return analytics, nil
}
