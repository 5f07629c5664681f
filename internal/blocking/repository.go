package blocking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles blocking engine data operations
type Repository struct {
	db *pgxpool.Pool
}

// Ensure the concrete repository satisfies the engine's requirements.
var _ RepositoryInterface = (*Repository)(nil)

// NewRepository creates a new blocking repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetActiveRules retrieves all active blocking rules ordered by priority
func (r *Repository) GetActiveRules(ctx context.Context) ([]*BlockingRule, error) {
	query := `
		SELECT id, name, rule_type, conditions, actions, priority, is_active,
		       created_at, updated_at
		FROM blocking_rules
		WHERE is_active = true
		ORDER BY priority DESC, created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*BlockingRule, 0)
	for rows.Next() {
		var rule BlockingRule
		var conditionsJSON, actionsJSON []byte

		err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Type,
			&conditionsJSON,
			&actionsJSON,
			&rule.Priority,
			&rule.IsActive,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		)
		if err != nil {
			continue
		}

		if err := json.Unmarshal(conditionsJSON, &rule.Conditions); err != nil {
			continue
		}
		if err := json.Unmarshal(actionsJSON, &rule.Actions); err != nil {
			continue
		}

		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// CreateRule stores a new blocking rule
func (r *Repository) CreateRule(ctx context.Context, rule *BlockingRule) error {
	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return err
	}
	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO blocking_rules (
			id, name, rule_type, conditions, actions, priority, is_active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.Exec(ctx, query,
		rule.ID,
		rule.Name,
		rule.Type,
		conditionsJSON,
		actionsJSON,
		rule.Priority,
		rule.IsActive,
		rule.CreatedAt,
		rule.UpdatedAt,
	)

	return err
}

// GetActiveWhitelist retrieves all whitelist entries still marked active.
// Expiry is intentionally not filtered here; it is checked at lookup time.
func (r *Repository) GetActiveWhitelist(ctx context.Context) ([]*WhitelistEntry, error) {
	query := `
		SELECT id, entry_type, entry_value, reason, added_by, is_active,
		       expires_at, created_at
		FROM whitelist_entries
		WHERE is_active = true
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*WhitelistEntry, 0)
	for rows.Next() {
		var entry WhitelistEntry

		err := rows.Scan(
			&entry.ID,
			&entry.Type,
			&entry.Value,
			&entry.Reason,
			&entry.AddedBy,
			&entry.IsActive,
			&entry.ExpiresAt,
			&entry.CreatedAt,
		)
		if err != nil {
			continue
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// GetActiveBlacklist retrieves all blacklist entries still marked active
func (r *Repository) GetActiveBlacklist(ctx context.Context) ([]*BlacklistEntry, error) {
	query := `
		SELECT id, entry_type, entry_value, reason, severity, added_by,
		       is_active, expires_at, created_at
		FROM blacklist_entries
		WHERE is_active = true
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*BlacklistEntry, 0)
	for rows.Next() {
		var entry BlacklistEntry

		err := rows.Scan(
			&entry.ID,
			&entry.Type,
			&entry.Value,
			&entry.Reason,
			&entry.Severity,
			&entry.AddedBy,
			&entry.IsActive,
			&entry.ExpiresAt,
			&entry.CreatedAt,
		)
		if err != nil {
			continue
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// CreateWhitelistEntry stores a whitelist entry
func (r *Repository) CreateWhitelistEntry(ctx context.Context, entry *WhitelistEntry) error {
	query := `
		INSERT INTO whitelist_entries (
			id, entry_type, entry_value, reason, added_by, is_active,
			expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entry_type, entry_value) DO UPDATE SET
			reason = EXCLUDED.reason,
			added_by = EXCLUDED.added_by,
			is_active = EXCLUDED.is_active,
			expires_at = EXCLUDED.expires_at
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.Type,
		entry.Value,
		entry.Reason,
		entry.AddedBy,
		entry.IsActive,
		entry.ExpiresAt,
		entry.CreatedAt,
	)

	return err
}

// CreateBlacklistEntry stores a blacklist entry
func (r *Repository) CreateBlacklistEntry(ctx context.Context, entry *BlacklistEntry) error {
	query := `
		INSERT INTO blacklist_entries (
			id, entry_type, entry_value, reason, severity, added_by,
			is_active, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (entry_type, entry_value) DO UPDATE SET
			reason = EXCLUDED.reason,
			severity = EXCLUDED.severity,
			added_by = EXCLUDED.added_by,
			is_active = EXCLUDED.is_active,
			expires_at = EXCLUDED.expires_at
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.Type,
		entry.Value,
		entry.Reason,
		entry.Severity,
		entry.AddedBy,
		entry.IsActive,
		entry.ExpiresAt,
		entry.CreatedAt,
	)

	return err
}

// CreateBlockingEvent persists the audit record for a blocking decision
func (r *Repository) CreateBlockingEvent(ctx context.Context, event *BlockingEvent) error {
	actionsJSON, err := json.Marshal(event.Actions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO blocking_events (
			id, user_id, payment_id, rule_name, reason, severity, actions,
			resolved, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.Exec(ctx, query,
		event.ID,
		event.UserID,
		event.PaymentID,
		event.RuleName,
		event.Reason,
		event.Severity,
		actionsJSON,
		event.Resolved,
		event.CreatedAt,
	)

	return err
}

// OverrideBlockingEvent records an admin override on an event
func (r *Repository) OverrideBlockingEvent(ctx context.Context, eventID, adminID uuid.UUID, reason string) error {
	query := `
		UPDATE blocking_events
		SET overridden_by = $2,
		    overridden_at = NOW(),
		    override_reason = $3
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, eventID, adminID, reason)
	return err
}

// ResolveBlockingEvent marks an event resolved
func (r *Repository) ResolveBlockingEvent(ctx context.Context, eventID uuid.UUID, note string) error {
	query := `
		UPDATE blocking_events
		SET resolved = true,
		    resolved_at = NOW(),
		    resolution_note = $2
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, eventID, note)
	return err
}

// GetBlockingAnalytics aggregates blocking events between two instants
func (r *Repository) GetBlockingAnalytics(ctx context.Context, from, to time.Time) (*BlockingAnalytics, error) {
	analytics := &BlockingAnalytics{
		BySeverity: make(map[Severity]int64),
		ByRule:     make(map[string]int64),
	}

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(CASE WHEN overridden_by IS NOT NULL THEN 1 END) AS overridden,
			COALESCE(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 60)
				FILTER (WHERE resolved_at IS NOT NULL), 0) AS avg_resolution
		FROM blocking_events
		WHERE created_at >= $1 AND created_at <= $2
	`

	var overridden int64
	err := r.db.QueryRow(ctx, query, from, to).Scan(
		&analytics.TotalBlocks,
		&overridden,
		&analytics.AvgResolutionMinutes,
	)
	if err != nil {
		return nil, err
	}

	if analytics.TotalBlocks > 0 {
		analytics.OverrideRate = float64(overridden) / float64(analytics.TotalBlocks)
	}

	severityQuery := `
		SELECT severity, COUNT(*)
		FROM blocking_events
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY severity
	`
	rows, err := r.db.Query(ctx, severityQuery, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var severity Severity
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			continue
		}
		analytics.BySeverity[severity] = count
	}

	ruleQuery := `
		SELECT rule_name, COUNT(*)
		FROM blocking_events
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY rule_name
	`
	ruleRows, err := r.db.Query(ctx, ruleQuery, from, to)
	if err != nil {
		return nil, err
	}
	defer ruleRows.Close()
	for ruleRows.Next() {
		var ruleName string
		var count int64
		if err := ruleRows.Scan(&ruleName, &count); err != nil {
			continue
		}
		analytics.ByRule[ruleName] = count
	}

	return analytics, nil
}
