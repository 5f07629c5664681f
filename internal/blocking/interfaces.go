package blocking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RepositoryInterface defines the storage contract for the blocking engine
type RepositoryInterface interface {
	// Rules
	GetActiveRules(ctx context.Context) ([]*BlockingRule, error)
	CreateRule(ctx context.Context, rule *BlockingRule) error

	// Whitelist / Blacklist
	GetActiveWhitelist(ctx context.Context) ([]*WhitelistEntry, error)
	GetActiveBlacklist(ctx context.Context) ([]*BlacklistEntry, error)
	CreateWhitelistEntry(ctx context.Context, entry *WhitelistEntry) error
	CreateBlacklistEntry(ctx context.Context, entry *BlacklistEntry) error

	// Audit events
	CreateBlockingEvent(ctx context.Context, event *BlockingEvent) error
	OverrideBlockingEvent(ctx context.Context, eventID, adminID uuid.UUID, reason string) error
	ResolveBlockingEvent(ctx context.Context, eventID uuid.UUID, note string) error

	// Analytics
	GetBlockingAnalytics(ctx context.Context, from, to time.Time) (*BlockingAnalytics, error)
}
