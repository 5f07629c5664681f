package blocking

import (
	"context"
	"sync"
	"time"

	"github.com/salonflow/salonflow-backend/pkg/logger"
	"go.uber.org/zap"
)

// listSnapshot holds one immutable generation of rules and list entries.
// A refresh builds a complete new snapshot and publishes it in one pointer
// swap, so readers see either the old or the new generation, never a mix.
type listSnapshot struct {
	rules     []*BlockingRule
	whitelist map[string]*WhitelistEntry
	blacklist map[string]*BlacklistEntry
}

// listCache is the process-local cache of rules, whitelist and blacklist,
// refreshed lazily behind a single TTL gate. Concurrent callers may each
// trigger a refresh; correctness only needs eventual consistency within the
// TTL window.
type listCache struct {
	repo RepositoryInterface
	ttl  time.Duration
	now  func() time.Time

	mu          sync.RWMutex
	snapshot    *listSnapshot
	lastRefresh time.Time
}

func newListCache(repo RepositoryInterface, ttl time.Duration, now func() time.Time) *listCache {
	if now == nil {
		now = time.Now
	}
	return &listCache{
		repo:     repo,
		ttl:      ttl,
		now:      now,
		snapshot: &listSnapshot{whitelist: map[string]*WhitelistEntry{}, blacklist: map[string]*BlacklistEntry{}},
	}
}

func listKey(t ListEntryType, value string) string {
	return string(t) + ":" + value
}

// refreshIfStale rebuilds the snapshot when the TTL has elapsed. A failed
// refresh leaves the last-known-good snapshot in place.
func (c *listCache) refreshIfStale(ctx context.Context) error {
	c.mu.RLock()
	stale := c.now().Sub(c.lastRefresh) >= c.ttl
	c.mu.RUnlock()
	if !stale {
		return nil
	}

	rules, err := c.repo.GetActiveRules(ctx)
	if err != nil {
		logger.Error("Blocking cache refresh failed, keeping stale rules", zap.Error(err))
		return err
	}
	whitelist, err := c.repo.GetActiveWhitelist(ctx)
	if err != nil {
		logger.Error("Blocking cache refresh failed, keeping stale whitelist", zap.Error(err))
		return err
	}
	blacklist, err := c.repo.GetActiveBlacklist(ctx)
	if err != nil {
		logger.Error("Blocking cache refresh failed, keeping stale blacklist", zap.Error(err))
		return err
	}

	// Rules referencing unknown context fields are dropped here rather than
	// failing every later evaluation.
	valid := make([]*BlockingRule, 0, len(rules))
	for _, rule := range rules {
		if err := ValidateRule(rule); err != nil {
			logger.Warn("Dropping misconfigured blocking rule", zap.Error(err))
			continue
		}
		valid = append(valid, rule)
	}

	next := &listSnapshot{
		rules:     valid,
		whitelist: make(map[string]*WhitelistEntry, len(whitelist)),
		blacklist: make(map[string]*BlacklistEntry, len(blacklist)),
	}
	for _, entry := range whitelist {
		next.whitelist[listKey(entry.Type, entry.Value)] = entry
	}
	for _, entry := range blacklist {
		next.blacklist[listKey(entry.Type, entry.Value)] = entry
	}

	c.mu.Lock()
	c.snapshot = next
	c.lastRefresh = c.now()
	c.mu.Unlock()

	return nil
}

// populated reports whether at least one refresh has ever succeeded
func (c *listCache) populated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.lastRefresh.IsZero()
}

func (c *listCache) current() *listSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// expired reports whether an expiry timestamp has passed. Expiry is checked at
// lookup time; entries are never deleted in the background.
func (c *listCache) expired(expiresAt *time.Time) bool {
	return expiresAt != nil && !expiresAt.After(c.now())
}

// whitelistMatch returns the first active, non-expired whitelist entry matching
// a populated identity field of the attempt.
func (c *listCache) whitelistMatch(attempt *PaymentAttemptContext) *WhitelistEntry {
	snap := c.current()
	for _, t := range []ListEntryType{
		EntryTypeUser, EntryTypeIPAddress, EntryTypeEmail,
		EntryTypePhone, EntryTypeCardNumber, EntryTypeDeviceFingerprint,
	} {
		value, ok := attempt.listValue(t)
		if !ok {
			continue
		}
		if entry, found := snap.whitelist[listKey(t, value)]; found && entry.IsActive && !c.expired(entry.ExpiresAt) {
			return entry
		}
	}
	return nil
}

// blacklistMatch is the whitelist lookup plus the country and ISP fields
func (c *listCache) blacklistMatch(attempt *PaymentAttemptContext) *BlacklistEntry {
	snap := c.current()
	for _, t := range []ListEntryType{
		EntryTypeUser, EntryTypeIPAddress, EntryTypeEmail,
		EntryTypePhone, EntryTypeCardNumber, EntryTypeDeviceFingerprint,
		EntryTypeCountry, EntryTypeISP,
	} {
		value, ok := attempt.listValue(t)
		if !ok {
			continue
		}
		if entry, found := snap.blacklist[listKey(t, value)]; found && entry.IsActive && !c.expired(entry.ExpiresAt) {
			return entry
		}
	}
	return nil
}

// addWhitelist updates the in-memory snapshot synchronously after a write-through,
// so a decision in the same process sees the entry before the next TTL refresh.
func (c *listCache) addWhitelist(entry *WhitelistEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.snapshot.clone()
	next.whitelist[listKey(entry.Type, entry.Value)] = entry
	c.snapshot = next
}

func (c *listCache) addBlacklist(entry *BlacklistEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.snapshot.clone()
	next.blacklist[listKey(entry.Type, entry.Value)] = entry
	c.snapshot = next
}

func (s *listSnapshot) clone() *listSnapshot {
	next := &listSnapshot{
		rules:     s.rules,
		whitelist: make(map[string]*WhitelistEntry, len(s.whitelist)+1),
		blacklist: make(map[string]*BlacklistEntry, len(s.blacklist)+1),
	}
	for k, v := range s.whitelist {
		next.whitelist[k] = v
	}
	for k, v := range s.blacklist {
		next.blacklist[k] = v
	}
	return next
}
