// Package block implements the terminal deny-list consulted before any
// quota logic.
package block

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/edgegate/edgegate/internal/models"
	internalsettings "github.com/edgegate/edgegate/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dbTimeout caps database lookups on the hot path. A timeout is treated
// as "not blocked" by the caller, never as a denial.
const dbTimeout = 250 * time.Millisecond

// LoadBlockDuration reads the detector block duration from the settings
// snapshot.
func LoadBlockDuration() time.Duration {
	seconds := internalsettings.DefaultBlockDurationSeconds
	if raw, ok := internalsettings.DBConfigValue(internalsettings.BlockDurationSecondsKey); ok {
		var parsed int
		if errUnmarshal := json.Unmarshal(raw, &parsed); errUnmarshal == nil && parsed > 0 {
			seconds = parsed
		}
	}
	return time.Duration(seconds) * time.Second
}

type memoryBlock struct {
	reason    string
	expiresAt time.Time
}

// Registry is the block list: a fast in-memory layer over an optional
// database table so administrative blocks survive restarts and are shared
// between instances. Entries self-expire; expired rows are ignored on
// lookup and pruned by Sweep.
type Registry struct {
	db    *gorm.DB
	nowFn func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryBlock
}

// NewRegistry constructs a Registry. db may be nil for memory-only use.
func NewRegistry(db *gorm.DB, nowFn func() time.Time) *Registry {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Registry{
		db:      db,
		nowFn:   nowFn,
		entries: make(map[string]memoryBlock),
	}
}

// IsBlocked reports whether the identity is currently blocked. A database
// error is returned alongside false so the pipeline can log and fail open.
func (r *Registry) IsBlocked(ctx context.Context, identity string) (bool, error) {
	if r == nil || identity == "" {
		return false, nil
	}
	now := r.nowFn()

	r.mu.RLock()
	entry, ok := r.entries[identity]
	r.mu.RUnlock()
	if ok {
		if now.Before(entry.expiresAt) {
			return true, nil
		}
		r.mu.Lock()
		delete(r.entries, identity)
		r.mu.Unlock()
	}

	if r.db == nil {
		return false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var row models.BlockEntry
	errFind := r.db.WithContext(dbCtx).
		Where("identity = ? AND expires_at > ?", identity, now).
		Take(&row).Error
	if errFind != nil {
		if errFind == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, fmt.Errorf("block: lookup %s: %w", identity, errFind)
	}

	r.mu.Lock()
	r.entries[identity] = memoryBlock{reason: row.Reason, expiresAt: row.ExpiresAt}
	r.mu.Unlock()
	return true, nil
}

// Block inserts or extends a block for the identity.
func (r *Registry) Block(ctx context.Context, identity, reason, source string, until time.Time) error {
	if r == nil {
		return nil
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return fmt.Errorf("block: empty identity")
	}

	r.mu.Lock()
	r.entries[identity] = memoryBlock{reason: reason, expiresAt: until}
	r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	entry := models.BlockEntry{
		Identity:  identity,
		Reason:    reason,
		Source:    source,
		ExpiresAt: until,
	}
	if errUpsert := r.db.WithContext(dbCtx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "source", "expires_at", "updated_at"}),
		}).
		Create(&entry).Error; errUpsert != nil {
		return fmt.Errorf("block: persist %s: %w", identity, errUpsert)
	}
	return nil
}

// Unblock removes a block for the identity.
func (r *Registry) Unblock(ctx context.Context, identity string) error {
	if r == nil || identity == "" {
		return nil
	}
	r.mu.Lock()
	delete(r.entries, identity)
	r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if errDelete := r.db.WithContext(dbCtx).
		Where("identity = ?", identity).
		Delete(&models.BlockEntry{}).Error; errDelete != nil {
		return fmt.Errorf("block: remove %s: %w", identity, errDelete)
	}
	return nil
}

// List returns the active blocks from the database, newest first.
func (r *Registry) List(ctx context.Context) ([]models.BlockEntry, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	var rows []models.BlockEntry
	if errFind := r.db.WithContext(ctx).
		Where("expires_at > ?", r.nowFn()).
		Order("created_at DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("block: list: %w", errFind)
	}
	return rows, nil
}

// Sweep drops expired entries from memory and the database. Best-effort;
// meant for a background cadence, never the request path.
func (r *Registry) Sweep(ctx context.Context) error {
	if r == nil {
		return nil
	}
	now := r.nowFn()

	r.mu.Lock()
	for identity, entry := range r.entries {
		if !now.Before(entry.expiresAt) {
			delete(r.entries, identity)
		}
	}
	r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	if errDelete := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.BlockEntry{}).Error; errDelete != nil {
		return fmt.Errorf("block: sweep: %w", errDelete)
	}
	return nil
}
