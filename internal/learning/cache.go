// Package learning remembers confirmed and auto-accepted matches so repeated
// descriptions resolve without a catalog search.
package learning

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/normalize"
	"github.com/Veraticus/katalog/internal/service"
)

// Cache errors.
var (
	// ErrCodeMismatch is returned when feedback names a code other than the
	// one the mapping resolves to.
	ErrCodeMismatch = errors.New("code does not match learned mapping")
	ErrEmptyText    = errors.New("description is empty after normalization")
)

// Config tunes confidence adjustment and retention.
type Config struct {
	ApproveIncrement float64       `mapstructure:"approve_increment"`
	RejectDecrement  float64       `mapstructure:"reject_decrement"`
	ConfidenceFloor  float64       `mapstructure:"confidence_floor"`
	Retention        time.Duration `mapstructure:"retention"`
	RelatedLimit     int           `mapstructure:"related_limit"`
}

// DefaultConfig returns the standard cache settings.
func DefaultConfig() Config {
	return Config{
		ApproveIncrement: 0.05,
		RejectDecrement:  0.2,
		ConfidenceFloor:  0.1,
		Retention:        90 * 24 * time.Hour,
		RelatedLimit:     10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ApproveIncrement <= 0 {
		c.ApproveIncrement = d.ApproveIncrement
	}
	if c.RejectDecrement <= 0 {
		c.RejectDecrement = d.RejectDecrement
	}
	if c.ConfidenceFloor <= 0 || c.ConfidenceFloor >= 1 {
		c.ConfidenceFloor = d.ConfidenceFloor
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	if c.RelatedLimit <= 0 {
		c.RelatedLimit = d.RelatedLimit
	}
	return c
}

// SaveRequest describes a mapping to remember.
type SaveRequest struct {
	Context         model.ProjectContext
	Text            string
	Code            string
	Name            string
	Unit            string
	Confidence      float64
	ValidatedByUser bool
}

// Cache is the learned-mapping cache. Reads go straight to the store; writes
// are serialized per (text, context) key.
type Cache struct {
	store   service.MappingStore
	locks   *keyedLocker
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
	cfg     Config
	idMu    sync.Mutex
}

// New creates a cache over store.
func New(store service.MappingStore, cfg Config) *Cache {
	return &Cache{
		store:   store,
		locks:   newKeyedLocker(),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     func() time.Time { return time.Now().UTC() },
		cfg:     cfg.withDefaults(),
	}
}

// Config returns the effective settings.
func (c *Cache) Config() Config {
	return c.cfg
}

func (c *Cache) newID() string {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(c.now()), c.entropy).String()
}

func key(text string, pc model.ProjectContext) service.MappingKey {
	return service.MappingKey{
		NormalizedText: normalize.Query(text),
		ContextHash:    ContextHash(pc),
	}
}

func lockKey(k service.MappingKey) string {
	return k.ContextHash + "\x00" + k.NormalizedText
}

// Lookup returns the mapping learned for the text in the given context, or
// nil when none exists. When no mapping exists for the exact context, a
// user-validated mapping of the same text under any context is used. A hit
// counts as a use.
func (c *Cache) Lookup(ctx context.Context, text string, pc model.ProjectContext) (*model.LearnedMapping, error) {
	k := key(text, pc)
	if k.NormalizedText == "" {
		return nil, nil
	}

	m, err := c.store.GetMapping(ctx, k)
	if errors.Is(err, common.ErrNotFound) {
		m, err = c.store.GetValidatedMappingByText(ctx, k.NormalizedText)
	}
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up mapping: %w", err)
	}

	usedAt := c.now()
	if err := c.store.TouchMapping(ctx, m.ID, usedAt); err != nil {
		return nil, fmt.Errorf("failed to record mapping use: %w", err)
	}
	m.UsageCount++
	m.LastUsedAt = usedAt
	return m, nil
}

// Save remembers a mapping. Saving an existing key updates it in place and
// counts as another use.
func (c *Cache) Save(ctx context.Context, req SaveRequest) (*model.LearnedMapping, error) {
	k := key(req.Text, req.Context)
	if k.NormalizedText == "" {
		return nil, ErrEmptyText
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: empty code", common.ErrUnknownCode)
	}

	unlock := c.locks.Lock(lockKey(k))
	defer unlock()

	now := c.now()
	m, err := c.store.UpsertMapping(ctx, &model.LearnedMapping{
		ID:              c.newID(),
		NormalizedText:  k.NormalizedText,
		ContextHash:     k.ContextHash,
		Code:            strings.TrimSpace(req.Code),
		Name:            req.Name,
		Unit:            req.Unit,
		Confidence:      clamp(req.Confidence, c.cfg.ConfidenceFloor, 1),
		ValidatedByUser: req.ValidatedByUser,
		UsageCount:      1,
		CreatedAt:       now,
		UpdatedAt:       now,
		LastUsedAt:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save mapping: %w", err)
	}

	slog.Debug("saved learned mapping",
		"code", m.Code,
		"context", m.ContextHash,
		"confidence", m.Confidence,
		"validated", m.ValidatedByUser)
	return m, nil
}

// Approve marks the mapping as confirmed by the user and raises its
// confidence by the approve increment, never above 1.0.
func (c *Cache) Approve(ctx context.Context, text, code string, pc model.ProjectContext, comment string) (*model.LearnedMapping, error) {
	return c.feedback(ctx, text, code, pc, model.FeedbackApprove, comment, func(m *model.LearnedMapping) {
		m.ValidatedByUser = true
		m.Confidence = clamp(m.Confidence+c.cfg.ApproveIncrement, c.cfg.ConfidenceFloor, 1)
	})
}

// Reject lowers the mapping's confidence by the reject decrement, never below
// the configured floor. The mapping is kept so it can be reconsidered, but it
// no longer counts as user-validated.
func (c *Cache) Reject(ctx context.Context, text, code string, pc model.ProjectContext, reason string) (*model.LearnedMapping, error) {
	return c.feedback(ctx, text, code, pc, model.FeedbackReject, reason, func(m *model.LearnedMapping) {
		m.ValidatedByUser = false
		m.Confidence = clamp(m.Confidence-c.cfg.RejectDecrement, c.cfg.ConfidenceFloor, 1)
	})
}

func (c *Cache) feedback(
	ctx context.Context,
	text, code string,
	pc model.ProjectContext,
	action model.FeedbackAction,
	comment string,
	adjust func(*model.LearnedMapping),
) (*model.LearnedMapping, error) {
	k := key(text, pc)

	unlock := c.locks.Lock(lockKey(k))
	defer unlock()

	m, err := c.store.GetMapping(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping: %w", err)
	}
	if code != "" && m.Code != code {
		return nil, fmt.Errorf("%w: mapping resolves to %s, not %s", ErrCodeMismatch, m.Code, code)
	}

	adjust(m)
	m.UpdatedAt = c.now()
	if err := c.store.UpdateMapping(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to update mapping: %w", err)
	}

	if err := c.store.SaveFeedback(ctx, &model.MappingFeedback{
		MappingID: m.ID,
		Code:      m.Code,
		Action:    action,
		Comment:   comment,
		CreatedAt: m.UpdatedAt,
	}); err != nil {
		// Audit rows are best effort.
		slog.Warn("failed to record mapping feedback", "mapping", m.ID, "action", action, "error", err)
	}

	return m, nil
}

// GetRelatedItems returns the distinct items confirmed together with code
// across all mappings, most frequent first.
func (c *Cache) GetRelatedItems(ctx context.Context, code string) ([]model.RelatedItem, error) {
	items, err := c.store.GetRelatedItemsByCode(ctx, code, c.cfg.RelatedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get related items: %w", err)
	}
	return items, nil
}

// RecordRelated stores items confirmed together with a mapping. Recording a
// code again increments its co-occurrence count.
func (c *Cache) RecordRelated(ctx context.Context, mappingID string, items []model.RelatedItem) error {
	for i := range items {
		item := items[i]
		item.ParentMappingID = mappingID
		if item.RelationshipType == "" {
			item.RelationshipType = model.RelationshipCompanion
		}
		if err := c.store.UpsertRelatedItem(ctx, &item); err != nil {
			return fmt.Errorf("failed to record related item %s: %w", item.Code, err)
		}
	}
	return nil
}

// FindStale returns mappings unused for longer than retention. A zero
// retention uses the configured window.
func (c *Cache) FindStale(ctx context.Context, retention time.Duration) ([]model.LearnedMapping, error) {
	if retention <= 0 {
		retention = c.cfg.Retention
	}
	mappings, err := c.store.GetStaleMappings(ctx, c.now().Add(-retention))
	if err != nil {
		return nil, fmt.Errorf("failed to find stale mappings: %w", err)
	}
	return mappings, nil
}

// Prune deletes mappings unused for longer than retention and returns how
// many were removed.
func (c *Cache) Prune(ctx context.Context, retention time.Duration) (int, error) {
	stale, err := c.FindStale(ctx, retention)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, len(stale))
	for i, m := range stale {
		ids[i] = m.ID
	}
	n, err := c.store.DeleteMappings(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to prune mappings: %w", err)
	}
	slog.Info("pruned stale mappings", "count", n)
	return n, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
