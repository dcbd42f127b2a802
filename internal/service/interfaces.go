// Package service defines the contracts shared between application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/katalog/internal/model"
)

// MappingKey identifies a learned mapping row.
type MappingKey struct {
	NormalizedText string
	ContextHash    string
}

// MappingStore defines the contract for persisting learned mappings.
// Implementations must allow concurrent readers.
type MappingStore interface {
	// Learned mapping operations
	GetMapping(ctx context.Context, key MappingKey) (*model.LearnedMapping, error)
	GetValidatedMappingByText(ctx context.Context, normalizedText string) (*model.LearnedMapping, error)
	UpsertMapping(ctx context.Context, mapping *model.LearnedMapping) (*model.LearnedMapping, error)
	UpdateMapping(ctx context.Context, mapping *model.LearnedMapping) error
	TouchMapping(ctx context.Context, id string, usedAt time.Time) error
	GetMappingsByCode(ctx context.Context, code string) ([]model.LearnedMapping, error)
	GetStaleMappings(ctx context.Context, unusedSince time.Time) ([]model.LearnedMapping, error)
	DeleteMappings(ctx context.Context, ids []string) (int, error)

	// Feedback operations
	SaveFeedback(ctx context.Context, feedback *model.MappingFeedback) error
	GetFeedback(ctx context.Context, mappingID string) ([]model.MappingFeedback, error)

	// Related item operations
	UpsertRelatedItem(ctx context.Context, item *model.RelatedItem) error
	GetRelatedItemsByCode(ctx context.Context, code string, limit int) ([]model.RelatedItem, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// WithDefaults fills unset retry options.
func (o RetryOptions) WithDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
	return o
}
