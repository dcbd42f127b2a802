// Package storage provides the data persistence layer for learned mappings.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/katalog/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidMapping     = errors.New("invalid learned mapping")
	ErrInvalidRelatedItem = errors.New("invalid related item")
	ErrInvalidFeedback    = errors.New("invalid mapping feedback")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateMapping(m *model.LearnedMapping) error {
	if m == nil {
		return fmt.Errorf("%w: mapping", ErrNilParameter)
	}
	if m.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidMapping)
	}
	if strings.TrimSpace(m.NormalizedText) == "" {
		return fmt.Errorf("%w: missing normalized text", ErrInvalidMapping)
	}
	if m.ContextHash == "" {
		return fmt.Errorf("%w: missing context hash", ErrInvalidMapping)
	}
	if strings.TrimSpace(m.Code) == "" {
		return fmt.Errorf("%w: missing code", ErrInvalidMapping)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidMapping)
	}
	if m.UsageCount < 0 {
		return fmt.Errorf("%w: negative usage count", ErrInvalidMapping)
	}
	return nil
}

func validateRelatedItem(item *model.RelatedItem) error {
	if item == nil {
		return fmt.Errorf("%w: related item", ErrNilParameter)
	}
	if item.ParentMappingID == "" {
		return fmt.Errorf("%w: missing parent mapping", ErrInvalidRelatedItem)
	}
	if strings.TrimSpace(item.Code) == "" {
		return fmt.Errorf("%w: missing code", ErrInvalidRelatedItem)
	}
	switch item.RelationshipType {
	case model.RelationshipCompanion, model.RelationshipManual:
	default:
		return fmt.Errorf("%w: unknown relationship %q", ErrInvalidRelatedItem, item.RelationshipType)
	}
	return nil
}

func validateFeedback(f *model.MappingFeedback) error {
	if f == nil {
		return fmt.Errorf("%w: feedback", ErrNilParameter)
	}
	if f.MappingID == "" {
		return fmt.Errorf("%w: missing mapping", ErrInvalidFeedback)
	}
	switch f.Action {
	case model.FeedbackApprove, model.FeedbackReject:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidFeedback, f.Action)
	}
	return nil
}
