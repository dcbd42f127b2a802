package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/katalog/internal/model"
)

// SaveFeedback appends an approve or reject decision to the audit trail.
func (s *SQLiteStorage) SaveFeedback(ctx context.Context, f *model.MappingFeedback) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFeedback(f); err != nil {
		return err
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO mapping_feedback (mapping_id, code, action, comment, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, f.MappingID, f.Code, string(f.Action), f.Comment, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get feedback id: %w", err)
	}
	f.ID = id
	return nil
}

// GetFeedback returns the decisions recorded for a mapping, oldest first.
func (s *SQLiteStorage) GetFeedback(ctx context.Context, mappingID string) ([]model.MappingFeedback, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(mappingID, "mappingID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mapping_id, code, action, comment, created_at
		FROM mapping_feedback
		WHERE mapping_id = ?
		ORDER BY id
	`, mappingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.MappingFeedback
	for rows.Next() {
		var f model.MappingFeedback
		var action string
		if err := rows.Scan(&f.ID, &f.MappingID, &f.Code, &action, &f.Comment, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		f.Action = model.FeedbackAction(action)
		out = append(out, f)
	}
	return out, rows.Err()
}
