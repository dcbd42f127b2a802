package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/katalog/internal/model"
)

// UpsertRelatedItem records a related code for a mapping. Recording the same
// (mapping, code) pair again increments its co-occurrence count.
func (s *SQLiteStorage) UpsertRelatedItem(ctx context.Context, item *model.RelatedItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRelatedItem(item); err != nil {
		return err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO related_items
			(parent_mapping_id, code, name, unit, reason_text, relationship_type, co_occurrence_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(parent_mapping_id, code) DO UPDATE SET
			co_occurrence_count = related_items.co_occurrence_count + 1,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE related_items.name END,
			unit = CASE WHEN excluded.unit != '' THEN excluded.unit ELSE related_items.unit END,
			reason_text = CASE WHEN excluded.reason_text != '' THEN excluded.reason_text ELSE related_items.reason_text END
	`,
		item.ParentMappingID,
		item.Code,
		item.Name,
		item.Unit,
		item.ReasonText,
		string(item.RelationshipType),
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert related item: %w", err)
	}
	return nil
}

// GetRelatedItemsByCode returns the distinct related items across all mappings
// resolving to code, most frequent first, then in the order first recorded.
func (s *SQLiteStorage) GetRelatedItemsByCode(ctx context.Context, code string, limit int) ([]model.RelatedItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	// Bare columns take their values from the row holding MIN(r.id).
	rows, err := s.db.QueryContext(ctx, `
		SELECT MIN(r.id) AS first_id, r.parent_mapping_id, r.code, r.name, r.unit, r.reason_text,
			r.relationship_type, SUM(r.co_occurrence_count) AS total, r.created_at
		FROM related_items r
		JOIN learned_mappings m ON m.id = r.parent_mapping_id
		WHERE m.code = ? AND r.code != ?
		GROUP BY r.code
		ORDER BY total DESC, first_id ASC
		LIMIT ?
	`, code, code, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query related items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.RelatedItem
	for rows.Next() {
		var item model.RelatedItem
		var relationship string
		if err := rows.Scan(
			&item.ID,
			&item.ParentMappingID,
			&item.Code,
			&item.Name,
			&item.Unit,
			&item.ReasonText,
			&relationship,
			&item.CoOccurrenceCount,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan related item: %w", err)
		}
		item.RelationshipType = model.RelationshipType(relationship)
		items = append(items, item)
	}
	return items, rows.Err()
}
