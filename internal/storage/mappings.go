package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/service"
)

const mappingColumns = `id, normalized_text, context_hash, code, name, unit, confidence,
	validated_by_user, usage_count, created_at, updated_at, last_used_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMapping(row scanner) (*model.LearnedMapping, error) {
	var m model.LearnedMapping
	if err := row.Scan(
		&m.ID,
		&m.NormalizedText,
		&m.ContextHash,
		&m.Code,
		&m.Name,
		&m.Unit,
		&m.Confidence,
		&m.ValidatedByUser,
		&m.UsageCount,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.LastUsedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMapping returns the mapping for an exact (normalized text, context hash) key.
func (s *SQLiteStorage) GetMapping(ctx context.Context, key service.MappingKey) (*model.LearnedMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key.NormalizedText, "normalizedText"); err != nil {
		return nil, err
	}
	return s.getMappingTx(ctx, s.db, key)
}

func (s *SQLiteStorage) getMappingTx(ctx context.Context, q queryable, key service.MappingKey) (*model.LearnedMapping, error) {
	m, err := scanMapping(q.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM learned_mappings
		WHERE normalized_text = ? AND context_hash = ?
	`, key.NormalizedText, key.ContextHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return m, nil
}

// GetMappingByID returns a mapping by its identifier.
func (s *SQLiteStorage) GetMappingByID(ctx context.Context, id string) (*model.LearnedMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	m, err := scanMapping(s.db.QueryRowContext(ctx, `
		SELECT `+mappingColumns+` FROM learned_mappings WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return m, nil
}

// GetValidatedMappingByText returns the most trusted user-validated mapping
// for the text under any context.
func (s *SQLiteStorage) GetValidatedMappingByText(ctx context.Context, normalizedText string) (*model.LearnedMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedText, "normalizedText"); err != nil {
		return nil, err
	}

	m, err := scanMapping(s.db.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM learned_mappings
		WHERE normalized_text = ? AND validated_by_user = 1
		ORDER BY confidence DESC, usage_count DESC, updated_at DESC
		LIMIT 1
	`, normalizedText))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validated mapping: %w", err)
	}
	return m, nil
}

// UpsertMapping inserts the mapping, or when a row already exists for the same
// key increments its usage count and refreshes code, confidence and the
// validation flag. A mapping once validated by the user stays validated.
// It returns the stored row.
func (s *SQLiteStorage) UpsertMapping(ctx context.Context, m *model.LearnedMapping) (*model.LearnedMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateMapping(m); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	if m.LastUsedAt.IsZero() {
		m.LastUsedAt = now
	}
	usage := m.UsageCount
	if usage < 1 {
		usage = 1
	}

	var stored *model.LearnedMapping
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO learned_mappings (`+mappingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(normalized_text, context_hash) DO UPDATE SET
				code = excluded.code,
				name = excluded.name,
				unit = excluded.unit,
				confidence = excluded.confidence,
				validated_by_user = MAX(learned_mappings.validated_by_user, excluded.validated_by_user),
				usage_count = learned_mappings.usage_count + 1,
				updated_at = excluded.updated_at,
				last_used_at = excluded.last_used_at
		`,
			m.ID,
			m.NormalizedText,
			m.ContextHash,
			m.Code,
			m.Name,
			m.Unit,
			m.Confidence,
			m.ValidatedByUser,
			usage,
			m.CreatedAt,
			m.UpdatedAt,
			m.LastUsedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert mapping: %w", err)
		}

		stored, err = s.getMappingTx(ctx, tx, service.MappingKey{
			NormalizedText: m.NormalizedText,
			ContextHash:    m.ContextHash,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// UpdateMapping overwrites the mutable fields of an existing mapping. Usage
// count and last use never move backwards.
func (s *SQLiteStorage) UpdateMapping(ctx context.Context, m *model.LearnedMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMapping(m); err != nil {
		return err
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE learned_mappings
		SET code = ?, name = ?, unit = ?, confidence = ?, validated_by_user = ?,
			usage_count = MAX(usage_count, ?), updated_at = ?, last_used_at = MAX(last_used_at, ?)
		WHERE id = ?
	`,
		m.Code,
		m.Name,
		m.Unit,
		m.Confidence,
		m.ValidatedByUser,
		m.UsageCount,
		m.UpdatedAt,
		m.LastUsedAt,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update mapping: %w", err)
	}
	return expectAffected(result, "mapping "+m.ID)
}

// TouchMapping records a cache hit: usage count increments and last use refreshes.
func (s *SQLiteStorage) TouchMapping(ctx context.Context, id string, usedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE learned_mappings
		SET usage_count = usage_count + 1, last_used_at = ?
		WHERE id = ?
	`, usedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch mapping: %w", err)
	}
	return expectAffected(result, "mapping "+id)
}

// GetMappingsByCode returns every mapping resolving to code.
func (s *SQLiteStorage) GetMappingsByCode(ctx context.Context, code string) ([]model.LearnedMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}
	return s.queryMappings(ctx, `
		SELECT `+mappingColumns+`
		FROM learned_mappings
		WHERE code = ?
		ORDER BY usage_count DESC, normalized_text
	`, code)
}

// GetStaleMappings returns mappings not used since the given time, oldest first.
func (s *SQLiteStorage) GetStaleMappings(ctx context.Context, unusedSince time.Time) ([]model.LearnedMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryMappings(ctx, `
		SELECT `+mappingColumns+`
		FROM learned_mappings
		WHERE last_used_at < ?
		ORDER BY last_used_at
	`, unusedSince.UTC())
}

// ListMappings returns up to limit mappings, most used first.
func (s *SQLiteStorage) ListMappings(ctx context.Context, limit int) ([]model.LearnedMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	return s.queryMappings(ctx, `
		SELECT `+mappingColumns+`
		FROM learned_mappings
		ORDER BY usage_count DESC, last_used_at DESC
		LIMIT ?
	`, limit)
}

func (s *SQLiteStorage) queryMappings(ctx context.Context, query string, args ...any) ([]model.LearnedMapping, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.LearnedMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, *m)
	}
	return mappings, rows.Err()
}

// DeleteMappings removes mappings together with their related items and
// feedback rows. It returns the number of mappings deleted.
func (s *SQLiteStorage) DeleteMappings(ctx context.Context, ids []string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var deleted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// #nosec G202 - only placeholders are concatenated
		if _, err := tx.ExecContext(ctx, `DELETE FROM related_items WHERE parent_mapping_id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("failed to delete related items: %w", err)
		}
		// #nosec G202 - only placeholders are concatenated
		if _, err := tx.ExecContext(ctx, `DELETE FROM mapping_feedback WHERE mapping_id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("failed to delete feedback: %w", err)
		}
		// #nosec G202 - only placeholders are concatenated
		result, err := tx.ExecContext(ctx, `DELETE FROM learned_mappings WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("failed to delete mappings: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

func expectAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", common.ErrNotFound, what)
	}
	return nil
}
