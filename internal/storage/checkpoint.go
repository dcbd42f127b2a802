package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Checkpoint errors.
var (
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrCheckpointExists   = errors.New("checkpoint already exists")
	ErrInvalidCheckpoint  = errors.New("invalid checkpoint tag")
)

// maxAutoCheckpoints is the number of automatic checkpoints kept.
const maxAutoCheckpoints = 5

// CheckpointInfo describes a stored snapshot of the mapping database.
type CheckpointInfo struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
	IsAuto        bool           `json:"is_auto"`
}

// Mappings returns the number of learned mappings in the snapshot.
func (c CheckpointInfo) Mappings() int {
	return c.RowCounts["learned_mappings"]
}

// CheckpointManager snapshots the mapping database next to its file.
type CheckpointManager struct {
	storage *SQLiteStorage
	dir     string
}

// NewCheckpointManager creates a checkpoint manager storing snapshots in a
// "checkpoints" directory beside the database.
func (s *SQLiteStorage) NewCheckpointManager() (*CheckpointManager, error) {
	if s.dbPath == ":memory:" {
		return nil, fmt.Errorf("%w: in-memory databases cannot be checkpointed", ErrInvalidCheckpoint)
	}
	dir := filepath.Join(filepath.Dir(s.dbPath), "checkpoints")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve checkpoints directory: %w", err)
	}
	return &CheckpointManager{storage: s, dir: abs}, nil
}

func validateTag(tag string) error {
	if tag == "" || strings.ContainsAny(tag, `/\'";`) || strings.Contains(tag, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidCheckpoint, tag)
	}
	return nil
}

// Create snapshots the database under tag. An empty tag is generated from
// the current time.
func (cm *CheckpointManager) Create(ctx context.Context, tag, description string) (*CheckpointInfo, error) {
	return cm.create(ctx, tag, description, false)
}

// AutoCheckpoint snapshots the database before a destructive operation and
// keeps only the most recent automatic snapshots.
func (cm *CheckpointManager) AutoCheckpoint(ctx context.Context, operation string) (*CheckpointInfo, error) {
	tag := fmt.Sprintf("auto-%s-%s", operation, time.Now().Format("20060102-150405"))
	info, err := cm.create(ctx, tag, "Automatic checkpoint before "+operation, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create auto-checkpoint: %w", err)
	}

	if err := cm.pruneAuto(ctx); err != nil {
		slog.Warn("failed to clean up old auto-checkpoints", "error", err)
	}
	return info, nil
}

func (cm *CheckpointManager) create(ctx context.Context, tag, description string, auto bool) (*CheckpointInfo, error) {
	if tag == "" {
		tag = "checkpoint-" + time.Now().Format("20060102-150405")
	}
	if err := validateTag(tag); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(cm.dir, tag+".db")
	if _, err := os.Stat(dbPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointExists, tag)
	}

	version, err := cm.storage.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	// #nosec G201 - tag is validated and the directory is absolute
	if _, err := cm.storage.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dbPath)); err != nil {
		return nil, fmt.Errorf("failed to snapshot database: %w", err)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat checkpoint: %w", err)
	}

	info := &CheckpointInfo{
		ID:            tag,
		CreatedAt:     time.Now(),
		Description:   description,
		FileSize:      stat.Size(),
		RowCounts:     cm.rowCounts(ctx),
		SchemaVersion: version,
		IsAuto:        auto,
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkpoint metadata: %w", err)
	}
	metaPath := filepath.Join(cm.dir, tag+".meta.json")
	if err := os.WriteFile(metaPath, data, 0600); err != nil {
		if rmErr := os.Remove(dbPath); rmErr != nil {
			slog.Error("failed to remove checkpoint after metadata failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save checkpoint metadata: %w", err)
	}

	return info, nil
}

func (cm *CheckpointManager) rowCounts(ctx context.Context) map[string]int {
	queries := map[string]string{
		"learned_mappings": "SELECT COUNT(*) FROM learned_mappings",
		"related_items":    "SELECT COUNT(*) FROM related_items",
		"mapping_feedback": "SELECT COUNT(*) FROM mapping_feedback",
	}
	counts := make(map[string]int, len(queries))
	for table, query := range queries {
		var n int
		if err := cm.storage.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			continue
		}
		counts[table] = n
	}
	return counts
}

// List returns all checkpoints, newest first.
func (cm *CheckpointManager) List(_ context.Context) ([]CheckpointInfo, error) {
	entries, err := os.ReadDir(cm.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoints directory: %w", err)
	}

	var out []CheckpointInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		// #nosec G304 - entries come from the checkpoints directory
		data, err := os.ReadFile(filepath.Join(cm.dir, entry.Name()))
		if err != nil {
			continue
		}
		var info CheckpointInfo
		if err := json.Unmarshal(data, &info); err != nil {
			slog.Debug("skipping unreadable checkpoint metadata", "file", entry.Name(), "error", err)
			continue
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a checkpoint and its metadata.
func (cm *CheckpointManager) Delete(_ context.Context, tag string) error {
	if err := validateTag(tag); err != nil {
		return err
	}

	dbPath := filepath.Join(cm.dir, tag+".db")
	if err := os.Remove(dbPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrCheckpointNotFound, tag)
		}
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	if err := os.Remove(filepath.Join(cm.dir, tag+".meta.json")); err != nil && !os.IsNotExist(err) {
		slog.Debug("failed to remove checkpoint metadata", "tag", tag, "error", err)
	}
	return nil
}

func (cm *CheckpointManager) pruneAuto(ctx context.Context) error {
	checkpoints, err := cm.List(ctx)
	if err != nil {
		return err
	}

	kept := 0
	for _, cp := range checkpoints {
		if !cp.IsAuto {
			continue
		}
		kept++
		if kept > maxAutoCheckpoints {
			if err := cm.Delete(ctx, cp.ID); err != nil {
				slog.Debug("failed to delete old auto-checkpoint", "checkpoint", cp.ID, "error", err)
			}
		}
	}
	return nil
}
