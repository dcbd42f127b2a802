package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/config"
	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/testutil"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// setupWorkspace points the global settings at fixture files in a temporary
// directory.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	catalogPath := filepath.Join(dir, "catalog.json")
	taxonomyPath := filepath.Join(dir, "taxonomy.json")
	writeJSON(t, catalogPath, testutil.CatalogRecords())
	writeJSON(t, taxonomyPath, testutil.TaxonomyRecords())

	viper.Set("catalog.path", catalogPath)
	viper.Set("taxonomy.path", taxonomyPath)
	viper.Set("database.path", filepath.Join(dir, "katalog.db"))
	viper.Set("external.api_key", "")
	t.Cleanup(func() {
		viper.Reset()
		config.SetDefaults(viper.GetViper())
	})
	return dir
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMatchCommand_JSON(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, matchCmd(), "--json", "Bednění základů")
	require.NoError(t, err)

	var res model.MatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, testutil.CodeFoundationFormwork, res.Candidates[0].Code)
	assert.Equal(t, "bednění základů", res.NormalizedQuery)
	assert.False(t, res.FromCache)
}

func TestMatchCommand_Rendered(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, matchCmd(), "--mode", "local", "Zdivo z cihel")
	require.NoError(t, err)
	assert.Contains(t, out, testutil.CodeBrickMasonry)
	assert.Contains(t, out, "Zdivo z cihel")
}

func TestMatchCommand_InvalidFlags(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, matchCmd(), "--mode", "everywhere", "beton")
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = execute(t, matchCmd(), "--min-confidence", "2", "beton")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestMappingsCommands(t *testing.T) {
	setupWorkspace(t)
	const text = "Bednění pro základové pasy"

	out, err := execute(t, mappingsCmd(), "save", "--code", testutil.CodeStripFootingForms, "--building-type", "rodinný dům", text)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved")

	out, err = execute(t, mappingsCmd(), "lookup", "--json", "--building-type", "rodinný dům", text)
	require.NoError(t, err)
	var mappings []model.LearnedMapping
	require.NoError(t, json.Unmarshal([]byte(out), &mappings))
	require.Len(t, mappings, 1)
	assert.Equal(t, testutil.CodeStripFootingForms, mappings[0].Code)
	assert.Equal(t, "Bednění základových pasů zřízení", mappings[0].Name, "name is taken from the catalog")
	assert.True(t, mappings[0].ValidatedByUser)

	_, err = execute(t, mappingsCmd(), "approve", "--code", testutil.CodeSlabForms, "--building-type", "rodinný dům", text)
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.UserMessage, "different code")

	_, err = execute(t, mappingsCmd(), "approve", "--code", testutil.CodeStripFootingForms, text)
	require.ErrorAs(t, err, &userErr, "a validated mapping of another context is not approvable here")
	assert.ErrorIs(t, err, common.ErrNotFound)

	out, err = execute(t, mappingsCmd(), "approve", "--code", testutil.CodeStripFootingForms, "--building-type", "rodinný dům", "--comment", "ok", text)
	require.NoError(t, err)
	assert.Contains(t, out, "Approved")

	out, err = execute(t, mappingsCmd(), "history", mappings[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, string(model.FeedbackApprove))

	out, err = execute(t, matchCmd(), "--json", "--building-type", "rodinný dům", text)
	require.NoError(t, err)
	var res model.MatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.FromCache)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, testutil.CodeStripFootingForms, res.Candidates[0].Code)

	out, err = execute(t, mappingsCmd(), "list", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &mappings))
	assert.Len(t, mappings, 1)

	out, err = execute(t, mappingsCmd(), "stale")
	require.NoError(t, err)
	assert.Contains(t, out, "No stale mappings")
}

func TestBatchCommand_JSONLines(t *testing.T) {
	dir := setupWorkspace(t)

	input := filepath.Join(dir, "vykaz.txt")
	require.NoError(t, os.WriteFile(input, []byte("# výkaz výměr\nBednění základů\n\nZdivo z cihel\t31\nqqqq\n"), 0o600))

	out, err := execute(t, batchCmd(), "--json", "--no-progress", "--mode", "local", input)
	require.NoError(t, err)

	var results []model.MatchResult
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var res model.MatchResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &res))
		results = append(results, res)
	}
	require.Len(t, results, 3)
	assert.Equal(t, "Bednění základů", results[0].Query)
	assert.Equal(t, "Zdivo z cihel", results[1].Query)
	require.NotEmpty(t, results[1].Candidates)
	assert.Equal(t, testutil.CodeBrickMasonry, results[1].Candidates[0].Code)
	assert.Empty(t, results[2].Candidates)
}

func TestBatchCommand_Stdin(t *testing.T) {
	setupWorkspace(t)

	cmd := batchCmd()
	cmd.SetIn(strings.NewReader("Bednění základů\n"))
	out, err := execute(t, cmd, "--no-progress", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 1 items have candidates")
}

func TestBatchCommand_MissingFile(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, batchCmd(), "--no-progress", "/nonexistent/vykaz.txt")
	var userErr *common.UserError
	assert.ErrorAs(t, err, &userErr)
}

func TestClassifyCommand(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, classifyCmd(), "--json", "Základové pasy z betonu")
	require.NoError(t, err)

	var got classifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Základové pasy z betonu", got.Text)
	require.NotNil(t, got.Classification)
	assert.Equal(t, "2", got.Classification.SectionPath[0].Code)

	_, err = execute(t, classifyCmd())
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestCompanionsCommand(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, companionsCmd(), "--json", testutil.CodeStripFootingConcrete)
	require.NoError(t, err)

	var items []model.CompanionItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	codes := make([]string, 0, len(items))
	for _, item := range items {
		codes = append(codes, item.Code)
		assert.Equal(t, testutil.CodeStripFootingConcrete, item.SourceCode)
	}
	assert.Equal(t, []string{testutil.CodeStripFootingForms, testutil.CodeStripFootingRebar}, codes)

	_, err = execute(t, companionsCmd(), "999999999")
	assert.ErrorIs(t, err, common.ErrUnknownCode)
}

func TestCompanionsCommand_RecordsRelated(t *testing.T) {
	setupWorkspace(t)
	const text = "Základové pasy z betonu"

	_, err := execute(t, mappingsCmd(), "save", "--code", testutil.CodeStripFootingConcrete, text)
	require.NoError(t, err)
	out, err := execute(t, mappingsCmd(), "lookup", "--json", text)
	require.NoError(t, err)
	var mappings []model.LearnedMapping
	require.NoError(t, json.Unmarshal([]byte(out), &mappings))
	require.Len(t, mappings, 1)

	_, err = execute(t, companionsCmd(), "--mapping", mappings[0].ID, testutil.CodeStripFootingConcrete)
	require.NoError(t, err)

	out, err = execute(t, mappingsCmd(), "related", testutil.CodeStripFootingConcrete)
	require.NoError(t, err)
	assert.Contains(t, out, testutil.CodeStripFootingForms)
	assert.Contains(t, out, testutil.CodeStripFootingRebar)
}

func TestCheckpointCommands(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, checkpointCmd(), "create", "--tag", "pre-review", "--description", "before review")
	require.NoError(t, err)
	assert.Contains(t, out, "pre-review")

	out, err = execute(t, checkpointCmd(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "pre-review")
	assert.Contains(t, out, "manual")

	cmd := checkpointCmd()
	cmd.SetIn(strings.NewReader("n\n"))
	out, err = execute(t, cmd, "delete", "pre-review")
	require.NoError(t, err)
	assert.Contains(t, out, "Deletion cancelled")

	out, err = execute(t, checkpointCmd(), "delete", "--force", "pre-review")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted checkpoint")

	out, err = execute(t, checkpointCmd(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No checkpoints found")
}

func TestMigrateCommand(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, migrateCmd())
	require.NoError(t, err)
	_, err = execute(t, migrateCmd(), "--status")
	require.NoError(t, err)
}

func TestMatchRequest(t *testing.T) {
	cmd := matchCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--mode", "BOTH", "--top", "7", "--min-confidence", "0.45", "--no-classify", "--no-cache", "--storeys", "3",
	}))

	req, err := matchRequest(cmd, "beton", "27")
	require.NoError(t, err)
	assert.Equal(t, model.ModeBoth, req.Mode)
	assert.Equal(t, 7, req.TopN)
	assert.Equal(t, "27", req.SectionHint)
	require.NotNil(t, req.ClassifyFirst)
	assert.False(t, *req.ClassifyFirst)
	assert.True(t, req.SkipCache)
	assert.Equal(t, 3, req.Context.Storeys)
	assert.InDelta(t, 0.45, req.MinConfidence, 1e-9)
}

func TestMatchRequest_MinConfidence(t *testing.T) {
	t.Run("unset uses config", func(t *testing.T) {
		cmd := matchCmd()
		require.NoError(t, cmd.ParseFlags(nil))
		req, err := matchRequest(cmd, "beton", "")
		require.NoError(t, err)
		assert.Zero(t, req.MinConfidence)
	})

	for _, value := range []string{"0", "-0.5", "1.5"} {
		t.Run(value, func(t *testing.T) {
			cmd := matchCmd()
			require.NoError(t, cmd.ParseFlags([]string{"--min-confidence", value}))
			_, err := matchRequest(cmd, "beton", "")
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		expected string
		size     int64
	}{
		{size: 512, expected: "512 B"},
		{size: 2048, expected: "2.0 KB"},
		{size: 5 * 1024 * 1024, expected: "5.0 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFileSize(tt.size))
		})
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "just now", formatRelativeTime(now))
	assert.Equal(t, "1 minute ago", formatRelativeTime(now.Add(-90*time.Second)))
	assert.Equal(t, "5 hours ago", formatRelativeTime(now.Add(-5*time.Hour-time.Minute)))
	assert.Equal(t, "yesterday", formatRelativeTime(now.Add(-30*time.Hour)))
	assert.Equal(t, "3 days ago", formatRelativeTime(now.Add(-73*time.Hour)))

	old := now.Add(-30 * 24 * time.Hour)
	assert.Equal(t, old.Local().Format("2006-01-02 15:04"), formatRelativeTime(old))
}

func TestFeedbackError(t *testing.T) {
	err := feedbackError(common.ErrNotFound)
	var userErr *common.UserError
	require.True(t, errors.As(err, &userErr))
	assert.Contains(t, userErr.UserMessage, "No learned mapping")

	plain := errors.New("disk full")
	assert.Equal(t, plain, feedbackError(plain))
}
