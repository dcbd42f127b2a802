package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/katalog/internal/learning"
	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/storage"
)

type fakeReviewer struct {
	err      error
	accepted []string
	rejected []string
	mu       sync.Mutex
}

func (f *fakeReviewer) Accept(_ context.Context, _ *model.MatchResult, c model.MatchCandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.accepted = append(f.accepted, c.Code)
	return nil
}

func (f *fakeReviewer) Reject(_ context.Context, _ *model.MatchResult, c model.MatchCandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rejected = append(f.rejected, c.Code)
	return nil
}

func results() []*model.MatchResult {
	return []*model.MatchResult{
		{Query: "Bednění pro základové pasy", NormalizedQuery: "bednění pro základové pasy", Candidates: []model.MatchCandidate{
			{Code: "274351121", Name: "Bednění základových pasů zřízení", Confidence: 0.7},
			{Code: "801171321", Name: "Bednění základů", Confidence: 0.6},
		}},
		{Query: "Zdivo z cihel", NormalizedQuery: "zdivo z cihel", Candidates: []model.MatchCandidate{
			{Code: "311231115", Name: "Zdivo nosné z cihel", Confidence: 0.8},
		}},
		{Query: "qqqq", NormalizedQuery: "qqqq"},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and feeds the resulting reviewer message back in.
func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m, nil
	}
	out := cmd()
	if dm, ok := out.(decisionMsg); ok {
		next, cmd = m.Update(dm)
		return next.(Model), cmd
	}
	return m, cmd
}

func TestModel_ReviewFlow(t *testing.T) {
	reviewer := &fakeReviewer{}
	m := NewModel(context.Background(), results(), reviewer)
	assert.Contains(t, m.View(), "[1/3] Bednění pro základové pasy")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, runes("a"))
	assert.Equal(t, []string{"801171321"}, reviewer.accepted)
	assert.Equal(t, 1, m.index)
	assert.Contains(t, m.View(), "accepted 801171321")

	m, _ = press(t, m, runes("r"))
	assert.Equal(t, []string{"311231115"}, reviewer.rejected)
	assert.Equal(t, 2, m.index)
	assert.Contains(t, m.View(), "No candidates")

	m, _ = press(t, m, runes("a"))
	assert.Equal(t, 2, m.index, "nothing to accept")
	assert.Contains(t, m.View(), "no candidate to accept")

	m, cmd := press(t, m, runes("s"))
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)

	decisions := m.Decisions()
	assert.Equal(t, Decision{Action: ActionAccept, Code: "801171321"}, decisions[0])
	assert.Equal(t, Decision{Action: ActionReject, Code: "311231115"}, decisions[1])
	assert.Equal(t, ActionSkip, decisions[2].Action)
	assert.Equal(t, Summary{Accepted: 1, Rejected: 1, Skipped: 1}, Summarize(decisions))
}

func TestModel_ReviewerErrorStays(t *testing.T) {
	reviewer := &fakeReviewer{err: errors.New("database is locked")}
	m := NewModel(context.Background(), results(), reviewer)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 0, m.index)
	assert.False(t, m.busy)
	assert.Contains(t, m.View(), "database is locked")
	assert.Equal(t, ActionNone, m.decisions[0].Action)
}

func TestModel_BackAndQuit(t *testing.T) {
	m := NewModel(context.Background(), results(), nil)

	m, _ = press(t, m, runes("s"))
	assert.Equal(t, 1, m.index)
	m, _ = press(t, m, runes("p"))
	assert.Equal(t, 0, m.index)
	assert.Contains(t, m.View(), "previously skipped")

	m, cmd := press(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
	assert.Equal(t, 2, Summarize(m.Decisions()).Pending)
}

func TestModel_Resize(t *testing.T) {
	m := NewModel(context.Background(), results(), nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	assert.Equal(t, 120, m.width)
	assert.NotEmpty(t, m.View())
}

func TestLearningReviewer(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	cache := learning.New(store, learning.DefaultConfig())
	pc := model.ProjectContext{BuildingType: "rodinný dům"}
	reviewer := LearningReviewer{Cache: cache, Context: pc}
	ctx := context.Background()
	res := results()[0]

	require.NoError(t, reviewer.Reject(ctx, res, res.Candidates[0]), "rejecting an unknown mapping is a no-op")

	require.NoError(t, reviewer.Accept(ctx, res, res.Candidates[1]))
	m, err := cache.Lookup(ctx, res.NormalizedQuery, pc)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "801171321", m.Code)
	assert.True(t, m.ValidatedByUser)

	require.NoError(t, reviewer.Reject(ctx, res, res.Candidates[1]))
	m, err = cache.Lookup(ctx, res.NormalizedQuery, pc)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.False(t, m.ValidatedByUser)
}
