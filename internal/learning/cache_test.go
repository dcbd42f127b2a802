package learning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/storage"
)

func newTestCache(t *testing.T) (*Cache, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return New(store, DefaultConfig()), store
}

var residential = model.ProjectContext{ProjectType: "novostavba", BuildingType: "bytový dům", Storeys: 4}

func TestContextHash(t *testing.T) {
	assert.Equal(t, GlobalContext, ContextHash(model.ProjectContext{}))

	a := ContextHash(model.ProjectContext{BuildingType: "Bytový dům ", StructuralSystem: "zděný"})
	b := ContextHash(model.ProjectContext{BuildingType: "bytový dům", StructuralSystem: "ZDĚNÝ"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	assert.NotEqual(t, a, ContextHash(model.ProjectContext{BuildingType: "bytový dům"}))
	assert.NotEqual(t, ContextHash(residential), ContextHash(model.ProjectContext{ProjectType: "novostavba", BuildingType: "bytový dům", Storeys: 5}))
}

func TestCache_RoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, err := cache.Save(ctx, SaveRequest{
		Text:       "Bednění základů",
		Code:       "801171321",
		Name:       "Bednění základů",
		Unit:       "m2",
		Context:    residential,
		Confidence: 0.8,
	})
	require.NoError(t, err)

	m, err := cache.Lookup(ctx, "bednění základů", residential)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "801171321", m.Code)
	assert.GreaterOrEqual(t, m.UsageCount, 1)
	assert.False(t, m.ValidatedByUser)
}

func TestCache_LookupMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	m, err := cache.Lookup(context.Background(), "bednění základů", residential)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = cache.Lookup(context.Background(), "   ", residential)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestCache_LookupCountsUse(t *testing.T) {
	cache, store := newTestCache(t)
	ctx := context.Background()

	saved, err := cache.Save(ctx, SaveRequest{Text: "bednění základů", Code: "801171321", Confidence: 0.8})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := cache.Lookup(ctx, "bednění základů", model.ProjectContext{})
		require.NoError(t, err)
	}

	stored, err := store.GetMappingByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.UsageCount)
}

func TestCache_LooseFallbackNeedsValidation(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	other := model.ProjectContext{BuildingType: "hala"}

	_, err := cache.Save(ctx, SaveRequest{Text: "bednění základů", Code: "801171321", Context: other, Confidence: 0.9})
	require.NoError(t, err)

	m, err := cache.Lookup(ctx, "bednění základů", residential)
	require.NoError(t, err)
	assert.Nil(t, m, "unvalidated mappings stay in their own context")

	_, err = cache.Approve(ctx, "bednění základů", "801171321", other, "")
	require.NoError(t, err)

	m, err = cache.Lookup(ctx, "bednění základů", residential)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "801171321", m.Code)
	assert.Equal(t, ContextHash(other), m.ContextHash)
}

func TestCache_SaveUpserts(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	first, err := cache.Save(ctx, SaveRequest{Text: "bednění základů", Code: "801171321", Confidence: 0.7})
	require.NoError(t, err)
	second, err := cache.Save(ctx, SaveRequest{Text: "Bednění  základů", Code: "274351121", Confidence: 0.9})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "274351121", second.Code)
	assert.Equal(t, 2, second.UsageCount)
	assert.InDelta(t, 0.9, second.Confidence, 1e-9)
}

func TestCache_SaveValidation(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Save(context.Background(), SaveRequest{Text: "  ", Code: "801171321"})
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = cache.Save(context.Background(), SaveRequest{Text: "bednění", Code: ""})
	assert.ErrorIs(t, err, common.ErrUnknownCode)
}

func TestCache_ConfidenceClamps(t *testing.T) {
	cache, store := newTestCache(t)
	ctx := context.Background()

	saved, err := cache.Save(ctx, SaveRequest{Text: "bednění základů", Code: "801171321", Confidence: 0.9})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		m, err := cache.Approve(ctx, "bednění základů", "801171321", model.ProjectContext{}, "ok")
		require.NoError(t, err)
		assert.LessOrEqual(t, m.Confidence, 1.0)
		assert.True(t, m.ValidatedByUser)
	}

	for i := 0; i < 10; i++ {
		m, err := cache.Reject(ctx, "bednění základů", "801171321", model.ProjectContext{}, "špatně")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, m.Confidence, cache.Config().ConfidenceFloor)
	}

	stored, err := store.GetMappingByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.InDelta(t, cache.Config().ConfidenceFloor, stored.Confidence, 1e-9)
	assert.False(t, stored.ValidatedByUser)

	feedback, err := store.GetFeedback(ctx, saved.ID)
	require.NoError(t, err)
	assert.Len(t, feedback, 20)
}

func TestCache_SaveClampsToFloor(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	floor := cache.Config().ConfidenceFloor

	low, err := cache.Save(ctx, SaveRequest{Text: "hydroizolace spodní stavby", Code: "711111001", Confidence: 0.02})
	require.NoError(t, err)
	assert.InDelta(t, floor, low.Confidence, 1e-9)

	negative, err := cache.Save(ctx, SaveRequest{Text: "bednění stropů", Code: "411351011", Confidence: -1})
	require.NoError(t, err)
	assert.InDelta(t, floor, negative.Confidence, 1e-9)

	high, err := cache.Save(ctx, SaveRequest{Text: "výztuž stropů", Code: "411361821", Confidence: 1.7})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, high.Confidence, 1e-9)
}

func TestCache_FeedbackErrors(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, err := cache.Approve(ctx, "bednění základů", "801171321", model.ProjectContext{}, "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = cache.Save(ctx, SaveRequest{Text: "bednění základů", Code: "801171321", Confidence: 0.5})
	require.NoError(t, err)

	_, err = cache.Reject(ctx, "bednění základů", "999999999", model.ProjectContext{}, "")
	assert.ErrorIs(t, err, ErrCodeMismatch)
}

func TestCache_RelatedItems(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	m, err := cache.Save(ctx, SaveRequest{Text: "základové pasy z betonu", Code: "274313811", Confidence: 0.96})
	require.NoError(t, err)

	related := []model.RelatedItem{
		{Code: "274351121", Name: "Bednění základových pasů zřízení", Unit: "m2", ReasonText: "bednění"},
		{Code: "274361821", Name: "Výztuž základových pasů", Unit: "t", ReasonText: "výztuž"},
	}
	require.NoError(t, cache.RecordRelated(ctx, m.ID, related))
	require.NoError(t, cache.RecordRelated(ctx, m.ID, related[1:]))

	items, err := cache.GetRelatedItems(ctx, "274313811")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "274361821", items[0].Code)
	assert.Equal(t, 2, items[0].CoOccurrenceCount)
	assert.Equal(t, model.RelationshipCompanion, items[1].RelationshipType)
}

func TestCache_StaleAndPrune(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-120 * 24 * time.Hour)
	cache.now = func() time.Time { return past }
	_, err := cache.Save(ctx, SaveRequest{Text: "stará položka", Code: "131201101", Confidence: 0.7})
	require.NoError(t, err)

	cache.now = func() time.Time { return time.Now().UTC() }
	_, err = cache.Save(ctx, SaveRequest{Text: "nová položka", Code: "132201101", Confidence: 0.7})
	require.NoError(t, err)

	stale, err := cache.FindStale(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "131201101", stale[0].Code)

	n, err := cache.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = cache.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_ConcurrentSavesKeepEveryUse(t *testing.T) {
	cache, store := newTestCache(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Save(ctx, SaveRequest{Text: "bednění základů", Code: "801171321", Confidence: 0.8})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	mappings, err := store.GetMappingsByCode(ctx, "801171321")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, writers, mappings[0].UsageCount)
	assert.Zero(t, cache.locks.size())
}

func TestKeyedLocker_SerializesPerKey(t *testing.T) {
	locker := newKeyedLocker()

	var mu sync.Mutex
	active := map[string]int{}
	maxActive := map[string]int{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		k := []string{"a", "b"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock(k)
			mu.Lock()
			active[k]++
			if active[k] > maxActive[k] {
				maxActive[k] = active[k]
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active[k]--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive["a"])
	assert.Equal(t, 1, maxActive["b"])
	assert.Zero(t, locker.size())
}
