package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/katalog/internal/catalog"
	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/testutil"
)

func candidateCodes(candidates []model.MatchCandidate) []string {
	codes := make([]string, 0, len(candidates))
	for _, c := range candidates {
		codes = append(codes, c.Code)
	}
	return codes
}

func findCandidate(candidates []model.MatchCandidate, code string) *model.MatchCandidate {
	for i := range candidates {
		if candidates[i].Code == code {
			return &candidates[i]
		}
	}
	return nil
}

func TestBuildIndex(t *testing.T) {
	records := append(testutil.CatalogRecords(),
		catalog.Record{Code: testutil.CodeFoundationFormwork, Name: "Duplicate"},
		catalog.Record{Code: "  ", Name: "No code"},
	)
	idx := catalog.BuildIndex(records, nil)

	assert.Equal(t, len(testutil.CatalogRecords()), idx.Len())

	item, ok := idx.Get(testutil.CodeFoundationFormwork)
	require.True(t, ok)
	assert.Equal(t, "Bednění základů", item.Name, "first record wins")
	assert.Equal(t, "m2", item.Unit)
	assert.Equal(t, "801", item.SectionPrefix)
	assert.Equal(t, "801171321 bednění základů", item.SearchText)
	require.NotNil(t, item.Price)
	assert.InDelta(t, 412.5, *item.Price, 1e-9)

	_, ok = idx.Get("c25/30")
	assert.True(t, ok, "lookup is case-insensitive")

	_, ok = idx.Get("999999999")
	assert.False(t, ok)
}

func TestIndex_CodesWithPrefix(t *testing.T) {
	idx := catalog.BuildIndex(testutil.CatalogRecords(), nil)

	assert.Equal(t, []string{
		testutil.CodeStripFootingConcrete,
		testutil.CodeStripFootingForms,
		testutil.CodeStripFootingRebar,
	}, idx.CodesWithPrefix("274"))
	assert.Equal(t, []string{testutil.CodeStripFootingForms}, idx.CodesWithPrefix("2743511"))
	assert.Empty(t, idx.CodesWithPrefix(""))
	assert.Len(t, idx.Codes(), idx.Len())
}

func TestIndex_Search(t *testing.T) {
	idx := catalog.BuildIndex(testutil.CatalogRecords(), nil)

	t.Run("exact code wins regardless of other tokens", func(t *testing.T) {
		results := idx.Search("c25/30 beton", catalog.DefaultSearchOptions())
		require.NotEmpty(t, results)
		assert.Equal(t, "C25/30", results[0].Code)
		assert.Equal(t, 1.0, results[0].Confidence)
		assert.Equal(t, "exact code match", results[0].Reason)
		assert.Equal(t, model.SourceLocalCatalog, results[0].Source)
	})

	t.Run("inflected description finds formwork", func(t *testing.T) {
		results := idx.Search("bednění pro základové pasy", catalog.SearchOptions{Limit: 10, MinConfidence: 0.3})
		c := findCandidate(results, testutil.CodeFoundationFormwork)
		require.NotNil(t, c, "got %v", candidateCodes(results))
		assert.GreaterOrEqual(t, c.Confidence, 0.5)
	})

	t.Run("results are sorted and limited", func(t *testing.T) {
		results := idx.Search("bednění", catalog.SearchOptions{Limit: 2})
		require.Len(t, results, 2)
		assert.GreaterOrEqual(t, results[0].Confidence, results[1].Confidence)
	})

	t.Run("min confidence filters", func(t *testing.T) {
		for _, c := range idx.Search("hloubení jam", catalog.SearchOptions{Limit: 20, MinConfidence: 0.6}) {
			assert.GreaterOrEqual(t, c.Confidence, 0.6)
		}
	})

	t.Run("section prefix adds scoped items", func(t *testing.T) {
		results := idx.Search("výztuž", catalog.SearchOptions{SectionPrefix: "274", Limit: 20})
		codes := candidateCodes(results)
		assert.Contains(t, codes, testutil.CodeStripFootingRebar)
		assert.Contains(t, codes, testutil.CodeSlabRebar)
	})

	t.Run("empty query", func(t *testing.T) {
		assert.Empty(t, idx.Search("", catalog.DefaultSearchOptions()))
	})

	t.Run("noise yields nothing", func(t *testing.T) {
		assert.Empty(t, idx.Search("qqqq zzzz xxxx", catalog.DefaultSearchOptions()))
	})
}

func TestIndex_EmptyCatalog(t *testing.T) {
	idx := catalog.BuildIndex(nil, nil)
	assert.Zero(t, idx.Len())
	assert.Empty(t, idx.Search("bednění základů", catalog.DefaultSearchOptions()))
}

func TestSortCandidates(t *testing.T) {
	candidates := []model.MatchCandidate{
		{Code: "b", Confidence: 0.5},
		{Code: "c", Confidence: 0.9},
		{Code: "a", Confidence: 0.5},
	}
	catalog.SortCandidates(candidates)
	assert.Equal(t, []string{"c", "a", "b"}, candidateCodes(candidates))
}
