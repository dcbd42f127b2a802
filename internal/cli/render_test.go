package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/katalog/internal/model"
)

func TestRenderMatch(t *testing.T) {
	res := &model.MatchResult{
		Query:           "Bednění pro základové pasy",
		NormalizedQuery: "bednění pro základové pasy",
		Classification: &model.ClassificationResult{
			SectionCode: "27",
			SectionPath: []model.SectionRef{{Code: "2", Name: "Základy"}, {Code: "27", Name: "Základy"}},
			Confidence:  0.42,
		},
		Candidates: []model.MatchCandidate{
			{Code: "801171321", Name: "Bednění základů", Unit: "m2", Confidence: 0.62, Source: model.SourceLocalCatalog, Reason: "phrase 0.00, tokens 0.35"},
			{Code: "274351121", Name: "Bednění základových pasů zřízení", Unit: "m2", Confidence: 0.55, Source: model.SourceExternalSearch},
		},
		Elapsed: 1500 * time.Microsecond,
	}

	var out bytes.Buffer
	require.NoError(t, RenderMatch(&out, res))

	s := out.String()
	assert.Contains(t, s, "Bednění pro základové pasy")
	assert.Contains(t, s, "2 Základy > 27 Základy")
	assert.Contains(t, s, "801171321")
	assert.Contains(t, s, "274351121")
	assert.Contains(t, s, WebIcon)
	assert.Contains(t, s, "2 candidates")
	assert.Less(t, strings.Index(s, "801171321"), strings.Index(s, "274351121"))
}

func TestRenderMatch_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderMatch(&out, &model.MatchResult{Query: "qqqq", NeedsExternalSearch: true}))
	assert.Contains(t, out.String(), "No candidates found")
	assert.Contains(t, out.String(), "--mode external")
}

func TestRenderClassification_Nil(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderClassification(&out, "qqqq", nil))
	assert.Contains(t, out.String(), "does not resemble")
}

func TestRenderCompanions(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderCompanions(&out, []model.CompanionItem{
		{Code: "274351121", Name: "Bednění základových pasů zřízení", Unit: "m2", RuleID: "footing-concrete", SourceCode: "274313811"},
	}))
	assert.Contains(t, out.String(), "footing-concrete")
	assert.Contains(t, out.String(), "274313811")

	out.Reset()
	require.NoError(t, RenderCompanions(&out, nil))
	assert.Contains(t, out.String(), "No companion items")
}

func TestFormatConfidence(t *testing.T) {
	assert.Contains(t, FormatConfidence(0.95), "95%")
	assert.Contains(t, FormatConfidence(0.1), "10%")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "bednění", truncate("bednění", 10))
	assert.Equal(t, "bedn…", truncate("bednění základů", 5))
}

func TestReadDescriptions(t *testing.T) {
	input := "\ufeffBednění pro základové pasy\n\n# komentář\nZdivo z cihel\t31\n  \n"
	got, err := ReadDescriptions(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Bednění pro základové pasy", got[0].Text)
	assert.Equal(t, 1, got[0].Line)
	assert.Equal(t, "Zdivo z cihel", got[1].Text)
	assert.Equal(t, "31", got[1].SectionHint)
	assert.Equal(t, 4, got[1].Line)
}

func TestInterruptHandler(t *testing.T) {
	var out bytes.Buffer
	handler := NewInterruptHandler(&out)

	ctx, cancel := context.WithCancel(context.Background())
	ctx = handler.HandleInterrupts(ctx, true)
	cancel()
	<-ctx.Done()
	assert.False(t, handler.WasInterrupted(), "a canceled parent is not an interrupt")

	handler.interrupt()
	handler.interrupt()
	assert.True(t, handler.WasInterrupted())
	assert.Equal(t, 1, strings.Count(out.String(), "Matching interrupted!"))
	assert.Contains(t, out.String(), "still written")
}

func TestProgress(t *testing.T) {
	var out bytes.Buffer
	p := NewProgress(&out, 10, "Matching work items...")

	p.Update(3, 10)
	p.Update(2, 10)
	assert.Equal(t, 3, p.done, "progress never moves backwards")

	p.Update(10, 10)
	assert.Equal(t, 10, p.done)
	p.Finish()
	assert.Contains(t, out.String(), "10/10")
}
