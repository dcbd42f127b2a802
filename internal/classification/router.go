// Package classification routes work-item descriptions to sections of the
// work-type taxonomy.
package classification

import (
	"log/slog"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Veraticus/katalog/internal/catalog"
	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/similarity"
)

// TaxonomySource supplies the classification index.
type TaxonomySource interface {
	Taxonomy() *catalog.ClassificationIndex
}

// Options tunes the two-level descent.
type Options struct {
	// TopLevelFloor is the score a top-level section needs before the text
	// is considered to resemble any category at all.
	TopLevelFloor float64
	// SubcategoryFloor is the score a subcategory must exceed to be chosen.
	SubcategoryFloor  float64
	MinSubcategoryLen int
	MaxSubcategoryLen int
	// LeafMinLen is the shortest code considered for the best item.
	LeafMinLen   int
	Alternatives int
	// MemoSize bounds the number of memoized classifications; zero disables it.
	MemoSize int
}

// DefaultOptions returns the standard routing options.
func DefaultOptions() Options {
	return Options{
		TopLevelFloor:     0.1,
		SubcategoryFloor:  0.2,
		MinSubcategoryLen: 2,
		MaxSubcategoryLen: 4,
		LeafMinLen:        3,
		Alternatives:      2,
		MemoSize:          4096,
	}
}

// Router classifies descriptions into taxonomy sections. It is safe for
// concurrent use.
type Router struct {
	source TaxonomySource
	scorer *similarity.Scorer
	memo   *lru.Cache[string, *model.ClassificationResult]
	opts   Options
}

// NewRouter creates a router over the taxonomy supplied by source.
func NewRouter(source TaxonomySource, scorer *similarity.Scorer, opts Options) *Router {
	if scorer == nil {
		scorer = similarity.NewScorer(similarity.DefaultWeights())
	}
	r := &Router{
		source: source,
		scorer: scorer,
		opts:   opts,
	}
	if opts.MemoSize > 0 {
		memo, err := lru.New[string, *model.ClassificationResult](opts.MemoSize)
		if err != nil {
			slog.Warn("classification memo disabled", "error", err)
		} else {
			r.memo = memo
		}
	}
	return r
}

// ClassifyToSection routes normalized text to a taxonomy section. It returns
// nil when the text does not resemble any top-level category.
func (r *Router) ClassifyToSection(text string) *model.ClassificationResult {
	q := similarity.NewQuery(text)
	if q.Empty() {
		return nil
	}

	if r.memo != nil {
		if cached, ok := r.memo.Get(q.Text); ok {
			return clone(cached)
		}
	}

	result := r.classify(q)
	if r.memo != nil {
		r.memo.Add(q.Text, result)
	}
	return clone(result)
}

func (r *Router) classify(q similarity.Query) *model.ClassificationResult {
	idx := r.source.Taxonomy()
	if idx.Len() == 0 {
		return nil
	}

	top := r.rank(idx, q, idx.TopLevel(), 0)
	if len(top) == 0 || top[0].Score < r.opts.TopLevelFloor {
		return nil
	}
	main := top[0]

	result := &model.ClassificationResult{
		MainCategory: &main,
		SectionCode:  main.Node.Code,
		SectionName:  main.Node.Name,
		Confidence:   main.Score,
	}

	for _, alt := range top[1:] {
		if len(result.AlternativeCategories) >= r.opts.Alternatives {
			break
		}
		if alt.Score < r.opts.TopLevelFloor {
			break
		}
		result.AlternativeCategories = append(result.AlternativeCategories, alt)
	}

	subs := idx.Descendants(main.Node.Code, r.opts.MinSubcategoryLen, r.opts.MaxSubcategoryLen)
	if ranked := r.rank(idx, q, subs, r.opts.SubcategoryFloor); len(ranked) > 0 {
		result.SectionCode = ranked[0].Node.Code
		result.SectionName = ranked[0].Node.Name
		result.Confidence = ranked[0].Score
	}

	leaves := idx.Descendants(main.Node.Code, r.opts.LeafMinLen, 0)
	if ranked := r.rank(idx, q, leaves, 0); len(ranked) > 0 {
		best := ranked[0]
		result.BestItem = &best
	}

	result.SectionPath = idx.Path(result.SectionCode)
	return result
}

// rank scores codes and returns those scoring above floor, best first.
// With a zero floor every positive score is kept.
func (r *Router) rank(idx *catalog.ClassificationIndex, q similarity.Query, codes []string, floor float64) []model.ScoredNode {
	scored := make([]model.ScoredNode, 0, len(codes))
	for _, code := range codes {
		node, ok := idx.Node(code)
		if !ok {
			continue
		}
		score := r.scorer.Score(q, idx.Target(code))
		if score <= 0 || (floor > 0 && score <= floor) {
			continue
		}
		scored = append(scored, model.ScoredNode{Node: node, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Node.Code < scored[j].Node.Code
	})
	return scored
}

func clone(r *model.ClassificationResult) *model.ClassificationResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.MainCategory != nil {
		main := *r.MainCategory
		out.MainCategory = &main
	}
	if r.BestItem != nil {
		best := *r.BestItem
		out.BestItem = &best
	}
	out.SectionPath = append([]model.SectionRef(nil), r.SectionPath...)
	out.AlternativeCategories = append([]model.ScoredNode(nil), r.AlternativeCategories...)
	return &out
}
