package catalog

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/normalize"
	"github.com/Veraticus/katalog/internal/similarity"
)

// maxCodePrefix is the longest code prefix kept in the category filter map.
const maxCodePrefix = 4

// sectionPrefixLength is the code prefix stored on items as their section.
const sectionPrefixLength = 3

// SearchOptions controls a catalog search.
type SearchOptions struct {
	SectionPrefix string
	Limit         int
	MinConfidence float64
}

// DefaultSearchOptions returns the standard search settings.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit:         20,
		MinConfidence: 0.3,
	}
}

type codeSet map[string]struct{}

func (s codeSet) add(code string) {
	s[code] = struct{}{}
}

// Index is the searchable price catalog. It is read-only once built and safe
// for concurrent use.
type Index struct {
	items      map[string]*model.CatalogItem
	targets    map[string]similarity.Target
	codesLower map[string]string
	byPrefix   map[string]codeSet
	byWord     map[string]codeSet
	scorer     *similarity.Scorer
	codes      []string
}

// BuildIndex indexes catalog records. The first record wins when a code repeats.
func BuildIndex(records []Record, scorer *similarity.Scorer) *Index {
	if scorer == nil {
		scorer = similarity.NewScorer(similarity.DefaultWeights())
	}

	idx := &Index{
		items:      make(map[string]*model.CatalogItem, len(records)),
		targets:    make(map[string]similarity.Target, len(records)),
		codesLower: make(map[string]string, len(records)),
		byPrefix:   make(map[string]codeSet),
		byWord:     make(map[string]codeSet),
		scorer:     scorer,
		codes:      make([]string, 0, len(records)),
	}

	duplicates := 0
	for _, rec := range records {
		code := strings.TrimSpace(rec.Code)
		if code == "" {
			continue
		}
		if _, exists := idx.items[code]; exists {
			duplicates++
			continue
		}

		item := &model.CatalogItem{
			Code:          code,
			Name:          strings.TrimSpace(rec.Name),
			Unit:          strings.TrimSpace(rec.Unit),
			Price:         rec.Price,
			SearchText:    strings.ToLower(code + " " + strings.TrimSpace(rec.Name)),
			SectionPrefix: prefix(code, sectionPrefixLength),
		}
		idx.items[code] = item
		idx.targets[code] = similarity.NewTarget(code, item.Name, "")
		idx.codesLower[strings.ToLower(code)] = code
		idx.codes = append(idx.codes, code)

		for n := 1; n <= min(maxCodePrefix, len(code)); n++ {
			idx.addTo(idx.byPrefix, code[:n], code)
		}
		for _, token := range normalize.Tokenize(item.Name) {
			idx.addTo(idx.byWord, normalize.Prefix(token), code)
		}
	}

	if duplicates > 0 {
		slog.Debug("skipped duplicate catalog codes", "count", duplicates)
	}

	return idx
}

func (idx *Index) addTo(m map[string]codeSet, key, code string) {
	set, ok := m[key]
	if !ok {
		set = make(codeSet)
		m[key] = set
	}
	set.add(code)
}

// Len returns the number of indexed items.
func (idx *Index) Len() int {
	return len(idx.items)
}

// Get returns the item with the given code.
func (idx *Index) Get(code string) (*model.CatalogItem, bool) {
	item, ok := idx.items[code]
	if !ok {
		if canonical, found := idx.codesLower[strings.ToLower(code)]; found {
			item, ok = idx.items[canonical]
		}
	}
	if !ok {
		return nil, false
	}
	cp := *item
	return &cp, true
}

// Has reports whether the code exists in the catalog.
func (idx *Index) Has(code string) bool {
	_, ok := idx.items[code]
	return ok
}

// Codes returns all codes in load order.
func (idx *Index) Codes() []string {
	return append([]string(nil), idx.codes...)
}

// CodesWithPrefix returns all codes starting with prefix.
func (idx *Index) CodesWithPrefix(p string) []string {
	set := idx.codesUnder(p)
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func (idx *Index) codesUnder(p string) codeSet {
	if p == "" {
		return nil
	}
	if len(p) <= maxCodePrefix {
		return idx.byPrefix[p]
	}
	out := make(codeSet)
	for code := range idx.byPrefix[p[:maxCodePrefix]] {
		if strings.HasPrefix(code, p) {
			out.add(code)
		}
	}
	return out
}

// Search scores catalog items against the text and returns the best ones,
// highest confidence first.
func (idx *Index) Search(text string, opts SearchOptions) []model.MatchCandidate {
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchOptions().Limit
	}
	if idx == nil || len(idx.items) == 0 {
		return nil
	}

	q := similarity.NewQuery(text)
	if q.Empty() {
		return nil
	}

	candidates := make(codeSet)
	for _, token := range q.Tokens {
		for code := range idx.byWord[normalize.Prefix(token)] {
			candidates.add(code)
		}
	}
	for _, w := range q.Words {
		if code, ok := idx.codesLower[w]; ok {
			candidates.add(code)
		}
	}
	if code, ok := idx.codesLower[q.Text]; ok {
		candidates.add(code)
	}
	// Section-scoped items are considered even without lexical overlap.
	for code := range idx.codesUnder(opts.SectionPrefix) {
		candidates.add(code)
	}

	if len(candidates) == 0 {
		if opts.SectionPrefix != "" {
			candidates = idx.codesUnder(opts.SectionPrefix)
		} else {
			for _, code := range idx.codes {
				candidates.add(code)
			}
		}
	}

	results := make([]model.MatchCandidate, 0, min(len(candidates), opts.Limit*2))
	for code := range candidates {
		b := idx.scorer.Breakdown(q, idx.targets[code])
		if b.Total <= 0 || b.Total < opts.MinConfidence {
			continue
		}
		item := idx.items[code]
		results = append(results, model.MatchCandidate{
			Code:       item.Code,
			Name:       item.Name,
			Unit:       item.Unit,
			Price:      item.Price,
			Confidence: b.Total,
			Source:     model.SourceLocalCatalog,
			Reason:     b.Reason(),
		})
	}

	SortCandidates(results)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// SortCandidates orders candidates by confidence, highest first, breaking
// ties by code so results are deterministic.
func SortCandidates(c []model.MatchCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Confidence != c[j].Confidence {
			return c[i].Confidence > c[j].Confidence
		}
		return c[i].Code < c[j].Code
	})
}

func prefix(code string, n int) string {
	if len(code) <= n {
		return code
	}
	return code[:n]
}
