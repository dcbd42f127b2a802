package engine

import (
	"context"

	"github.com/Veraticus/katalog/internal/catalog"
	"github.com/Veraticus/katalog/internal/learning"
	"github.com/Veraticus/katalog/internal/model"
)

// CatalogSearcher finds scored catalog candidates for normalized text.
type CatalogSearcher interface {
	Search(text string, opts catalog.SearchOptions) []model.MatchCandidate
}

// Classifier routes normalized text to a taxonomy section.
type Classifier interface {
	ClassifyToSection(text string) *model.ClassificationResult
}

// ExternalResult is a single hit returned by an external search backend.
// Confidence is nil when the backend does not score its results.
type ExternalResult struct {
	Confidence *float64
	Code       string
	Name       string
	Unit       string
	Reason     string
	URL        string
}

// ExternalSearcher is the fallback consulted when the local catalog is not
// enough. It is the only network-bound step of a match.
type ExternalSearcher interface {
	Search(ctx context.Context, text string) ([]ExternalResult, error)
}

// MappingCache remembers confirmed and auto-accepted matches.
type MappingCache interface {
	Lookup(ctx context.Context, text string, pc model.ProjectContext) (*model.LearnedMapping, error)
	Save(ctx context.Context, req learning.SaveRequest) (*model.LearnedMapping, error)
}

// CompanionRules proposes items implied by confirmed items.
type CompanionRules interface {
	Apply(confirmed []model.ConfirmedItem, knownCodes []string) []model.CompanionItem
}

// Dependencies are the collaborators of the engine. Any of them may be nil;
// the engine then skips the corresponding step.
type Dependencies struct {
	Catalog  CatalogSearcher
	Router   Classifier
	External ExternalSearcher
	Cache    MappingCache
	Rules    CompanionRules
}
