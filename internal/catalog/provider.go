package catalog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/similarity"
)

// Provider owns the catalog and taxonomy indexes. Each index is built at most
// once, on first use; concurrent callers wait for the same build. A failed
// load leaves the index empty and is not retried.
type Provider struct {
	catalogSource  Source
	taxonomySource Source
	scorer         *similarity.Scorer

	catalog      *Index
	taxonomy     *ClassificationIndex
	catalogErr   error
	taxonomyErr  error
	catalogOnce  sync.Once
	taxonomyOnce sync.Once
	catalogDone  atomic.Bool
	taxonomyDone atomic.Bool
}

// NewProvider creates a provider. Either source may be nil, which yields an
// empty index.
func NewProvider(catalogSource, taxonomySource Source, scorer *similarity.Scorer) *Provider {
	if scorer == nil {
		scorer = similarity.NewScorer(similarity.DefaultWeights())
	}
	return &Provider{
		catalogSource:  catalogSource,
		taxonomySource: taxonomySource,
		scorer:         scorer,
	}
}

// Load builds both indexes now instead of on first use.
func (p *Provider) Load(ctx context.Context) {
	p.loadCatalog(ctx)
	p.loadTaxonomy(ctx)
}

func (p *Provider) loadCatalog(ctx context.Context) {
	p.catalogOnce.Do(func() {
		defer p.catalogDone.Store(true)
		start := time.Now()
		records, err := readSource(context.WithoutCancel(ctx), p.catalogSource)
		if err != nil {
			p.catalogErr = err
			slog.Error("failed to load catalog, continuing with an empty catalog", "error", err)
		}
		p.catalog = BuildIndex(records, p.scorer)
		slog.Info("catalog loaded", "items", p.catalog.Len(), "duration", time.Since(start))
	})
}

func (p *Provider) loadTaxonomy(ctx context.Context) {
	p.taxonomyOnce.Do(func() {
		defer p.taxonomyDone.Store(true)
		records, err := readSource(context.WithoutCancel(ctx), p.taxonomySource)
		if err != nil {
			p.taxonomyErr = err
			slog.Error("failed to load taxonomy, continuing with an empty taxonomy", "error", err)
		}
		p.taxonomy = BuildClassificationIndex(records)
		slog.Info("taxonomy loaded", "nodes", p.taxonomy.Len())
	})
}

func readSource(ctx context.Context, src Source) ([]Record, error) {
	if src == nil {
		return nil, nil
	}
	return src.Records(ctx)
}

// Catalog returns the catalog index, building it if needed.
func (p *Provider) Catalog() *Index {
	p.loadCatalog(context.Background())
	return p.catalog
}

// Taxonomy returns the classification index, building it if needed.
func (p *Provider) Taxonomy() *ClassificationIndex {
	p.loadTaxonomy(context.Background())
	return p.taxonomy
}

// Search searches the catalog.
func (p *Provider) Search(text string, opts SearchOptions) []model.MatchCandidate {
	return p.Catalog().Search(text, opts)
}

// Get returns a catalog item by code.
func (p *Provider) Get(code string) (*model.CatalogItem, bool) {
	return p.Catalog().Get(code)
}

// Has reports whether the catalog contains code.
func (p *Provider) Has(code string) bool {
	return p.Catalog().Has(code)
}

// Loaded reports whether both indexes have been built, successfully or not.
func (p *Provider) Loaded() bool {
	return p.catalogDone.Load() && p.taxonomyDone.Load()
}

// Err returns the load errors, if any. It does not trigger a load.
func (p *Provider) Err() (catalogErr, taxonomyErr error) {
	if p.catalogDone.Load() {
		catalogErr = p.catalogErr
	}
	if p.taxonomyDone.Load() {
		taxonomyErr = p.taxonomyErr
	}
	return catalogErr, taxonomyErr
}
