// Package engine implements the matching pipeline that turns work-item
// descriptions into ranked catalog codes.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/katalog/internal/catalog"
	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/learning"
	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/normalize"
)

// Config holds configuration options for the matching pipeline.
type Config struct {
	Mode                model.MatchMode `mapstructure:"mode"`
	TopN                int             `mapstructure:"top_n"`
	MinConfidence       float64         `mapstructure:"min_confidence"`
	AutoAcceptThreshold float64         `mapstructure:"auto_accept_threshold"`
	CacheMinConfidence  float64         `mapstructure:"cache_min_confidence"`
	FallbackThreshold   float64         `mapstructure:"fallback_threshold"`
	ExternalTimeout     time.Duration   `mapstructure:"external_timeout"`
	Concurrency         int             `mapstructure:"concurrency"`
	ClassifyFirst       bool            `mapstructure:"classify_first"`
	AutoLearn           bool            `mapstructure:"auto_learn"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Mode:                model.ModeAuto,
		TopN:                5,
		MinConfidence:       0.3,
		AutoAcceptThreshold: 0.95,
		CacheMinConfidence:  0.5,
		FallbackThreshold:   0.5,
		ExternalTimeout:     10 * time.Second,
		Concurrency:         3,
		ClassifyFirst:       true,
		AutoLearn:           true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if !c.Mode.Valid() {
		c.Mode = d.Mode
	}
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	if c.MinConfidence < 0 {
		c.MinConfidence = 0
	}
	if c.AutoAcceptThreshold <= 0 {
		c.AutoAcceptThreshold = d.AutoAcceptThreshold
	}
	if c.FallbackThreshold <= 0 {
		c.FallbackThreshold = d.FallbackThreshold
	}
	if c.ExternalTimeout <= 0 {
		c.ExternalTimeout = d.ExternalTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	return c
}

// Engine orchestrates classification, catalog search, external fallback and
// the learned-mapping cache. It is safe for concurrent use.
type Engine struct {
	deps Dependencies
	cfg  Config
}

// New creates a new matching engine with the given dependencies.
func New(deps Dependencies, cfg Config) *Engine {
	return &Engine{deps: deps, cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// MatchSingle resolves one description to ranked catalog candidates. It never
// fails: cache and external search errors are logged and the match proceeds
// with what is left.
func (e *Engine) MatchSingle(ctx context.Context, req model.MatchRequest) *model.MatchResult {
	start := time.Now()
	res := &model.MatchResult{
		Query:      req.Text,
		Candidates: []model.MatchCandidate{},
	}
	defer func() { res.Elapsed = time.Since(start) }()

	normalized := normalize.Query(req.Text)
	res.NormalizedQuery = normalized
	if normalized == "" {
		res.NeedsExternalSearch = true
		return res
	}

	if m := e.lookupCache(ctx, req); m != nil {
		res.FromCache = true
		res.LearnedMapping = m
		res.Candidates = []model.MatchCandidate{m.Candidate()}
		return res
	}

	classifyFirst := e.cfg.ClassifyFirst
	if req.ClassifyFirst != nil {
		classifyFirst = *req.ClassifyFirst
	}
	if classifyFirst && e.deps.Router != nil {
		res.Classification = e.deps.Router.ClassifyToSection(normalized)
	}

	section := strings.TrimSpace(req.SectionHint)
	if section == "" && res.Classification != nil {
		section = res.Classification.SectionCode
	}

	mode := req.Mode
	if !mode.Valid() {
		mode = e.cfg.Mode
	}
	topN := req.TopN
	if topN <= 0 {
		topN = e.cfg.TopN
	}
	minConfidence := req.MinConfidence
	if minConfidence <= 0 {
		minConfidence = e.cfg.MinConfidence
	}

	var local []model.MatchCandidate
	if mode.IncludesLocal() && e.deps.Catalog != nil {
		opts := catalog.DefaultSearchOptions()
		opts.SectionPrefix = section
		opts.MinConfidence = minConfidence
		opts.Limit = max(opts.Limit, topN)
		local = e.deps.Catalog.Search(normalized, opts)
	}
	res.NeedsExternalSearch = len(local) == 0

	var external []model.MatchCandidate
	if e.wantsExternal(mode, local) {
		external = e.searchExternal(ctx, normalized)
	}

	candidates := Deduplicate(append(local, external...))
	candidates = filterByConfidence(candidates, minConfidence)
	catalog.SortCandidates(candidates)
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	res.Candidates = candidates

	e.autoLearn(ctx, req, res)

	slog.Debug("matched description",
		"query", normalized,
		"section", section,
		"mode", mode,
		"candidates", len(res.Candidates))
	return res
}

// lookupCache passes the raw request text; the cache derives its own key.
func (e *Engine) lookupCache(ctx context.Context, req model.MatchRequest) *model.LearnedMapping {
	if e.deps.Cache == nil || req.SkipCache {
		return nil
	}
	m, err := e.deps.Cache.Lookup(ctx, req.Text, req.Context)
	if err != nil {
		common.LogWarn(err, "learned mapping lookup failed, continuing without cache", common.Fields{
			"query": req.Text,
		})
		return nil
	}
	if m == nil || m.Confidence < e.cfg.CacheMinConfidence {
		return nil
	}
	return m
}

func (e *Engine) wantsExternal(mode model.MatchMode, local []model.MatchCandidate) bool {
	if e.deps.External == nil {
		return false
	}
	switch mode {
	case model.ModeExternal, model.ModeBoth:
		return true
	case model.ModeAuto:
		return len(local) == 0 || local[0].Confidence < e.cfg.FallbackThreshold
	default:
		return false
	}
}

func (e *Engine) searchExternal(ctx context.Context, normalized string) []model.MatchCandidate {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ExternalTimeout)
	defer cancel()

	results, err := e.deps.External.Search(ctx, normalized)
	if err != nil {
		common.LogWarn(err, "external search failed, using local candidates only", common.Fields{
			"query": normalized,
		})
		return nil
	}

	out := make([]model.MatchCandidate, 0, len(results))
	for _, r := range results {
		code := strings.TrimSpace(r.Code)
		if code == "" {
			continue
		}
		confidence := 0.5
		if r.Confidence != nil {
			confidence = *r.Confidence
		}
		reason := r.Reason
		if reason == "" {
			reason = "external search"
		}
		if r.URL != "" {
			reason += " (" + r.URL + ")"
		}
		out = append(out, model.MatchCandidate{
			Code:       code,
			Name:       r.Name,
			Unit:       r.Unit,
			Confidence: min(max(confidence, 0), 1),
			Source:     model.SourceExternalSearch,
			Reason:     reason,
		})
	}
	return out
}

func (e *Engine) autoLearn(ctx context.Context, req model.MatchRequest, res *model.MatchResult) {
	best := res.Best()
	if !e.cfg.AutoLearn || e.deps.Cache == nil || best == nil || res.FromCache {
		return
	}
	if best.Confidence < e.cfg.AutoAcceptThreshold {
		return
	}

	m, err := e.deps.Cache.Save(ctx, learning.SaveRequest{
		Context:    req.Context,
		Text:       req.Text,
		Code:       best.Code,
		Name:       best.Name,
		Unit:       best.Unit,
		Confidence: best.Confidence,
	})
	if err != nil {
		common.LogWarn(err, "failed to auto-learn mapping", common.Fields{"code": best.Code})
		return
	}
	res.LearnedMapping = m
}

// Deduplicate keeps one candidate per code, the one with the higher
// confidence. The first occurrence wins ties. Order of first appearance is
// preserved.
func Deduplicate(candidates []model.MatchCandidate) []model.MatchCandidate {
	index := make(map[string]int, len(candidates))
	out := make([]model.MatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if i, ok := index[c.Code]; ok {
			if c.Confidence > out[i].Confidence {
				out[i] = c
			}
			continue
		}
		index[c.Code] = len(out)
		out = append(out, c)
	}
	return out
}

func filterByConfidence(candidates []model.MatchCandidate, minConfidence float64) []model.MatchCandidate {
	out := candidates[:0]
	for _, c := range candidates {
		if c.Confidence >= minConfidence {
			out = append(out, c)
		}
	}
	return out
}

// ClassifyOnly routes text to a taxonomy section without searching the
// catalog. It returns nil when no router is configured or nothing matches.
func (e *Engine) ClassifyOnly(text string) *model.ClassificationResult {
	if e.deps.Router == nil {
		return nil
	}
	normalized := normalize.Query(text)
	if normalized == "" {
		return nil
	}
	return e.deps.Router.ClassifyToSection(normalized)
}

// ClassifyBatch classifies each text in order.
func (e *Engine) ClassifyBatch(texts []string) []*model.ClassificationResult {
	out := make([]*model.ClassificationResult, len(texts))
	for i, text := range texts {
		out[i] = e.ClassifyOnly(text)
	}
	return out
}

// Companions proposes companion items for accepted matches. When known is
// non-empty, only codes it contains are proposed.
func (e *Engine) Companions(confirmed []model.ConfirmedItem, known []string) []model.CompanionItem {
	if e.deps.Rules == nil || len(confirmed) == 0 {
		return nil
	}
	return e.deps.Rules.Apply(confirmed, known)
}
