package model

import "time"

// CandidateSource indicates where a match candidate came from.
type CandidateSource string

// Candidate source constants.
const (
	SourceLocalCatalog   CandidateSource = "local_catalog"
	SourceExternalSearch CandidateSource = "external_search"
	SourceLearnedMapping CandidateSource = "learned_mapping"
)

// MatchCandidate is a scored catalog code proposed for a query.
type MatchCandidate struct {
	Price      *float64        `json:"price,omitempty"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Unit       string          `json:"unit"`
	Source     CandidateSource `json:"source"`
	Reason     string          `json:"reason"`
	Confidence float64         `json:"confidence"`
}

// MatchMode selects which candidate sources the pipeline consults.
type MatchMode string

// Match mode constants.
const (
	// ModeAuto searches the local catalog and falls back to external search
	// only when the local result is empty or weak.
	ModeAuto     MatchMode = "auto"
	ModeLocal    MatchMode = "local"
	ModeExternal MatchMode = "external"
	ModeBoth     MatchMode = "both"
)

// Valid reports whether the mode is known.
func (m MatchMode) Valid() bool {
	switch m {
	case ModeAuto, ModeLocal, ModeExternal, ModeBoth:
		return true
	}
	return false
}

// IncludesLocal reports whether the local catalog is consulted in this mode.
func (m MatchMode) IncludesLocal() bool {
	return m != ModeExternal
}

// MatchRequest is a single description to be resolved to catalog codes.
type MatchRequest struct {
	ClassifyFirst *bool          `json:"classify_first,omitempty"`
	Context       ProjectContext `json:"context"`
	Text          string         `json:"text"`
	SectionHint   string         `json:"section_hint,omitempty"`
	Mode          MatchMode      `json:"mode,omitempty"`
	TopN          int            `json:"top_n,omitempty"`
	MinConfidence float64        `json:"min_confidence,omitempty"`
	SkipCache     bool           `json:"skip_cache,omitempty"`
}

// MatchResult is the outcome of matching one request.
type MatchResult struct {
	Classification      *ClassificationResult `json:"classification,omitempty"`
	LearnedMapping      *LearnedMapping       `json:"learned_mapping,omitempty"`
	Query               string                `json:"query"`
	NormalizedQuery     string                `json:"normalized_query"`
	Candidates          []MatchCandidate      `json:"candidates"`
	Elapsed             time.Duration         `json:"elapsed"`
	NeedsExternalSearch bool                  `json:"needs_external_search"`
	FromCache           bool                  `json:"from_cache"`
}

// Best returns the highest ranked candidate, or nil when there is none.
func (r *MatchResult) Best() *MatchCandidate {
	if r == nil || len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}
