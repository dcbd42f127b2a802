package model

import "time"

// ProjectContext describes the class of project a description belongs to.
// Only the fields that influence catalog choice take part in the context hash.
type ProjectContext struct {
	ProjectType      string `json:"project_type,omitempty" yaml:"project_type"`
	BuildingType     string `json:"building_type,omitempty" yaml:"building_type"`
	BuildingSystem   string `json:"building_system,omitempty" yaml:"building_system"`
	StructuralSystem string `json:"structural_system,omitempty" yaml:"structural_system"`
	Storeys          int    `json:"storeys,omitempty" yaml:"storeys"`
}

// IsZero reports whether no context attribute is set.
func (c ProjectContext) IsZero() bool {
	return c == ProjectContext{}
}

// LearnedMapping is a remembered (normalized text, context) to catalog code mapping.
type LearnedMapping struct {
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	LastUsedAt      time.Time `json:"last_used_at"`
	ID              string    `json:"id"`
	NormalizedText  string    `json:"normalized_text"`
	ContextHash     string    `json:"context_hash"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Unit            string    `json:"unit"`
	Confidence      float64   `json:"confidence"`
	UsageCount      int       `json:"usage_count"`
	ValidatedByUser bool      `json:"validated_by_user"`
}

// Candidate converts the mapping into a match candidate.
func (m *LearnedMapping) Candidate() MatchCandidate {
	reason := "learned mapping"
	if m.ValidatedByUser {
		reason = "learned mapping (confirmed by user)"
	}
	return MatchCandidate{
		Code:       m.Code,
		Name:       m.Name,
		Unit:       m.Unit,
		Confidence: m.Confidence,
		Source:     SourceLearnedMapping,
		Reason:     reason,
	}
}

// RelationshipType classifies how a related item is tied to its parent mapping.
type RelationshipType string

// Relationship type constants.
const (
	RelationshipCompanion RelationshipType = "companion"
	RelationshipManual    RelationshipType = "manual"
)

// RelatedItem is a catalog code that was confirmed together with a mapping.
type RelatedItem struct {
	CreatedAt         time.Time        `json:"created_at"`
	ParentMappingID   string           `json:"parent_mapping_id"`
	Code              string           `json:"code"`
	Name              string           `json:"name"`
	Unit              string           `json:"unit"`
	ReasonText        string           `json:"reason_text"`
	RelationshipType  RelationshipType `json:"relationship_type"`
	ID                int64            `json:"id"`
	CoOccurrenceCount int              `json:"co_occurrence_count"`
}

// FeedbackAction is a user decision on a learned mapping.
type FeedbackAction string

// Feedback action constants.
const (
	FeedbackApprove FeedbackAction = "APPROVE"
	FeedbackReject  FeedbackAction = "REJECT"
)

// MappingFeedback is an audit record of a user decision.
type MappingFeedback struct {
	CreatedAt time.Time      `json:"created_at"`
	MappingID string         `json:"mapping_id"`
	Code      string         `json:"code"`
	Action    FeedbackAction `json:"action"`
	Comment   string         `json:"comment"`
	ID        int64          `json:"id"`
}
