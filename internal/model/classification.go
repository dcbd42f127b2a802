package model

// SectionRef is one step of a section path.
type SectionRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ScoredNode is a taxonomy node together with its match score.
type ScoredNode struct {
	Node  ClassificationNode `json:"node"`
	Score float64            `json:"score"`
}

// ClassificationResult is the taxonomy routing of a description.
type ClassificationResult struct {
	BestItem              *ScoredNode  `json:"best_item,omitempty"`
	MainCategory          *ScoredNode  `json:"main_category,omitempty"`
	SectionCode           string       `json:"section_code"`
	SectionName           string       `json:"section_name"`
	SectionPath           []SectionRef `json:"section_path"`
	AlternativeCategories []ScoredNode `json:"alternative_categories,omitempty"`
	Confidence            float64      `json:"confidence"`
}

// PathString renders the section path as a breadcrumb.
func (r *ClassificationResult) PathString() string {
	if r == nil {
		return ""
	}
	out := ""
	for i, ref := range r.SectionPath {
		if i > 0 {
			out += " > "
		}
		out += ref.Code + " " + ref.Name
	}
	return out
}
