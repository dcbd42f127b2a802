// Package model defines the core domain models used throughout the application.
package model

// CatalogItem is a single priced entry of the flat work-item catalog.
// Items are immutable once the catalog index has been built.
type CatalogItem struct {
	Price         *float64 `json:"price,omitempty"`
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Unit          string   `json:"unit"`
	SearchText    string   `json:"-"`
	SectionPrefix string   `json:"section_prefix"`
}

// ClassificationNode is a node of the work-type taxonomy. The length of the
// code encodes the depth of the node: one digit is a top-level section.
type ClassificationNode struct {
	ParentCode  *string `json:"parent_code,omitempty"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
}

// Level returns the depth of the node in the taxonomy.
func (n ClassificationNode) Level() int {
	return len(n.Code)
}

// IsTopLevel reports whether the node is a top-level section.
func (n ClassificationNode) IsTopLevel() bool {
	return len(n.Code) == 1
}
