package catalog

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/katalog/internal/model"
	"github.com/Veraticus/katalog/internal/similarity"
)

// ClassificationIndex is the work-type taxonomy keyed by code. It is read-only
// once built.
type ClassificationIndex struct {
	nodes    map[string]*model.ClassificationNode
	targets  map[string]similarity.Target
	codes    []string
	topLevel []string
}

// BuildClassificationIndex indexes taxonomy records. A parent code that is
// missing or not a strict prefix of the child is replaced by the longest
// loaded ancestor prefix.
func BuildClassificationIndex(records []Record) *ClassificationIndex {
	idx := &ClassificationIndex{
		nodes:   make(map[string]*model.ClassificationNode, len(records)),
		targets: make(map[string]similarity.Target, len(records)),
	}

	for _, rec := range records {
		code := strings.TrimSpace(rec.Code)
		if code == "" {
			continue
		}
		if _, exists := idx.nodes[code]; exists {
			continue
		}
		idx.nodes[code] = &model.ClassificationNode{
			Code:        code,
			Name:        strings.TrimSpace(rec.Name),
			Description: strings.TrimSpace(rec.Description),
		}
		idx.codes = append(idx.codes, code)
	}
	sort.Strings(idx.codes)

	fixed := 0
	for _, rec := range records {
		code := strings.TrimSpace(rec.Code)
		node, ok := idx.nodes[code]
		if !ok || node.ParentCode != nil || len(code) == 1 {
			continue
		}

		parent := strings.TrimSpace(rec.ParentCode)
		if !idx.validParent(code, parent) {
			derived := idx.ancestorOf(code)
			if parent != "" && derived != parent {
				fixed++
			}
			parent = derived
		}
		if parent != "" {
			p := parent
			node.ParentCode = &p
		}
	}
	if fixed > 0 {
		slog.Debug("replaced invalid taxonomy parent codes", "count", fixed)
	}

	for _, code := range idx.codes {
		node := idx.nodes[code]
		idx.targets[code] = similarity.NewTarget(code, node.Name, node.Description)
		if node.IsTopLevel() {
			idx.topLevel = append(idx.topLevel, code)
		}
	}

	return idx
}

func (idx *ClassificationIndex) validParent(code, parent string) bool {
	if parent == "" || len(parent) >= len(code) || !strings.HasPrefix(code, parent) {
		return false
	}
	_, ok := idx.nodes[parent]
	return ok
}

func (idx *ClassificationIndex) ancestorOf(code string) string {
	for n := len(code) - 1; n >= 1; n-- {
		if _, ok := idx.nodes[code[:n]]; ok {
			return code[:n]
		}
	}
	return ""
}

// Taxonomy returns the index itself; it lets the index stand in wherever a
// taxonomy provider is expected.
func (idx *ClassificationIndex) Taxonomy() *ClassificationIndex {
	return idx
}

// Len returns the number of nodes.
func (idx *ClassificationIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.nodes)
}

// Node returns the node with the given code.
func (idx *ClassificationIndex) Node(code string) (model.ClassificationNode, bool) {
	if idx == nil {
		return model.ClassificationNode{}, false
	}
	node, ok := idx.nodes[code]
	if !ok {
		return model.ClassificationNode{}, false
	}
	return *node, true
}

// Target returns the prepared scoring target of a node.
func (idx *ClassificationIndex) Target(code string) similarity.Target {
	return idx.targets[code]
}

// TopLevel returns the codes of all top-level sections in code order.
func (idx *ClassificationIndex) TopLevel() []string {
	if idx == nil {
		return nil
	}
	return append([]string(nil), idx.topLevel...)
}

// Descendants returns the codes under code whose length lies within
// [minLen, maxLen]. A maxLen of zero means no upper bound.
func (idx *ClassificationIndex) Descendants(code string, minLen, maxLen int) []string {
	if idx == nil {
		return nil
	}
	start := sort.SearchStrings(idx.codes, code)
	var out []string
	for _, c := range idx.codes[start:] {
		if !strings.HasPrefix(c, code) {
			break
		}
		if c == code || len(c) < minLen || (maxLen > 0 && len(c) > maxLen) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Path returns the section path from the root down to code.
func (idx *ClassificationIndex) Path(code string) []model.SectionRef {
	if idx == nil {
		return nil
	}
	var path []model.SectionRef
	seen := make(map[string]bool)
	for current := code; current != "" && !seen[current]; {
		seen[current] = true
		node, ok := idx.nodes[current]
		if !ok {
			break
		}
		path = append(path, model.SectionRef{Code: node.Code, Name: node.Name})
		if node.ParentCode == nil {
			break
		}
		current = *node.ParentCode
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
