// Package chunk splits analyzed documents into indexable chunks, either by
// layout-aware semantic grouping or by fixed-size token windows.
package chunk

import (
	"fmt"
	"strings"

	"github.com/halcyon-data/docdex/internal/domain/layout"
)

// Strategy selects which chunker a run uses.
type Strategy string

const (
	// StrategyDocumentLayout groups paragraphs by their layout roles.
	StrategyDocumentLayout Strategy = "document_layout"
	// StrategyCustom cuts fixed-size token windows from the formatted text.
	StrategyCustom Strategy = "custom"
)

// ParseStrategy maps a raw strategy name onto the known set. Empty input
// defaults to document_layout.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StrategyDocumentLayout:
		return StrategyDocumentLayout, nil
	case StrategyCustom:
		return StrategyCustom, nil
	default:
		return "", fmt.Errorf("unknown chunking strategy %q", raw)
	}
}

// ElementType labels what a chunk represents in the source document.
type ElementType string

const (
	// ElementTypeTitle is a document title chunk.
	ElementTypeTitle ElementType = "title"
	// ElementTypeSectionHeading is a section heading chunk.
	ElementTypeSectionHeading ElementType = "section_heading"
	// ElementTypeFootnote is a footnote chunk.
	ElementTypeFootnote ElementType = "footnote"
	// ElementTypeFormula is a formula chunk.
	ElementTypeFormula ElementType = "formula"
	// ElementTypeParagraphGroup is a group of adjacent same-page body paragraphs.
	ElementTypeParagraphGroup ElementType = "paragraph_group"
	// ElementTypeText is a token-window chunk with no layout role.
	ElementTypeText ElementType = "text"
)

// Chunk is a slice of document text ready for embedding and indexing.
type Chunk struct {
	Text     string
	Type     ElementType
	Page     int
	Polygons []layout.Polygon
}

func roleElement(r layout.Role) ElementType {
	switch r {
	case layout.RoleTitle:
		return ElementTypeTitle
	case layout.RoleSectionHeading:
		return ElementTypeSectionHeading
	case layout.RoleFootnote:
		return ElementTypeFootnote
	case layout.RoleFormula:
		return ElementTypeFormula
	default:
		return ElementTypeParagraphGroup
	}
}

func polygonsOf(regions []layout.Region) []layout.Polygon {
	if len(regions) == 0 {
		return nil
	}
	polys := make([]layout.Polygon, 0, len(regions))
	for _, r := range regions {
		polys = append(polys, r.Polygon)
	}
	return polys
}
