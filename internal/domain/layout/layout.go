// Package layout models the output of document layout analysis:
// paragraphs with semantic roles and bounding regions, plus detected figures.
package layout

import "strings"

// Role classifies a paragraph as reported by the layout analyzer.
// The zero value is plain body text.
type Role string

const (
	// RoleTitle is the document title.
	RoleTitle Role = "title"
	// RoleSectionHeading starts a new section.
	RoleSectionHeading Role = "sectionHeading"
	// RoleFootnote is a footnote.
	RoleFootnote Role = "footnote"
	// RoleFormula is a mathematical formula.
	RoleFormula Role = "formula"
	// RolePageHeader is a running page header.
	RolePageHeader Role = "pageHeader"
	// RolePageFooter is a running page footer.
	RolePageFooter Role = "pageFooter"
	// RolePageNumber is a page number marker.
	RolePageNumber Role = "pageNumber"
	// RoleBody is plain body text (analyzer default).
	RoleBody Role = ""
)

// Furniture reports whether the role is page furniture excluded from chunking.
func (r Role) Furniture() bool {
	return r == RolePageHeader || r == RolePageFooter || r == RolePageNumber
}

// Heading reports whether the role opens a new section of the document.
func (r Role) Heading() bool {
	return r == RoleTitle || r == RoleSectionHeading
}

// Standalone reports whether a paragraph with this role always forms its own chunk.
func (r Role) Standalone() bool {
	return r.Heading() || r == RoleFootnote || r == RoleFormula
}

// Point is a 2D coordinate on a page.
type Point struct {
	X float64
	Y float64
}

// Polygon is an ordered list of points outlining a page element.
type Polygon []Point

// Region is a bounding polygon anchored to a page.
type Region struct {
	PageNumber int
	Polygon    Polygon
}

// Paragraph is a unit of analyzed text with its role and page placement.
type Paragraph struct {
	Content string
	Role    Role
	Regions []Region
}

// Page returns the page of the paragraph's first bounding region, 1 when unknown.
func (p Paragraph) Page() int {
	if len(p.Regions) == 0 || p.Regions[0].PageNumber <= 0 {
		return 1
	}
	return p.Regions[0].PageNumber
}

// Figure is a visual element detected by the analyzer.
type Figure struct {
	ID      string
	Page    int
	Polygon Polygon
}

// Result is a complete layout analysis of one document.
type Result struct {
	// ResultID identifies the analysis on the analyzer side, used to fetch figure crops.
	ResultID   string
	Content    string // full document text in reading order
	Paragraphs []Paragraph
	Figures    []Figure
}

// Empty reports whether analysis produced no usable content.
func (r Result) Empty() bool {
	return len(r.Paragraphs) == 0 && strings.TrimSpace(r.Content) == ""
}

// Text returns the full document text, reconstructing it from paragraphs
// when the analyzer did not return assembled content.
func (r Result) Text() string {
	if strings.TrimSpace(r.Content) != "" {
		return r.Content
	}
	parts := make([]string, 0, len(r.Paragraphs))
	for _, p := range r.Paragraphs {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n")
}

// FiguresOnPage returns figures located on the given page, in analyzer order.
func (r Result) FiguresOnPage(page int) []Figure {
	var out []Figure
	for _, f := range r.Figures {
		if f.Page == page {
			out = append(out, f)
		}
	}
	return out
}

// PageCount returns the highest page number seen across paragraphs and figures.
func (r Result) PageCount() int {
	maxPage := 0
	for _, p := range r.Paragraphs {
		if pg := p.Page(); pg > maxPage {
			maxPage = pg
		}
	}
	for _, f := range r.Figures {
		if f.Page > maxPage {
			maxPage = f.Page
		}
	}
	return maxPage
}
