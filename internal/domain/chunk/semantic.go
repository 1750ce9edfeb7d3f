package chunk

import (
	"strings"

	"github.com/halcyon-data/docdex/internal/domain/layout"
)

// GroupCharLimit caps paragraph_group accumulation. The check happens before
// appending, so a group may exceed the limit by at most one paragraph.
const GroupCharLimit = 1500

// SplitParagraphs converts the analyzed paragraph stream into semantic chunks.
//
// Page furniture (headers, footers, page numbers) and blank paragraphs are
// dropped. Titles and section headings close any open body group and emit a
// standalone chunk; footnotes and formulas emit standalone without disturbing
// the open group. Remaining body paragraphs accumulate into per-page groups
// joined by blank lines. Every kept paragraph lands in exactly one chunk, and
// no group ever mixes pages.
func SplitParagraphs(paragraphs []layout.Paragraph) []Chunk {
	var chunks []Chunk
	var group *bodyGroup

	flush := func() {
		if group != nil {
			chunks = append(chunks, group.chunk())
			group = nil
		}
	}

	for _, p := range paragraphs {
		text := strings.TrimSpace(p.Content)
		if text == "" || p.Role.Furniture() {
			continue
		}

		switch {
		case p.Role.Heading():
			flush()
			chunks = append(chunks, standalone(p, text))

		case p.Role == layout.RoleFootnote || p.Role == layout.RoleFormula:
			chunks = append(chunks, standalone(p, text))

		default:
			page := p.Page()
			if group != nil && (group.page != page || len(group.text) >= GroupCharLimit) {
				flush()
			}
			if group == nil {
				group = &bodyGroup{page: page}
			}
			group.add(text, p.Regions)
		}
	}

	flush()
	return chunks
}

func standalone(p layout.Paragraph, text string) Chunk {
	return Chunk{
		Text:     text,
		Type:     roleElement(p.Role),
		Page:     p.Page(),
		Polygons: polygonsOf(p.Regions),
	}
}

// bodyGroup accumulates adjacent body paragraphs from a single page.
type bodyGroup struct {
	page     int
	text     string
	polygons []layout.Polygon
}

func (g *bodyGroup) add(text string, regions []layout.Region) {
	if g.text == "" {
		g.text = text
	} else {
		g.text += "\n\n" + text
	}
	for _, r := range regions {
		g.polygons = append(g.polygons, r.Polygon)
	}
}

func (g *bodyGroup) chunk() Chunk {
	return Chunk{
		Text:     g.text,
		Type:     ElementTypeParagraphGroup,
		Page:     g.page,
		Polygons: g.polygons,
	}
}
