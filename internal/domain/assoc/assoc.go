// Package assoc links text chunks to figures extracted from the same page.
//
// The heuristic is keyword presence plus same-page co-occurrence. No spatial
// scoring against bounding boxes is performed; a chunk that mentions a figure
// is linked to the first figure extracted on its page.
package assoc

import (
	"strings"

	"github.com/halcyon-data/docdex/internal/domain/layout"
)

// Figure is an extracted figure available for association: the analyzer's
// geometry plus the blob path of the persisted crop.
type Figure struct {
	ID       string
	Page     int
	Polygon  layout.Polygon
	BlobPath string
}

// Matching is plain substring search on the lowercased chunk text, so plural
// forms match their stem.
var figureKeywords = []string{
	"exhibit",
	"figure",
	"chart",
	"table",
	"diagram",
	"graph",
	"plot",
	"illustration",
	"image",
	"map",
	"as shown",
	"as illustrated",
	"as depicted",
	"pictured below",
}

// IsFigureRelated reports whether the text mentions any figure keyword.
func IsFigureRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range figureKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// FirstOnPage returns the first figure extracted on the given page.
func FirstOnPage(figures []Figure, page int) (Figure, bool) {
	for _, f := range figures {
		if f.Page == page {
			return f, true
		}
	}
	return Figure{}, false
}

// Match links chunk text on a page to a figure: the text must mention a
// figure keyword and at least one figure must exist on the same page.
func Match(text string, page int, figures []Figure) (Figure, bool) {
	if !IsFigureRelated(text) {
		return Figure{}, false
	}
	return FirstOnPage(figures, page)
}
