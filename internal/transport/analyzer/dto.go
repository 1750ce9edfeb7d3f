package analyzer

import "github.com/halcyon-data/docdex/internal/domain/layout"

// Wire types for the analyzer response. Polygons arrive as flat
// [x1, y1, x2, y2, ...] coordinate lists.
type analyzeResponse struct {
	ResultID   string         `json:"resultId"`
	Content    string         `json:"content"`
	Paragraphs []paragraphDTO `json:"paragraphs"`
	Figures    []figureDTO    `json:"figures"`
}

type paragraphDTO struct {
	Content         string      `json:"content"`
	Role            string      `json:"role"`
	BoundingRegions []regionDTO `json:"boundingRegions"`
}

type figureDTO struct {
	ID              string      `json:"id"`
	BoundingRegions []regionDTO `json:"boundingRegions"`
}

type regionDTO struct {
	PageNumber int       `json:"pageNumber"`
	Polygon    []float64 `json:"polygon"`
}

func (r analyzeResponse) toDomain() layout.Result {
	out := layout.Result{
		ResultID: r.ResultID,
		Content:  r.Content,
	}
	if len(r.Paragraphs) > 0 {
		out.Paragraphs = make([]layout.Paragraph, 0, len(r.Paragraphs))
		for _, p := range r.Paragraphs {
			out.Paragraphs = append(out.Paragraphs, layout.Paragraph{
				Content: p.Content,
				Role:    layout.Role(p.Role),
				Regions: toRegions(p.BoundingRegions),
			})
		}
	}
	if len(r.Figures) > 0 {
		out.Figures = make([]layout.Figure, 0, len(r.Figures))
		for _, f := range r.Figures {
			fig := layout.Figure{ID: f.ID, Page: 1}
			if len(f.BoundingRegions) > 0 {
				first := f.BoundingRegions[0]
				if first.PageNumber > 0 {
					fig.Page = first.PageNumber
				}
				fig.Polygon = toPolygon(first.Polygon)
			}
			out.Figures = append(out.Figures, fig)
		}
	}
	return out
}

func toRegions(dtos []regionDTO) []layout.Region {
	if len(dtos) == 0 {
		return nil
	}
	regions := make([]layout.Region, 0, len(dtos))
	for _, d := range dtos {
		regions = append(regions, layout.Region{
			PageNumber: d.PageNumber,
			Polygon:    toPolygon(d.Polygon),
		})
	}
	return regions
}

// toPolygon pairs up the flat coordinate list; a trailing odd value is dropped.
func toPolygon(coords []float64) layout.Polygon {
	if len(coords) < 2 {
		return nil
	}
	poly := make(layout.Polygon, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		poly = append(poly, layout.Point{X: coords[i], Y: coords[i+1]})
	}
	return poly
}
