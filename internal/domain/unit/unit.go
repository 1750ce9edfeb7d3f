// Package unit models the indexable content unit produced by the ingestion
// pipeline: one record per text chunk or extracted figure.
package unit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-data/docdex/internal/domain/chunk"
	"github.com/halcyon-data/docdex/internal/domain/docmeta"
	"github.com/halcyon-data/docdex/internal/domain/layout"
)

// Search store field identifiers. These names are the index schema contract;
// the reconciler rebuilds indexes against exactly this set.
const (
	FieldContentID        = "content_id"
	FieldTextDocumentID   = "text_document_id"
	FieldImageDocumentID  = "image_document_id"
	FieldDocumentTitle    = "document_title"
	FieldContentText      = "content_text"
	FieldContentEmbedding = "content_embedding"
	FieldContentPath      = "content_path"
	FieldSourceFigureID   = "source_figure_id"
	FieldRelatedImagePath = "related_image_path"
	FieldPublishedDate    = "published_date"
	FieldDocumentType     = "document_type"
	FieldPageNumber       = "page_number"
	FieldBoundingPolygons = "bounding_polygons"
)

// IndexFieldNames lists every field of the target schema.
func IndexFieldNames() []string {
	return []string{
		FieldContentID,
		FieldTextDocumentID,
		FieldImageDocumentID,
		FieldDocumentTitle,
		FieldContentText,
		FieldContentEmbedding,
		FieldContentPath,
		FieldSourceFigureID,
		FieldRelatedImagePath,
		FieldPublishedDate,
		FieldDocumentType,
		FieldPageNumber,
		FieldBoundingPolygons,
	}
}

// Location anchors a unit to a page and its bounding geometry.
type Location struct {
	PageNumber       int
	BoundingPolygons []layout.Polygon
}

// Unit is one indexable record (immutable value object).
// Exactly one of TextDocumentID/ImageDocumentID is set: that discriminates
// text chunks from figure descriptions at query time.
type Unit struct {
	contentID        string
	textDocumentID   string
	imageDocumentID  string
	documentTitle    string
	contentText      string
	embedding        []float32
	contentPath      string
	sourceFigureID   string
	relatedImagePath string
	publishedDate    time.Time
	documentType     docmeta.DocType
	location         Location
}

// Meta carries the document-level metadata shared by every unit of one run.
type Meta struct {
	DocumentTitle string
	PublishedDate time.Time
	DocumentType  docmeta.DocType
}

// NewText creates a unit for an embedded text chunk. contentPath is the
// synthetic anchor built by TextAnchor.
func NewText(meta Meta, text string, embedding []float32, contentPath string, loc Location) (Unit, error) {
	u := Unit{
		contentID:      uuid.NewString(),
		textDocumentID: uuid.NewString(),
		documentTitle:  meta.DocumentTitle,
		contentText:    text,
		embedding:      embedding,
		contentPath:    contentPath,
		publishedDate:  meta.PublishedDate,
		documentType:   meta.DocumentType,
		location:       normalizeLocation(loc),
	}
	if err := u.Validate(); err != nil {
		return Unit{}, err
	}
	return u, nil
}

// NewImage creates a unit for an extracted figure. description is the
// verbalized (or fallback) text, blobPath points at the persisted crop.
func NewImage(meta Meta, description string, embedding []float32, blobPath string, loc Location) (Unit, error) {
	u := Unit{
		contentID:        uuid.NewString(),
		imageDocumentID:  uuid.NewString(),
		documentTitle:    meta.DocumentTitle,
		contentText:      description,
		embedding:        embedding,
		contentPath:      blobPath,
		relatedImagePath: blobPath,
		publishedDate:    meta.PublishedDate,
		documentType:     meta.DocumentType,
		location:         normalizeLocation(loc),
	}
	if err := u.Validate(); err != nil {
		return Unit{}, err
	}
	return u, nil
}

// Reconstruct creates a Unit without validation (test fixtures, hydration).
func Reconstruct(
	contentID, textDocID, imageDocID, title, text string,
	embedding []float32,
	contentPath, sourceFigureID, relatedImagePath string,
	published time.Time, docType docmeta.DocType, loc Location,
) Unit {
	return Unit{
		contentID:        contentID,
		textDocumentID:   textDocID,
		imageDocumentID:  imageDocID,
		documentTitle:    title,
		contentText:      text,
		embedding:        embedding,
		contentPath:      contentPath,
		sourceFigureID:   sourceFigureID,
		relatedImagePath: relatedImagePath,
		publishedDate:    published,
		documentType:     docType,
		location:         loc,
	}
}

func normalizeLocation(loc Location) Location {
	if loc.PageNumber < 1 {
		loc.PageNumber = 1
	}
	return loc
}

// Validate checks the unit's structural invariants.
func (u Unit) Validate() error {
	if u.contentID == "" {
		return fmt.Errorf("content id is required")
	}
	hasText := u.textDocumentID != ""
	hasImage := u.imageDocumentID != ""
	if hasText == hasImage {
		return fmt.Errorf("exactly one of text/image document id must be set (text=%v image=%v)", hasText, hasImage)
	}
	if u.contentText == "" {
		return fmt.Errorf("content text is required")
	}
	return nil
}

// WithFigure returns a copy linked to a same-page figure.
func (u Unit) WithFigure(figureID, imagePath string) Unit {
	u.sourceFigureID = figureID
	u.relatedImagePath = imagePath
	return u
}

// ContentID returns the storage key.
func (u Unit) ContentID() string { return u.contentID }

// TextDocumentID returns the text discriminator ID ("" for image units).
func (u Unit) TextDocumentID() string { return u.textDocumentID }

// ImageDocumentID returns the image discriminator ID ("" for text units).
func (u Unit) ImageDocumentID() string { return u.imageDocumentID }

// IsImage reports whether the unit describes an extracted figure.
func (u Unit) IsImage() bool { return u.imageDocumentID != "" }

// DocumentTitle returns the source document title.
func (u Unit) DocumentTitle() string { return u.documentTitle }

// ContentText returns the chunk text or figure description.
func (u Unit) ContentText() string { return u.contentText }

// Embedding returns the content vector.
func (u Unit) Embedding() []float32 { return u.embedding }

// ContentPath returns the text anchor or figure blob path.
func (u Unit) ContentPath() string { return u.contentPath }

// SourceFigureID returns the associated figure ID, if any.
func (u Unit) SourceFigureID() string { return u.sourceFigureID }

// RelatedImagePath returns the associated figure's blob path, if any.
func (u Unit) RelatedImagePath() string { return u.relatedImagePath }

// PublishedDate returns the normalized publication instant (UTC).
func (u Unit) PublishedDate() time.Time { return u.publishedDate }

// DocumentType returns the normalized document category.
func (u Unit) DocumentType() docmeta.DocType { return u.documentType }

// Location returns the page anchor and bounding geometry.
func (u Unit) Location() Location { return u.location }

// Fields flattens the unit's scalar fields into store form. The embedding is
// deliberately excluded: its binary encoding belongs to the store adapter.
// Optional fields are omitted when empty.
func (u Unit) Fields() map[string]string {
	m := map[string]string{
		FieldContentID:        u.contentID,
		FieldDocumentTitle:    u.documentTitle,
		FieldContentText:      u.contentText,
		FieldPublishedDate:    u.publishedDate.UTC().Format(time.RFC3339),
		FieldDocumentType:     string(u.documentType),
		FieldPageNumber:       strconv.Itoa(u.location.PageNumber),
		FieldBoundingPolygons: EncodePolygons(u.location.BoundingPolygons),
	}
	if u.textDocumentID != "" {
		m[FieldTextDocumentID] = u.textDocumentID
	}
	if u.imageDocumentID != "" {
		m[FieldImageDocumentID] = u.imageDocumentID
	}
	if u.contentPath != "" {
		m[FieldContentPath] = u.contentPath
	}
	if u.sourceFigureID != "" {
		m[FieldSourceFigureID] = u.sourceFigureID
	}
	if u.relatedImagePath != "" {
		m[FieldRelatedImagePath] = u.relatedImagePath
	}
	return m
}

// Record is the projected, store-ready form of a Unit.
type Record struct {
	ID        string            // content id (storage key)
	Fields    map[string]string // scalar fields after schema projection
	Embedding []float32         // nil when the live schema lacks the vector field
}

// TextAnchor builds the synthetic content path for a text unit.
func TextAnchor(fileName string, page int, elem chunk.ElementType) string {
	return fmt.Sprintf("%s#page%d#%s", fileName, page, elem)
}

type pointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EncodePolygons serializes bounding polygons as a JSON array of {x,y} point
// lists. Always returns valid JSON; nil input encodes as "[]".
func EncodePolygons(polys []layout.Polygon) string {
	out := make([][]pointJSON, 0, len(polys))
	for _, poly := range polys {
		pts := make([]pointJSON, 0, len(poly))
		for _, p := range poly {
			pts = append(pts, pointJSON{X: p.X, Y: p.Y})
		}
		out = append(out, pts)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(data)
}
