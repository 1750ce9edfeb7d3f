package index

import (
	"github.com/halcyon-data/docdex/internal/db"
	"github.com/halcyon-data/docdex/internal/domain/unit"
)

// buildIndex assembles the FT.CREATE definition for a content index.
// bounding_polygons is stored but excluded from the inverted index; the
// retrieval side reads it from the hash, it never filters on it.
func buildIndex(index string, vectorDim int, hnsw HNSWConfig) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:        indexName(index),
		StorageType: db.StorageHash,
		Prefixes:    []string{unitPrefix(index)},
		Fields: []db.IndexField{
			{Name: unit.FieldContentID, Type: db.IndexFieldTag},
			{Name: unit.FieldTextDocumentID, Type: db.IndexFieldTag},
			{Name: unit.FieldImageDocumentID, Type: db.IndexFieldTag},
			{Name: unit.FieldDocumentTitle, Type: db.IndexFieldText},
			{Name: unit.FieldContentText, Type: db.IndexFieldText},
			{
				Name:              unit.FieldContentEmbedding,
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         vectorDim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           hnsw.M,
				VectorEFConstruct: hnsw.EFConstruct,
			},
			{Name: unit.FieldContentPath, Type: db.IndexFieldTag},
			{Name: unit.FieldSourceFigureID, Type: db.IndexFieldTag},
			{Name: unit.FieldRelatedImagePath, Type: db.IndexFieldTag},
			{Name: unit.FieldPublishedDate, Type: db.IndexFieldTag},
			{Name: unit.FieldDocumentType, Type: db.IndexFieldTag},
			{Name: unit.FieldPageNumber, Type: db.IndexFieldNumeric},
			{Name: unit.FieldBoundingPolygons, Type: db.IndexFieldTag, NoIndex: true},
		},
	}
}
