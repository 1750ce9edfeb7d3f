package index

import (
	"context"
	"errors"
	"testing"

	"github.com/halcyon-data/docdex/internal/db"
	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/domain/unit"
)

func TestGetSchema_ReturnsFieldSet(t *testing.T) {
	var gotName string
	s := &mockStore{
		infoFn: func(_ context.Context, name string) (*db.IndexInfo, error) {
			gotName = name
			return &db.IndexInfo{
				Name:   name,
				Fields: []string{"content_id", "content_text", "content_embedding"},
			}, nil
		},
	}

	fields, err := New(s).GetSchema(context.Background(), "reports")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName != "docdex:reports:idx" {
		t.Errorf("expected FT.INFO on docdex:reports:idx, got %s", gotName)
	}
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	for _, f := range []string{"content_id", "content_text", "content_embedding"} {
		if !fields[f] {
			t.Errorf("expected field %s in schema set", f)
		}
	}
}

func TestGetSchema_IndexNotFound(t *testing.T) {
	s := &mockStore{
		infoFn: func(_ context.Context, _ string) (*db.IndexInfo, error) {
			return nil, db.ErrIndexNotFound
		},
	}

	_, err := New(s).GetSchema(context.Background(), "reports")
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("expected domain.ErrIndexNotFound, got %v", err)
	}
}

func TestGetSchema_StoreError(t *testing.T) {
	s := &mockStore{
		infoFn: func(_ context.Context, _ string) (*db.IndexInfo, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, err := New(s).GetSchema(context.Background(), "reports")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrIndexNotFound) {
		t.Error("generic store error must not map to not-found")
	}
}

func TestCreateIndex_BuildsFullSchema(t *testing.T) {
	var gotDef *db.IndexDefinition
	s := &mockStore{
		createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
			gotDef = def
			return nil
		},
	}

	if err := New(s).CreateIndex(context.Background(), "reports", 1536); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDef == nil {
		t.Fatal("expected FT.CREATE call")
	}
	if gotDef.Name != "docdex:reports:idx" {
		t.Errorf("expected index name docdex:reports:idx, got %s", gotDef.Name)
	}
	if gotDef.StorageType != db.StorageHash {
		t.Errorf("expected HASH storage, got %s", gotDef.StorageType)
	}
	if len(gotDef.Prefixes) != 1 || gotDef.Prefixes[0] != "docdex:reports:unit:" {
		t.Errorf("expected prefix docdex:reports:unit:, got %v", gotDef.Prefixes)
	}

	want := unit.IndexFieldNames()
	if len(gotDef.Fields) != len(want) {
		t.Fatalf("expected %d schema fields, got %d", len(want), len(gotDef.Fields))
	}
	for i, f := range gotDef.Fields {
		if f.Name != want[i] {
			t.Errorf("field %d: expected %s, got %s", i, want[i], f.Name)
		}
	}

	if err := gotDef.Validate(); err != nil {
		t.Errorf("definition failed validation: %v", err)
	}
}

func TestCreateIndex_VectorField(t *testing.T) {
	var gotDef *db.IndexDefinition
	s := &mockStore{
		createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
			gotDef = def
			return nil
		},
	}

	repo := New(s).WithHNSW(HNSWConfig{M: 64, EFConstruct: 800})
	if err := repo.CreateIndex(context.Background(), "reports", 1536); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var vec *db.IndexField
	for i := range gotDef.Fields {
		if gotDef.Fields[i].Type == db.IndexFieldVector {
			vec = &gotDef.Fields[i]
			break
		}
	}
	if vec == nil {
		t.Fatal("expected a vector field in the schema")
	}
	if vec.Name != unit.FieldContentEmbedding {
		t.Errorf("expected vector field %s, got %s", unit.FieldContentEmbedding, vec.Name)
	}
	if vec.VectorAlgo != db.VectorHNSW || vec.VectorDistance != db.DistanceCosine {
		t.Errorf("expected HNSW/COSINE, got %s/%s", vec.VectorAlgo, vec.VectorDistance)
	}
	if vec.VectorDim != 1536 {
		t.Errorf("expected dim 1536, got %d", vec.VectorDim)
	}
	if vec.VectorM != 64 || vec.VectorEFConstruct != 800 {
		t.Errorf("expected HNSW overrides 64/800, got %d/%d", vec.VectorM, vec.VectorEFConstruct)
	}
}

func TestCreateIndex_PolygonsNotIndexed(t *testing.T) {
	var gotDef *db.IndexDefinition
	s := &mockStore{
		createIndexFn: func(_ context.Context, def *db.IndexDefinition) error {
			gotDef = def
			return nil
		},
	}

	if err := New(s).CreateIndex(context.Background(), "reports", 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range gotDef.Fields {
		if f.Name == unit.FieldBoundingPolygons {
			if !f.NoIndex {
				t.Error("expected bounding_polygons to be NOINDEX")
			}
			return
		}
	}
	t.Error("bounding_polygons missing from schema")
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	s := &mockStore{
		createIndexFn: func(_ context.Context, _ *db.IndexDefinition) error {
			return db.ErrIndexExists
		},
	}

	err := New(s).CreateIndex(context.Background(), "reports", 1536)
	if !errors.Is(err, domain.ErrIndexExists) {
		t.Errorf("expected domain.ErrIndexExists, got %v", err)
	}
}

func TestDeleteIndex_Success(t *testing.T) {
	var gotName string
	s := &mockStore{
		dropIndexFn: func(_ context.Context, name string) error {
			gotName = name
			return nil
		},
	}

	if err := New(s).DeleteIndex(context.Background(), "reports"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotName != "docdex:reports:idx" {
		t.Errorf("expected drop of docdex:reports:idx, got %s", gotName)
	}
}

func TestDeleteIndex_NotFound(t *testing.T) {
	s := &mockStore{
		dropIndexFn: func(_ context.Context, _ string) error {
			return db.ErrIndexNotFound
		},
	}

	err := New(s).DeleteIndex(context.Background(), "reports")
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("expected domain.ErrIndexNotFound, got %v", err)
	}
}

func TestUploadBatch_PipelinesHashes(t *testing.T) {
	var gotItems []db.HashSetItem
	s := &mockStore{
		hsetMultiFn: func(_ context.Context, items []db.HashSetItem) error {
			gotItems = items
			return nil
		},
	}

	records := []unit.Record{
		{
			ID:        "u1",
			Fields:    map[string]string{"content_id": "u1", "content_text": "alpha"},
			Embedding: []float32{1, 2},
		},
		{
			ID:     "u2",
			Fields: map[string]string{"content_id": "u2", "content_text": "beta"},
		},
	}

	if err := New(s).UploadBatch(context.Background(), "reports", records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotItems) != 2 {
		t.Fatalf("expected 2 pipelined hashes, got %d", len(gotItems))
	}

	if gotItems[0].Key != "docdex:reports:unit:u1" {
		t.Errorf("expected key docdex:reports:unit:u1, got %s", gotItems[0].Key)
	}
	if gotItems[0].Fields["content_text"] != "alpha" {
		t.Errorf("expected scalar fields copied, got %v", gotItems[0].Fields)
	}
	wantVec := string([]byte{0x00, 0x00, 0x80, 0x3F, 0x00, 0x00, 0x00, 0x40})
	if gotItems[0].Fields["content_embedding"] != wantVec {
		t.Errorf("expected little-endian float32 encoding, got %q", gotItems[0].Fields["content_embedding"])
	}

	if gotItems[1].Key != "docdex:reports:unit:u2" {
		t.Errorf("expected key docdex:reports:unit:u2, got %s", gotItems[1].Key)
	}
	if _, ok := gotItems[1].Fields["content_embedding"]; ok {
		t.Error("record without embedding must not carry the vector field")
	}
}

func TestUploadBatch_Empty(t *testing.T) {
	called := false
	s := &mockStore{
		hsetMultiFn: func(_ context.Context, _ []db.HashSetItem) error {
			called = true
			return nil
		},
	}

	if err := New(s).UploadBatch(context.Background(), "reports", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("empty batch must not hit the store")
	}
}

func TestUploadBatch_MissingID(t *testing.T) {
	s := &mockStore{}
	err := New(s).UploadBatch(context.Background(), "reports", []unit.Record{
		{Fields: map[string]string{"content_text": "orphan"}},
	})
	if err == nil {
		t.Error("expected error for record without content id")
	}
}

func TestUploadBatch_StoreError(t *testing.T) {
	s := &mockStore{
		hsetMultiFn: func(_ context.Context, _ []db.HashSetItem) error {
			return errors.New("pipeline failed")
		},
	}

	err := New(s).UploadBatch(context.Background(), "reports", []unit.Record{
		{ID: "u1", Fields: map[string]string{"content_id": "u1"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
