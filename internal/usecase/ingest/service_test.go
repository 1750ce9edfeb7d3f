package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/domain/assoc"
	"github.com/halcyon-data/docdex/internal/domain/chunk"
	"github.com/halcyon-data/docdex/internal/domain/docmeta"
	"github.com/halcyon-data/docdex/internal/domain/layout"
	"github.com/halcyon-data/docdex/internal/domain/unit"
)

var pdfBytes = []byte("%PDF-1.7\nstub")

type mockAnalyzer struct {
	result  layout.Result
	err     error
	calls   int
	gotFile string
}

func (m *mockAnalyzer) Analyze(_ context.Context, fileName string, _ []byte) (layout.Result, error) {
	m.calls++
	m.gotFile = fileName
	return m.result, m.err
}

type mockExtractor struct {
	figs     []assoc.Figure
	gotIndex string
	gotRunID string
}

func (m *mockExtractor) Extract(_ context.Context, index, runID string, _ layout.Result) []assoc.Figure {
	m.gotIndex = index
	m.gotRunID = runID
	return m.figs
}

type mockDescriber struct {
	desc       string
	model      bool
	calls      int
	gotImage   []byte
	gotContext string
}

func (m *mockDescriber) Describe(_ context.Context, image []byte, contextText string, _ int, _ string) (string, bool) {
	m.calls++
	m.gotImage = image
	m.gotContext = contextText
	return m.desc, m.model
}

type mockEmbedder struct {
	batchCalls [][]string
	embedTexts []string
	batchErrOn int // 1-based call number that fails; 0 = never
	embedErr   error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.embedTexts = append(m.embedTexts, text)
	if m.embedErr != nil {
		return domain.EmbeddingResult{}, m.embedErr
	}
	return domain.EmbeddingResult{Embedding: []float32{0.5}, TotalTokens: 1}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls = append(m.batchCalls, texts)
	if m.batchErrOn == len(m.batchCalls) {
		return domain.BatchEmbeddingResult{}, errors.New("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

type mockBlob struct {
	objects      map[string][]byte
	uploads      map[string][]byte
	contentTypes map[string]string
}

func newMockBlob() *mockBlob {
	return &mockBlob{
		objects:      map[string][]byte{},
		uploads:      map[string][]byte{},
		contentTypes: map[string]string{},
	}
}

func (m *mockBlob) Upload(_ context.Context, key string, data []byte, contentType string) error {
	m.uploads[key] = data
	m.contentTypes[key] = contentType
	m.objects[key] = data
	return nil
}

func (m *mockBlob) Download(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

type memIndexer struct {
	units    []unit.Unit
	flushes  int
	addErr   error
	flushErr error
}

func (m *memIndexer) Add(_ context.Context, u unit.Unit) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.units = append(m.units, u)
	return nil
}

func (m *memIndexer) Flush(_ context.Context) error {
	m.flushes++
	return m.flushErr
}

type pipelineEnv struct {
	analyzer  *mockAnalyzer
	extractor *mockExtractor
	describer *mockDescriber
	embedder  *mockEmbedder
	blob      *mockBlob
	indexer   *memIndexer
	gotIndex  string
	svc       *Service
}

func newPipelineEnv(res layout.Result) *pipelineEnv {
	env := &pipelineEnv{
		analyzer:  &mockAnalyzer{result: res},
		extractor: &mockExtractor{},
		describer: &mockDescriber{desc: "A bar chart of regional revenue growth", model: true},
		embedder:  &mockEmbedder{},
		blob:      newMockBlob(),
		indexer:   &memIndexer{},
	}
	env.svc = New(Deps{
		Analyzer:   env.analyzer,
		Figures:    env.extractor,
		Verbalizer: env.describer,
		Embedder:   env.embedder,
		Blob:       env.blob,
		Indexers: IndexerFunc(func(index string) UnitIndexer {
			env.gotIndex = index
			return env.indexer
		}),
		Logger: zap.NewNop(),
	})
	return env
}

func para(text string, role layout.Role, page int) layout.Paragraph {
	return layout.Paragraph{
		Content: text,
		Role:    role,
		Regions: []layout.Region{{
			PageNumber: page,
			Polygon:    layout.Polygon{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}},
		}},
	}
}

// analyzedDoc is a two-page document: a title and three body paragraphs on
// page 1 (one mentions "chart"), one paragraph on page 2, one figure on page 1.
func analyzedDoc() layout.Result {
	return layout.Result{
		ResultID: "res-1",
		Paragraphs: []layout.Paragraph{
			para("Quarterly Results", layout.RoleTitle, 1),
			para("Revenue grew twelve percent year over year.", layout.RoleBody, 1),
			para("The chart below breaks growth down by region.", layout.RoleBody, 1),
			para("Operating margin held at nineteen percent.", layout.RoleBody, 1),
			para("Outlook for the next quarter remains stable.", layout.RoleBody, 2),
		},
		Figures: []layout.Figure{
			{ID: "1.1", Page: 1, Polygon: layout.Polygon{{X: 1, Y: 1}, {X: 4, Y: 1}, {X: 4, Y: 3}, {X: 1, Y: 3}}},
		},
	}
}

func baseRequest() Request {
	return Request{
		RunID:         "r1",
		Index:         "reports",
		FileName:      "q3.pdf",
		Content:       pdfBytes,
		BlobPath:      "reports/source/r1/q3.pdf",
		Title:         "Q3 Report",
		PublishedDate: "2024-05-10",
		DocumentType:  "quarterly_report",
	}
}

func TestRun_SemanticPipelineWithFigure(t *testing.T) {
	env := newPipelineEnv(analyzedDoc())
	cropPath := "reports/figures/r1/1.1.png"
	env.extractor.figs = []assoc.Figure{{
		ID:       "1.1",
		Page:     1,
		Polygon:  layout.Polygon{{X: 1, Y: 1}, {X: 4, Y: 1}, {X: 4, Y: 3}, {X: 1, Y: 3}},
		BlobPath: cropPath,
	}}
	env.blob.objects[cropPath] = []byte("png-bytes")

	if err := env.svc.Run(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Three text chunks (title, page-1 group, page-2 group) plus one image unit.
	if len(env.indexer.units) != 4 {
		t.Fatalf("indexed %d units, want 4", len(env.indexer.units))
	}

	var texts, images []unit.Unit
	for _, u := range env.indexer.units {
		if u.IsImage() {
			images = append(images, u)
		} else {
			texts = append(texts, u)
		}
	}
	if len(texts) != 3 || len(images) != 1 {
		t.Fatalf("got %d text / %d image units", len(texts), len(images))
	}

	title := texts[0]
	if title.ContentText() != "Quarterly Results" {
		t.Errorf("title chunk text = %q", title.ContentText())
	}
	if title.ContentPath() != "q3.pdf#page1#title" {
		t.Errorf("title anchor = %q", title.ContentPath())
	}

	group := texts[1]
	if !strings.Contains(group.ContentText(), "chart") {
		t.Fatalf("page-1 group text = %q", group.ContentText())
	}
	if group.SourceFigureID() != "1.1" || group.RelatedImagePath() != cropPath {
		t.Errorf("group figure link = (%q, %q)", group.SourceFigureID(), group.RelatedImagePath())
	}

	page2 := texts[2]
	if page2.Location().PageNumber != 2 {
		t.Errorf("page-2 unit on page %d", page2.Location().PageNumber)
	}
	if page2.SourceFigureID() != "" {
		t.Error("page-2 unit must not link to a page-1 figure")
	}

	img := images[0]
	if img.ContentText() != "A bar chart of regional revenue growth" {
		t.Errorf("image unit text = %q", img.ContentText())
	}
	if img.ContentPath() != cropPath || img.RelatedImagePath() != cropPath {
		t.Errorf("image unit paths = (%q, %q)", img.ContentPath(), img.RelatedImagePath())
	}
	if img.Location().PageNumber != 1 {
		t.Errorf("image unit page = %d", img.Location().PageNumber)
	}

	if len(env.embedder.batchCalls) != 2 {
		t.Fatalf("batch embed calls = %d, want one per page", len(env.embedder.batchCalls))
	}
	if len(env.embedder.batchCalls[0]) != 2 || len(env.embedder.batchCalls[1]) != 1 {
		t.Errorf("batch sizes = %d and %d, want 2 and 1",
			len(env.embedder.batchCalls[0]), len(env.embedder.batchCalls[1]))
	}
	if len(env.embedder.embedTexts) != 1 {
		t.Errorf("single embed calls = %d, want 1 for the figure description", len(env.embedder.embedTexts))
	}

	if env.describer.calls != 1 || string(env.describer.gotImage) != "png-bytes" {
		t.Errorf("describer calls = %d, image = %q", env.describer.calls, env.describer.gotImage)
	}
	if !strings.Contains(env.describer.gotContext, "Revenue grew") {
		t.Errorf("describer context = %q", env.describer.gotContext)
	}

	if env.gotIndex != "reports" || env.extractor.gotRunID != "r1" {
		t.Errorf("wired index %q, run %q", env.gotIndex, env.extractor.gotRunID)
	}
	if env.indexer.flushes != 1 {
		t.Errorf("final flushes = %d, want 1", env.indexer.flushes)
	}
	if len(env.blob.uploads) != 0 {
		t.Errorf("source already archived, got %d uploads", len(env.blob.uploads))
	}

	for _, u := range env.indexer.units {
		if u.DocumentTitle() != "Q3 Report" {
			t.Fatalf("unit title = %q", u.DocumentTitle())
		}
		if u.DocumentType() != docmeta.TypeQuarterlyReport {
			t.Fatalf("unit type = %q", u.DocumentType())
		}
	}
	want := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	if !texts[0].PublishedDate().Equal(want) {
		t.Errorf("published date = %v", texts[0].PublishedDate())
	}
}

func TestRun_ArchivesSourceWhenNotStored(t *testing.T) {
	env := newPipelineEnv(analyzedDoc())
	req := baseRequest()
	req.BlobPath = ""

	if err := env.svc.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	key := "reports/source/r1/q3.pdf"
	if string(env.blob.uploads[key]) != string(pdfBytes) {
		t.Errorf("source not archived at %s", key)
	}
	if env.blob.contentTypes[key] != "application/pdf" {
		t.Errorf("content type = %q", env.blob.contentTypes[key])
	}
}

func TestRun_RejectsUnsupportedInput(t *testing.T) {
	env := newPipelineEnv(analyzedDoc())

	req := baseRequest()
	req.FileName = "notes.txt"
	if err := env.svc.Run(context.Background(), req); !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("txt extension: err = %v", err)
	}

	req = baseRequest()
	req.Content = []byte("just text, no header")
	if err := env.svc.Run(context.Background(), req); !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("missing magic: err = %v", err)
	}

	if env.analyzer.calls != 0 {
		t.Errorf("analyzer called %d times for rejected input", env.analyzer.calls)
	}
}

func TestRun_UnknownStrategyRejected(t *testing.T) {
	env := newPipelineEnv(analyzedDoc())
	req := baseRequest()
	req.Strategy = "aggressive"

	if err := env.svc.Run(context.Background(), req); err == nil {
		t.Fatal("expected strategy error")
	}
	if env.analyzer.calls != 0 {
		t.Error("analyzer must not run for an invalid strategy")
	}
}

func TestRun_AnalyzerFailure(t *testing.T) {
	env := newPipelineEnv(layout.Result{})
	env.analyzer.err = errors.New("analyzer down")

	if err := env.svc.Run(context.Background(), baseRequest()); err == nil {
		t.Fatal("expected analyze error")
	}
	if env.gotIndex != "" {
		t.Error("no indexer should be built when analysis fails")
	}
}

func TestRun_EmptyAnalysisFails(t *testing.T) {
	env := newPipelineEnv(layout.Result{ResultID: "res-1"})

	err := env.svc.Run(context.Background(), baseRequest())
	if !errors.Is(err, domain.ErrEmptyAnalysis) {
		t.Fatalf("err = %v, want ErrEmptyAnalysis", err)
	}
}

func TestRun_EmbeddingFailureSkipsPage(t *testing.T) {
	env := newPipelineEnv(analyzedDoc())
	env.embedder.batchErrOn = 1 // page 1 fails, page 2 succeeds

	if err := env.svc.Run(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(env.indexer.units) != 1 {
		t.Fatalf("indexed %d units, want only the page-2 chunk", len(env.indexer.units))
	}
	if env.indexer.units[0].Location().PageNumber != 2 {
		t.Errorf("surviving unit on page %d", env.indexer.units[0].Location().PageNumber)
	}
	if env.indexer.flushes != 1 {
		t.Errorf("flushes = %d, want 1", env.indexer.flushes)
	}
}

func TestRun_TokenStrategy(t *testing.T) {
	text := "one two three four five six seven eight nine ten eleven twelve"
	env := newPipelineEnv(layout.Result{
		ResultID:   "res-2",
		Content:    text,
		Paragraphs: []layout.Paragraph{para(text, layout.RoleBody, 1)},
	})

	req := baseRequest()
	req.Strategy = chunk.StrategyCustom
	req.TokenOptions = chunk.TokenOptions{MaxTokens: 5, Overlap: 1}

	if err := env.svc.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(env.embedder.batchCalls) != 1 || len(env.embedder.batchCalls[0]) != 3 {
		t.Fatalf("batch calls = %v, want one batch of 3 windows", env.embedder.batchCalls)
	}
	if len(env.indexer.units) != 3 {
		t.Fatalf("indexed %d units, want 3", len(env.indexer.units))
	}

	first := env.indexer.units[0]
	if first.ContentText() != "one two three four five" {
		t.Errorf("first window = %q", first.ContentText())
	}
	if first.ContentPath() != "q3.pdf#page1#text" {
		t.Errorf("first anchor = %q", first.ContentPath())
	}
	last := env.indexer.units[2]
	if last.ContentText() != "nine ten eleven twelve" {
		t.Errorf("last window = %q", last.ContentText())
	}
}

func TestRun_TokenEmbedFailureFailsRun(t *testing.T) {
	text := "alpha beta gamma delta"
	env := newPipelineEnv(layout.Result{ResultID: "res-2", Content: text})
	env.embedder.batchErrOn = 1

	req := baseRequest()
	req.Strategy = chunk.StrategyCustom

	if err := env.svc.Run(context.Background(), req); err == nil {
		t.Fatal("expected embed error for the whole-document batch")
	}
	if len(env.indexer.units) != 0 {
		t.Errorf("indexed %d units after failed embed", len(env.indexer.units))
	}
}

func TestRun_FlushFailurePropagates(t *testing.T) {
	env := newPipelineEnv(analyzedDoc())
	env.indexer.addErr = domain.NewFlushFailed("reports", 10, errors.New("index store down"))

	err := env.svc.Run(context.Background(), baseRequest())
	var ff *domain.FlushFailedError
	if !errors.As(err, &ff) {
		t.Fatalf("err = %v, want FlushFailedError", err)
	}
}

func TestRun_FinalFlushErrorPropagates(t *testing.T) {
	env := newPipelineEnv(analyzedDoc())
	env.indexer.flushErr = errors.New("write failed")

	err := env.svc.Run(context.Background(), baseRequest())
	if err == nil || !strings.Contains(err.Error(), "final flush") {
		t.Fatalf("err = %v, want final flush failure", err)
	}
}

func TestRun_FigureSkippedWhenCropMissing(t *testing.T) {
	env := newPipelineEnv(analyzedDoc())
	env.extractor.figs = []assoc.Figure{{ID: "1.1", Page: 1, BlobPath: "reports/figures/r1/1.1.png"}}
	// crop bytes never stored

	if err := env.svc.Run(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, u := range env.indexer.units {
		if u.IsImage() {
			t.Fatal("image unit indexed without its crop")
		}
	}
	if env.describer.calls != 0 {
		t.Errorf("describer called %d times without a crop", env.describer.calls)
	}
}

func TestRun_FallbackDescriptionIndexed(t *testing.T) {
	env := newPipelineEnv(analyzedDoc())
	cropPath := "reports/figures/r1/1.1.png"
	env.extractor.figs = []assoc.Figure{{ID: "1.1", Page: 1, BlobPath: cropPath}}
	env.blob.objects[cropPath] = []byte("png-bytes")
	env.describer.desc = "Image from page 1 of q3.pdf (description unavailable)"
	env.describer.model = false

	if err := env.svc.Run(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var img *unit.Unit
	for i := range env.indexer.units {
		if env.indexer.units[i].IsImage() {
			img = &env.indexer.units[i]
		}
	}
	if img == nil {
		t.Fatal("fallback description must still be indexed")
	}
	if img.ContentText() != "Image from page 1 of q3.pdf (description unavailable)" {
		t.Errorf("image unit text = %q", img.ContentText())
	}
}

type captureSink struct {
	runIDs   []string
	steps    []string
	progress []int
}

func (c *captureSink) UpdateProgress(_ context.Context, runID, step string, progress int, _ string, _ map[string]int) error {
	c.runIDs = append(c.runIDs, runID)
	c.steps = append(c.steps, step)
	c.progress = append(c.progress, progress)
	return nil
}

func TestRun_StatusEventsReachSink(t *testing.T) {
	env := newPipelineEnv(analyzedDoc())
	sink := &captureSink{}
	svc := New(Deps{
		Analyzer:   env.analyzer,
		Figures:    env.extractor,
		Verbalizer: env.describer,
		Embedder:   env.embedder,
		Blob:       env.blob,
		Indexers:   IndexerFunc(func(string) UnitIndexer { return env.indexer }),
		Status:     sink,
		Logger:     zap.NewNop(),
	})

	if err := svc.Run(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.steps) == 0 {
		t.Fatal("no status events recorded")
	}
	for _, id := range sink.runIDs {
		if id != "r1" {
			t.Fatalf("event for run %q", id)
		}
	}
	last := len(sink.steps) - 1
	if sink.steps[last] != "done" || sink.progress[last] != 100 {
		t.Errorf("final event = (%q, %d), want (done, 100)", sink.steps[last], sink.progress[last])
	}

	seen := map[string]bool{}
	for _, s := range sink.steps {
		seen[s] = true
	}
	for _, want := range []string{"analyze", "chunk", "index"} {
		if !seen[want] {
			t.Errorf("step %q never reported", want)
		}
	}
}

func TestRun_CanceledContext(t *testing.T) {
	env := newPipelineEnv(analyzedDoc())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := env.svc.Run(ctx, baseRequest()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
