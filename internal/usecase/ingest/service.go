// Package ingest orchestrates the document pipeline: validate, analyze,
// chunk, embed, associate figures, verbalize, and index one document per run.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/halcyon-data/docdex/internal/domain"
	"github.com/halcyon-data/docdex/internal/domain/assoc"
	"github.com/halcyon-data/docdex/internal/domain/chunk"
	"github.com/halcyon-data/docdex/internal/domain/docmeta"
	"github.com/halcyon-data/docdex/internal/domain/layout"
	"github.com/halcyon-data/docdex/internal/domain/unit"
	"github.com/halcyon-data/docdex/internal/metrics"
	"github.com/halcyon-data/docdex/internal/report"
)

// verbalizeContextLimit caps the page text handed to the vision model as
// context for one figure.
const verbalizeContextLimit = 2000

var pdfMagic = []byte("%PDF-")

// Request describes one document ingestion run.
type Request struct {
	RunID    string
	Index    string
	FileName string
	Content  []byte

	// BlobPath is where the source document already lives. Empty means the
	// pipeline archives Content itself before processing.
	BlobPath string

	Strategy     chunk.Strategy
	TokenOptions chunk.TokenOptions

	// Raw document metadata, normalized during the run.
	Title         string
	PublishedDate string
	DocumentType  string
}

// Deps wires the pipeline's collaborators.
type Deps struct {
	Analyzer   Analyzer
	Figures    FigureExtractor
	Verbalizer Describer
	Embedder   Embedder
	Blob       BlobStore
	Indexers   IndexerFactory
	Status     report.StatusSink // optional; nil disables run status reporting
	Logger     *zap.Logger
}

// Service runs the ingestion pipeline. Safe for concurrent use: per-run state
// lives on the stack and in the per-run indexer.
type Service struct {
	analyzer Analyzer
	figures  FigureExtractor
	describe Describer
	embedder Embedder
	blob     BlobStore
	indexers IndexerFactory
	status   report.StatusSink
	logger   *zap.Logger
}

// New creates the pipeline service.
func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		analyzer: d.Analyzer,
		figures:  d.Figures,
		describe: d.Verbalizer,
		embedder: d.Embedder,
		blob:     d.Blob,
		indexers: d.Indexers,
		status:   d.Status,
		logger:   d.Logger,
	}
}

// document bundles the per-run inputs the indexing helpers share.
type document struct {
	req  Request
	meta unit.Meta
	res  layout.Result
	figs []assoc.Figure
}

// Run executes the pipeline for one document. Errors that abort the run are
// returned to the caller; per-page and per-figure failures are contained,
// logged, and reported.
func (s *Service) Run(ctx context.Context, req Request) (err error) {
	start := time.Now()
	defer func() {
		metrics.PipelineRunDuration.Observe(time.Since(start).Seconds())
		status := "completed"
		if err != nil {
			status = "failed"
		}
		metrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	}()

	log := s.logger.With(
		zap.String("run_id", req.RunID),
		zap.String("index", req.Index),
		zap.String("file", req.FileName),
	)
	rep := s.reporterFor(log, req.RunID)

	strategy, err := chunk.ParseStrategy(string(req.Strategy))
	if err != nil {
		return err
	}
	if err := ValidatePDF(req.FileName, req.Content); err != nil {
		return err
	}

	if req.BlobPath == "" {
		path := SourcePath(req.Index, req.RunID, req.FileName)
		if err := s.blob.Upload(ctx, path, req.Content, "application/pdf"); err != nil {
			return fmt.Errorf("archive source: %w", err)
		}
		rep.Report(ctx, report.Event{Step: report.StepArchive, Message: "source archived to " + path, Progress: 5})
	}

	rep.Report(ctx, report.Event{Step: report.StepAnalyze, Message: "layout analysis started", Progress: 10})
	res, err := s.analyzer.Analyze(ctx, req.FileName, req.Content)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", req.FileName, err)
	}
	if res.Empty() {
		return fmt.Errorf("%s: %w", req.FileName, domain.ErrEmptyAnalysis)
	}
	rep.Report(ctx, report.Event{
		Step:     report.StepAnalyze,
		Message:  fmt.Sprintf("%d paragraphs, %d figures across %d pages", len(res.Paragraphs), len(res.Figures), res.PageCount()),
		Progress: 20,
	})

	doc := document{
		req:  req,
		meta: s.normalizeMeta(log, req),
		res:  res,
	}

	rep.Report(ctx, report.Event{Step: report.StepFigures, Message: "extracting figures", Progress: 25})
	doc.figs = s.figures.Extract(ctx, req.Index, req.RunID, res)
	if len(res.Figures) > 0 {
		rep.Report(ctx, report.Event{
			Step:     report.StepFigures,
			Progress: 30,
			Increments: map[string]int{
				report.CounterFiguresPersisted: len(doc.figs),
				report.CounterFiguresSkipped:   len(res.Figures) - len(doc.figs),
			},
		})
	}

	idx := s.indexers.ForIndex(req.Index)

	switch strategy {
	case chunk.StrategyCustom:
		err = s.indexTokenChunks(ctx, log, rep, idx, doc)
	default:
		err = s.indexSemanticChunks(ctx, log, rep, idx, doc)
	}
	if err != nil {
		return err
	}

	if err := s.indexFigureUnits(ctx, log, rep, idx, doc); err != nil {
		return err
	}

	if err := idx.Flush(ctx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}

	rep.Report(ctx, report.Event{Step: report.StepDone, Message: "ingestion complete", Progress: 100})
	return nil
}

// indexSemanticChunks chunks by layout roles and embeds one batch per page.
// A page whose embedding call fails is skipped; the run continues.
func (s *Service) indexSemanticChunks(ctx context.Context, log *zap.Logger, rep report.Reporter, idx UnitIndexer, doc document) error {
	chunks := chunk.SplitParagraphs(doc.res.Paragraphs)
	metrics.PipelineChunksTotal.WithLabelValues(string(chunk.StrategyDocumentLayout)).Add(float64(len(chunks)))
	rep.Report(ctx, report.Event{
		Step:       report.StepChunk,
		Message:    fmt.Sprintf("%d semantic chunks", len(chunks)),
		Progress:   40,
		Increments: map[string]int{report.CounterChunks: len(chunks)},
	})
	if len(chunks) == 0 {
		return nil
	}

	pages := groupByPage(chunks)
	for i, pg := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		texts := make([]string, len(pg.chunks))
		for j, c := range pg.chunks {
			texts[j] = c.Text
		}

		batch, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			log.Warn("page skipped: embedding failed",
				zap.Int("page", pg.page),
				zap.Int("chunks", len(pg.chunks)),
				zap.Error(err),
			)
			rep.Report(ctx, report.Event{
				Step:       report.StepEmbed,
				Message:    fmt.Sprintf("page %d skipped: %v", pg.page, err),
				Progress:   -1,
				Increments: map[string]int{report.CounterPagesSkipped: 1},
			})
			continue
		}

		added := 0
		for j, c := range pg.chunks {
			u, err := s.buildTextUnit(doc, c, batch.Embeddings[j])
			if err != nil {
				log.Warn("chunk skipped", zap.Int("page", c.Page), zap.Error(err))
				continue
			}
			if err := idx.Add(ctx, u); err != nil {
				return err
			}
			added++
		}

		rep.Report(ctx, report.Event{
			Step:       report.StepIndex,
			Message:    fmt.Sprintf("page %d indexed", pg.page),
			Progress:   chunkProgress(i+1, len(pages)),
			Increments: map[string]int{report.CounterTextUnits: added},
		})
	}
	return nil
}

// indexTokenChunks cuts token windows from the whole document text and embeds
// them as a single batch.
func (s *Service) indexTokenChunks(ctx context.Context, log *zap.Logger, rep report.Reporter, idx UnitIndexer, doc document) error {
	chunks := chunk.SplitText(doc.res.Text(), doc.res.Paragraphs, doc.req.TokenOptions)
	metrics.PipelineChunksTotal.WithLabelValues(string(chunk.StrategyCustom)).Add(float64(len(chunks)))
	rep.Report(ctx, report.Event{
		Step:       report.StepChunk,
		Message:    fmt.Sprintf("%d token chunks", len(chunks)),
		Progress:   40,
		Increments: map[string]int{report.CounterChunks: len(chunks)},
	})
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	// One batch for the whole document; oversized input is split downstream.
	batch, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}

	added := 0
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		u, err := s.buildTextUnit(doc, c, batch.Embeddings[i])
		if err != nil {
			log.Warn("chunk skipped", zap.Int("page", c.Page), zap.Error(err))
			continue
		}
		if err := idx.Add(ctx, u); err != nil {
			return err
		}
		added++
	}

	rep.Report(ctx, report.Event{
		Step:       report.StepIndex,
		Message:    "document indexed",
		Progress:   80,
		Increments: map[string]int{report.CounterTextUnits: added},
	})
	return nil
}

// indexFigureUnits verbalizes, embeds, and indexes every persisted figure as
// its own content unit. A failure on one figure skips that figure only.
func (s *Service) indexFigureUnits(ctx context.Context, log *zap.Logger, rep report.Reporter, idx UnitIndexer, doc document) error {
	if len(doc.figs) == 0 {
		return nil
	}
	rep.Report(ctx, report.Event{
		Step:     report.StepVerbalize,
		Message:  fmt.Sprintf("describing %d figures", len(doc.figs)),
		Progress: 85,
	})

	described, fallbacks, added := 0, 0, 0
	for _, fig := range doc.figs {
		if err := ctx.Err(); err != nil {
			return err
		}

		crop, err := s.blob.Download(ctx, fig.BlobPath)
		if err != nil {
			log.Warn("figure unit skipped: crop unavailable",
				zap.String("figure_id", fig.ID),
				zap.Error(err),
			)
			continue
		}

		desc, ok := s.describe.Describe(ctx, crop, pageContext(doc.res, fig.Page), fig.Page, doc.req.FileName)
		if ok {
			described++
		} else {
			fallbacks++
		}

		emb, err := s.embedder.Embed(ctx, desc)
		if err != nil {
			log.Warn("figure unit skipped: embedding failed",
				zap.String("figure_id", fig.ID),
				zap.Error(err),
			)
			continue
		}

		loc := unit.Location{PageNumber: fig.Page}
		if len(fig.Polygon) > 0 {
			loc.BoundingPolygons = []layout.Polygon{fig.Polygon}
		}
		u, err := unit.NewImage(doc.meta, desc, emb.Embedding, fig.BlobPath, loc)
		if err != nil {
			log.Warn("figure unit skipped", zap.String("figure_id", fig.ID), zap.Error(err))
			continue
		}
		if err := idx.Add(ctx, u); err != nil {
			return err
		}
		added++
	}

	rep.Report(ctx, report.Event{
		Step:     report.StepIndex,
		Message:  fmt.Sprintf("%d figure units indexed", added),
		Progress: 95,
		Increments: map[string]int{
			report.CounterImageUnits:         added,
			report.CounterVerbalizedOK:       described,
			report.CounterVerbalizedFallback: fallbacks,
		},
	})
	return nil
}

func (s *Service) buildTextUnit(doc document, c chunk.Chunk, embedding []float32) (unit.Unit, error) {
	anchor := unit.TextAnchor(doc.req.FileName, c.Page, c.Type)
	u, err := unit.NewText(doc.meta, c.Text, embedding, anchor, unit.Location{
		PageNumber:       c.Page,
		BoundingPolygons: c.Polygons,
	})
	if err != nil {
		return unit.Unit{}, err
	}
	if fig, ok := assoc.Match(c.Text, c.Page, doc.figs); ok {
		u = u.WithFigure(fig.ID, fig.BlobPath)
	}
	return u, nil
}

func (s *Service) normalizeMeta(log *zap.Logger, req Request) unit.Meta {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.FileName
	}

	published, ok := docmeta.ParsePublishedDate(req.PublishedDate)
	if !ok && strings.TrimSpace(req.PublishedDate) != "" {
		log.Warn("unparseable published date, defaulting to now", zap.String("value", req.PublishedDate))
	}

	docType, ok := docmeta.NormalizeType(req.DocumentType)
	if !ok && strings.TrimSpace(req.DocumentType) != "" {
		log.Warn("unknown document type, defaulting to other", zap.String("value", req.DocumentType))
	}

	return unit.Meta{DocumentTitle: title, PublishedDate: published, DocumentType: docType}
}

func (s *Service) reporterFor(log *zap.Logger, runID string) report.Reporter {
	if s.status == nil {
		return report.NewLog(log)
	}
	return report.NewMulti(report.NewLog(log), report.NewStatus(s.status, runID))
}

// ValidatePDF rejects non-PDF input before any external call is made.
func ValidatePDF(fileName string, content []byte) error {
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return fmt.Errorf("%s: %w", fileName, domain.ErrUnsupportedFormat)
	}
	if !bytes.HasPrefix(content, pdfMagic) {
		return fmt.Errorf("%s: no pdf header: %w", fileName, domain.ErrUnsupportedFormat)
	}
	return nil
}

// SourcePath is the blob key where a run's source document is archived.
func SourcePath(index, runID, fileName string) string {
	return fmt.Sprintf("%s/source/%s/%s", index, runID, fileName)
}

// pageBatch holds one page's chunks, in document order.
type pageBatch struct {
	page   int
	chunks []chunk.Chunk
}

// groupByPage buckets chunks per page, keeping first-seen page order.
func groupByPage(chunks []chunk.Chunk) []pageBatch {
	slot := make(map[int]int)
	var pages []pageBatch
	for _, c := range chunks {
		i, ok := slot[c.Page]
		if !ok {
			i = len(pages)
			slot[c.Page] = i
			pages = append(pages, pageBatch{page: c.Page})
		}
		pages[i].chunks = append(pages[i].chunks, c)
	}
	return pages
}

// chunkProgress maps completed page batches onto the 40..80 progress band.
func chunkProgress(done, total int) int {
	if total == 0 {
		return 80
	}
	return 40 + 40*done/total
}

// pageContext gathers a figure's page text to ground its description.
func pageContext(res layout.Result, page int) string {
	var b strings.Builder
	for _, p := range res.Paragraphs {
		if p.Page() != page || p.Role.Furniture() {
			continue
		}
		text := strings.TrimSpace(p.Content)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			if b.Len()+len(text) > verbalizeContextLimit {
				break
			}
			b.WriteByte('\n')
		}
		b.WriteString(text)
	}
	return b.String()
}
