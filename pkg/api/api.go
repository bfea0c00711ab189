package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gompdf/sectionpdf/internal/capture"
	"github.com/gompdf/sectionpdf/internal/entitlement"
	"github.com/gompdf/sectionpdf/internal/geometry"
	"github.com/gompdf/sectionpdf/internal/pagination"
	"github.com/gompdf/sectionpdf/internal/parser/html"
	"github.com/gompdf/sectionpdf/internal/render/pdf"
	"github.com/gompdf/sectionpdf/internal/res"
	"github.com/gompdf/sectionpdf/internal/storage"
)

var (
	// ErrNotEntitled is returned when the subject may not export
	ErrNotEntitled = errors.New("export not available for this visitor")
	// ErrExportInProgress is returned while another export runs on the same exporter
	ErrExportInProgress = errors.New("an export is already in progress")
	// ErrNoSources is returned when a request names neither sources nor a view
	ErrNoSources = errors.New("nothing to export")
	// ErrNoStore is returned by ExportToStore when no store is configured
	ErrNoStore = errors.New("no export store configured")
)

// Source describes one section to export
type Source = capture.Source

// ViewRenderer captures sections of an HTML view loaded once per export
type ViewRenderer interface {
	capture.Renderer
	LoadView(ctx context.Context, html string) error
}

// ExportRequest describes one export
type ExportRequest struct {
	// Subject is checked against the entitlement gate
	Subject string
	// FileName is the user-facing name of the document
	FileName string
	// Sources are exported in order. When empty, sections are collected from HTML.
	Sources []Source
	// HTML is the calculator view whose marked sections are exported
	HTML string
	// Title and Destination override the configured title and header label
	Title       string
	Destination string
}

// ExportResult describes a finished export
type ExportResult struct {
	JobID    uuid.UUID
	FileName string
	Pages    int
	Sections int
	// Slices counts placements that are parts of a split section
	Slices int
	Bytes  []byte
	// Location is set when the document was written or stored
	Location string
}

// Dependency plugs a collaborator into an Exporter
type Dependency func(*Exporter)

// WithRenderer replaces the default section renderer
func WithRenderer(r capture.Renderer) Dependency {
	return func(e *Exporter) {
		e.renderer = r
	}
}

// WithViewRenderer sets the renderer used for HTML views
func WithViewRenderer(v ViewRenderer) Dependency {
	return func(e *Exporter) {
		e.view = v
	}
}

// WithEntitlement sets the export gate; without one everyone is entitled
func WithEntitlement(c entitlement.Checker) Dependency {
	return func(e *Exporter) {
		e.checker = c
	}
}

// WithStore sets the sink used by ExportToStore
func WithStore(s storage.Store) Dependency {
	return func(e *Exporter) {
		e.store = s
	}
}

// Exporter turns ordered sections into a paginated PDF. It runs one export at a time.
type Exporter struct {
	options Options
	page    geometry.PageConfig
	logger  *zap.Logger
	loader  *res.Loader
	engine  *pagination.Engine

	renderer capture.Renderer
	view     ViewRenderer
	checker  entitlement.Checker
	store    storage.Store

	busy atomic.Bool
}

// NewExporter creates an exporter; the page geometry must leave a usable area
func NewExporter(options Options, deps ...Dependency) (*Exporter, error) {
	page := options.PageConfig()
	if err := page.Validate(); err != nil {
		return nil, fmt.Errorf("invalid page configuration: %w", err)
	}

	e := &Exporter{
		options: options,
		page:    page,
		logger:  options.Logger,
		loader:  res.NewLoader(""),
		engine:  pagination.NewEngine(),
	}
	e.engine.SetOptions(pagination.Options{Page: page, TailPolicy: options.TailPolicy})
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	for _, path := range options.ResourcePaths {
		e.loader.AddSearchPath(path)
	}
	for _, dep := range deps {
		dep(e)
	}
	if e.checker == nil {
		e.checker = entitlement.Always()
	}
	if e.renderer == nil {
		var view capture.Renderer
		if e.view != nil {
			view = e.view
		}
		e.renderer = capture.NewMultiRenderer(e.loader, page.ContentWidthPx(), view)
	}
	return e, nil
}

// New creates an exporter from functional options
func New(opts ...Option) (*Exporter, error) {
	return NewExporter(NewOptions(opts...))
}

// Options returns the exporter's options
func (e *Exporter) Options() Options {
	return e.options
}

// PageCount returns how many pages sections of the given pixel sizes would
// fill, without rendering or writing anything
func (e *Exporter) PageCount(sections []pagination.Section) (int, error) {
	return e.engine.CalculatePageCount(sections)
}

// Offered reports whether the export action should be shown to subject
func (e *Exporter) Offered(ctx context.Context, subject string) bool {
	return e.checker.Entitled(ctx, subject)
}

// Busy reports whether an export is running
func (e *Exporter) Busy() bool {
	return e.busy.Load()
}

// Export renders, paginates and writes the request into an in-memory PDF.
// Any failure aborts the whole export; nothing partial is returned.
func (e *Exporter) Export(ctx context.Context, req *ExportRequest) (*ExportResult, error) {
	if req == nil {
		return nil, errors.New("export request is nil")
	}
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrExportInProgress
	}
	defer e.busy.Store(false)

	if !e.checker.Entitled(ctx, req.Subject) {
		e.logger.Info("export refused", zap.String("subject", req.Subject))
		return nil, ErrNotEntitled
	}

	jobID := storage.NewJobID()
	log := e.logger.With(zap.Stringer("job_id", jobID))
	start := time.Now()

	result, err := e.export(ctx, log, req)
	if err != nil {
		log.Error("export failed",
			zap.Error(err),
			zap.String("code", capture.ErrorCode(err)),
			zap.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("export failed: %w", err)
	}

	result.JobID = jobID
	log.Info("export finished",
		zap.Int("pages", result.Pages),
		zap.Int("sections", result.Sections),
		zap.Int("slices", result.Slices),
		zap.Int("bytes", len(result.Bytes)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (e *Exporter) export(ctx context.Context, log *zap.Logger, req *ExportRequest) (*ExportResult, error) {
	sources, err := e.collect(ctx, log, req)
	if err != nil {
		return nil, err
	}

	title := firstNonEmpty(req.Title, e.options.Title)
	writer := pdf.NewRenderer(e.page, pdf.Labels{
		Mark:        e.options.HeaderMark,
		Destination: firstNonEmpty(req.Destination, e.options.HeaderLabel, title),
		Brand:       e.options.FooterBrand,
		AccentColor: e.options.AccentColor,
	}, log)
	meta := pdf.RenderOptions{
		Title:    title,
		Author:   e.options.Author,
		Subject:  e.options.Subject,
		Keywords: e.options.Keywords,
		Creator:  "sectionpdf",
		Producer: "sectionpdf",
	}

	var (
		buf    bytes.Buffer
		slices int
	)
	switch e.options.RenderMode {
	case RenderEager:
		slices, err = e.writeEager(ctx, writer, meta, sources, &buf)
	default:
		slices, err = e.writeLazy(ctx, log, writer, meta, sources, &buf)
	}
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		FileName: storage.SanitizeName(firstNonEmpty(req.FileName, title)) + ".pdf",
		Pages:    writer.PageCount(),
		Sections: len(sources),
		Slices:   slices,
		Bytes:    buf.Bytes(),
	}, nil
}

// writeLazy renders one section, lays it out and writes its placements
// before the next section is rendered
func (e *Exporter) writeLazy(ctx context.Context, log *zap.Logger, writer *pdf.Renderer, meta pdf.RenderOptions, sources []Source, w *bytes.Buffer) (int, error) {
	if err := writer.Begin(meta); err != nil {
		return 0, err
	}

	var (
		current *capture.Bitmap
		slices  int
	)
	paginator := e.engine.NewPaginator(func(op pagination.Op) error {
		if op.Kind != pagination.OpPlace {
			return writer.Apply(op, nil)
		}
		if !op.Ref.Whole() {
			slices++
		}
		return writer.Apply(op, current.Image)
	})

	for _, src := range sources {
		bm, err := e.render(ctx, src)
		if err != nil {
			return 0, err
		}
		current = bm
		s := bm.Section()
		if err := paginator.Add(s); err != nil {
			return 0, fmt.Errorf("section %d (%s): %w", s.Index, s.Name, err)
		}
		log.Debug("section laid out",
			zap.Int("index", s.Index),
			zap.String("name", s.Name),
			zap.Int("width_px", s.PixelWidth),
			zap.Int("height_px", s.PixelHeight),
			zap.Float64("height_mm", s.HeightMM(e.page)),
			zap.Int("page", paginator.PageNumber()))
		current = nil
	}

	if err := paginator.Finish(); err != nil {
		return 0, err
	}
	if err := writer.Output(w); err != nil {
		return 0, fmt.Errorf("failed to write PDF: %w", err)
	}
	return slices, nil
}

// writeEager renders every section first, then paginates and writes the
// whole instruction stream
func (e *Exporter) writeEager(ctx context.Context, writer *pdf.Renderer, meta pdf.RenderOptions, sources []Source, w *bytes.Buffer) (int, error) {
	bitmaps := make([]image.Image, len(sources))
	sections := make([]pagination.Section, len(sources))
	for i, src := range sources {
		bm, err := e.render(ctx, src)
		if err != nil {
			return 0, err
		}
		bitmaps[i] = bm.Image
		sections[i] = bm.Section()
	}

	_, ops, err := e.engine.Paginate(sections)
	if err != nil {
		return 0, err
	}

	slices := 0
	for _, op := range ops {
		if op.Kind == pagination.OpPlace && !op.Ref.Whole() {
			slices++
		}
	}

	if err := writer.Render(ops, func(section int) image.Image { return bitmaps[section] }, w, meta); err != nil {
		return 0, fmt.Errorf("failed to write PDF: %w", err)
	}
	return slices, nil
}

func (e *Exporter) render(ctx context.Context, src Source) (*capture.Bitmap, error) {
	if err := ctx.Err(); err != nil {
		return nil, capture.NewRenderError(capture.ErrCodeRenderTimeout, "export cancelled", err)
	}
	bm, err := e.renderer.Render(ctx, src)
	if err != nil {
		return nil, err
	}
	if bm == nil || bm.Image == nil {
		return nil, capture.NewRenderError(capture.ErrCodeRenderFailed, "renderer returned no bitmap for section "+src.Name, nil)
	}
	bm.Index = src.Index
	return bm, nil
}

// collect returns the request's sources in export order. Without explicit
// sources the HTML view is loaded and its marked sections are used, falling
// back to the whole container when nothing is marked.
func (e *Exporter) collect(ctx context.Context, log *zap.Logger, req *ExportRequest) ([]Source, error) {
	if len(req.Sources) > 0 {
		sources := make([]Source, len(req.Sources))
		for i, src := range req.Sources {
			src.Index = i
			sources[i] = src
		}
		return sources, nil
	}
	if strings.TrimSpace(req.HTML) == "" {
		return nil, ErrNoSources
	}
	if e.view == nil {
		return nil, capture.NewRenderError(capture.ErrCodeUnsupportedContent, "exporting an HTML view needs a view renderer", nil)
	}

	doc, err := html.NewParser().ParseString(req.HTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	refs := html.CollectSections(doc, html.CollectOptions{
		Marker:      e.options.SectionMarker,
		ContainerID: e.options.ContainerID,
	})
	if len(refs) == 0 {
		return nil, ErrNoSources
	}
	if refs[0].Fallback {
		log.Debug("no marked sections, exporting the container", zap.String("name", refs[0].Name))
	}

	annotated, err := doc.Render()
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}
	if err := e.view.LoadView(ctx, annotated); err != nil {
		return nil, err
	}

	sources := make([]Source, len(refs))
	for i, ref := range refs {
		sources[i] = Source{Index: i, Name: ref.Name, Selector: ref.Selector}
	}
	return sources, nil
}

// ExportBytes exports and returns the PDF bytes
func (e *Exporter) ExportBytes(ctx context.Context, req *ExportRequest) ([]byte, error) {
	result, err := e.Export(ctx, req)
	if err != nil {
		return nil, err
	}
	return result.Bytes, nil
}

// ExportToFile exports to outputPath. The file is only created once the export succeeded.
func (e *Exporter) ExportToFile(ctx context.Context, req *ExportRequest, outputPath string) (*ExportResult, error) {
	result, err := e.Export(ctx, req)
	if err != nil {
		return nil, err
	}

	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(outputDir, ".sectionpdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(result.Bytes); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return nil, fmt.Errorf("failed to move PDF into place: %w", err)
	}

	result.Location = outputPath
	return result, nil
}

// ExportToStore exports and saves the document in the configured store
func (e *Exporter) ExportToStore(ctx context.Context, req *ExportRequest) (*ExportResult, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	result, err := e.Export(ctx, req)
	if err != nil {
		return nil, err
	}

	saved, err := e.store.Save(ctx, &storage.SaveRequest{
		JobID: result.JobID,
		Name:  result.FileName,
		Data:  result.Bytes,
	})
	if err != nil {
		e.logger.Error("failed to store export", zap.Stringer("job_id", result.JobID), zap.Error(err))
		return nil, fmt.Errorf("failed to store export: %w", err)
	}
	result.Location = saved.Location
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
