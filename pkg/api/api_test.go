package api

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gompdf/sectionpdf/internal/capture"
	"github.com/gompdf/sectionpdf/internal/entitlement"
	"github.com/gompdf/sectionpdf/internal/pagination"
	"github.com/gompdf/sectionpdf/internal/storage"
)

// On the default A4 page the content area is 186mm wide, so a 186px wide
// bitmap maps one pixel to one millimetre and the usable height is 249mm.
const contentPx = 186

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(y % 256), G: 80, B: 160, A: 255})
		}
	}
	return img
}

// heightRenderer renders each named source as a content-wide bitmap of the
// mapped height in pixels
type heightRenderer struct {
	heights map[string]int
	mu      sync.Mutex
	calls   []string
}

func (r *heightRenderer) Render(_ context.Context, src capture.Source) (*capture.Bitmap, error) {
	r.mu.Lock()
	r.calls = append(r.calls, src.Name)
	r.mu.Unlock()
	h, ok := r.heights[src.Name]
	if !ok {
		return nil, capture.NewRenderError(capture.ErrCodeRenderFailed, "unknown section "+src.Name, nil)
	}
	return &capture.Bitmap{Index: src.Index, Name: src.Name, Image: solid(contentPx, h)}, nil
}

type fakeView struct {
	heightRenderer
	loaded string
}

func (v *fakeView) LoadView(_ context.Context, html string) error {
	v.loaded = html
	return nil
}

func sources(names ...string) []Source {
	out := make([]Source, len(names))
	for i, n := range names {
		out[i] = Source{Name: n}
	}
	return out
}

func newTestExporter(t *testing.T, r capture.Renderer, deps ...Dependency) *Exporter {
	t.Helper()
	e, err := NewExporter(NewOptions(WithTitle("Loan comparison")), append([]Dependency{WithRenderer(r)}, deps...)...)
	require.NoError(t, err)
	return e
}

func TestExportSmallSectionsShareAPage(t *testing.T) {
	r := &heightRenderer{heights: map[string]int{"summary": 60, "table": 70, "chart": 80}}
	e := newTestExporter(t, r)

	result, err := e.Export(context.Background(), &ExportRequest{Sources: sources("summary", "table", "chart")})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 3, result.Sections)
	assert.Equal(t, 0, result.Slices)
	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, "Loan-comparison.pdf", result.FileName)
	assert.True(t, bytes.HasPrefix(result.Bytes, []byte("%PDF-")))
	assert.Equal(t, []string{"summary", "table", "chart"}, r.calls)
	assert.False(t, e.Busy())
}

func TestExportSplitsTallSection(t *testing.T) {
	r := &heightRenderer{heights: map[string]int{"schedule": 600}}
	e := newTestExporter(t, r)

	result, err := e.Export(context.Background(), &ExportRequest{
		FileName: "schedule",
		Sources:  sources("schedule"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 3, result.Slices)
	assert.Equal(t, "schedule.pdf", result.FileName)
}

func TestExportSectionAfterSplitStartsNewPage(t *testing.T) {
	r := &heightRenderer{heights: map[string]int{"schedule": 300, "notes": 20}}

	e := newTestExporter(t, r)
	result, err := e.Export(context.Background(), &ExportRequest{Sources: sources("schedule", "notes")})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Pages)

	reuse, err := NewExporter(NewOptions(WithTailPolicy(TailReuse)), WithRenderer(r))
	require.NoError(t, err)
	result, err = reuse.Export(context.Background(), &ExportRequest{Sources: sources("schedule", "notes")})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pages)
}

func TestExportEagerMatchesLazy(t *testing.T) {
	heights := map[string]int{"a": 120, "b": 400, "c": 40}

	lazy := newTestExporter(t, &heightRenderer{heights: heights})
	eager, err := NewExporter(NewOptions(WithRenderMode(RenderEager)), WithRenderer(&heightRenderer{heights: heights}))
	require.NoError(t, err)

	l, err := lazy.Export(context.Background(), &ExportRequest{Sources: sources("a", "b", "c")})
	require.NoError(t, err)
	g, err := eager.Export(context.Background(), &ExportRequest{Sources: sources("a", "b", "c")})
	require.NoError(t, err)

	assert.Equal(t, l.Pages, g.Pages)
	assert.Equal(t, l.Slices, g.Slices)
	assert.Equal(t, 3, g.Slices)
	assert.Equal(t, 4, g.Pages)
	assert.True(t, bytes.HasPrefix(g.Bytes, []byte("%PDF-")))
}

func TestExportHTMLMarkedSections(t *testing.T) {
	view := &fakeView{heightRenderer: heightRenderer{heights: map[string]int{"inputs": 50, "results": 90}}}
	e := newTestExporter(t, view, WithViewRenderer(view))

	result, err := e.Export(context.Background(), &ExportRequest{HTML: `<html><body>
		<div id="calc">
			<section data-export-section="inputs">form</section>
			<aside>ad</aside>
			<section data-export-section="results">table</section>
		</div>
	</body></html>`})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 2, result.Sections)
	assert.Equal(t, []string{"inputs", "results"}, view.calls)
	assert.Contains(t, view.loaded, `data-export-index="0"`)
	assert.Contains(t, view.loaded, `data-export-index="1"`)
}

func TestExportHTMLFallsBackToContainer(t *testing.T) {
	view := &fakeView{heightRenderer: heightRenderer{heights: map[string]int{"page": 50}}}
	var captured []capture.Source
	r := capture.RendererFunc(func(ctx context.Context, src capture.Source) (*capture.Bitmap, error) {
		captured = append(captured, src)
		return &capture.Bitmap{Index: src.Index, Name: src.Name, Image: solid(contentPx, 50)}, nil
	})
	e := newTestExporter(t, r, WithViewRenderer(view))

	result, err := e.Export(context.Background(), &ExportRequest{HTML: `<html><body><p>no markers</p></body></html>`})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 1, result.Sections)
	require.Len(t, captured, 1)
	assert.Equal(t, `[data-export-index="0"]`, captured[0].Selector)
	assert.Contains(t, view.loaded, `<body data-export-index="0">`)
}

func TestExportHTMLNeedsViewRenderer(t *testing.T) {
	e := newTestExporter(t, &heightRenderer{})
	_, err := e.Export(context.Background(), &ExportRequest{HTML: "<p>x</p>"})
	require.Error(t, err)
	assert.Equal(t, capture.ErrCodeUnsupportedContent, capture.ErrorCode(err))
}

func TestExportAbortsOnRenderError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := &heightRenderer{heights: map[string]int{"summary": 60}}
	e, err := NewExporter(NewOptions(WithLogger(zap.New(core))), WithRenderer(r))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "export.pdf")
	_, err = e.ExportToFile(context.Background(), &ExportRequest{Sources: sources("summary", "missing")}, out)
	require.Error(t, err)
	assert.Equal(t, capture.ErrCodeRenderFailed, capture.ErrorCode(err))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no partial document is written")
	assert.False(t, e.Busy())

	failed := logs.FilterMessage("export failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Equal(t, capture.ErrCodeRenderFailed, failed[0].ContextMap()["code"])

	// the exporter is usable again
	_, err = e.Export(context.Background(), &ExportRequest{Sources: sources("summary")})
	assert.NoError(t, err)
}

func TestExportCancelled(t *testing.T) {
	e := newTestExporter(t, &heightRenderer{heights: map[string]int{"a": 10}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Export(ctx, &ExportRequest{Sources: sources("a")})
	require.Error(t, err)
	assert.Equal(t, capture.ErrCodeRenderTimeout, capture.ErrorCode(err))
}

func TestExportRejectsConcurrentExport(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	r := capture.RendererFunc(func(ctx context.Context, src capture.Source) (*capture.Bitmap, error) {
		close(started)
		<-release
		return &capture.Bitmap{Index: src.Index, Name: src.Name, Image: solid(contentPx, 10)}, nil
	})
	e := newTestExporter(t, r)

	done := make(chan error, 1)
	go func() {
		_, err := e.Export(context.Background(), &ExportRequest{Sources: sources("slow")})
		done <- err
	}()

	<-started
	assert.True(t, e.Busy())
	_, err := e.Export(context.Background(), &ExportRequest{Sources: sources("other")})
	assert.ErrorIs(t, err, ErrExportInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, e.Busy())
}

func TestExportEntitlement(t *testing.T) {
	flags := entitlement.NewFlagChecker(entitlement.NewMemoryFlagStore())
	e := newTestExporter(t, &heightRenderer{heights: map[string]int{"a": 10}}, WithEntitlement(flags))
	ctx := context.Background()

	assert.False(t, e.Offered(ctx, "visitor-1"))
	_, err := e.Export(ctx, &ExportRequest{Subject: "visitor-1", Sources: sources("a")})
	assert.ErrorIs(t, err, ErrNotEntitled)
	assert.False(t, e.Busy())

	require.NoError(t, flags.Grant(ctx, "visitor-1", 0))
	assert.True(t, e.Offered(ctx, "visitor-1"))
	_, err = e.Export(ctx, &ExportRequest{Subject: "visitor-1", Sources: sources("a")})
	assert.NoError(t, err)
}

func TestExportNoSources(t *testing.T) {
	e := newTestExporter(t, &heightRenderer{})
	_, err := e.Export(context.Background(), &ExportRequest{})
	assert.ErrorIs(t, err, ErrNoSources)

	_, err = e.Export(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewExporterRejectsUnusablePage(t *testing.T) {
	_, err := NewExporter(NewOptions(WithBands(150, 150)))
	assert.Error(t, err)

	_, err = New(WithMargin(-1))
	assert.Error(t, err)
}

func TestExportDefaultRendererDecodesImages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(372, 100)))

	e, err := New()
	require.NoError(t, err)

	result, err := e.Export(context.Background(), &ExportRequest{Sources: []Source{
		{Name: "chart", Data: buf.Bytes()},
		{Name: "logo", Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 10"><rect width="40" height="10" fill="#c00"/></svg>`)},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, 2, result.Sections)
}

func TestExportToStore(t *testing.T) {
	e := newTestExporter(t, &heightRenderer{heights: map[string]int{"a": 10}})
	_, err := e.ExportToStore(context.Background(), &ExportRequest{Sources: sources("a")})
	assert.ErrorIs(t, err, ErrNoStore)

	base := t.TempDir()
	store, err := storage.NewFileSystemStore(&storage.FileSystemConfig{BasePath: base})
	require.NoError(t, err)
	e = newTestExporter(t, &heightRenderer{heights: map[string]int{"a": 10}}, WithStore(store))

	result, err := e.ExportToStore(context.Background(), &ExportRequest{FileName: "My rates", Sources: sources("a")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Location, base))
	assert.True(t, strings.HasSuffix(result.Location, result.JobID.String()+"-My-rates.pdf"))

	data, err := os.ReadFile(result.Location)
	require.NoError(t, err)
	assert.Equal(t, result.Bytes, data)
}

func TestExportBytes(t *testing.T) {
	e := newTestExporter(t, &heightRenderer{heights: map[string]int{"a": 10}})
	data, err := e.ExportBytes(context.Background(), &ExportRequest{Sources: sources("a")})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = e.ExportBytes(context.Background(), &ExportRequest{Sources: sources("nope")})
	assert.Error(t, err)
}

func TestPageCount(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	count, err := e.PageCount([]pagination.Section{
		{Index: 0, PixelWidth: contentPx, PixelHeight: 100},
		{Index: 1, PixelWidth: contentPx, PixelHeight: 100},
		{Index: 2, PixelWidth: contentPx, PixelHeight: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = e.PageCount(nil)
	assert.ErrorIs(t, err, pagination.ErrNoSections)
}
