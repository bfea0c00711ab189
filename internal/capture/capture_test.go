package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gompdf/sectionpdf/internal/geometry"
	"github.com/gompdf/sectionpdf/internal/pagination"
	"github.com/gompdf/sectionpdf/internal/res"
)

const redBar = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50">
<rect x="0" y="0" width="100" height="50" fill="#ff0000"/>
</svg>`

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0x40, 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRasterRenderer(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.png"), pngBytes(t, 30, 70), 0o644))

	r := NewRasterRenderer(res.NewLoader(filepath.Join(dir, "index.html")))

	t.Run("inline data", func(t *testing.T) {
		bm, err := r.Render(ctx, Source{Index: 2, Name: "rates", Data: pngBytes(t, 12, 5)})
		require.NoError(t, err)
		assert.Equal(t, pagination.Section{Index: 2, Name: "rates", PixelWidth: 12, PixelHeight: 5}, bm.Section())
	})

	t.Run("path", func(t *testing.T) {
		bm, err := r.Render(ctx, Source{Index: 0, Path: "summary.png"})
		require.NoError(t, err)
		assert.Equal(t, "summary.png", bm.Name)
		assert.Equal(t, 70, bm.Section().PixelHeight)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := r.Render(ctx, Source{Path: "gone.png"})
		assert.Equal(t, ErrCodeResourceLoadFailed, ErrorCode(err))
		assert.True(t, errors.Is(err, res.ErrNotFound))
	})

	t.Run("undecodable", func(t *testing.T) {
		_, err := r.Render(ctx, Source{Data: []byte("not an image"), MIME: "image/png"})
		assert.Equal(t, ErrCodeUnsupportedContent, ErrorCode(err))
	})

	t.Run("no content", func(t *testing.T) {
		_, err := r.Render(ctx, Source{Name: "empty"})
		assert.Equal(t, ErrCodeUnsupportedContent, ErrorCode(err))
	})
}

func TestSVGRenderer(t *testing.T) {
	r := NewSVGRenderer(nil, 200)

	bm, err := r.Render(context.Background(), Source{Name: "chart", Data: []byte(redBar)})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 100), bm.Image.Bounds())

	cr, cg, cb, _ := bm.Image.At(100, 50).RGBA()
	assert.Equal(t, uint32(0xffff), cr)
	assert.Equal(t, uint32(0), cg)
	assert.Equal(t, uint32(0), cb)

	_, err = r.Render(context.Background(), Source{Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), MIME: mimeSVG})
	assert.Equal(t, ErrCodeUnsupportedContent, ErrorCode(err))

	_, err = NewSVGRenderer(nil, 0).Render(context.Background(), Source{Data: []byte(redBar)})
	assert.Error(t, err)
}

func TestMultiRenderer(t *testing.T) {
	ctx := context.Background()
	var viewCalls int
	view := RendererFunc(func(ctx context.Context, src Source) (*Bitmap, error) {
		viewCalls++
		return bitmapOf(src, image.NewRGBA(image.Rect(0, 0, 4, 9))), nil
	})
	m := NewMultiRenderer(nil, 50, view)

	bm, err := m.Render(ctx, Source{Index: 0, Data: []byte(redBar)})
	require.NoError(t, err)
	assert.Equal(t, 50, bm.Image.Bounds().Dx())
	assert.Equal(t, 25, bm.Image.Bounds().Dy())

	bm, err = m.Render(ctx, Source{Index: 1, Data: pngBytes(t, 8, 3)})
	require.NoError(t, err)
	assert.Equal(t, 3, bm.Section().PixelHeight)

	bm, err = m.Render(ctx, Source{Index: 2, Selector: `[data-export-index="2"]`})
	require.NoError(t, err)
	assert.Equal(t, 1, viewCalls)
	assert.Equal(t, `[data-export-index="2"]`, bm.Name)

	_, err = NewMultiRenderer(nil, 50, nil).Render(ctx, Source{Selector: "#x"})
	assert.Equal(t, ErrCodeUnsupportedContent, ErrorCode(err))
}

func TestRenderError(t *testing.T) {
	cause := errors.New("boom")
	err := NewRenderError(ErrCodeRenderFailed, "capture failed", cause)
	assert.Equal(t, "capture failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "plain", NewRenderError(ErrCodeRenderFailed, "plain", nil).Error())
	assert.Equal(t, "", ErrorCode(cause))
}

func TestChromeRendererWithoutBrowser(t *testing.T) {
	_, err := NewChromeRenderer(geometry.PageConfig{}, nil)
	require.Error(t, err)

	r, err := NewChromeRenderer(geometry.DefaultPageConfig(), &ChromeConfig{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, defaultChromeTimeout, r.config.Timeout)
	assert.Equal(t, int64(703), r.viewportPx)
	assert.Equal(t, 2.0, r.scale)

	_, err = r.Render(context.Background(), Source{Name: "nothing"})
	assert.Equal(t, ErrCodeUnsupportedContent, ErrorCode(err))

	_, err = r.Render(context.Background(), Source{Selector: "#a"})
	assert.Equal(t, ErrCodeRenderFailed, ErrorCode(err))

	err = r.LoadView(context.Background(), "   ")
	assert.Equal(t, ErrCodeUnsupportedContent, ErrorCode(err))
}

func chromeAvailable() bool {
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func TestChromeRendererCapturesSectionsAfterLoad(t *testing.T) {
	if !chromeAvailable() {
		t.Skip("no Chrome binary on PATH")
	}

	r, err := NewChromeRenderer(geometry.DefaultPageConfig(), &ChromeConfig{
		Timeout:   20 * time.Second,
		NoSandbox: true,
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	require.NoError(t, r.LoadView(ctx, `<html><head><style>
		body { margin: 0 }
		div { height: 100px; background: #1f3a5f }
	</style></head><body>
		<div data-export-index="0"></div>
		<div data-export-index="1" style="height: 40px"></div>
	</body></html>`))

	first, err := r.Render(ctx, Source{Index: 0, Selector: `[data-export-index="0"]`})
	require.NoError(t, err)
	second, err := r.Render(ctx, Source{Index: 1, Selector: `[data-export-index="1"]`})
	require.NoError(t, err)

	assert.InDelta(t, 200, first.Section().PixelHeight, 2)
	assert.InDelta(t, 80, second.Section().PixelHeight, 2)
	assert.InDelta(t, 1406, first.Section().PixelWidth, 2)
}

func TestChromeErrorClassification(t *testing.T) {
	r := &ChromeRenderer{config: &ChromeConfig{Timeout: time.Second}, logger: zaptest.NewLogger(t)}
	failure := errors.New("devtools gone")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.classify(cancelled, cancelled, "capturing #a", failure)
	assert.Equal(t, ErrCodeRenderTimeout, ErrorCode(err))

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	err = r.classify(context.Background(), expired, "capturing #a", failure)
	assert.Equal(t, ErrCodeRenderTimeout, ErrorCode(err))
	assert.Contains(t, err.Error(), "timed out after 1s")

	err = r.classify(context.Background(), context.Background(), "capturing #a", failure)
	assert.Equal(t, ErrCodeRenderFailed, ErrorCode(err))
	assert.ErrorIs(t, err, failure)
}
