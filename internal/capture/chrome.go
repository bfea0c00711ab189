package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/gompdf/sectionpdf/internal/geometry"
)

const (
	defaultChromeTimeout  = 30 * time.Second
	defaultViewportHeight = 1024
)

// ChromeConfig contains configuration for the Chrome section renderer
type ChromeConfig struct {
	// Timeout bounds loading the view and each section screenshot
	Timeout time.Duration
	// RemoteURL is the DevTools URL of a running browser (optional).
	// If empty, a headless browser is launched.
	RemoteURL string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Logger for debug output
	Logger *zap.Logger
}

// ChromeRenderer screenshots the sections of an HTML view. The view is loaded
// once with LoadView; every Render captures one selector of that view.
type ChromeRenderer struct {
	config      *ChromeConfig
	logger      *zap.Logger
	viewportPx  int64
	scale       float64
	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu        sync.Mutex
	tabCtx    context.Context
	tabCancel context.CancelFunc
}

// NewChromeRenderer creates a renderer whose viewport matches the page content
// width; screenshots are taken at the page's render scale.
func NewChromeRenderer(pageCfg geometry.PageConfig, config *ChromeConfig) (*ChromeRenderer, error) {
	if err := pageCfg.Validate(); err != nil {
		return nil, err
	}
	if config == nil {
		config = &ChromeConfig{}
	}
	if config.Timeout == 0 {
		config.Timeout = defaultChromeTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromeRenderer{
		config:     config,
		logger:     logger,
		viewportPx: int64(math.Round(pageCfg.ContentWidthMM() / geometry.MMPerInch * geometry.CSSPixelsPerInch)),
		scale:      pageCfg.RenderScale,
	}
	r.initAllocator()
	return r, nil
}

func (r *ChromeRenderer) initAllocator() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if r.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	if r.config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.config.RemoteURL)
	} else {
		r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
}

// LoadView opens a tab holding html. A previously loaded view is discarded.
func (r *ChromeRenderer) LoadView(ctx context.Context, html string) error {
	if strings.TrimSpace(html) == "" {
		return NewRenderError(ErrCodeUnsupportedContent, "HTML view is empty", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeTab()

	tabCtx, tabCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// The first Run starts the browser and the tab. It must not carry the
	// per-step timeout: the exec allocator ties the Chrome process to the
	// context of that call.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		r.logger.Error("chromedp browser start failed", zap.Error(err))
		return NewRenderError(ErrCodeRenderFailed, "starting browser failed", err)
	}

	err := r.run(ctx, tabCtx, "loading view",
		chromedp.EmulateViewport(r.viewportPx, defaultViewportHeight),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		tabCancel()
		return err
	}

	r.tabCtx, r.tabCancel = tabCtx, tabCancel
	r.logger.Debug("view loaded", zap.Int64("viewport_px", r.viewportPx), zap.Float64("scale", r.scale))
	return nil
}

// Render screenshots the element matched by src.Selector
func (r *ChromeRenderer) Render(ctx context.Context, src Source) (*Bitmap, error) {
	if src.Selector == "" {
		return nil, NewRenderError(ErrCodeUnsupportedContent, "section "+src.label()+" has no selector", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tabCtx == nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "no view loaded", nil)
	}

	var buf []byte
	err := r.run(ctx, r.tabCtx, "capturing "+src.Selector,
		chromedp.ScreenshotScale(src.Selector, r.scale, &buf, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "empty screenshot for "+src.Selector, nil)
	}

	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "cannot decode screenshot for "+src.Selector, err)
	}
	r.logger.Debug("section captured",
		zap.Int("index", src.Index),
		zap.String("selector", src.Selector),
		zap.Int("width_px", img.Bounds().Dx()),
		zap.Int("height_px", img.Bounds().Dy()))
	return bitmapOf(src, img), nil
}

// run executes actions in tabCtx bounded by the configured timeout and by ctx
func (r *ChromeRenderer) run(ctx, tabCtx context.Context, what string, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(tabCtx, r.config.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	return r.classify(ctx, runCtx, what, err)
}

func (r *ChromeRenderer) classify(ctx, runCtx context.Context, what string, err error) error {
	switch {
	case ctx.Err() != nil:
		return NewRenderError(ErrCodeRenderTimeout, what+" was cancelled", err)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return NewRenderError(ErrCodeRenderTimeout,
			fmt.Sprintf("%s timed out after %v", what, r.config.Timeout), err)
	}
	r.logger.Error("chromedp rendering failed", zap.String("step", what), zap.Error(err))
	return NewRenderError(ErrCodeRenderFailed, what+" failed", err)
}

func (r *ChromeRenderer) closeTab() {
	if r.tabCancel != nil {
		r.tabCancel()
	}
	r.tabCtx, r.tabCancel = nil, nil
}

// Close releases the tab and the browser
func (r *ChromeRenderer) Close() error {
	r.mu.Lock()
	r.closeTab()
	r.mu.Unlock()
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

var _ Renderer = (*ChromeRenderer)(nil)
