package capture

import (
	"context"

	"github.com/gompdf/sectionpdf/internal/res"
)

// MultiRenderer picks a renderer per source: selectors go to the view
// renderer, SVG to the vector renderer and everything else is decoded as raster.
type MultiRenderer struct {
	loader *res.Loader
	svg    *SVGRenderer
	raster *RasterRenderer
	view   Renderer
}

// NewMultiRenderer creates a dispatching renderer. view may be nil when no HTML view is exported.
func NewMultiRenderer(loader *res.Loader, widthPx int, view Renderer) *MultiRenderer {
	return &MultiRenderer{
		loader: loader,
		svg:    NewSVGRenderer(loader, widthPx),
		raster: NewRasterRenderer(loader),
		view:   view,
	}
}

// Render dispatches src
func (m *MultiRenderer) Render(ctx context.Context, src Source) (*Bitmap, error) {
	if len(src.Data) == 0 && src.Path == "" && src.Selector != "" {
		if m.view == nil {
			return nil, NewRenderError(ErrCodeUnsupportedContent, "no view renderer for selector "+src.Selector, nil)
		}
		return m.view.Render(ctx, src)
	}

	data, mime, err := load(ctx, m.loader, src)
	if err != nil {
		return nil, err
	}
	if isSVG(mime, src.Path) {
		return m.svg.rasterize(src, data)
	}
	return m.raster.decode(src, data)
}
