package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"

	"github.com/gompdf/sectionpdf/internal/res"
)

// SVGRenderer rasterizes vector sections at a fixed pixel width
type SVGRenderer struct {
	loader  *res.Loader
	widthPx int
}

// NewSVGRenderer creates an SVG renderer producing bitmaps widthPx wide
func NewSVGRenderer(loader *res.Loader, widthPx int) *SVGRenderer {
	return &SVGRenderer{loader: loader, widthPx: widthPx}
}

// Render rasterizes the source onto a white background, keeping the view box aspect ratio
func (r *SVGRenderer) Render(ctx context.Context, src Source) (*Bitmap, error) {
	data, _, err := load(ctx, r.loader, src)
	if err != nil {
		return nil, err
	}
	return r.rasterize(src, data)
}

// rasterize turns already loaded SVG bytes into a bitmap
func (r *SVGRenderer) rasterize(src Source, data []byte) (*Bitmap, error) {
	img, err := rasterizeSVG(data, r.widthPx)
	if err != nil {
		return nil, NewRenderError(ErrCodeUnsupportedContent, "cannot rasterize section "+src.label(), err)
	}
	return bitmapOf(src, img), nil
}

func rasterizeSVG(data []byte, widthPx int) (*image.RGBA, error) {
	if widthPx <= 0 {
		return nil, fmt.Errorf("invalid target width %d", widthPx)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, err
	}
	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		return nil, fmt.Errorf("svg has no view box")
	}

	h := int(math.Round(float64(widthPx) * vh / vw))
	if h < 1 {
		h = 1
	}
	icon.SetTarget(0, 0, float64(widthPx), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, widthPx, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(widthPx, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(widthPx, h, scanner), 1)
	return img, nil
}
