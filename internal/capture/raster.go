package capture

import (
	"bytes"
	"context"
	"image"

	"github.com/gompdf/sectionpdf/internal/res"
)

// RasterRenderer decodes pre-rendered section images
type RasterRenderer struct {
	loader *res.Loader
}

// NewRasterRenderer creates a raster renderer; a nil loader resolves paths as plain files
func NewRasterRenderer(loader *res.Loader) *RasterRenderer {
	return &RasterRenderer{loader: loader}
}

// Render decodes the source image
func (r *RasterRenderer) Render(ctx context.Context, src Source) (*Bitmap, error) {
	data, _, err := load(ctx, r.loader, src)
	if err != nil {
		return nil, err
	}
	return r.decode(src, data)
}

// decode turns already loaded image bytes into a bitmap
func (r *RasterRenderer) decode(src Source, data []byte) (*Bitmap, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, NewRenderError(ErrCodeUnsupportedContent, "cannot decode section "+src.label(), err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "empty "+format+" bitmap for section "+src.label(), nil)
	}
	return bitmapOf(src, img), nil
}
