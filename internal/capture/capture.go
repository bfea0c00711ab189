// Package capture turns export sections into bitmaps.
package capture

import (
	"bytes"
	"context"
	"image"
	"path/filepath"
	"strings"

	"github.com/gompdf/sectionpdf/internal/pagination"
	"github.com/gompdf/sectionpdf/internal/res"
)

// Source describes one section to be rendered. Image sources carry Path or
// Data; sections of a loaded HTML view carry a Selector.
type Source struct {
	Index    int
	Name     string
	Selector string
	Path     string
	Data     []byte
	MIME     string
}

// Bitmap is a rendered section
type Bitmap struct {
	Index int
	Name  string
	Image image.Image
}

// Section returns the paginator's view of the bitmap
func (b *Bitmap) Section() pagination.Section {
	bounds := b.Image.Bounds()
	return pagination.Section{
		Index:       b.Index,
		Name:        b.Name,
		PixelWidth:  bounds.Dx(),
		PixelHeight: bounds.Dy(),
	}
}

// Renderer produces the bitmap of one section
type Renderer interface {
	Render(ctx context.Context, src Source) (*Bitmap, error)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(ctx context.Context, src Source) (*Bitmap, error)

// Render calls f
func (f RendererFunc) Render(ctx context.Context, src Source) (*Bitmap, error) {
	return f(ctx, src)
}

// load returns the bytes and MIME type of an image source
func load(ctx context.Context, loader *res.Loader, src Source) ([]byte, string, error) {
	if len(src.Data) > 0 {
		mime := src.MIME
		if mime == "" {
			mime = sniff(src.Data)
		}
		return src.Data, mime, nil
	}
	if src.Path == "" {
		return nil, "", NewRenderError(ErrCodeUnsupportedContent, "section "+src.label()+" has no content", nil)
	}
	if loader == nil {
		loader = res.NewLoader("")
	}
	r, err := loader.LoadImage(ctx, src.Path)
	if err != nil {
		return nil, "", NewRenderError(ErrCodeResourceLoadFailed, "failed to load "+src.Path, err)
	}
	mime := src.MIME
	if mime == "" {
		mime = r.MimeType
	}
	return r.Data, mime, nil
}

func sniff(data []byte) string {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.Contains(head, []byte("<svg")) {
		return mimeSVG
	}
	return "application/octet-stream"
}

const mimeSVG = "image/svg+xml"

func isSVG(mime, path string) bool {
	return strings.EqualFold(mime, mimeSVG) || strings.EqualFold(filepath.Ext(path), ".svg")
}

func (s Source) label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Path != "" {
		return s.Path
	}
	return s.Selector
}

func bitmapOf(src Source, img image.Image) *Bitmap {
	name := src.Name
	if name == "" {
		name = src.label()
	}
	return &Bitmap{Index: src.Index, Name: name, Image: img}
}
