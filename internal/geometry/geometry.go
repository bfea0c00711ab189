package geometry

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MMPerInch is the number of millimetres in one inch
	MMPerInch = 25.4
	// CSSPixelsPerInch is the reference resolution of an unscaled rendered view
	CSSPixelsPerInch = 96.0
	// EpsilonMM absorbs floating point noise in millimetre comparisons
	EpsilonMM = 1e-6
)

var (
	// ErrInvalidPageConfig is returned for negative lengths or a non-positive render scale
	ErrInvalidPageConfig = errors.New("invalid page config")
	// ErrNoUsableArea is returned when margins, header and footer leave no room for content
	ErrNoUsableArea = errors.New("page config leaves no usable area")
)

// PageConfig describes the physical page an export is laid out on.
// All lengths are millimetres. A PageConfig is fixed for one export.
type PageConfig struct {
	PageWidthMM    float64
	PageHeightMM   float64
	MarginMM       float64
	HeaderHeightMM float64
	FooterHeightMM float64
	SectionGapMM   float64
	// RenderScale is the oversampling factor renderers apply on top of 96 px/inch
	RenderScale float64
}

// DefaultPageConfig returns an A4 portrait page with 12mm margins,
// a 14mm header band, a 10mm footer band and a 4mm gap between sections.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		PageWidthMM:    210,
		PageHeightMM:   297,
		MarginMM:       12,
		HeaderHeightMM: 14,
		FooterHeightMM: 10,
		SectionGapMM:   4,
		RenderScale:    2,
	}
}

// Validate checks the construction-time preconditions of the page geometry
func (c PageConfig) Validate() error {
	for name, v := range map[string]float64{
		"page width":    c.PageWidthMM,
		"page height":   c.PageHeightMM,
		"margin":        c.MarginMM,
		"header height": c.HeaderHeightMM,
		"footer height": c.FooterHeightMM,
		"section gap":   c.SectionGapMM,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidPageConfig, name, v)
		}
	}
	if !(c.RenderScale > 0) {
		return fmt.Errorf("%w: render scale must be positive, got %v", ErrInvalidPageConfig, c.RenderScale)
	}
	if c.ContentWidthMM() <= 0 {
		return fmt.Errorf("%w: margins (2x%.2fmm) leave no content width on a %.2fmm page",
			ErrInvalidPageConfig, c.MarginMM, c.PageWidthMM)
	}
	if c.UsableAreaMM() <= 0 {
		return fmt.Errorf("%w: 2x%.2fmm margin + %.2fmm header + %.2fmm footer >= %.2fmm page height",
			ErrNoUsableArea, c.MarginMM, c.HeaderHeightMM, c.FooterHeightMM, c.PageHeightMM)
	}
	return nil
}

// MustValidate panics when the page config is malformed.
// A malformed page config is a programming error, not a runtime condition.
func (c PageConfig) MustValidate() {
	if err := c.Validate(); err != nil {
		panic(err)
	}
}

// UsableAreaMM is the vertical space left for content on every page
func (c PageConfig) UsableAreaMM() float64 {
	return c.PageHeightMM - 2*c.MarginMM - c.HeaderHeightMM - c.FooterHeightMM
}

// ContentWidthMM is the horizontal space between the left and right margins
func (c PageConfig) ContentWidthMM() float64 {
	return c.PageWidthMM - 2*c.MarginMM
}

// ContentTopMM is the page y coordinate where the usable area starts
func (c PageConfig) ContentTopMM() float64 {
	return c.MarginMM + c.HeaderHeightMM
}

// FooterTopMM is the page y coordinate where the footer band starts
func (c PageConfig) FooterTopMM() float64 {
	return c.PageHeightMM - c.MarginMM - c.FooterHeightMM
}

// ContentWidthPx is the bitmap width renderers should target so that one
// bitmap pixel row spans the content width at the configured oversampling.
func (c PageConfig) ContentWidthPx() int {
	return int(math.Round(c.ContentWidthMM() / MMPerInch * CSSPixelsPerInch * c.RenderScale))
}

// PxPerMM is the horizontal resolution of a bitmap that spans the content width.
// It is computed per bitmap since renderers may not hit the target width exactly.
func (c PageConfig) PxPerMM(pixelWidth int) float64 {
	return float64(pixelWidth) / c.ContentWidthMM()
}

// HeightMM is the placed height of a bitmap scaled to the content width
func (c PageConfig) HeightMM(pixelWidth, pixelHeight int) float64 {
	return PxToMM(pixelHeight, c.PxPerMM(pixelWidth))
}

// MMToPx converts a length to whole pixels, rounding half away from zero
func MMToPx(mm, pxPerMM float64) int {
	return int(math.Round(mm * pxPerMM))
}

// PxToMM converts a pixel count to a length
func PxToMM(px int, pxPerMM float64) float64 {
	return float64(px) / pxPerMM
}

// FitPx is the number of pixel rows that fit into a band of availMM.
// It uses the MMToPx rounding rule but never returns a count whose
// height overflows the band.
func FitPx(availMM, pxPerMM float64) int {
	if availMM <= 0 {
		return 0
	}
	px := MMToPx(availMM, pxPerMM)
	if px > 0 && PxToMM(px, pxPerMM) > availMM+EpsilonMM {
		px--
	}
	return px
}
