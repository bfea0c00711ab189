package api

import (
	"go.uber.org/zap"

	"github.com/gompdf/sectionpdf/internal/geometry"
	"github.com/gompdf/sectionpdf/internal/pagination"
)

// Options represents configuration options for the section exporter.
// All lengths are millimetres.
type Options struct {
	// Page dimensions
	PageWidth  float64
	PageHeight float64
	// Page orientation: portrait or landscape
	PageOrientation PageOrientation

	// Margin applies to all four sides
	Margin       float64
	HeaderHeight float64
	FooterHeight float64
	// SectionGap separates consecutive sections on a page
	SectionGap float64
	// RenderScale oversamples section bitmaps for print sharpness
	RenderScale float64

	// Layout behaviour
	TailPolicy TailPolicy
	RenderMode RenderMode

	// Header and footer bands
	HeaderMark  string
	HeaderLabel string
	FooterBrand string
	AccentColor string

	// Section collection from HTML views
	SectionMarker string
	ContainerID   string

	// Resource paths
	ResourcePaths []string

	// Document metadata
	Title    string
	Author   string
	Subject  string
	Keywords string

	Logger *zap.Logger
}

// Option is a function that modifies Options
type Option func(*Options)

// PageOrientation represents page orientation
type PageOrientation string

const (
	// PageOrientationPortrait sets the page to portrait orientation
	PageOrientationPortrait PageOrientation = "portrait"
	// PageOrientationLandscape sets the page to landscape orientation
	PageOrientationLandscape PageOrientation = "landscape"
)

// TailPolicy decides where layout continues after a split section
type TailPolicy = pagination.TailPolicy

const (
	TailNewPage = pagination.TailNewPage
	TailReuse   = pagination.TailReuse
)

// RenderMode decides when section bitmaps are produced
type RenderMode int

const (
	// RenderLazy renders each section just before it is laid out, so only one bitmap is alive at a time
	RenderLazy RenderMode = iota
	// RenderEager renders every section before layout starts
	RenderEager
)

func (m RenderMode) String() string {
	if m == RenderEager {
		return "eager"
	}
	return "lazy"
}

// DefaultOptions returns the default options
func DefaultOptions() Options {
	page := geometry.DefaultPageConfig()
	return Options{
		PageWidth:       page.PageWidthMM,
		PageHeight:      page.PageHeightMM,
		PageOrientation: PageOrientationPortrait,

		Margin:       page.MarginMM,
		HeaderHeight: page.HeaderHeightMM,
		FooterHeight: page.FooterHeightMM,
		SectionGap:   page.SectionGapMM,
		RenderScale:  page.RenderScale,

		TailPolicy: TailNewPage,
		RenderMode: RenderLazy,

		FooterBrand: "sectionpdf",
		AccentColor: "#1f3a5f",

		ResourcePaths: []string{},
	}
}

// PageConfig returns the page geometry, with width and height ordered by orientation
func (o Options) PageConfig() geometry.PageConfig {
	width, height := o.PageWidth, o.PageHeight
	switch o.PageOrientation {
	case PageOrientationLandscape:
		if width < height {
			width, height = height, width
		}
	case PageOrientationPortrait, "":
		if width > height {
			width, height = height, width
		}
	}
	return geometry.PageConfig{
		PageWidthMM:    width,
		PageHeightMM:   height,
		MarginMM:       o.Margin,
		HeaderHeightMM: o.HeaderHeight,
		FooterHeightMM: o.FooterHeight,
		SectionGapMM:   o.SectionGap,
		RenderScale:    o.RenderScale,
	}
}

// WithPageSize sets the page size
func WithPageSize(width, height float64) Option {
	return func(o *Options) {
		o.PageWidth = width
		o.PageHeight = height
	}
}

// WithPageOrientation sets the page orientation
func WithPageOrientation(orientation PageOrientation) Option {
	return func(o *Options) {
		o.PageOrientation = orientation
	}
}

// WithMargin sets the page margin
func WithMargin(margin float64) Option {
	return func(o *Options) {
		o.Margin = margin
	}
}

// WithBands sets the header and footer heights
func WithBands(header, footer float64) Option {
	return func(o *Options) {
		o.HeaderHeight = header
		o.FooterHeight = footer
	}
}

// WithSectionGap sets the space between sections
func WithSectionGap(gap float64) Option {
	return func(o *Options) {
		o.SectionGap = gap
	}
}

// WithRenderScale sets the bitmap oversampling factor
func WithRenderScale(scale float64) Option {
	return func(o *Options) {
		o.RenderScale = scale
	}
}

// WithTailPolicy sets what follows a split section
func WithTailPolicy(policy TailPolicy) Option {
	return func(o *Options) {
		o.TailPolicy = policy
	}
}

// WithRenderMode sets when sections are rendered
func WithRenderMode(mode RenderMode) Option {
	return func(o *Options) {
		o.RenderMode = mode
	}
}

// WithHeaderMark sets the product mark
func WithHeaderMark(mark string) Option {
	return func(o *Options) {
		o.HeaderMark = mark
	}
}

// WithHeaderLabel sets the destination label
func WithHeaderLabel(label string) Option {
	return func(o *Options) {
		o.HeaderLabel = label
	}
}

// WithFooterBrand sets the footer brand
func WithFooterBrand(brand string) Option {
	return func(o *Options) {
		o.FooterBrand = brand
	}
}

// WithAccentColor sets the #RRGGBB band colour
func WithAccentColor(color string) Option {
	return func(o *Options) {
		o.AccentColor = color
	}
}

// WithSectionMarker sets the attribute that marks exportable sections
func WithSectionMarker(attr string) Option {
	return func(o *Options) {
		o.SectionMarker = attr
	}
}

// WithContainerID sets the element exported whole when no section is marked
func WithContainerID(id string) Option {
	return func(o *Options) {
		o.ContainerID = id
	}
}

// WithResourcePath adds a resource path
func WithResourcePath(path string) Option {
	return func(o *Options) {
		o.ResourcePaths = append(o.ResourcePaths, path)
	}
}

// WithTitle sets the document title
func WithTitle(title string) Option {
	return func(o *Options) {
		o.Title = title
	}
}

// WithAuthor sets the document author
func WithAuthor(author string) Option {
	return func(o *Options) {
		o.Author = author
	}
}

// WithSubject sets the document subject
func WithSubject(subject string) Option {
	return func(o *Options) {
		o.Subject = subject
	}
}

// WithKeywords sets the document keywords
func WithKeywords(keywords string) Option {
	return func(o *Options) {
		o.Keywords = keywords
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Standard page sizes in millimetres
const (
	PageSizeA3Width  = 297
	PageSizeA3Height = 420
	PageSizeA4Width  = 210
	PageSizeA4Height = 297
	PageSizeA5Width  = 148
	PageSizeA5Height = 210

	// US Letter and Legal
	PageSizeLetterWidth  = 215.9
	PageSizeLetterHeight = 279.4
	PageSizeLegalWidth   = 215.9
	PageSizeLegalHeight  = 355.6
)

// WithPageSizeA4 sets the page size to A4
func WithPageSizeA4() Option {
	return WithPageSize(PageSizeA4Width, PageSizeA4Height)
}

// WithPageSizeA5 sets the page size to A5
func WithPageSizeA5() Option {
	return WithPageSize(PageSizeA5Width, PageSizeA5Height)
}

// WithPageSizeLetter sets the page size to US Letter
func WithPageSizeLetter() Option {
	return WithPageSize(PageSizeLetterWidth, PageSizeLetterHeight)
}

// WithPageSizeLegal sets the page size to US Legal
func WithPageSizeLegal() Option {
	return WithPageSize(PageSizeLegalWidth, PageSizeLegalHeight)
}

// NewOptions applies opts to DefaultOptions
func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
