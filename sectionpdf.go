package sectionpdf

import (
	"github.com/gompdf/sectionpdf/pkg/api"
)

type Exporter = api.Exporter
type Options = api.Options
type Option = api.Option
type Dependency = api.Dependency
type Source = api.Source
type ExportRequest = api.ExportRequest
type ExportResult = api.ExportResult
type ViewRenderer = api.ViewRenderer
type PageOrientation = api.PageOrientation
type TailPolicy = api.TailPolicy
type RenderMode = api.RenderMode

func New(opts ...Option) (*Exporter, error) { return api.New(opts...) }
func NewExporter(options Options, deps ...Dependency) (*Exporter, error) {
	return api.NewExporter(options, deps...)
}
func DefaultOptions() Options           { return api.DefaultOptions() }
func NewOptions(opts ...Option) Options { return api.NewOptions(opts...) }

var (
	ErrNotEntitled      = api.ErrNotEntitled
	ErrExportInProgress = api.ErrExportInProgress
	ErrNoSources        = api.ErrNoSources
	ErrNoStore          = api.ErrNoStore
)

var (
	WithRenderer     = api.WithRenderer
	WithViewRenderer = api.WithViewRenderer
	WithEntitlement  = api.WithEntitlement
	WithStore        = api.WithStore
)

var (
	WithPageSize        = api.WithPageSize
	WithPageOrientation = api.WithPageOrientation
	WithMargin          = api.WithMargin
	WithBands           = api.WithBands
	WithSectionGap      = api.WithSectionGap
	WithRenderScale     = api.WithRenderScale
	WithTailPolicy      = api.WithTailPolicy
	WithRenderMode      = api.WithRenderMode
	WithHeaderMark      = api.WithHeaderMark
	WithHeaderLabel     = api.WithHeaderLabel
	WithFooterBrand     = api.WithFooterBrand
	WithAccentColor     = api.WithAccentColor
	WithSectionMarker   = api.WithSectionMarker
	WithContainerID     = api.WithContainerID
	WithResourcePath    = api.WithResourcePath
	WithTitle           = api.WithTitle
	WithAuthor          = api.WithAuthor
	WithSubject         = api.WithSubject
	WithKeywords        = api.WithKeywords
	WithLogger          = api.WithLogger
	WithPageSizeA4      = api.WithPageSizeA4
	WithPageSizeA5      = api.WithPageSizeA5
	WithPageSizeLetter  = api.WithPageSizeLetter
	WithPageSizeLegal   = api.WithPageSizeLegal
)

const (
	PageSizeA3Width  = api.PageSizeA3Width
	PageSizeA3Height = api.PageSizeA3Height
	PageSizeA4Width  = api.PageSizeA4Width
	PageSizeA4Height = api.PageSizeA4Height
	PageSizeA5Width  = api.PageSizeA5Width
	PageSizeA5Height = api.PageSizeA5Height

	PageSizeLetterWidth  = api.PageSizeLetterWidth
	PageSizeLetterHeight = api.PageSizeLetterHeight
	PageSizeLegalWidth   = api.PageSizeLegalWidth
	PageSizeLegalHeight  = api.PageSizeLegalHeight

	PageOrientationPortrait  = api.PageOrientationPortrait
	PageOrientationLandscape = api.PageOrientationLandscape

	TailNewPage = api.TailNewPage
	TailReuse   = api.TailReuse

	RenderLazy  = api.RenderLazy
	RenderEager = api.RenderEager
)
