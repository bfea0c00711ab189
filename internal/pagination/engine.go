package pagination

import (
	"github.com/gompdf/sectionpdf/internal/geometry"
)

// Options represents options for the pagination engine
type Options struct {
	Page       geometry.PageConfig
	TailPolicy TailPolicy
}

// Engine handles the pagination process
type Engine struct {
	options Options
}

// NewEngine creates a new pagination engine
func NewEngine() *Engine {
	return &Engine{
		options: Options{
			Page:       geometry.DefaultPageConfig(),
			TailPolicy: TailNewPage,
		},
	}
}

// SetOptions sets the options for the pagination engine
func (e *Engine) SetOptions(options Options) {
	e.options = options
}

// Options returns the engine's current options
func (e *Engine) Options() Options {
	return e.options
}

// NewPaginator creates a streaming paginator with the engine's options
func (e *Engine) NewPaginator(emit func(Op) error) *Paginator {
	return NewPaginator(e.options.Page, emit, WithTailPolicy(e.options.TailPolicy))
}

// Paginate breaks sections into pages
func (e *Engine) Paginate(sections []Section) ([]*Page, []Op, error) {
	ops, err := Paginate(e.options.Page, sections, WithTailPolicy(e.options.TailPolicy))
	if err != nil {
		return nil, nil, err
	}
	return Pages(ops), ops, nil
}

// CalculatePageCount calculates the number of pages needed
func (e *Engine) CalculatePageCount(sections []Section) (int, error) {
	pages, _, err := e.Paginate(sections)
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}
