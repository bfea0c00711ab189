package pagination

import (
	"errors"
	"fmt"

	"github.com/gompdf/sectionpdf/internal/geometry"
)

var (
	// ErrNoSections is returned by Finish when no section was added
	ErrNoSections = errors.New("no sections to paginate")
	// ErrInvalidSection is returned for bitmaps that cannot be placed
	ErrInvalidSection = errors.New("invalid section")
	// ErrOutOfOrder is returned when sections are not added in input order
	ErrOutOfOrder = errors.New("section out of order")
	// ErrFinished is returned when the paginator is used after Finish
	ErrFinished = errors.New("paginator already finished")
)

// WholeSection is the slice index of a placement that carries a complete section
const WholeSection = -1

// Section is one rendered block as seen by the paginator: an opaque bitmap
// of known pixel size whose width spans the page's content width.
type Section struct {
	Index       int
	Name        string
	PixelWidth  int
	PixelHeight int
}

// HeightMM returns the placed height of the section on a page of cfg
func (s Section) HeightMM(cfg geometry.PageConfig) float64 {
	return cfg.HeightMM(s.PixelWidth, s.PixelHeight)
}

// Ref identifies the pixel band of a section that a placement draws
type Ref struct {
	Section  int
	Slice    int
	YStartPx int
	HeightPx int
}

// Whole reports whether the reference covers a complete section
func (r Ref) Whole() bool { return r.Slice == WholeSection }

// OpKind enumerates the page operations of the instruction stream
type OpKind int

const (
	OpOpenPage OpKind = iota
	OpHeader
	OpPlace
	OpFooter
	OpClosePage
)

func (k OpKind) String() string {
	switch k {
	case OpOpenPage:
		return "open-page"
	case OpHeader:
		return "header"
	case OpPlace:
		return "place"
	case OpFooter:
		return "footer"
	case OpClosePage:
		return "close-page"
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Op is one instruction for the document writer. Ref, YOffsetMM and HeightMM
// are only set for OpPlace; YOffsetMM is relative to the top of the usable area.
type Op struct {
	Kind      OpKind
	Page      int
	Ref       Ref
	YOffsetMM float64
	HeightMM  float64
}

// TailPolicy decides where layout continues after a split section
type TailPolicy int

const (
	// TailNewPage treats the page holding a split section's last slice as
	// full, so the next section starts on a fresh page.
	TailNewPage TailPolicy = iota
	// TailReuse continues below the last slice, in the space it left free.
	TailReuse
)

func (p TailPolicy) String() string {
	if p == TailReuse {
		return "reuse"
	}
	return "new-page"
}

// Option configures a Paginator
type Option func(*Paginator)

// WithTailPolicy sets the policy applied after a split section
func WithTailPolicy(policy TailPolicy) Option {
	return func(p *Paginator) {
		p.policy = policy
	}
}

// Paginator lays sections out onto pages in a single forward pass and
// emits the page instruction stream as it goes. Exactly one page is open
// from the first Add until Finish.
type Paginator struct {
	config geometry.PageConfig
	policy TailPolicy
	emit   func(Op) error

	cursorYMM  float64
	pageNumber int
	started    bool
	finished   bool
	lastIndex  int
}

// NewPaginator creates a paginator for one export. cfg must be valid;
// an invalid page config panics.
func NewPaginator(cfg geometry.PageConfig, emit func(Op) error, opts ...Option) *Paginator {
	cfg.MustValidate()
	p := &Paginator{
		config:     cfg,
		policy:     TailNewPage,
		emit:       emit,
		pageNumber: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PageNumber returns the number of the currently open page
func (p *Paginator) PageNumber() int {
	return p.pageNumber
}

// Add lays out the next section
func (p *Paginator) Add(s Section) error {
	if p.finished {
		return ErrFinished
	}
	if s.PixelWidth <= 0 || s.PixelHeight <= 0 {
		return fmt.Errorf("%w: section %d is %dx%d px", ErrInvalidSection, s.Index, s.PixelWidth, s.PixelHeight)
	}
	if p.started && s.Index <= p.lastIndex {
		return fmt.Errorf("%w: section %d after section %d", ErrOutOfOrder, s.Index, p.lastIndex)
	}

	usable := p.config.UsableAreaMM()
	pxPerMM := p.config.PxPerMM(s.PixelWidth)
	heightMM := geometry.PxToMM(s.PixelHeight, pxPerMM)

	fits := heightMM <= usable+geometry.EpsilonMM
	if !fits && geometry.FitPx(usable, pxPerMM) == 0 {
		return fmt.Errorf("%w: section %d has pixel rows taller than a page", ErrInvalidSection, s.Index)
	}

	if !p.started {
		p.started = true
		if err := p.openPage(); err != nil {
			return err
		}
	}
	p.lastIndex = s.Index

	if fits {
		return p.placeWhole(s, heightMM)
	}
	return p.split(s, pxPerMM)
}

// Finish closes the last page
func (p *Paginator) Finish() error {
	if p.finished {
		return ErrFinished
	}
	if !p.started {
		return ErrNoSections
	}
	p.finished = true
	return p.closePage()
}

func (p *Paginator) placeWhole(s Section, heightMM float64) error {
	usable := p.config.UsableAreaMM()
	// landing exactly on the bottom edge still fits
	if p.cursorYMM+heightMM > usable+geometry.EpsilonMM {
		if err := p.nextPage(); err != nil {
			return err
		}
	}

	ref := Ref{Section: s.Index, Slice: WholeSection, HeightPx: s.PixelHeight}
	if err := p.place(ref, heightMM); err != nil {
		return err
	}
	p.cursorYMM += heightMM + p.config.SectionGapMM
	return nil
}

func (p *Paginator) split(s Section, pxPerMM float64) error {
	usable := p.config.UsableAreaMM()
	fullPx := geometry.FitPx(usable, pxPerMM)

	remaining := s.PixelHeight
	yStart := 0
	slice := 0
	var lastMM float64

	cut := func(px int) error {
		heightMM := geometry.PxToMM(px, pxPerMM)
		ref := Ref{Section: s.Index, Slice: slice, YStartPx: yStart, HeightPx: px}
		if err := p.place(ref, heightMM); err != nil {
			return err
		}
		yStart += px
		remaining -= px
		slice++
		lastMM = heightMM
		return nil
	}

	if avail := usable - p.cursorYMM; avail > 0 {
		if px := min(geometry.FitPx(avail, pxPerMM), remaining); px > 0 {
			if err := cut(px); err != nil {
				return err
			}
		}
	}

	for remaining > 0 {
		if err := p.nextPage(); err != nil {
			return err
		}
		if err := cut(min(fullPx, remaining)); err != nil {
			return err
		}
	}

	switch p.policy {
	case TailReuse:
		p.cursorYMM = lastMM + p.config.SectionGapMM
	default:
		p.cursorYMM = usable
	}
	return nil
}

func (p *Paginator) place(ref Ref, heightMM float64) error {
	return p.emit(Op{
		Kind:      OpPlace,
		Page:      p.pageNumber,
		Ref:       ref,
		YOffsetMM: p.cursorYMM,
		HeightMM:  heightMM,
	})
}

func (p *Paginator) nextPage() error {
	if err := p.closePage(); err != nil {
		return err
	}
	p.pageNumber++
	p.cursorYMM = 0
	return p.openPage()
}

func (p *Paginator) openPage() error {
	if err := p.emit(Op{Kind: OpOpenPage, Page: p.pageNumber}); err != nil {
		return err
	}
	return p.emit(Op{Kind: OpHeader, Page: p.pageNumber})
}

func (p *Paginator) closePage() error {
	if err := p.emit(Op{Kind: OpFooter, Page: p.pageNumber}); err != nil {
		return err
	}
	return p.emit(Op{Kind: OpClosePage, Page: p.pageNumber})
}

// Placement is a section or slice drawn on a page
type Placement struct {
	Ref       Ref
	YOffsetMM float64
	HeightMM  float64
}

// Page lists what a page of the export holds
type Page struct {
	Number     int
	Placements []Placement
}

// Paginate lays out all sections eagerly and returns the instruction stream
func Paginate(cfg geometry.PageConfig, sections []Section, opts ...Option) ([]Op, error) {
	var ops []Op
	p := NewPaginator(cfg, func(op Op) error {
		ops = append(ops, op)
		return nil
	}, opts...)

	for _, s := range sections {
		if err := p.Add(s); err != nil {
			return nil, err
		}
	}
	if err := p.Finish(); err != nil {
		return nil, err
	}
	return ops, nil
}

// Pages folds an instruction stream into per-page placements
func Pages(ops []Op) []*Page {
	pages := make([]*Page, 0)
	var current *Page
	for _, op := range ops {
		switch op.Kind {
		case OpOpenPage:
			current = &Page{Number: op.Page}
			pages = append(pages, current)
		case OpPlace:
			if current == nil {
				continue
			}
			current.Placements = append(current.Placements, Placement{
				Ref:       op.Ref,
				YOffsetMM: op.YOffsetMM,
				HeightMM:  op.HeightMM,
			})
		case OpClosePage:
			current = nil
		}
	}
	return pages
}
