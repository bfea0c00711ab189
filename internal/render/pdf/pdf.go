package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strconv"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/gompdf/sectionpdf/internal/geometry"
	"github.com/gompdf/sectionpdf/internal/pagination"
	"github.com/gompdf/sectionpdf/internal/slicer"
	"github.com/gompdf/sectionpdf/internal/text"
)

var (
	// ErrNotStarted is returned when ops arrive before Begin
	ErrNotStarted = errors.New("document not started")
	// ErrUnbalanced is returned when page open and close operations do not pair up
	ErrUnbalanced = errors.New("unbalanced page operations")
)

// Labels holds the texts of the header and footer bands
type Labels struct {
	// Mark is the product mark at the start of every header
	Mark string
	// Destination names what was exported, e.g. "Mortgage comparison"
	Destination string
	// Brand is printed in every footer
	Brand string
	// AccentColor is the #RRGGBB or #RGB colour of the mark and the footer rule
	AccentColor string
}

// RenderOptions contains document metadata
type RenderOptions struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string
}

// Renderer writes the instruction stream of one export into a PDF document
type Renderer struct {
	page   geometry.PageConfig
	labels Labels
	accent [3]int
	logger *zap.Logger

	pdf      *fpdf.Fpdf
	pageOpen bool
	pages    int
	images   int
}

// NewRenderer creates a PDF renderer for the given page geometry
func NewRenderer(page geometry.PageConfig, labels Labels, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	accent := [3]int{0x1f, 0x3a, 0x5f}
	if r, g, b, ok := parseHexColor(labels.AccentColor); ok {
		accent = [3]int{r, g, b}
	}
	return &Renderer{
		page:   page,
		labels: labels,
		accent: accent,
		logger: logger,
	}
}

// Begin starts a new document, discarding anything written before
func (r *Renderer) Begin(options RenderOptions) error {
	if err := r.page.Validate(); err != nil {
		return err
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: r.page.PageWidthMM, Ht: r.page.PageHeightMM},
	})
	pdf.SetMargins(r.page.MarginMM, r.page.MarginMM, r.page.MarginMM)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("")
	pdf.SetTitle(options.Title, true)
	pdf.SetAuthor(options.Author, true)
	pdf.SetSubject(options.Subject, true)
	pdf.SetKeywords(options.Keywords, true)
	pdf.SetCreator(options.Creator, true)
	pdf.SetProducer(options.Producer, true)
	pdf.SetFont("Helvetica", "", 9)

	r.pdf = pdf
	r.pageOpen = false
	r.pages = 0
	r.images = 0
	return nil
}

// Apply executes one operation. bitmap is the rendered section an OpPlace
// refers to and is ignored for every other kind.
func (r *Renderer) Apply(op pagination.Op, bitmap image.Image) error {
	if r.pdf == nil {
		return ErrNotStarted
	}

	switch op.Kind {
	case pagination.OpOpenPage:
		if r.pageOpen {
			return fmt.Errorf("%w: page %d opened inside page %d", ErrUnbalanced, op.Page, r.pages)
		}
		r.pdf.AddPage()
		r.pageOpen = true
		r.pages++
	case pagination.OpHeader:
		if err := r.requireOpen(op); err != nil {
			return err
		}
		r.drawHeader(op.Page)
	case pagination.OpPlace:
		if err := r.requireOpen(op); err != nil {
			return err
		}
		if err := r.place(op, bitmap); err != nil {
			return err
		}
	case pagination.OpFooter:
		if err := r.requireOpen(op); err != nil {
			return err
		}
		r.drawFooter(op.Page)
	case pagination.OpClosePage:
		if err := r.requireOpen(op); err != nil {
			return err
		}
		r.pageOpen = false
	default:
		return fmt.Errorf("unknown operation %v", op.Kind)
	}

	if err := r.pdf.Error(); err != nil {
		return fmt.Errorf("pdf %s on page %d: %w", op.Kind, op.Page, err)
	}
	return nil
}

func (r *Renderer) requireOpen(op pagination.Op) error {
	if !r.pageOpen {
		return fmt.Errorf("%w: %s outside a page", ErrUnbalanced, op.Kind)
	}
	return nil
}

// place draws a section or a slice of it at its offset in the usable area
func (r *Renderer) place(op pagination.Op, bitmap image.Image) error {
	if bitmap == nil {
		return fmt.Errorf("no bitmap for section %d", op.Ref.Section)
	}

	img := bitmap
	if !op.Ref.Whole() {
		img = slicer.Slice(bitmap, op.Ref.YStartPx, op.Ref.HeightPx)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode section %d: %w", op.Ref.Section, err)
	}

	r.images++
	name := "section-" + strconv.Itoa(op.Ref.Section) + "-" + strconv.Itoa(op.Ref.Slice) + "-" + strconv.Itoa(r.images)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	r.pdf.RegisterImageOptionsReader(name, opts, &buf)
	r.pdf.ImageOptions(name,
		r.page.MarginMM,
		r.page.ContentTopMM()+op.YOffsetMM,
		r.page.ContentWidthMM(),
		op.HeightMM,
		false, opts, 0, "")

	r.logger.Debug("placed",
		zap.Int("page", op.Page),
		zap.Int("section", op.Ref.Section),
		zap.Int("slice", op.Ref.Slice),
		zap.Float64("y_mm", op.YOffsetMM),
		zap.Float64("height_mm", op.HeightMM))
	return nil
}

// drawHeader writes the mark, the destination and, after the first page, the page number
func (r *Renderer) drawHeader(page int) {
	pdf := r.pdf
	m := r.page.MarginMM
	width := r.page.ContentWidthMM()
	lineH := r.page.HeaderHeightMM * 0.6
	y := m + (r.page.HeaderHeightMM-lineH)/2

	x := m
	if mark := text.Encode(r.labels.Mark); mark != "" {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(r.accent[0], r.accent[1], r.accent[2])
		pdf.SetXY(x, y)
		w := pdf.GetStringWidth(mark) + 3
		pdf.CellFormat(w, lineH, mark, "", 0, "L", false, 0, "")
		x += w
	}

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(60, 60, 60)

	pageLabel := ""
	if page > 1 {
		pageLabel = "Page " + strconv.Itoa(page)
	}
	pageW := 0.0
	if pageLabel != "" {
		pageW = pdf.GetStringWidth(pageLabel) + 2
	}

	rtl := text.IsRTL(r.labels.Destination)
	dest := text.Fit(text.Encode(r.labels.Destination), m+width-x-pageW, pdf.GetStringWidth)
	if rtl {
		// right-to-left destinations hug the right edge; the page number moves next to the mark
		pdf.SetXY(x, y)
		if pageLabel != "" {
			pdf.CellFormat(pageW, lineH, pageLabel, "", 0, "L", false, 0, "")
		}
		pdf.SetXY(x+pageW, y)
		pdf.CellFormat(m+width-x-pageW, lineH, dest, "", 0, "R", false, 0, "")
		return
	}

	pdf.SetXY(x, y)
	pdf.CellFormat(m+width-x-pageW, lineH, dest, "", 0, "L", false, 0, "")
	if pageLabel != "" {
		pdf.SetXY(m+width-pageW, y)
		pdf.CellFormat(pageW, lineH, pageLabel, "", 0, "R", false, 0, "")
	}
}

// drawFooter writes the rule, the brand and the page number
func (r *Renderer) drawFooter(page int) {
	pdf := r.pdf
	m := r.page.MarginMM
	width := r.page.ContentWidthMM()
	top := r.page.FooterTopMM()

	pdf.SetDrawColor(r.accent[0], r.accent[1], r.accent[2])
	pdf.SetLineWidth(0.3)
	pdf.Line(m, top+1, m+width, top+1)

	lineH := r.page.FooterHeightMM * 0.5
	y := top + 1 + (r.page.FooterHeightMM-1-lineH)/2
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(110, 110, 110)

	number := strconv.Itoa(page) + " / {nb}"
	numberW := pdf.GetStringWidth(number) + 2
	brand := text.Fit(text.Encode(r.labels.Brand), width-numberW, pdf.GetStringWidth)

	pdf.SetXY(m, y)
	pdf.CellFormat(width-numberW, lineH, brand, "", 0, "L", false, 0, "")
	pdf.SetXY(m+width-numberW, y)
	pdf.CellFormat(numberW, lineH, number, "", 0, "R", false, 0, "")
}

// PageCount returns the number of pages opened so far
func (r *Renderer) PageCount() int {
	return r.pages
}

// Output writes the finished document
func (r *Renderer) Output(w io.Writer) error {
	if r.pdf == nil {
		return ErrNotStarted
	}
	if r.pageOpen {
		return fmt.Errorf("%w: page %d never closed", ErrUnbalanced, r.pages)
	}
	if r.pages == 0 {
		return fmt.Errorf("%w: document has no pages", ErrUnbalanced)
	}
	if err := r.pdf.Error(); err != nil {
		return err
	}
	return r.pdf.Output(w)
}

// Render writes a complete instruction stream. bitmap returns the image of a section index.
func (r *Renderer) Render(ops []pagination.Op, bitmap func(section int) image.Image, w io.Writer, options RenderOptions) error {
	if err := r.Begin(options); err != nil {
		return err
	}
	for _, op := range ops {
		var img image.Image
		if op.Kind == pagination.OpPlace {
			img = bitmap(op.Ref.Section)
		}
		if err := r.Apply(op, img); err != nil {
			return err
		}
	}
	return r.Output(w)
}

// parseHexColor parses #RRGGBB or #RGB into r,g,b
func parseHexColor(s string) (int, int, int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}
