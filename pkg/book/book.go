package book

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-pdf/fpdf"

	"fable/pkg/utils"
)

// Chapter is one unit of the document: a heading, body text with
// blank-line paragraphs, and the URL of its illustration.
type Chapter struct {
	Heading  string
	Body     string
	ImageURL string
}

// Document lays out a title page followed by one page run per chapter.
type Document struct {
	Title    string
	Chapters []Chapter

	// Client fetches chapter images; nil uses http.DefaultClient.
	Client *http.Client

	// Compress controls PDF stream compression. Tests disable it to
	// inspect the content stream.
	Compress bool
}

func New(title string, chapters []Chapter) *Document {
	return &Document{
		Title:    title,
		Chapters: chapters,
		Compress: true,
	}
}

const (
	imageBoxHeight = 110.0 // mm
	lineHeight     = 6.0
	headingHeight  = 10.0
)

// Build writes the assembled PDF to w as it is serialized. A chapter whose
// image cannot be fetched or decoded gets an inline placeholder; only
// layout-level failures abort the build.
func (d *Document) Build(ctx context.Context, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(d.Compress)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usableW := pageW - left - right

	// Title page.
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 32)
	pdf.SetY(pageH / 3)
	pdf.MultiCell(usableW, 14, tr(d.Title), "", "C", false)

	for i, ch := range d.Chapters {
		pdf.AddPage()

		pdf.SetFont("Helvetica", "B", 18)
		pdf.MultiCell(usableW, headingHeight, tr(ch.Heading), "", "L", false)
		pdf.Ln(4)

		d.placeImage(ctx, pdf, i, ch, left, usableW)

		pdf.SetFont("Helvetica", "", 12)
		for _, para := range utils.Paragraphs(ch.Body) {
			pdf.MultiCell(usableW, lineHeight, tr(para), "", "J", false)
			pdf.Ln(3)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf layout failed: %w", err)
	}
	return pdf.Output(w)
}

// Bytes builds the whole document into memory, for responses that need an
// exact content length up front.
func (d *Document) Bytes(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Build(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// placeImage draws the chapter illustration fit to its bounding box, or a
// visible placeholder when the image cannot be produced.
func (d *Document) placeImage(ctx context.Context, pdf *fpdf.Fpdf, idx int, ch Chapter, left, usableW float64) {
	y := pdf.GetY()

	if ch.ImageURL != "" {
		png, err := d.fetchPNG(ctx, ch.ImageURL)
		if err == nil {
			name := fmt.Sprintf("chapter-%d", idx+1)
			opts := fpdf.ImageOptions{ImageType: "PNG"}
			info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
			if pdf.Error() == nil && info != nil && info.Width() > 0 && info.Height() > 0 {
				w, h := fitBox(info.Width(), info.Height(), usableW, imageBoxHeight)
				x := left + (usableW-w)/2
				pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
				pdf.SetY(y + h + 6)
				return
			}
			err = pdf.Error()
			pdf.ClearError()
		}
		log.Warn("chapter image unavailable, inserting placeholder", "chapter", ch.Heading, "error", err)
	}

	// Placeholder keeps the page structure intact.
	h := imageBoxHeight / 2
	pdf.SetDrawColor(160, 160, 160)
	pdf.Rect(left, y, usableW, h, "D")
	pdf.SetFont("Helvetica", "I", 12)
	pdf.SetXY(left, y+h/2-lineHeight/2)
	pdf.MultiCell(usableW, lineHeight, "illustration unavailable", "", "C", false)
	pdf.SetY(y + h + 6)
}

// fitBox scales (w, h) to fit inside (boxW, boxH) preserving aspect ratio.
func fitBox(w, h, boxW, boxH float64) (float64, float64) {
	scale := boxW / w
	if s := boxH / h; s < scale {
		scale = s
	}
	return w * scale, h * scale
}
