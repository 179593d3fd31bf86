package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"

	"github.com/mrsingh-rishi/meeting-report/model"
)

const (
	DefaultTitle     = "Meeting Summary"
	SummaryHeading   = "Summary"
	ActionsHeading   = "Action Items & Decisions"
	NoSummary        = "No summary provided."
	NoActionItems    = "No action items provided."
	ContentTypePDF   = "application/pdf"
	ContentTypeText  = "text/plain; charset=utf-8"
	timestampLayout  = "2006-01-02 15:04:05 MST"
	filenameLayout   = "2006-01-02"
	replacementGlyph = '?'
)

// Format selects the exported document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatText Format = "txt"
)

// ParseFormat maps a caller value to a Format. Empty means PDF.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Renderer builds the fixed-layout export document. Output depends only on
// the inputs and the value returned by Now.
type Renderer struct {
	Title    string
	Compress bool
	Now      func() time.Time
}

func NewRenderer() *Renderer {
	return &Renderer{Title: DefaultTitle, Compress: true, Now: time.Now}
}

// Filename returns meeting-summary-YYYY-MM-DD with the given extension.
func Filename(at time.Time, f Format) string {
	return fmt.Sprintf("meeting-summary-%s.%s", at.Format(filenameLayout), f)
}

// Render produces the document in the requested format.
func (r *Renderer) Render(f Format, summary, actionItems string) (model.RenderedDocument, error) {
	switch f {
	case FormatText:
		return r.RenderText(summary, actionItems), nil
	case FormatPDF, "":
		return r.RenderPDF(summary, actionItems)
	default:
		return model.RenderedDocument{}, errors.Errorf("unsupported export format %q", f)
	}
}

// RenderPDF lays out title, generation time and both sections. Characters
// the core fonts cannot encode are replaced instead of failing the export.
func (r *Renderer) RenderPDF(summary, actionItems string) (model.RenderedDocument, error) {
	now := r.now()
	summary, actionItems = withFallbacks(summary, actionItems)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.Compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.SetTitle(toWindows1252(r.title()), false)
	pdf.SetCreator("meeting-report", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, toWindows1252(r.title()), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, "Generated: "+now.Format(timestampLayout), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	section := func(heading, body string) {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 8, toWindows1252(heading), "B", 1, "L", false, 0, "")
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5.5, toWindows1252(body), "", "L", false)
		pdf.Ln(6)
	}
	section(SummaryHeading, summary)
	section(ActionsHeading, actionItems)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return model.RenderedDocument{}, errors.Wrap(err, "rendering pdf")
	}
	return model.RenderedDocument{
		Data:        buf.Bytes(),
		Filename:    Filename(now, FormatPDF),
		ContentType: ContentTypePDF,
		GeneratedAt: now,
	}, nil
}

// RenderText produces the plain-text variant of the document.
func (r *Renderer) RenderText(summary, actionItems string) model.RenderedDocument {
	now := r.now()
	summary, actionItems = withFallbacks(summary, actionItems)

	rule := strings.Repeat("=", 33)
	var b strings.Builder
	for _, s := range []struct{ heading, body string }{
		{r.title(), summary},
		{ActionsHeading, actionItems},
	} {
		fmt.Fprintf(&b, "%s\n %s\n%s\n\n%s\n\n", rule, s.heading, rule, s.body)
	}
	fmt.Fprintf(&b, "Generated: %s\n", now.Format(timestampLayout))

	return model.RenderedDocument{
		Data:        []byte(b.String()),
		Filename:    Filename(now, FormatText),
		ContentType: ContentTypeText,
		GeneratedAt: now,
	}
}

func (r *Renderer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Renderer) title() string {
	if r.Title == "" {
		return DefaultTitle
	}
	return r.Title
}

func withFallbacks(summary, actionItems string) (string, string) {
	if strings.TrimSpace(summary) == "" {
		summary = NoSummary
	}
	if strings.TrimSpace(actionItems) == "" {
		actionItems = NoActionItems
	}
	return summary, actionItems
}

// toWindows1252 re-encodes s for the PDF core fonts, one byte per rune.
func toWindows1252(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = replacementGlyph
		}
		out = append(out, b)
	}
	return string(out)
}
