package bulletin

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"
)

const (
	margin       = 15.0
	footerSpace  = 22.0
	rowHeight    = 8.0
	headerHeight = 9.0
	fontFamily   = "Helvetica"
)

type column struct {
	title string
	width float64
	align string
}

// widths add up to the printable width of an A4 page (210 - 2*margin)
var columns = []column{
	{title: "Matière", width: 50, align: "L"},
	{title: "Note /20", width: 22, align: "C"},
	{title: "Coef.", width: 16, align: "C"},
	{title: "Points", width: 22, align: "C"},
	{title: "Appréciation", width: 70, align: "L"},
}

type rgb struct{ r, g, b int }

var (
	bannerColor = rgb{31, 56, 100}
	zebraColor  = rgb{236, 241, 248}
	headerColor = rgb{214, 224, 240}
	mutedColor  = rgb{110, 110, 110}
)

type layout struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	width float64
}

func (c *PDFComposer) render(doc *Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, footerSpace)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetTitle(c.title+" - "+doc.Student.FullName(), true)
	pdf.SetAuthor(c.institution, true)
	pdf.AliasNbPages("")

	pageW, _ := pdf.GetPageSize()
	l := &layout{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		width: pageW - 2*margin,
	}

	stamp := doc.GeneratedAt.Format("02/01/2006 15:04")
	pdf.SetFooterFunc(func() { l.footer(stamp) })

	pdf.AddPage()
	l.banner(c.institution, c.title)
	l.identity(doc)
	l.table(doc.Rows)
	l.summary(doc)

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *layout) fill(c rgb)  { l.pdf.SetFillColor(c.r, c.g, c.b) }
func (l *layout) color(c rgb) { l.pdf.SetTextColor(c.r, c.g, c.b) }

func (l *layout) banner(institution, title string) {
	pdf := l.pdf
	l.fill(bannerColor)
	pdf.Rect(margin, margin, l.width, 24, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(margin, margin+3)
	pdf.SetFont(fontFamily, "B", 15)
	pdf.CellFormat(l.width, 9, l.tr(institution), "", 1, "C", false, 0, "")
	pdf.SetX(margin)
	pdf.SetFont(fontFamily, "", 12)
	pdf.CellFormat(l.width, 8, l.tr(title), "", 1, "C", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetY(margin + 30)
}

func (l *layout) identity(doc *Document) {
	lines := [][2]string{
		{"Élève", doc.Student.FullName()},
		{"Classe", doc.Student.ClassName},
		{"Période", doc.Period.String()},
		{"Date", doc.GeneratedAt.Format("02/01/2006")},
	}
	pdf := l.pdf
	for _, line := range lines {
		pdf.SetFont(fontFamily, "B", 10)
		pdf.CellFormat(30, 6, l.tr(line[0]+" :"), "", 0, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 10)
		pdf.CellFormat(l.width-30, 6, l.tr(line[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (l *layout) tableHeader() {
	pdf := l.pdf
	pdf.SetFont(fontFamily, "B", 10)
	l.fill(headerColor)
	for _, col := range columns {
		pdf.CellFormat(col.width, headerHeight, l.tr(col.title), "", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	y := pdf.GetY()
	pdf.SetLineWidth(0.5)
	pdf.Line(margin, y, margin+l.width, y)
	pdf.SetLineWidth(0.2)
}

// table prints one row per entry; the header is repeated on every page the table spans.
func (l *layout) table(rows []Row) {
	pdf := l.pdf
	_, pageH := pdf.GetPageSize()
	l.tableHeader()

	pdf.SetFont(fontFamily, "", 10)
	l.fill(zebraColor)
	for i, row := range rows {
		if pdf.GetY()+rowHeight > pageH-footerSpace {
			pdf.AddPage()
			l.tableHeader()
			pdf.SetFont(fontFamily, "", 10)
			l.fill(zebraColor)
		}
		cells := []string{row.Subject, row.Score, strconv.Itoa(row.Weight), row.Contribution, row.Comment}
		for j, col := range columns {
			pdf.CellFormat(col.width, rowHeight, l.fit(cells[j], col.width-2), "", 0, col.align, i%2 == 1, 0, "")
		}
		pdf.Ln(-1)
	}

	y := pdf.GetY()
	pdf.Line(margin, y, margin+l.width, y)
	pdf.Ln(8)
}

// fit translates s and truncates it to the given width.
func (l *layout) fit(s string, width float64) string {
	s = l.tr(s)
	if l.pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && l.pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func (l *layout) summary(doc *Document) {
	const boxH = 28.0
	pdf := l.pdf
	_, pageH := pdf.GetPageSize()
	if pdf.GetY()+boxH > pageH-footerSpace {
		pdf.AddPage()
	}

	x, y := margin, pdf.GetY()
	pdf.SetLineWidth(0.4)
	pdf.Rect(x, y, l.width, boxH, "D")
	pdf.SetLineWidth(0.2)

	lines := [][2]string{
		{"Moyenne générale", fmt.Sprintf("%s / 20", formatScore(doc.Result.WeightedAverage))},
		{"Mention", doc.Result.Mention.Label()},
		{"Matières notées", strconv.Itoa(doc.Result.EntryCount)},
	}
	pdf.SetXY(x+4, y+3)
	for _, line := range lines {
		pdf.SetX(x + 4)
		pdf.SetFont(fontFamily, "B", 11)
		pdf.CellFormat(55, 7, l.tr(line[0]+" :"), "", 0, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 11)
		pdf.CellFormat(l.width-63, 7, l.tr(line[1]), "", 1, "L", false, 0, "")
	}
	pdf.SetY(y + boxH)
}

func (l *layout) footer(stamp string) {
	pdf := l.pdf
	pdf.SetY(-(footerSpace - 4))
	pdf.SetFont(fontFamily, "I", 8)
	l.color(mutedColor)
	pdf.CellFormat(0, 5, l.tr("Document généré automatiquement, il ne nécessite pas de signature."), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, l.tr(fmt.Sprintf("Généré le %s - Page %d/{nb}", stamp, pdf.PageNo())), "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}
