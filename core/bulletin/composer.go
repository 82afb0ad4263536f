package bulletin

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/grading"
)

const defaultTitle = "BULLETIN DE NOTES"

// Composer turns a student's entries for a period into a report document.
type Composer interface {
	Compose(student grading.StudentIdentity, entries []grading.GradeEntry, period grading.Period) (*Document, error)
}

type Options struct {
	InstitutionName string
	Title           string           // defaults to "BULLETIN DE NOTES"
	Now             func() time.Time // defaults to time.Now
}

// PDFComposer lays bulletins out on A4 pages.
type PDFComposer struct {
	institution string
	title       string
	now         func() time.Time
}

var _ Composer = (*PDFComposer)(nil)

func NewPDFComposer(opts Options) *PDFComposer {
	c := &PDFComposer{
		institution: opts.InstitutionName,
		title:       opts.Title,
		now:         opts.Now,
	}
	if c.title == "" {
		c.title = defaultTitle
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Compose aggregates the entries once and renders the document.
// An empty entries slice yields a bulletin with an empty table and a 0 average.
// Entries are printed as given: scores are expected on the 0-20 scale and weights to be >= 0.
func (c *PDFComposer) Compose(student grading.StudentIdentity, entries []grading.GradeEntry, period grading.Period) (*Document, error) {
	if !period.Valid() {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "period", Error: "unknown period"})
	}

	result := grading.Aggregate(entries)
	doc := &Document{
		Student:     student,
		Period:      period,
		Result:      result,
		Rows:        tableRows(entries),
		GeneratedAt: c.now(),
		Filename:    Filename(student, period),
		ContentType: pdfContentType,
	}

	data, err := c.render(doc)
	if err != nil {
		return nil, errors.Wrap(err, "rendering bulletin")
	}
	doc.data = data
	return doc, nil
}

func tableRows(entries []grading.GradeEntry) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		score := "-"
		if e.Graded() {
			score = formatScore(e.Score.Float64)
		}
		rows = append(rows, Row{
			Subject:      e.SubjectName,
			Score:        score,
			Weight:       e.Weight,
			Contribution: strconv.FormatFloat(grading.Contribution(e), 'f', 1, 64),
			Comment:      e.Comment,
		})
	}
	return rows
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
