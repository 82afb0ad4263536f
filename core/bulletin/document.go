package bulletin

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core/grading"
)

const pdfContentType = "application/pdf"

// Sink receives downloadable bulletins, eg. a directory or an object store.
type Sink interface {
	Save(ctx context.Context, filename string, r io.Reader) error
}

// Row is one line of the grade table, as printed.
type Row struct {
	Subject      string `json:"subject"`
	Score        string `json:"score"`
	Weight       int    `json:"weight"`
	Contribution string `json:"contribution"`
	Comment      string `json:"comment"`
}

// Document is a composed bulletin. Composition does not depend on how it is
// consumed: the same bytes are saved as a download or opened as a preview.
type Document struct {
	Student     grading.StudentIdentity `json:"student"`
	Period      grading.Period          `json:"period"`
	Result      grading.AggregateResult `json:"result"`
	Rows        []Row                   `json:"rows"`
	GeneratedAt time.Time               `json:"generated_at"`
	Filename    string                  `json:"filename"`
	ContentType string                  `json:"content_type"`

	data []byte
}

// Bytes returns a copy of the rendered document.
func (d *Document) Bytes() []byte {
	return append([]byte(nil), d.data...)
}

func (d *Document) Size() int { return len(d.data) }

// Save writes the document to sink under its Filename.
func (d *Document) Save(ctx context.Context, sink Sink) error {
	return d.SaveAs(ctx, sink, d.Filename)
}

// SaveAs writes the document to sink under filename.
func (d *Document) SaveAs(ctx context.Context, sink Sink, filename string) error {
	if sink == nil {
		return errors.New("no sink to save bulletin to")
	}
	return errors.Wrapf(sink.Save(ctx, filename, bytes.NewReader(d.data)), "saving %s", filename)
}

// Preview is a transient, in-memory view of a document; nothing is persisted.
type Preview struct {
	Filename    string
	ContentType string
	ModTime     time.Time
	*bytes.Reader
}

// Preview opens a viewer-ready reader over the document bytes.
func (d *Document) Preview() Preview {
	return Preview{
		Filename:    d.Filename,
		ContentType: d.ContentType,
		ModTime:     d.GeneratedAt,
		Reader:      bytes.NewReader(d.Bytes()),
	}
}
