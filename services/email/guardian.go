package emailsvc

import (
	"bytes"
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/bulletin"
)

const bulletinReadyTemplate = "bulletin_ready"

type bulletinReadyData struct {
	GuardianName     string
	StudentName      string
	SubjectOrSummary string
	ScoreOrStatus    string
	CommentOrNote    string
	Period           string
	HasAttachment    bool
}

// GuardianMailer delivers bulletin notifications by email.
type GuardianMailer struct {
	mailer core.EmailService
	attach bool
}

var _ bulletin.Transport = (*GuardianMailer)(nil)

func NewGuardianMailer(mailer core.EmailService, conf *core.Config) *GuardianMailer {
	return &GuardianMailer{mailer: mailer, attach: conf.Bulletin.AttachToEmails}
}

func (m *GuardianMailer) Send(ctx context.Context, n bulletin.Notification) error {
	to, err := mail.ParseAddress(n.GuardianContact)
	if err != nil {
		return errors.Wrapf(err, "guardian contact %q", n.GuardianContact)
	}
	if to.Name == "" {
		to.Name = n.GuardianName
	}

	data := bulletinReadyData{
		GuardianName:     n.GuardianName,
		StudentName:      n.StudentName,
		SubjectOrSummary: n.SubjectOrSummary,
		ScoreOrStatus:    n.ScoreOrStatus,
		CommentOrNote:    n.CommentOrNote,
		Period:           n.Period.String(),
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{*to},
		Subject:      n.SubjectOrSummary,
		TemplateName: bulletinReadyTemplate,
	}
	if m.attach && n.Attachment != nil {
		doc := n.Attachment
		if err := msg.Attach(bytes.NewReader(doc.Bytes()), doc.Filename, doc.ContentType); err != nil {
			return err
		}
		data.HasAttachment = true
	}
	msg.TemplateData = data
	return m.mailer.Send(ctx, msg)
}
