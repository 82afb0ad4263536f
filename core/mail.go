package core

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

var (
	//go:embed all:templates/email
	templatesFS embed.FS

	templates    tmplCache
	templatesErr error
	tmplInit     sync.Once
)

const templatesDir = "templates/email"

type (
	tmplCacheEntry map[string]executor       // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		Data interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// Send renders and delivers msg, returning the delivery error if any.
		Send(ctx context.Context, msg *EmailMessage) error
	}
)

// executor is implemented by both text and html templates.
type executor interface {
	Execute(w io.Writer, data interface{}) error
}

// execute renders the template of the message with the given extension; a missing template renders nothing.
func (m *EmailMessage) execute(ext string) (string, error) {
	tmpl := templates[m.TemplateName][ext]
	if tmpl == nil {
		return "", nil
	}
	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, ContextData{Data: m.TemplateData}); err != nil {
		return "", err
	}
	return buff.String(), nil
}

// Render fills TextContent and HTMLContent. BodyStr takes precedence over the text template.
func (m *EmailMessage) Render() error {
	if m.TemplateName == "" {
		m.TextContent = m.BodyStr
		return nil
	}
	tmplInit.Do(parseTemplates) // only execute once during first render
	if templatesErr != nil {
		return errors.Wrap(templatesErr, "parsing email templates")
	}
	if _, ok := templates[m.TemplateName]; !ok {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}

	var err error
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	} else if m.TextContent, err = m.execute(".txt"); err != nil {
		return errors.Wrap(err, "rendering text content")
	}
	if m.HTMLContent, err = m.execute(".gohtml"); err != nil {
		return errors.Wrap(err, "rendering html content")
	}
	return nil
}

// Attach base64 encodes the content read from r and adds it to the message attachments.
// The content type is sniffed when not provided.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err = encoder.Write(content); err != nil {
		return errors.Wrap(err, "encoding attachment")
	}
	if err = encoder.Close(); err != nil {
		return errors.Wrap(err, "encoding attachment")
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

func parseTemplates() {
	templates = make(tmplCache)

	entries, err := templatesFS.ReadDir(templatesDir)
	if err != nil {
		templatesErr = err
		return
	}

	for _, de := range entries {
		fname := de.Name()
		ext := path.Ext(fname)
		if de.IsDir() || strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := templates[name]
		if !ok {
			templates[name] = make(tmplCacheEntry)
			entry = templates[name]
		}
		base := path.Join(templatesDir, "_base"+ext)
		fp := path.Join(templatesDir, fname)
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(templatesFS, base, fp)
			if err != nil {
				templatesErr = err
				return
			}
			entry[ext] = tmpl.Option("missingkey=error")
		} else {
			tmpl, err := htmltmpl.ParseFS(templatesFS, base, fp)
			if err != nil {
				templatesErr = err
				return
			}
			entry[ext] = tmpl.Option("missingkey=error")
		}
	}
}
