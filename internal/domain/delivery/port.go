package delivery

import (
	"context"
	"errors"
)

var (
	ErrReportRequired    = errors.New("report data is required")
	ErrInvalidRecipient  = errors.New("valid recipient email is required")
	ErrSMTPNotConfigured = errors.New("SMTP configuration missing")
)

// Renderer turns an HTML document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// Attachment is a file carried by an outgoing email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Email is a rendered message ready for the relay.
type Email struct {
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Mailer sends an email and returns its message id.
type Mailer interface {
	Send(ctx context.Context, e Email) (string, error)
}

// ArtifactStore port (penyimpanan PDF yang sudah dirender)
type ArtifactStore interface {
	PutBytes(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// ReportPage builds the printable HTML for a report document.
type ReportPage interface {
	Build(report map[string]any) (string, error)
}

// Composer builds the HTML and plain-text bodies of the report email.
type Composer interface {
	Compose(recipientName, message string) (html, text string, err error)
}
