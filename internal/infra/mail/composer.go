package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*
var templateFS embed.FS

const (
	defaultHTMLMessage = "Please find attached your diagnostic protocol report."
	defaultTextMessage = "Your personalized diagnostic protocol report is attached as a PDF."
	DefaultLogoURL     = "https://hydrawavai.sumerudigital.com/logo.png"
)

// Composer renders the report email bodies.
type Composer struct {
	html    *htmltemplate.Template
	text    *texttemplate.Template
	logoURL string
}

// NewComposer parses the embedded templates. An empty logoURL drops the logo.
func NewComposer(logoURL string) (*Composer, error) {
	h, err := htmltemplate.ParseFS(templateFS, "templates/email.html")
	if err != nil {
		return nil, fmt.Errorf("parse html email: %w", err)
	}
	t, err := texttemplate.ParseFS(templateFS, "templates/email.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text email: %w", err)
	}
	return &Composer{html: h, text: t, logoURL: logoURL}, nil
}

type body struct {
	Name    string
	Message string
	LogoURL string
}

// Compose implements delivery.Composer.
func (c *Composer) Compose(recipientName, message string) (string, string, error) {
	var h, t bytes.Buffer

	if err := c.html.Execute(&h, body{
		Name:    recipientName,
		Message: orDefault(message, defaultHTMLMessage),
		LogoURL: c.logoURL,
	}); err != nil {
		return "", "", fmt.Errorf("render html email: %w", err)
	}
	if err := c.text.Execute(&t, body{
		Name:    recipientName,
		Message: orDefault(message, defaultTextMessage),
	}); err != nil {
		return "", "", fmt.Errorf("render text email: %w", err)
	}
	return strings.TrimSpace(h.String()), strings.TrimSpace(t.String()), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
