package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"os"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/bryanwahyu/kinetic-intake/internal/domain/delivery"
)

const implicitTLSPort = 465

// Config is the SMTP relay account.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	FromEmail          string
	FromName           string
	InsecureSkipVerify bool
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, msgs ...*gomail.Msg) error
}

// SMTP sends report emails through a relay.
type SMTP struct {
	client   sender
	from     string
	fromName string
	domain   string
	log      *zap.Logger
}

// NewSMTP builds the relay client. Port 465 uses implicit TLS, every other
// port upgrades with STARTTLS when the server offers it.
func NewSMTP(cfg Config, log *zap.Logger) (*SMTP, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.User),
		gomail.WithPassword(cfg.Password),
		gomail.WithTLSConfig(&tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS12,
		}),
	}
	if cfg.Port == implicitTLSPort {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return newSMTP(client, cfg, log), nil
}

func newSMTP(client sender, cfg Config, log *zap.Logger) *SMTP {
	domain, _ := os.Hostname()
	if domain == "" {
		domain = "localhost"
	}
	return &SMTP{client: client, from: cfg.FromEmail, fromName: cfg.FromName, domain: domain, log: log}
}

// Send implements delivery.Mailer and returns the Message-ID.
func (s *SMTP) Send(ctx context.Context, e delivery.Email) (string, error) {
	msg, err := s.message(e)
	if err != nil {
		return "", err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		s.log.Error("smtp send failed", zap.String("to", e.To), zap.Error(err))
		return "", fmt.Errorf("send email: %w", err)
	}
	return msg.GetMessageID(), nil
}

func (s *SMTP) message(e delivery.Email) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(e.To); err != nil {
		return nil, fmt.Errorf("%w: %v", delivery.ErrInvalidRecipient, err)
	}
	msg.Subject(e.Subject)
	msg.SetMessageIDWithValue(uuid.NewString() + "@" + s.domain)
	msg.SetDate()

	msg.SetBodyString(gomail.TypeTextPlain, e.Text)
	if e.HTML != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, e.HTML)
	}
	for _, a := range e.Attachments {
		if err := msg.AttachReader(a.Filename, bytes.NewReader(a.Content),
			gomail.WithFileContentType(gomail.ContentType(a.ContentType))); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Filename, err)
		}
	}
	return msg, nil
}
