package email

import (
	"crypto/tls"
	"fmt"

	"cardsheets/internal/pkg/logger"
	"cardsheets/internal/platform/config"

	"github.com/go-mail/mail"
	"github.com/rs/zerolog"
)

// Message is one outgoing email. TextBody is required; HTMLBody is sent as
// an alternative part when set.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

type Sender interface {
	Send(msg Message) error
}

// NewSender builds the sender selected by cfg.Provider.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	switch cfg.Provider {
	case "", "log":
		return &LogSender{log: logger.With("email")}, nil
	case "smtp":
		if cfg.SMTP.Host == "" || cfg.SMTP.FromAddress == "" {
			return nil, fmt.Errorf("email.smtp.host and email.smtp.from_address are required")
		}
		return NewSMTPSender(cfg.SMTP), nil
	}
	return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
}

type SMTPSender struct {
	cfg config.SMTPConfig
	log zerolog.Logger
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, log: logger.With("email")}
}

func (s *SMTPSender) Send(msg Message) error {
	m := mail.NewMessage()
	m.SetAddressHeader("From", s.cfg.FromAddress, s.cfg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host}
	d.SSL = s.cfg.SSL

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
	return nil
}

// LogSender writes emails to the log instead of delivering them.
type LogSender struct {
	log zerolog.Logger
}

func (s *LogSender) Send(msg Message) error {
	s.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.TextBody).
		Msg("email not delivered (log provider)")
	return nil
}

// SendAsync delivers msg in the background. Failures are logged and never
// reach the caller.
func SendAsync(sender Sender, msg Message) {
	go func() {
		if err := sender.Send(msg); err != nil {
			log := logger.With("email")
			log.Error().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("failed to send email")
		}
	}()
}
