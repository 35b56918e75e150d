// Package notify delivers ranking reports by email.
package notify

import (
	"errors"
	"fmt"
	"time"

	gomail "gopkg.in/mail.v2"

	"github.com/ppiankov/digestrank/internal/logger"
	"github.com/ppiankov/digestrank/internal/model"
)

// ErrIncompleteConfig is returned when email is enabled without server or addresses
var ErrIncompleteConfig = errors.New("email config requires smtp_server, from and to")

const dialTimeout = 10 * time.Second

// RenderedMessage is an email ready for delivery
type RenderedMessage struct {
	Subject string
	Text    string
	HTML    string
}

// EmailSender delivers messages via SMTP
type EmailSender struct {
	cfg model.EmailConfig
}

// NewEmailSender creates a sender with the given SMTP configuration
func NewEmailSender(cfg model.EmailConfig) *EmailSender {
	return &EmailSender{cfg: cfg}
}

// Validate checks that an enabled config can actually send
func (s *EmailSender) Validate() error {
	if !s.cfg.Enabled {
		return nil
	}
	if s.cfg.SMTPServer == "" || s.cfg.FromEmail == "" || s.cfg.ToEmail == "" {
		return ErrIncompleteConfig
	}
	return nil
}

// Send delivers msg with an HTML body and plain text fallback.
// A disabled sender does nothing.
func (s *EmailSender) Send(msg *RenderedMessage) error {
	if !s.cfg.Enabled {
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}

	dialer := gomail.NewDialer(s.cfg.SMTPServer, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)
	dialer.Timeout = dialTimeout

	if err := dialer.DialAndSend(s.buildMessage(msg)); err != nil {
		logger.Warn("failed to send email to %s (subject: %s): %v", s.cfg.ToEmail, msg.Subject, err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("email sent: %s", msg.Subject)
	return nil
}

func (s *EmailSender) buildMessage(msg *RenderedMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", s.cfg.ToEmail)
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.HTML != "" && msg.Text != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	return m
}
