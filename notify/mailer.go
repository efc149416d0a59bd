// notify/mailer.go
package notify

import (
	"fmt"
	"io"
	"log"

	gomail "gopkg.in/gomail.v2"

	"github.com/opendatapolicing/trafficstops/config"
)

// Attachment is a file carried with a notification.
type Attachment struct {
	Filename string
	Content  []byte
	MIMEType string
}

// Message is one notification to deliver.  Delivery retries are the mail
// system's problem, not the pipeline's.
type Message struct {
	Subject    string
	Body       string
	To         []string
	Attachment *Attachment
}

// Mailer delivers notification messages.
type Mailer interface {
	Send(msg Message) error
}

// SMTPMailer delivers mail through a configured SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(msg Message) error {
	if len(msg.To) == 0 {
		log.Printf("Notify: No recipients for %q, skipping\n", msg.Subject)
		return nil
	}

	mail := gomail.NewMessage()
	mail.SetHeader("From", m.cfg.From)
	mail.SetHeader("To", msg.To...)
	mail.SetHeader("Subject", msg.Subject)
	mail.SetBody("text/plain", msg.Body)

	if msg.Attachment != nil {
		content := msg.Attachment.Content
		mail.Attach(msg.Attachment.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
			gomail.SetHeader(map[string][]string{
				"Content-Type": {msg.Attachment.MIMEType},
			}),
		)
	}

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Password)
	if err := dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("failed to send %q to %v: %w", msg.Subject, msg.To, err)
	}
	log.Printf("Notify: Sent %q to %v\n", msg.Subject, msg.To)
	return nil
}
