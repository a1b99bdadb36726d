// Package mail sends booking confirmation email through an external
// SMTP transport. Delivery is an isolated failure domain: the caller
// treats any error here as non-fatal to the reservation that triggered
// it.
package mail

import (
	"context"
	"fmt"
	"io"

	gomail "gopkg.in/gomail.v2"

	"github.com/iliyamo/concert-booking/internal/config"
)

// Attachment is a file attached to an outgoing message, held in memory
// so the dispatcher never depends on the renderer's scratch files.
type Attachment struct {
	Filename string
	Content  []byte
}

// Dispatcher delivers mail over SMTP with a bounded per-message
// timeout. The zero value is unusable; construct with NewDispatcher.
type Dispatcher struct {
	cfg config.SMTPConfig

	// send is swapped out in tests. It performs the blocking SMTP
	// exchange for one message.
	send func(m *gomail.Message) error
}

// NewDispatcher builds a Dispatcher from SMTP settings.
func NewDispatcher(cfg config.SMTPConfig) *Dispatcher {
	d := &Dispatcher{cfg: cfg}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.send = func(m *gomail.Message) error { return dialer.DialAndSend(m) }
	return d
}

// Deliver sends an HTML message with an optional attachment to a single
// recipient. The SMTP exchange is bounded by the configured timeout and
// by ctx; whichever expires first aborts the wait. Deliver never
// retries: the issuance pipeline decides whether a failed delivery is
// worth repeating.
func (d *Dispatcher) Deliver(ctx context.Context, to, subject, htmlBody string, att *Attachment) error {
	if d.cfg.Host == "" {
		return fmt.Errorf("mail delivery disabled: no SMTP host configured")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", d.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	if att != nil {
		content := att.Content
		m.Attach(att.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	// gomail has no context support, so the blocking send runs on its
	// own goroutine and the result is awaited with a deadline. On
	// timeout the goroutine finishes in the background and its result
	// is discarded via the buffered channel.
	done := make(chan error, 1)
	go func() { done <- d.send(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}
