package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gomail "gopkg.in/gomail.v2"

	"github.com/iliyamo/concert-booking/internal/config"
)

func testSMTP() config.SMTPConfig {
	return config.SMTPConfig{
		Host:    "smtp.test.local",
		Port:    2525,
		From:    `"Concert Tickets" <no-reply@concerts.local>`,
		Timeout: time.Second,
	}
}

func TestDispatcher_Deliver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("builds the message with attachment", func(t *testing.T) {
		d := NewDispatcher(testSMTP())
		var captured *gomail.Message
		d.send = func(m *gomail.Message) error {
			captured = m
			return nil
		}

		att := &Attachment{Filename: "concert_ticket_41.pdf", Content: []byte("%PDF-fake")}
		if err := d.Deliver(ctx, "ada@example.com", "Your Concert Ticket", "<p>hi</p>", att); err != nil {
			t.Fatalf("deliver: %v", err)
		}
		if captured == nil {
			t.Fatalf("send was not invoked")
		}
		if got := captured.GetHeader("To"); len(got) != 1 || got[0] != "ada@example.com" {
			t.Fatalf("unexpected To header: %v", got)
		}
		if got := captured.GetHeader("Subject"); len(got) != 1 || got[0] != "Your Concert Ticket" {
			t.Fatalf("unexpected Subject header: %v", got)
		}
		var buf bytes.Buffer
		if _, err := captured.WriteTo(&buf); err != nil {
			t.Fatalf("serialize message: %v", err)
		}
		if !strings.Contains(buf.String(), "concert_ticket_41.pdf") {
			t.Fatalf("attachment missing from serialized message")
		}
	})

	t.Run("propagates transport errors", func(t *testing.T) {
		d := NewDispatcher(testSMTP())
		sendErr := errors.New("connection refused")
		d.send = func(*gomail.Message) error { return sendErr }

		err := d.Deliver(ctx, "ada@example.com", "subject", "body", nil)
		if !errors.Is(err, sendErr) {
			t.Fatalf("expected wrapped send error, got %v", err)
		}
	})

	t.Run("gives up when the send outlives the timeout", func(t *testing.T) {
		cfg := testSMTP()
		cfg.Timeout = 50 * time.Millisecond
		d := NewDispatcher(cfg)
		release := make(chan struct{})
		d.send = func(*gomail.Message) error {
			<-release
			return nil
		}
		defer close(release)

		start := time.Now()
		err := d.Deliver(ctx, "ada@example.com", "subject", "body", nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Fatalf("deliver blocked past its timeout: %v", elapsed)
		}
	})

	t.Run("refuses to send without a host", func(t *testing.T) {
		cfg := testSMTP()
		cfg.Host = ""
		d := NewDispatcher(cfg)
		sent := false
		d.send = func(*gomail.Message) error { sent = true; return nil }

		if err := d.Deliver(ctx, "ada@example.com", "subject", "body", nil); err == nil {
			t.Fatalf("expected error when delivery is disabled")
		}
		if sent {
			t.Fatalf("send invoked with delivery disabled")
		}
	})
}
