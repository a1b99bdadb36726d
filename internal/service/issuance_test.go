package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/concert-booking/internal/mail"
	"github.com/iliyamo/concert-booking/internal/queue"
	"github.com/iliyamo/concert-booking/internal/ticket"
)

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) Render(ticket.Snapshot) (*ticket.Artifact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ticket.Artifact{QRPNG: []byte("png"), PDF: []byte("%PDF-fake")}, nil
}

type fakeDeliverer struct {
	err      error
	to       string
	subject  string
	body     string
	att      *mail.Attachment
	delivers int
}

func (f *fakeDeliverer) Deliver(_ context.Context, to, subject, htmlBody string, att *mail.Attachment) error {
	f.delivers++
	f.to, f.subject, f.body, f.att = to, subject, htmlBody, att
	return f.err
}

type fakePublisher struct {
	err      error
	events   []queue.BookingConfirmedEvent
	publishes int
}

func (f *fakePublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	f.publishes++
	f.events = append(f.events, ev)
	return f.err
}

func issuanceSnapshot() ticket.Snapshot {
	return ticket.Snapshot{
		BookingID:   41,
		UserID:      1,
		UserName:    "Ada",
		UserEmail:   "ada@example.com",
		ConcertID:   7,
		ConcertName: "Static Pulse Live",
		Venue:       "River Arena",
		StartsAt:    time.Date(2026, 11, 5, 20, 0, 0, 0, time.UTC),
		Tickets:     2,
	}
}

func TestIssuer_Issue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("delivers mail and publishes the event", func(t *testing.T) {
		renderer := &fakeRenderer{}
		deliverer := &fakeDeliverer{}
		publisher := &fakePublisher{}
		NewIssuer(renderer, deliverer, publisher, nil).Issue(ctx, issuanceSnapshot())

		if deliverer.delivers != 1 {
			t.Fatalf("expected one delivery, got %d", deliverer.delivers)
		}
		if deliverer.to != "ada@example.com" {
			t.Fatalf("delivered to %q", deliverer.to)
		}
		if deliverer.att == nil || deliverer.att.Filename != "concert_ticket_41.pdf" {
			t.Fatalf("unexpected attachment: %+v", deliverer.att)
		}
		if !strings.Contains(deliverer.body, "Static Pulse Live") || !strings.Contains(deliverer.body, "River Arena") {
			t.Fatalf("mail body missing booking facts: %q", deliverer.body)
		}
		if len(publisher.events) != 1 {
			t.Fatalf("expected one event, got %d", len(publisher.events))
		}
		ev := publisher.events[0]
		if ev.BookingID != 41 || ev.Tickets != 2 || ev.ConcertName != "Static Pulse Live" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	})

	t.Run("escapes html in the mail body", func(t *testing.T) {
		deliverer := &fakeDeliverer{}
		snap := issuanceSnapshot()
		snap.ConcertName = `<script>alert("x")</script>`
		NewIssuer(&fakeRenderer{}, deliverer, nil, nil).Issue(ctx, snap)

		if strings.Contains(deliverer.body, "<script>") {
			t.Fatalf("concert name not escaped: %q", deliverer.body)
		}
	})

	t.Run("render failure stops the pipeline", func(t *testing.T) {
		renderer := &fakeRenderer{err: errors.New("qr encode failed")}
		deliverer := &fakeDeliverer{}
		publisher := &fakePublisher{}
		NewIssuer(renderer, deliverer, publisher, nil).Issue(ctx, issuanceSnapshot())

		if deliverer.delivers != 0 {
			t.Fatalf("delivery ran after render failure")
		}
		if publisher.publishes != 0 {
			t.Fatalf("event published after render failure")
		}
	})

	t.Run("delivery failure does not stop the event", func(t *testing.T) {
		deliverer := &fakeDeliverer{err: errors.New("smtp refused")}
		publisher := &fakePublisher{}
		NewIssuer(&fakeRenderer{}, deliverer, publisher, nil).Issue(ctx, issuanceSnapshot())

		if publisher.publishes != 1 {
			t.Fatalf("expected event despite failed delivery, got %d", publisher.publishes)
		}
	})

	t.Run("publish failure is swallowed", func(t *testing.T) {
		publisher := &fakePublisher{err: errors.New("broker down")}
		// Issue returns nothing; the test passes if this does not panic.
		NewIssuer(&fakeRenderer{}, &fakeDeliverer{}, publisher, nil).Issue(ctx, issuanceSnapshot())
	})

	t.Run("nil mailer and publisher are skipped", func(t *testing.T) {
		renderer := &fakeRenderer{}
		NewIssuer(renderer, nil, nil, nil).Issue(ctx, issuanceSnapshot())
		if renderer.calls != 1 {
			t.Fatalf("expected render to run, got %d calls", renderer.calls)
		}
	})
}

func TestIssuer_IssueAsync(t *testing.T) {
	t.Parallel()

	deliverer := &fakeDeliverer{}
	done := make(chan struct{})
	publisher := &signalPublisher{done: done}
	NewIssuer(&fakeRenderer{}, deliverer, publisher, nil).IssueAsync(issuanceSnapshot())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("issuance did not run in the background")
	}
}

type signalPublisher struct{ done chan struct{} }

func (p *signalPublisher) PublishBookingConfirmed(context.Context, queue.BookingConfirmedEvent) error {
	close(p.done)
	return nil
}
