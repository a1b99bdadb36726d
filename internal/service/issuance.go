package service

import (
	"context"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/concert-booking/internal/mail"
	"github.com/iliyamo/concert-booking/internal/queue"
	"github.com/iliyamo/concert-booking/internal/ticket"
)

// ArtifactRenderer produces the QR/PDF artifact for a booking snapshot.
type ArtifactRenderer interface {
	Render(s ticket.Snapshot) (*ticket.Artifact, error)
}

// Deliverer sends the confirmation mail with the ticket attached.
type Deliverer interface {
	Deliver(ctx context.Context, to, subject, htmlBody string, att *mail.Attachment) error
}

// EventPublisher announces committed reservations on the broker.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error
}

// Issuer runs the post-reservation issuance pipeline: render the
// artifact, email it, publish the confirmation event. The pipeline is
// strictly best-effort: by the time it runs, the reservation is
// committed and nothing here may unwind it. Every step logs its own
// failure and the pipeline carries on to the next.
type Issuer struct {
	renderer  ArtifactRenderer
	mailer    Deliverer
	publisher EventPublisher
	logger    *zap.Logger
	timeout   time.Duration
}

// defaultIssueTimeout bounds one whole issuance run, covering the SMTP
// exchange and the broker publish.
const defaultIssueTimeout = 30 * time.Second

// NewIssuer constructs the pipeline. mailer and publisher may be nil,
// in which case the corresponding step is skipped, useful when no SMTP
// sandbox or broker is configured.
func NewIssuer(renderer ArtifactRenderer, mailer Deliverer, publisher EventPublisher, logger *zap.Logger) *Issuer {
	if renderer == nil {
		panic("nil renderer passed to NewIssuer")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{
		renderer:  renderer,
		mailer:    mailer,
		publisher: publisher,
		logger:    logger,
		timeout:   defaultIssueTimeout,
	}
}

// IssueAsync runs Issue on its own goroutine with a detached context so
// the HTTP response that triggered it is never held up. The reservation
// result has already been sent to the client when this runs.
func (i *Issuer) IssueAsync(snap ticket.Snapshot) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
		defer cancel()
		i.Issue(ctx, snap)
	}()
}

// Issue executes one issuance run. Failures are logged, never returned:
// a reservation with a failed issuance stays a valid reservation, and
// the ticket remains downloadable on demand.
func (i *Issuer) Issue(ctx context.Context, snap ticket.Snapshot) {
	art, err := i.renderer.Render(snap)
	if err != nil {
		i.logger.Warn("ticket render failed",
			zap.Uint64("booking_id", snap.BookingID), zap.Error(err))
		return
	}

	if i.mailer != nil {
		att := &mail.Attachment{
			Filename: fmt.Sprintf("concert_ticket_%d.pdf", snap.BookingID),
			Content:  art.PDF,
		}
		if err := i.mailer.Deliver(ctx, snap.UserEmail, "Your Concert Ticket", confirmationBody(snap), att); err != nil {
			i.logger.Warn("ticket delivery failed",
				zap.Uint64("booking_id", snap.BookingID),
				zap.String("recipient", snap.UserEmail),
				zap.Error(err))
		} else {
			i.logger.Info("ticket delivered",
				zap.Uint64("booking_id", snap.BookingID),
				zap.String("recipient", snap.UserEmail))
		}
	}

	if i.publisher != nil {
		ev := queue.BookingConfirmedEvent{
			BookingID:   snap.BookingID,
			UserID:      snap.UserID,
			UserEmail:   snap.UserEmail,
			ConcertID:   snap.ConcertID,
			ConcertName: snap.ConcertName,
			Venue:       snap.Venue,
			StartsAt:    snap.StartsAt.UTC().Format(time.RFC3339),
			Tickets:     snap.Tickets,
			ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
		}
		// Publisher logs its own failures; nothing more to do here.
		_ = i.publisher.PublishBookingConfirmed(ctx, ev)
	}
}

// confirmationBody renders the HTML mail body with the booking fields a
// ticket holder needs at a glance.
func confirmationBody(snap ticket.Snapshot) string {
	esc := html.EscapeString
	return fmt.Sprintf(`<h2>Booking Confirmation</h2>
<p>Concert: <strong>%s</strong></p>
<p>Date &amp; Time: <strong>%s</strong></p>
<p>Venue: <strong>%s</strong></p>
<p>Booked By: <strong>%s</strong></p>
<p>Tickets: <strong>%d</strong></p>
<p>Attached is your ticket PDF with the entrance QR code.</p>`,
		esc(snap.ConcertName),
		esc(snap.StartsAt.UTC().Format("Mon, 02 Jan 2006 15:04 MST")),
		esc(snap.Venue),
		esc(snap.UserName),
		snap.Tickets)
}
