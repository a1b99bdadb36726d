package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/concert-booking/internal/model"
	"github.com/iliyamo/concert-booking/internal/repository"
	"github.com/iliyamo/concert-booking/internal/ticket"
)

// ConcertStore is the slice of the concert repository the engine needs:
// the catalog read plus the two atomic ledger primitives. Reserve must
// behave as a single conditional decrement ("take qty iff qty remain")
// and Release as its capacity-bounded inverse; the MySQL implementation
// does both in one UPDATE statement.
type ConcertStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Concert, error)
	Reserve(ctx context.Context, concertID uint64, qty uint32) (uint32, error)
	Release(ctx context.Context, concertID uint64, qty uint32) (uint32, error)
}

// BookingStore persists booking rows. Create must fail with
// ErrDuplicateBooking when a row for the pair already exists, and
// IncrementIfCount must fail with ErrStaleCount when the stored count
// no longer matches; the engine turns both into bounded retries.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	IncrementIfCount(ctx context.Context, bookingID uint64, expected, qty uint32) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	GetByUserAndConcert(ctx context.Context, userID, concertID uint64) (*model.Booking, error)
	DeleteOwned(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
}

// UserStore resolves the booking user when a ticket is materialized on
// demand and the caller identity is not the data source.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Identity is the already-authenticated caller, passed explicitly into
// every engine operation. The engine never reads ambient session state
// and never performs credential checks.
type Identity struct {
	ID    uint64
	Name  string
	Email string
}

// Reservation orchestrates booking requests: validation, the per-user
// cap, the inventory decrement and the booking upsert. The ledger
// decrement always happens before the booking write; when the booking
// write loses a race, the reserved quantity is released again before
// the retry, so no partial state survives any exit path.
type Reservation struct {
	concerts ConcertStore
	bookings BookingStore
	users    UserStore
	renderer *ticket.Renderer
	logger   *zap.Logger
}

// upsertRetries bounds how often a booking write is retried after
// losing a duplicate-key or compare-and-swap race. Races on one
// (user, concert) pair are rare, so a small constant converges.
const upsertRetries = 3

// NewReservation constructs the engine. All dependencies must be
// non-nil.
func NewReservation(concerts ConcertStore, bookings BookingStore, users UserStore, logger *zap.Logger) *Reservation {
	if concerts == nil || bookings == nil || users == nil {
		panic("nil store passed to NewReservation")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reservation{
		concerts: concerts,
		bookings: bookings,
		users:    users,
		renderer: ticket.NewRenderer(),
		logger:   logger,
	}
}

// Book reserves qty tickets on a concert for the caller. On success it
// returns a snapshot carrying everything issuance needs. Typed
// failures: ErrTicketCount, repository.ErrConcertNotFound,
// *InsufficientTicketsError, ErrCapExceeded, ErrBookingConflict. On
// every failure path no booking row has been written and no inventory
// is held.
func (r *Reservation) Book(ctx context.Context, id Identity, concertID uint64, qty uint32) (*ticket.Snapshot, error) {
	if qty < 1 || qty > model.MaxTicketsPerUser {
		return nil, ErrTicketCount
	}

	concert, err := r.concerts.GetByID(ctx, concertID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < upsertRetries; attempt++ {
		existing, err := r.bookings.GetByUserAndConcert(ctx, id.ID, concertID)
		if err != nil && !errors.Is(err, repository.ErrBookingNotFound) {
			return nil, err
		}
		var already uint32
		if existing != nil {
			already = existing.TicketsBooked
		}
		if already+qty > model.MaxTicketsPerUser {
			return nil, ErrCapExceeded
		}

		// Take the tickets first. The conditional decrement is the
		// linearization point: once it succeeds the quantity is ours
		// until we either commit the booking row or release.
		remaining, err := r.concerts.Reserve(ctx, concertID, qty)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientTickets) {
				return nil, &InsufficientTicketsError{Remaining: remaining}
			}
			return nil, err
		}

		booking, retry, err := r.upsertBooking(ctx, existing, id.ID, concertID, already, qty)
		if retry {
			// Lost a race on the booking row: give the tickets back and
			// re-read the pair before trying again.
			if _, relErr := r.concerts.Release(ctx, concertID, qty); relErr != nil {
				r.logger.Error("release after booking race failed",
					zap.Uint64("concert_id", concertID), zap.Uint32("qty", qty), zap.Error(relErr))
				return nil, relErr
			}
			continue
		}
		if err != nil {
			if _, relErr := r.concerts.Release(ctx, concertID, qty); relErr != nil {
				r.logger.Error("release after booking failure failed",
					zap.Uint64("concert_id", concertID), zap.Uint32("qty", qty), zap.Error(relErr))
			}
			return nil, err
		}

		r.logger.Info("reservation committed",
			zap.Uint64("booking_id", booking.ID),
			zap.Uint64("user_id", id.ID),
			zap.Uint64("concert_id", concertID),
			zap.Uint32("tickets", qty),
			zap.Uint32("remaining", remaining))

		return snapshotFor(booking, concert, id), nil
	}
	return nil, ErrBookingConflict
}

// upsertBooking writes the booking row for one reservation attempt. The
// retry return value signals a lost race (duplicate insert or stale
// CAS) that the caller should compensate and repeat.
func (r *Reservation) upsertBooking(ctx context.Context, existing *model.Booking, userID, concertID uint64, already, qty uint32) (booking *model.Booking, retry bool, err error) {
	if existing == nil {
		b := &model.Booking{UserID: userID, ConcertID: concertID, TicketsBooked: qty}
		err := r.bookings.Create(ctx, b)
		if errors.Is(err, repository.ErrDuplicateBooking) {
			return nil, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		return b, false, nil
	}
	err = r.bookings.IncrementIfCount(ctx, existing.ID, already, qty)
	if errors.Is(err, repository.ErrStaleCount) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	updated := *existing
	updated.TicketsBooked = already + qty
	return &updated, false, nil
}

// releaseRetries bounds the compensation attempts when a cancellation
// has already removed the booking row but the ticket release keeps
// failing.
const releaseRetries = 3

// Cancel removes the caller's booking and returns its tickets to the
// concert pool. Typed failures: repository.ErrBookingNotFound,
// repository.ErrForbidden. The release is retried a few times so a
// transient store error cannot strand the quantity; a persistent
// failure is surfaced after the retries, and a cancelled ctx stops
// the backoff early.
func (r *Reservation) Cancel(ctx context.Context, bookingID, requesterID uint64) error {
	deleted, err := r.bookings.DeleteOwned(ctx, bookingID, requesterID)
	if err != nil {
		return err
	}

	var relErr error
retry:
	for attempt := 0; attempt < releaseRetries; attempt++ {
		if _, relErr = r.concerts.Release(ctx, deleted.ConcertID, deleted.TicketsBooked); relErr == nil {
			r.logger.Info("booking cancelled",
				zap.Uint64("booking_id", bookingID),
				zap.Uint64("concert_id", deleted.ConcertID),
				zap.Uint32("tickets", deleted.TicketsBooked))
			return nil
		}
		select {
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		case <-ctx.Done():
			break retry
		}
	}
	r.logger.Error("inventory release failed after cancellation",
		zap.Uint64("booking_id", bookingID),
		zap.Uint64("concert_id", deleted.ConcertID),
		zap.Uint32("tickets", deleted.TicketsBooked),
		zap.Error(relErr))
	return relErr
}

// MaterializeTicket regenerates the ticket PDF for a booking from
// stored facts. It does not depend on the original issuance having run
// and cleans up its own scratch files via the renderer. The requester
// must own the booking unless admin is set. Typed failures:
// repository.ErrBookingNotFound, repository.ErrForbidden.
func (r *Reservation) MaterializeTicket(ctx context.Context, bookingID, requesterID uint64, admin bool) ([]byte, error) {
	booking, err := r.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != requesterID && !admin {
		return nil, repository.ErrForbidden
	}
	concert, err := r.concerts.GetByID(ctx, booking.ConcertID)
	if err != nil {
		return nil, err
	}
	user, err := r.users.GetByID(ctx, booking.UserID)
	if err != nil {
		return nil, err
	}
	snap := snapshotFor(booking, concert, Identity{ID: user.ID, Name: user.Name, Email: user.Email})
	art, err := r.renderer.Render(*snap)
	if err != nil {
		return nil, err
	}
	return art.PDF, nil
}

// snapshotFor freezes the booking facts needed by issuance so the
// pipeline never re-reads mutable state.
func snapshotFor(b *model.Booking, c *model.Concert, id Identity) *ticket.Snapshot {
	name := id.Name
	if name == "" {
		name = id.Email
	}
	return &ticket.Snapshot{
		BookingID:   b.ID,
		UserID:      id.ID,
		UserName:    name,
		UserEmail:   id.Email,
		ConcertID:   c.ID,
		ConcertName: c.Name,
		Venue:       c.Venue,
		StartsAt:    c.StartsAt.UTC(),
		Tickets:     b.TicketsBooked,
	}
}
