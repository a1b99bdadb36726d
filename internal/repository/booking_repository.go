package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/concert-booking/internal/model"
)

// BookingRepo provides access to the `bookings` table. One row exists
// per (user, concert) pair, enforced by a UNIQUE key; repeat bookings
// accumulate into the existing row via a compare-and-swap increment so
// the per-user cap survives concurrent requests from the same user.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const mysqlErrDuplicateEntry = 1062

// Create inserts a booking for a (user, concert) pair. When another
// request already created the row, the UNIQUE(user_id, concert_id) key
// rejects the insert and ErrDuplicateBooking is returned so the caller
// can retry as an increment.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, concert_id, tickets_booked) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.UserID, b.ConcertID, b.TicketsBooked)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry {
			return ErrDuplicateBooking
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// IncrementIfCount adds qty to tickets_booked only when the stored count
// still equals expected. A zero-row update means another request won the
// race and ErrStaleCount is returned; the caller should re-read the
// booking and retry with the fresh count.
func (r *BookingRepo) IncrementIfCount(ctx context.Context, bookingID uint64, expected, qty uint32) error {
	const q = `UPDATE bookings SET tickets_booked = tickets_booked + ?
	           WHERE id = ? AND tickets_booked = ?`
	res, err := r.db.ExecContext(ctx, q, qty, bookingID, expected)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleCount
	}
	return nil
}

// GetByID returns a booking by its primary key, or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT id, user_id, concert_id, tickets_booked, created_at, updated_at
	           FROM bookings WHERE id = ?`
	var b model.Booking
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.UserID, &b.ConcertID, &b.TicketsBooked, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByUserAndConcert returns the booking for a pair, or
// ErrBookingNotFound when the user has no tickets for the concert yet.
func (r *BookingRepo) GetByUserAndConcert(ctx context.Context, userID, concertID uint64) (*model.Booking, error) {
	const q = `SELECT id, user_id, concert_id, tickets_booked, created_at, updated_at
	           FROM bookings WHERE user_id = ? AND concert_id = ?`
	var b model.Booking
	err := r.db.QueryRowContext(ctx, q, userID, concertID).Scan(
		&b.ID, &b.UserID, &b.ConcertID, &b.TicketsBooked, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteOwned removes a booking only when it belongs to userID. It
// returns the deleted record so the caller can release the ticket
// quantity back to the concert pool. ErrBookingNotFound is returned
// when the booking does not exist; ErrForbidden when it exists but
// belongs to another user.
func (r *BookingRepo) DeleteOwned(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	b, err := r.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	// Conditioning the DELETE on user_id too keeps the ownership check
	// and the removal consistent if the row changed since the read.
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND user_id = ?`, bookingID, userID)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrBookingNotFound
	}
	return b, nil
}

// BookingDetail joins a booking with its concert's display fields for
// listing endpoints.
type BookingDetail struct {
	ID            uint64    `json:"id"`
	ConcertID     uint64    `json:"concert_id"`
	ConcertName   string    `json:"concert_name"`
	Venue         string    `json:"venue"`
	StartsAt      time.Time `json:"starts_at"`
	TicketsBooked uint32    `json:"tickets_booked"`
	UserID        uint64    `json:"user_id,omitempty"`
	UserEmail     string    `json:"user_email,omitempty"`
}

// ListByUser returns all bookings of a user with concert details, newest
// first. An empty slice is returned when the user has no bookings.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingDetail, error) {
	const q = `SELECT b.id, b.concert_id, c.name, c.venue, c.starts_at, b.tickets_booked
	           FROM bookings b
	           JOIN concerts c ON c.id = b.concert_id
	           WHERE b.user_id = ?
	           ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		var d BookingDetail
		if err := rows.Scan(&d.ID, &d.ConcertID, &d.ConcertName, &d.Venue, &d.StartsAt, &d.TicketsBooked); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// ListByConcert returns all bookings for a concert including the booking
// user's email. Used by the admin listing endpoint.
func (r *BookingRepo) ListByConcert(ctx context.Context, concertID uint64) ([]BookingDetail, error) {
	const q = `SELECT b.id, b.concert_id, c.name, c.venue, c.starts_at, b.tickets_booked, b.user_id, u.email
	           FROM bookings b
	           JOIN concerts c ON c.id = b.concert_id
	           JOIN users u ON u.id = b.user_id
	           WHERE b.concert_id = ?
	           ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, concertID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		var d BookingDetail
		if err := rows.Scan(&d.ID, &d.ConcertID, &d.ConcertName, &d.Venue, &d.StartsAt, &d.TicketsBooked, &d.UserID, &d.UserEmail); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}
