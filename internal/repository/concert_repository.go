// Package repository contains the data access layer. This file holds the
// concert catalog operations and the ticket inventory ledger. The
// available_tickets counter is mutated exclusively through Reserve and
// Release, each a single conditional UPDATE so that concurrent requests
// can never oversell: the check and the decrement happen in one
// indivisible statement on the database side, never as a read followed
// by a write.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/concert-booking/internal/model"
)

// ConcertRepo provides CRUD access to the `concerts` table plus the
// atomic counter primitives used by the reservation service.
type ConcertRepo struct {
	db *sql.DB
}

// NewConcertRepo returns a ConcertRepo bound to the given database.
func NewConcertRepo(db *sql.DB) *ConcertRepo { return &ConcertRepo{db: db} }

const concertColumns = `id, name, venue, starts_at, ticket_price_cents, total_capacity, available_tickets, image_url, created_at, updated_at`

func scanConcert(row *sql.Row) (*model.Concert, error) {
	var c model.Concert
	var img sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Venue, &c.StartsAt, &c.TicketPriceCents,
		&c.TotalCapacity, &c.AvailableTickets, &img, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConcertNotFound
		}
		return nil, err
	}
	if img.Valid {
		c.ImageURL = img.String
	}
	return &c, nil
}

// Create inserts a new concert. total_capacity and available_tickets
// both start at the provided capacity. The generated ID and DB-default
// timestamps are populated on the record.
func (r *ConcertRepo) Create(ctx context.Context, c *model.Concert) error {
	const q = `INSERT INTO concerts (name, venue, starts_at, ticket_price_cents, total_capacity, available_tickets, image_url)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, c.Name, c.Venue, c.StartsAt,
		c.TicketPriceCents, c.TotalCapacity, c.TotalCapacity, c.ImageURL)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	// Query back the full row to populate timestamps and defaults.
	const sel = `SELECT ` + concertColumns + ` FROM concerts WHERE id = ?`
	got, err := scanConcert(r.db.QueryRowContext(ctx, sel, c.ID))
	if err != nil {
		return err
	}
	*c = *got
	return nil
}

// GetByID returns a concert by its ID, or ErrConcertNotFound.
func (r *ConcertRepo) GetByID(ctx context.Context, id uint64) (*model.Concert, error) {
	const q = `SELECT ` + concertColumns + ` FROM concerts WHERE id = ?`
	return scanConcert(r.db.QueryRowContext(ctx, q, id))
}

// List returns all concerts ordered by start time ascending.
func (r *ConcertRepo) List(ctx context.Context) ([]model.Concert, error) {
	const q = `SELECT ` + concertColumns + ` FROM concerts ORDER BY starts_at ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	concerts := make([]model.Concert, 0)
	for rows.Next() {
		var c model.Concert
		var img sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Venue, &c.StartsAt, &c.TicketPriceCents,
			&c.TotalCapacity, &c.AvailableTickets, &img, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if img.Valid {
			c.ImageURL = img.String
		}
		concerts = append(concerts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return concerts, nil
}

// UpdateDetails updates display attributes of a concert. The counters
// (total_capacity, available_tickets) are deliberately not touched here;
// the ledger owns them. Returns ErrConcertNotFound when no row matches.
func (r *ConcertRepo) UpdateDetails(ctx context.Context, c *model.Concert) error {
	const q = `UPDATE concerts SET name = ?, venue = ?, starts_at = ?, ticket_price_cents = ?, image_url = ?
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, c.Name, c.Venue, c.StartsAt, c.TicketPriceCents, c.ImageURL, c.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing or unchanged; distinguish by existence.
		if _, err := r.GetByID(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a concert. Bookings referencing it are removed by the
// ON DELETE CASCADE foreign key. Returns ErrConcertNotFound when no row
// matches.
func (r *ConcertRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM concerts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConcertNotFound
	}
	return nil
}

// Reserve atomically decrements available_tickets by qty if and only if
// at least qty tickets remain. The guard and the decrement are one
// UPDATE, so two concurrent reservations can never both take the last
// ticket, and the count readback runs in the same transaction while the
// row lock is still held, so the returned count is exactly the value
// this decrement wrote. When the concert has fewer tickets than
// requested it returns ErrInsufficientTickets with the observed count;
// when the concert does not exist it returns ErrConcertNotFound.
func (r *ConcertRepo) Reserve(ctx context.Context, concertID uint64, qty uint32) (uint32, error) {
	const q = `UPDATE concerts
	           SET available_tickets = available_tickets - ?
	           WHERE id = ? AND available_tickets >= ?`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, q, qty, concertID, qty)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	var remaining uint32
	err = tx.QueryRowContext(ctx, `SELECT available_tickets FROM concerts WHERE id = ?`, concertID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConcertNotFound
	}
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	if n == 0 {
		return remaining, ErrInsufficientTickets
	}
	return remaining, nil
}

// Release atomically returns qty tickets to the pool, clamped so the
// counter never exceeds total_capacity even if a mismatched cancellation
// slips through. The readback shares the update's transaction, so the
// returned count reflects this release and nothing newer. Returns
// ErrConcertNotFound when no row matches.
func (r *ConcertRepo) Release(ctx context.Context, concertID uint64, qty uint32) (uint32, error) {
	const q = `UPDATE concerts
	           SET available_tickets = LEAST(total_capacity, available_tickets + ?)
	           WHERE id = ?`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, q, qty, concertID); err != nil {
		return 0, err
	}
	var remaining uint32
	err = tx.QueryRowContext(ctx, `SELECT available_tickets FROM concerts WHERE id = ?`, concertID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrConcertNotFound
	}
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return remaining, nil
}

