package repository

// Sentinel errors shared across the repositories. Handlers and services
// compare against these with errors.Is to pick HTTP status codes and
// retry behavior without inspecting driver-specific errors.

import "errors"

// ErrConcertNotFound indicates that no concert exists with the given ID.
var ErrConcertNotFound = errors.New("concert not found")

// ErrBookingNotFound indicates that no booking exists with the given ID,
// or that a conditional booking mutation matched no row.
var ErrBookingNotFound = errors.New("booking not found")

// ErrInsufficientTickets is returned by Reserve when the concert has
// fewer tickets remaining than requested. It is an expected business
// rejection, not a system failure; callers must not retry it.
var ErrInsufficientTickets = errors.New("insufficient tickets")

// ErrDuplicateBooking is returned when an insert collides with the
// UNIQUE(user_id, concert_id) key, meaning another request created the
// booking for this pair first. The caller should re-read and retry as
// an increment.
var ErrDuplicateBooking = errors.New("booking already exists for user and concert")

// ErrStaleCount is returned when a compare-and-swap increment found a
// ticket count different from the one the caller read. The caller
// should re-read and retry.
var ErrStaleCount = errors.New("booking count changed concurrently")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrEmailExists is returned when registering a user with an email that
// is already taken.
var ErrEmailExists = errors.New("email already exists")
