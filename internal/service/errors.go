// Package service implements the booking reservation engine and the
// ticket issuance pipeline on top of the repository layer.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/concert-booking/internal/model"
	"github.com/iliyamo/concert-booking/internal/repository"
)

// ErrTicketCount rejects a request whose quantity is outside [1,3].
// Caller error; no side effects have occurred.
var ErrTicketCount = fmt.Errorf("tickets must be between 1 and %d", model.MaxTicketsPerUser)

// ErrCapExceeded rejects a request that would push a user's cumulative
// tickets for one concert past the cap. An expected business rejection.
var ErrCapExceeded = fmt.Errorf("cannot hold more than %d tickets for one concert", model.MaxTicketsPerUser)

// ErrBookingConflict is returned when the bounded retry loop around the
// booking upsert kept losing races. No inventory is held when it is
// returned; the caller may safely retry the whole request.
var ErrBookingConflict = errors.New("booking conflicted with concurrent requests, try again")

// InsufficientTicketsError reports an exhausted ticket pool together
// with how many tickets actually remain, so callers can render an
// actionable message. It unwraps to repository.ErrInsufficientTickets.
type InsufficientTicketsError struct {
	Remaining uint32
}

func (e *InsufficientTicketsError) Error() string {
	return fmt.Sprintf("only %d tickets left", e.Remaining)
}

// Unwrap lets errors.Is treat this as the repository sentinel.
func (e *InsufficientTicketsError) Unwrap() error { return repository.ErrInsufficientTickets }
