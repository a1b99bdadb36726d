package model

import "time"

// Booking records how many tickets a user holds for a concert. There is
// at most one row per (user, concert) pair: a repeat booking for the
// same concert accumulates into the existing row instead of inserting a
// second one. The cumulative TicketsBooked for a pair never exceeds
// MaxTicketsPerUser; the reservation service enforces the cap with a
// compare-and-swap on the current count.
type Booking struct {
	ID            uint64    // bookings.id
	UserID        uint64    // bookings.user_id
	ConcertID     uint64    // bookings.concert_id
	TicketsBooked uint32    // bookings.tickets_booked
	CreatedAt     time.Time // bookings.created_at
	UpdatedAt     time.Time // bookings.updated_at
}

// MaxTicketsPerUser is the cumulative ticket cap for a single user on a
// single concert. A single request is also bounded by this value.
const MaxTicketsPerUser = 3
