// Package queue defines message payloads exchanged over the message
// broker and the background consumer that processes them.
package queue

// BookingConfirmedEvent is published after a reservation commits. It
// carries enough information for downstream consumers to log, notify or
// feed analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID   uint64 `json:"booking_id"`
	UserID      uint64 `json:"user_id"`
	UserEmail   string `json:"user_email"`
	ConcertID   uint64 `json:"concert_id"`
	ConcertName string `json:"concert_name"`
	Venue       string `json:"venue"`
	StartsAt    string `json:"starts_at"`
	Tickets     uint32 `json:"tickets"`
	ConfirmedAt string `json:"confirmed_at"`
}
