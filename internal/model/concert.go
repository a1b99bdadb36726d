package model

import "time"

// Concert represents a row in the `concerts` table. TotalCapacity is the
// number of tickets the concert opened with and never changes after
// creation; AvailableTickets is the remaining pool and is mutated only
// through the conditional reserve/release statements in the concert
// repository. Catalog updates must not touch either counter.
type Concert struct {
	ID               uint64    // concerts.id
	Name             string    // concerts.name
	Venue            string    // concerts.venue
	StartsAt         time.Time // concerts.starts_at
	TicketPriceCents uint32    // concerts.ticket_price_cents
	TotalCapacity    uint32    // concerts.total_capacity
	AvailableTickets uint32    // concerts.available_tickets
	ImageURL         string    // concerts.image_url
	CreatedAt        time.Time // concerts.created_at
	UpdatedAt        time.Time // concerts.updated_at
}
