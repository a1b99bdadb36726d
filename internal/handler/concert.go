package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-booking/internal/model"
	"github.com/iliyamo/concert-booking/internal/repository"
)

// ConcertHandler serves the public catalog and the admin CRUD
// endpoints. Inventory counters are read-only here: bookings are the
// only writers, through the reservation service.
type ConcertHandler struct {
	Concerts *repository.ConcertRepo
	Bookings *repository.BookingRepo
}

// NewConcertHandler returns a ConcertHandler.
func NewConcertHandler(c *repository.ConcertRepo, b *repository.BookingRepo) *ConcertHandler {
	return &ConcertHandler{Concerts: c, Bookings: b}
}

type concertReq struct {
	Name             string `json:"name"`
	Venue            string `json:"venue"`
	StartsAt         string `json:"starts_at"` // RFC 3339
	TicketPriceCents uint32 `json:"ticket_price_cents"`
	Capacity         uint32 `json:"capacity"`
	ImageURL         string `json:"image_url"`
}

type concertResp struct {
	ID               uint64 `json:"id"`
	Name             string `json:"name"`
	Venue            string `json:"venue"`
	StartsAt         string `json:"starts_at"`
	TicketPriceCents uint32 `json:"ticket_price_cents"`
	TotalCapacity    uint32 `json:"total_capacity"`
	AvailableTickets uint32 `json:"available_tickets"`
	ImageURL         string `json:"image_url,omitempty"`
}

func toConcertResp(c *model.Concert) concertResp {
	return concertResp{
		ID:               c.ID,
		Name:             c.Name,
		Venue:            c.Venue,
		StartsAt:         c.StartsAt.UTC().Format(time.RFC3339),
		TicketPriceCents: c.TicketPriceCents,
		TotalCapacity:    c.TotalCapacity,
		AvailableTickets: c.AvailableTickets,
		ImageURL:         c.ImageURL,
	}
}

// parseStartsAt accepts RFC 3339 and normalizes to UTC.
func parseStartsAt(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// List returns every concert with live availability, available to
// guests.
func (h *ConcertHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	concerts, err := h.Concerts.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list concerts failed"})
	}
	out := make([]concertResp, 0, len(concerts))
	for i := range concerts {
		out = append(out, toConcertResp(&concerts[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one concert by ID, available to guests.
func (h *ConcertHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	concert, err := h.Concerts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrConcertNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "concert not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load concert failed"})
	}
	return c.JSON(http.StatusOK, toConcertResp(concert))
}

// Create adds a concert to the catalog. Admin only. available_tickets
// starts equal to capacity.
func (h *ConcertHandler) Create(c echo.Context) error {
	var req concertReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Venue = strings.TrimSpace(req.Venue)
	if req.Name == "" || req.Venue == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/venue required"})
	}
	if req.Capacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	}
	startsAt, err := parseStartsAt(req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC 3339"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rec := &model.Concert{
		Name:             req.Name,
		Venue:            req.Venue,
		StartsAt:         startsAt,
		TicketPriceCents: req.TicketPriceCents,
		TotalCapacity:    req.Capacity,
		ImageURL:         strings.TrimSpace(req.ImageURL),
	}
	if err := h.Concerts.Create(ctx, rec); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create concert failed"})
	}
	return c.JSON(http.StatusCreated, toConcertResp(rec))
}

// Update changes the display attributes of a concert. Admin only. The
// inventory counters are not editable here; capacity changes go through
// operational tooling so the ledger invariants are never bypassed.
func (h *ConcertHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}
	var req concertReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Venue = strings.TrimSpace(req.Venue)
	if req.Name == "" || req.Venue == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/venue required"})
	}
	startsAt, err := parseStartsAt(req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC 3339"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rec := &model.Concert{
		ID:               id,
		Name:             req.Name,
		Venue:            req.Venue,
		StartsAt:         startsAt,
		TicketPriceCents: req.TicketPriceCents,
		ImageURL:         strings.TrimSpace(req.ImageURL),
	}
	if err := h.Concerts.UpdateDetails(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrConcertNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "concert not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update concert failed"})
	}

	updated, err := h.Concerts.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load concert failed"})
	}
	return c.JSON(http.StatusOK, toConcertResp(updated))
}

// Delete removes a concert and, via the cascading foreign key, its
// bookings. Admin only.
func (h *ConcertHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Concerts.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConcertNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "concert not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete concert failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListBookings returns every booking on a concert with the holder's
// email. Admin only.
func (h *ConcertHandler) ListBookings(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Concerts.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConcertNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "concert not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load concert failed"})
	}

	bookings, err := h.Bookings.ListByConcert(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list bookings failed"})
	}
	return c.JSON(http.StatusOK, bookings)
}
