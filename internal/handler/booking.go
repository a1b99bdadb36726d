package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-booking/internal/model"
	"github.com/iliyamo/concert-booking/internal/repository"
	"github.com/iliyamo/concert-booking/internal/service"
)

// BookingHandler exposes the reservation engine over HTTP. Booking and
// cancellation run synchronously; ticket issuance is handed to the
// Issuer after the response status is decided, so a slow SMTP server or
// broker can never delay or fail a booking.
type BookingHandler struct {
	Reservations *service.Reservation
	Issuer       *service.Issuer
	Bookings     *repository.BookingRepo
}

// NewBookingHandler returns a BookingHandler. issuer may be nil, in
// which case confirmations are simply not sent.
func NewBookingHandler(r *service.Reservation, issuer *service.Issuer, b *repository.BookingRepo) *BookingHandler {
	return &BookingHandler{Reservations: r, Issuer: issuer, Bookings: b}
}

type bookReq struct {
	Tickets uint32 `json:"tickets"`
}

type bookResp struct {
	BookingID   uint64 `json:"booking_id"`
	ConcertID   uint64 `json:"concert_id"`
	ConcertName string `json:"concert_name"`
	Venue       string `json:"venue"`
	StartsAt    string `json:"starts_at"`
	Tickets     uint32 `json:"tickets"`
}

// identityFrom builds the caller identity from the JWT claims stored in
// context by the auth middleware.
func identityFrom(c echo.Context) (service.Identity, bool) {
	uid, ok := c.Get("user_id").(uint64)
	if !ok || uid == 0 {
		return service.Identity{}, false
	}
	id := service.Identity{ID: uid}
	if v, ok := c.Get("user_name").(string); ok {
		id.Name = v
	}
	if v, ok := c.Get("user_email").(string); ok {
		id.Email = v
	}
	return id, true
}

func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == model.RoleAdmin
}

// Book reserves tickets on a concert for the caller. On success the
// response is sent with 201 and the issuance pipeline (PDF + email +
// event) runs afterwards in the background.
func (h *BookingHandler) Book(c echo.Context) error {
	id, ok := identityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	concertID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	snap, err := h.Reservations.Book(ctx, id, concertID, req.Tickets)
	if err != nil {
		var insufficient *service.InsufficientTicketsError
		switch {
		case errors.Is(err, service.ErrTicketCount):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, repository.ErrConcertNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "concert not found"})
		case errors.As(err, &insufficient):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":     "not enough tickets",
				"remaining": insufficient.Remaining,
			})
		case errors.Is(err, service.ErrCapExceeded):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		case errors.Is(err, service.ErrBookingConflict):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
		}
	}

	if h.Issuer != nil {
		h.Issuer.IssueAsync(*snap)
	}

	return c.JSON(http.StatusCreated, bookResp{
		BookingID:   snap.BookingID,
		ConcertID:   snap.ConcertID,
		ConcertName: snap.ConcertName,
		Venue:       snap.Venue,
		StartsAt:    snap.StartsAt.UTC().Format(time.RFC3339),
		Tickets:     snap.Tickets,
	})
}

// Cancel removes the caller's booking and returns its tickets to the
// pool.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := identityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Reservations.Cancel(ctx, bookingID, id.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your booking"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Ticket regenerates and streams the ticket PDF for a booking. Owners
// can always download their own ticket; admins can download any.
func (h *BookingHandler) Ticket(c echo.Context) error {
	id, ok := identityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	pdf, err := h.Reservations.MaterializeTicket(ctx, bookingID, id.ID, isAdmin(c))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your booking"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "render ticket failed"})
		}
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="concert_ticket_%d.pdf"`, bookingID))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// MyBookings lists the caller's bookings with concert details, newest
// first.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	id, ok := identityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	bookings, err := h.Bookings.ListByUser(ctx, id.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list bookings failed"})
	}
	return c.JSON(http.StatusOK, bookings)
}
