package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-booking/internal/model"
	"github.com/iliyamo/concert-booking/internal/repository"
	"github.com/iliyamo/concert-booking/internal/service"
)

// memConcerts and memBookings give the handlers a real reservation
// service backed by memory instead of MySQL.
type memConcerts struct {
	rows map[uint64]*model.Concert
}

func (m *memConcerts) GetByID(_ context.Context, id uint64) (*model.Concert, error) {
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrConcertNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memConcerts) Reserve(_ context.Context, id uint64, qty uint32) (uint32, error) {
	r, ok := m.rows[id]
	if !ok {
		return 0, repository.ErrConcertNotFound
	}
	if r.AvailableTickets < qty {
		return r.AvailableTickets, repository.ErrInsufficientTickets
	}
	r.AvailableTickets -= qty
	return r.AvailableTickets, nil
}

func (m *memConcerts) Release(_ context.Context, id uint64, qty uint32) (uint32, error) {
	r := m.rows[id]
	r.AvailableTickets += qty
	return r.AvailableTickets, nil
}

type memBookings struct {
	nextID uint64
	rows   map[uint64]*model.Booking
}

func (m *memBookings) Create(_ context.Context, b *model.Booking) error {
	for _, r := range m.rows {
		if r.UserID == b.UserID && r.ConcertID == b.ConcertID {
			return repository.ErrDuplicateBooking
		}
	}
	m.nextID++
	b.ID = m.nextID
	cp := *b
	m.rows[b.ID] = &cp
	return nil
}

func (m *memBookings) IncrementIfCount(_ context.Context, bookingID uint64, expected, qty uint32) error {
	r, ok := m.rows[bookingID]
	if !ok || r.TicketsBooked != expected {
		return repository.ErrStaleCount
	}
	r.TicketsBooked += qty
	return nil
}

func (m *memBookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memBookings) GetByUserAndConcert(_ context.Context, userID, concertID uint64) (*model.Booking, error) {
	for _, r := range m.rows {
		if r.UserID == userID && r.ConcertID == concertID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (m *memBookings) DeleteOwned(_ context.Context, bookingID, userID uint64) (*model.Booking, error) {
	r, ok := m.rows[bookingID]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	if r.UserID != userID {
		return nil, repository.ErrForbidden
	}
	delete(m.rows, bookingID)
	cp := *r
	return &cp, nil
}

type memUsers struct{}

func (memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	return model.User{ID: id, Name: "Ada", Email: "ada@example.com", Role: model.RoleCustomer}, nil
}

func newBookingHandler() (*BookingHandler, *memConcerts) {
	concerts := &memConcerts{rows: map[uint64]*model.Concert{
		7: {
			ID:               7,
			Name:             "Static Pulse Live",
			Venue:            "River Arena",
			StartsAt:         time.Date(2026, 11, 5, 20, 0, 0, 0, time.UTC),
			TotalCapacity:    10,
			AvailableTickets: 10,
		},
	}}
	bookings := &memBookings{rows: map[uint64]*model.Booking{}}
	svc := service.NewReservation(concerts, bookings, memUsers{}, nil)
	return NewBookingHandler(svc, nil, nil), concerts
}

// bookRequest drives the Book handler the way the router would after
// JWT auth: path param bound, identity claims set in context.
func bookRequest(h *BookingHandler, concertID, userID string, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/concerts/"+concertID+"/book", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/concerts/:id/book")
	c.SetParamNames("id")
	c.SetParamValues(concertID)
	uid, _ := strconv.ParseUint(userID, 10, 64)
	c.Set("user_id", uid)
	c.Set("user_name", "Ada")
	c.Set("user_email", "ada@example.com")
	c.Set("role", model.RoleCustomer)
	_ = h.Book(c)
	return rec
}

func TestBookingHandler_Book(t *testing.T) {
	t.Parallel()

	t.Run("books and returns 201", func(t *testing.T) {
		h, concerts := newBookingHandler()
		rec := bookRequest(h, "7", "1", `{"tickets":2}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			BookingID uint64 `json:"booking_id"`
			Tickets   uint32 `json:"tickets"`
			Venue     string `json:"venue"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.BookingID == 0 || resp.Tickets != 2 || resp.Venue != "River Arena" {
			t.Fatalf("unexpected response: %+v", resp)
		}
		if got := concerts.rows[7].AvailableTickets; got != 8 {
			t.Fatalf("expected 8 remaining, got %d", got)
		}
	})

	t.Run("invalid quantity is a 400", func(t *testing.T) {
		h, _ := newBookingHandler()
		if rec := bookRequest(h, "7", "1", `{"tickets":4}`); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown concert is a 404", func(t *testing.T) {
		h, _ := newBookingHandler()
		if rec := bookRequest(h, "99", "1", `{"tickets":1}`); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("sold out is a 409 with remaining", func(t *testing.T) {
		h, concerts := newBookingHandler()
		concerts.rows[7].AvailableTickets = 1

		rec := bookRequest(h, "7", "1", `{"tickets":3}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		var resp struct {
			Remaining uint32 `json:"remaining"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Remaining != 1 {
			t.Fatalf("expected remaining 1, got %d", resp.Remaining)
		}
	})

	t.Run("cap overflow is a 409", func(t *testing.T) {
		h, _ := newBookingHandler()
		if rec := bookRequest(h, "7", "1", `{"tickets":3}`); rec.Code != http.StatusCreated {
			t.Fatalf("seed booking failed: %d", rec.Code)
		}
		if rec := bookRequest(h, "7", "1", `{"tickets":1}`); rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestBookingHandler_Cancel(t *testing.T) {
	t.Parallel()

	h, concerts := newBookingHandler()
	if rec := bookRequest(h, "7", "1", `{"tickets":2}`); rec.Code != http.StatusCreated {
		t.Fatalf("seed booking failed: %d", rec.Code)
	}

	cancel := func(bookingID string, userID uint64) *httptest.ResponseRecorder {
		e := echo.New()
		req := httptest.NewRequest(http.MethodDelete, "/v1/bookings/"+bookingID, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/v1/bookings/:id")
		c.SetParamNames("id")
		c.SetParamValues(bookingID)
		c.Set("user_id", userID)
		c.Set("role", model.RoleCustomer)
		_ = h.Cancel(c)
		return rec
	}

	if rec := cancel("1", 2); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign booking, got %d", rec.Code)
	}
	if rec := cancel("1", 1); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := concerts.rows[7].AvailableTickets; got != 10 {
		t.Fatalf("expected inventory restored, got %d", got)
	}
	if rec := cancel("1", 1); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after removal, got %d", rec.Code)
	}
}
