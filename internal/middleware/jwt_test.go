package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-booking/internal/utils"
)

const testSecret = "test-secret"

func runAuthed(t *testing.T, header string, mws ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler chain: %v", err)
	}
	return rec, c
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("valid token populates claims", func(t *testing.T) {
		at, err := utils.NewAccessToken(testSecret, 41, "Ada", "ada@example.com", "CUSTOMER", 5)
		if err != nil {
			t.Fatalf("mint token: %v", err)
		}
		rec, c := runAuthed(t, "Bearer "+at.Token, JWTAuth(testSecret))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if uid, _ := c.Get("user_id").(uint64); uid != 41 {
			t.Fatalf("user_id = %v", c.Get("user_id"))
		}
		if c.Get("user_email") != "ada@example.com" || c.Get("role") != "CUSTOMER" {
			t.Fatalf("claims not propagated: %v / %v", c.Get("user_email"), c.Get("role"))
		}
	})

	t.Run("missing header is a 401", func(t *testing.T) {
		rec, _ := runAuthed(t, "", JWTAuth(testSecret))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("wrong secret is a 401", func(t *testing.T) {
		at, err := utils.NewAccessToken("other-secret", 41, "Ada", "ada@example.com", "CUSTOMER", 5)
		if err != nil {
			t.Fatalf("mint token: %v", err)
		}
		rec, _ := runAuthed(t, "Bearer "+at.Token, JWTAuth(testSecret))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	mint := func(role string) string {
		at, err := utils.NewAccessToken(testSecret, 41, "Ada", "ada@example.com", role, 5)
		if err != nil {
			t.Fatalf("mint token: %v", err)
		}
		return "Bearer " + at.Token
	}

	t.Run("allowed role passes", func(t *testing.T) {
		rec, _ := runAuthed(t, mint("ADMIN"), JWTAuth(testSecret), RequireRole("ADMIN"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("other role is a 403", func(t *testing.T) {
		rec, _ := runAuthed(t, mint("CUSTOMER"), JWTAuth(testSecret), RequireRole("ADMIN"))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("unknown role is a 403", func(t *testing.T) {
		rec, _ := runAuthed(t, mint("SUPERUSER"), JWTAuth(testSecret), RequireRole("ADMIN", "CUSTOMER"))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})
}
