package middleware

// identity.go provides helpers shared across middleware files for
// reading the authenticated caller out of the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user's ID as a string for use
// in cache and rate-limit keys, or "anon" when the request carries no
// identity (public routes sit in front of auth).
func currentUserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(uint64); ok && v != 0 {
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}
