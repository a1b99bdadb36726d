package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports liveness for load balancers and monitoring. It checks
// nothing downstream: a booked-out database or a dead broker must not
// make the process look unhealthy.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
