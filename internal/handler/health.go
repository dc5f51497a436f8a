package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-saga/internal/service"
)

// HealthHandler reports liveness plus the state of the notifier breaker.
type HealthHandler struct {
	Notifier *service.NotificationDispatcher
}

// Health handles GET /healthz.  It always answers 200 while the process is
// serving; a degraded notifier does not make the service unhealthy.
func (h *HealthHandler) Health(c echo.Context) error {
	body := echo.Map{"status": "ok"}
	if h.Notifier != nil {
		body["notifier"] = h.Notifier.BreakerState()
	}
	return c.JSON(http.StatusOK, body)
}
