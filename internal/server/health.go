package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/mardikor/internal/events"
	"github.com/sudo-init-do/mardikor/internal/store"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type healthHandler struct {
	store          store.Store
	bus            events.Bus
	backend        string
	transport      string
	storeDegraded  bool
	eventsDegraded bool
}

func (h *healthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "mardikor"})
}

// Ready reports whether the store and event transport answer. A server that
// fell back to the in-memory store or bus is ready but degraded.
func (h *healthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	body := echo.Map{"store": h.backend, "events": h.transport}
	if err := h.store.Ping(ctx); err != nil {
		slog.Warn("readiness: store unreachable", "error", err)
		body["status"] = "not_ready"
		body["error"] = "store unreachable"
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	if p, ok := h.bus.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("readiness: event bus unreachable", "error", err)
			body["status"] = "not_ready"
			body["error"] = "event bus unreachable"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
	}
	body["status"] = "ready"
	var degraded []string
	if h.storeDegraded {
		degraded = append(degraded, "store")
	}
	if h.eventsDegraded {
		degraded = append(degraded, "events")
	}
	if len(degraded) > 0 {
		body["status"] = "degraded"
		body["degraded"] = degraded
	}
	return c.JSON(http.StatusOK, body)
}
