package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/businessgohq/bridge/internal/healthcheck"
	"github.com/businessgohq/bridge/internal/version"
)

const healthProbeTimeout = 5 * time.Second

type PingHandler struct {
	checkers []healthcheck.Checker
	logger   *slog.Logger
}

func NewPingHandler(log *slog.Logger, checkers ...healthcheck.Checker) *PingHandler {
	return &PingHandler{
		checkers: checkers,
		logger:   log.With(slog.String("handler", "ping")),
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *PingHandler) Health(c echo.Context) error {
	results := healthcheck.Run(c.Request().Context(), healthProbeTimeout, h.checkers)
	status := healthcheck.Worst(results)
	body := map[string]any{
		"status":  status,
		"version": version.Version,
	}
	if len(results) > 0 {
		body["checks"] = results
	}
	return c.JSON(h.healthCode(status), body)
}

func (h *PingHandler) HealthHead(c echo.Context) error {
	results := healthcheck.Run(c.Request().Context(), healthProbeTimeout, h.checkers)
	return c.NoContent(h.healthCode(healthcheck.Worst(results)))
}

func (h *PingHandler) healthCode(status string) int {
	if status == healthcheck.StatusError {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
