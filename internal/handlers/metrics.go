package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/businessgohq/bridge/internal/obs"
)

// MetricsHandler exposes the prometheus registry.
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler { return &MetricsHandler{} }

func (h *MetricsHandler) Register(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(obs.Handler()))
}
