package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/businessgohq/bridge/internal/config"
	"github.com/businessgohq/bridge/internal/inbound"
	"github.com/businessgohq/bridge/internal/obs"
	"github.com/businessgohq/bridge/internal/whatsapp"
)

// Webhook auth headers set by the transport gateway on every delivery.
const (
	headerInstanceID   = "instance-identifier"
	headerSharedSecret = "shared-secret"
)

const webhookBodyLimit = 1 << 20

// WebhookIntake queues authenticated inbound messages for processing.
type WebhookIntake interface {
	Enqueue(msg inbound.InboundMessage)
}

// WebhookHandler terminates gateway webhooks. Authentication failures are
// the only 401s; once the instance is authenticated every delivery is
// acknowledged with 200 so the gateway never enters a retry storm over a
// payload the bridge chose to drop.
type WebhookHandler struct {
	instances config.WhatsAppConfig
	intake    WebhookIntake
	logger    *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, instances config.WhatsAppConfig, intake WebhookIntake) *WebhookHandler {
	return &WebhookHandler{
		instances: instances,
		intake:    intake,
		logger:    log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhooks/whatsapp", h.Handle)
}

func (h *WebhookHandler) Handle(c echo.Context) error {
	start := time.Now()

	instanceID := strings.TrimSpace(c.Request().Header.Get(headerInstanceID))
	secret := c.Request().Header.Get(headerSharedSecret)
	instance, ok := h.instances.Instance(instanceID)
	if !ok || subtle.ConstantTimeCompare([]byte(secret), []byte(instance.WebhookToken)) != 1 {
		obs.WebhookEvents.WithLabelValues("auth", "unauthorized").Inc()
		h.logger.Warn("webhook rejected", slog.String("instance", instanceID))
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown instance or bad secret")
	}

	kind, outcome := h.process(c, instance)
	obs.WebhookEvents.WithLabelValues(kindLabel(kind), outcome).Inc()
	obs.WebhookDuration.WithLabelValues(kindLabel(kind)).Observe(time.Since(start).Seconds())

	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}

// process classifies the payload and queues it when it is a direct text
// message. It never fails the request; the outcome is only observable in
// logs and metrics.
func (h *WebhookHandler) process(c echo.Context, instance config.WhatsAppInstance) (whatsapp.EventKind, string) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookBodyLimit))
	if err != nil {
		h.logger.Warn("webhook body unreadable", slog.String("instance", instance.ID), slog.Any("error", err))
		return whatsapp.EventUnknown, "unreadable"
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("webhook payload malformed", slog.String("instance", instance.ID), slog.Any("error", err))
		return whatsapp.EventUnknown, "malformed"
	}

	kind := payload.Kind()
	if kind != whatsapp.EventMessageUpsert {
		h.logger.Debug("webhook event ignored", slog.String("instance", instance.ID), slog.String("event", payload.Event))
		return kind, "ignored"
	}

	data := payload.Data
	switch {
	case data.Key.FromMe:
		return kind, "from_self"
	case data.Key.IsGroup():
		return kind, "group"
	}

	phone := data.Key.Phone()
	text := data.Text()
	if phone == "" || text == "" {
		return kind, "empty"
	}

	h.intake.Enqueue(inbound.InboundMessage{
		InstanceID:  instance.ID,
		TenantID:    instance.TenantID,
		Phone:       phone,
		DisplayName: data.PushName,
		Text:        text,
		TransportID: data.Key.ID,
	})
	return kind, "queued"
}

func kindLabel(kind whatsapp.EventKind) string {
	if kind == whatsapp.EventUnknown {
		return "unknown"
	}
	return string(kind)
}
