package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/businessgohq/bridge/internal/auth"
	"github.com/businessgohq/bridge/internal/config"
	"github.com/businessgohq/bridge/internal/conversation"
	"github.com/businessgohq/bridge/internal/session"
)

// SessionAdmin exposes the auth session operations the panel needs.
type SessionAdmin interface {
	Sessions(ctx context.Context) ([]session.Session, error)
	Logout(ctx context.Context, phone string) error
	Now() time.Time
}

// ConversationBridge records manual replies and serves recent traffic.
type ConversationBridge interface {
	Recent(ctx context.Context, tenantID int64, limit int) ([]conversation.Record, error)
	RecordManualReply(ctx context.Context, e conversation.Event) (conversation.RecordResult, error)
}

// MessageSender pushes outbound text through the transport gateway.
type MessageSender interface {
	SendText(ctx context.Context, instanceID, phone, text string) error
}

// AdminHandler serves the JWT-protected operations panel.
type AdminHandler struct {
	sessions  SessionAdmin
	bridge    ConversationBridge
	sender    MessageSender
	instances config.WhatsAppConfig
	logger    *slog.Logger
}

func NewAdminHandler(log *slog.Logger, sessions SessionAdmin, bridge ConversationBridge, sender MessageSender, instances config.WhatsAppConfig) *AdminHandler {
	return &AdminHandler{
		sessions:  sessions,
		bridge:    bridge,
		sender:    sender,
		instances: instances,
		logger:    log.With(slog.String("handler", "admin")),
	}
}

func (h *AdminHandler) Register(e *echo.Echo) {
	group := e.Group("/admin")
	group.GET("/sessions", h.ListSessions)
	group.DELETE("/sessions/:phone", h.DeleteSession)
	group.GET("/conversations/:tenant_id", h.ListConversations)
	group.POST("/messages/send", h.SendMessage)
}

type sessionView struct {
	session.Session
	State session.State `json:"state"`
}

func (h *AdminHandler) ListSessions(c echo.Context) error {
	sessions, err := h.sessions.Sessions(c.Request().Context())
	if err != nil {
		h.logger.Error("list sessions failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list sessions failed")
	}

	now := h.sessions.Now()
	items := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionView{Session: s, State: s.StateAt(now)})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *AdminHandler) DeleteSession(c echo.Context) error {
	phone := strings.TrimSpace(c.Param("phone"))
	if phone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone is required")
	}
	if err := h.sessions.Logout(c.Request().Context(), phone); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		h.logger.Error("force logout failed", slog.String("phone", phone), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) ListConversations(c echo.Context) error {
	tenantID, err := strconv.ParseInt(strings.TrimSpace(c.Param("tenant_id")), 10, 64)
	if err != nil || tenantID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id must be a positive integer")
	}

	limit := 30
	if s := strings.TrimSpace(c.QueryParam("limit")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	records, err := h.bridge.Recent(c.Request().Context(), tenantID, limit)
	if err != nil {
		h.logger.Error("list conversations failed", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list conversations failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"items": records})
}

type sendMessageRequest struct {
	InstanceID string `json:"instance_id"`
	Phone      string `json:"phone"`
	Text       string `json:"text"`
}

// SendMessage pushes a manual reply through the gateway and records it as
// salida_manual under the instance tenant, attributed to the admin user.
func (h *AdminHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.InstanceID = strings.TrimSpace(req.InstanceID)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Text = strings.TrimSpace(req.Text)
	if req.InstanceID == "" || req.Phone == "" || req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "instance_id, phone and text are required")
	}

	instance, ok := h.instances.Instance(req.InstanceID)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown instance")
	}

	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.sender.SendText(ctx, instance.ID, req.Phone, req.Text); err != nil {
		h.logger.Error("manual send failed", slog.String("instance", instance.ID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadGateway, "send failed")
	}

	res, err := h.bridge.RecordManualReply(ctx, conversation.Event{
		TenantID: instance.TenantID,
		Phone:    req.Phone,
		Body:     req.Text,
		ActorRef: "admin:" + userID,
	})
	if err != nil {
		h.logger.Error("manual reply not recorded", slog.String("instance", instance.ID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "message sent but recording failed")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "sent", "ref": res.Ref})
}
