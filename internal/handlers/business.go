package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/businessgohq/bridge/internal/token"
)

// HeaderBusinessToken carries the opaque grant on business calls.
const HeaderBusinessToken = "x-business-token"

const businessGrantKey = "business_grant"

// TokenValidator resolves an opaque business token to its grant.
type TokenValidator interface {
	Validate(ctx context.Context, raw string) (token.BusinessToken, error)
}

// MembershipChecker re-resolves whether the operator still belongs to the
// tenant. Tokens outlive membership changes, so every call re-checks.
type MembershipChecker interface {
	HasActiveMembership(ctx context.Context, operatorID string, tenantID int64) (bool, error)
}

// BusinessHandler serves the endpoints automation workers call with a
// business token instead of an admin JWT.
type BusinessHandler struct {
	tokens      TokenValidator
	memberships MembershipChecker
	bridge      ConversationBridge
	logger      *slog.Logger
}

func NewBusinessHandler(log *slog.Logger, tokens TokenValidator, memberships MembershipChecker, bridge ConversationBridge) *BusinessHandler {
	return &BusinessHandler{
		tokens:      tokens,
		memberships: memberships,
		bridge:      bridge,
		logger:      log.With(slog.String("handler", "business")),
	}
}

func (h *BusinessHandler) Register(e *echo.Echo) {
	group := e.Group("/business", h.RequireToken)
	group.GET("/me", h.Me)
	group.GET("/conversations", h.ListConversations)
}

// RequireToken authenticates the request by business token and stores the
// grant in the echo context.
func (h *BusinessHandler) RequireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := strings.TrimSpace(c.Request().Header.Get(HeaderBusinessToken))
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "business token required")
		}

		ctx := c.Request().Context()
		grant, err := h.tokens.Validate(ctx, raw)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrTokenExpired):
				return echo.NewHTTPError(http.StatusUnauthorized, "business token expired")
			case errors.Is(err, token.ErrTokenNotFound):
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid business token")
			}
			h.logger.Error("token validation failed", slog.Any("error", err))
			return echo.NewHTTPError(http.StatusInternalServerError, "token validation failed")
		}

		active, err := h.memberships.HasActiveMembership(ctx, grant.OperatorID, grant.TenantID)
		if err != nil {
			h.logger.Error("membership check failed", slog.String("operator_id", grant.OperatorID), slog.Any("error", err))
			return echo.NewHTTPError(http.StatusServiceUnavailable, "membership verification unavailable")
		}
		if !active {
			return echo.NewHTTPError(http.StatusForbidden, "tenant access revoked")
		}

		c.Set(businessGrantKey, grant)
		return next(c)
	}
}

// GrantFromContext returns the grant stored by RequireToken.
func GrantFromContext(c echo.Context) (token.BusinessToken, error) {
	grant, ok := c.Get(businessGrantKey).(token.BusinessToken)
	if !ok {
		return token.BusinessToken{}, echo.NewHTTPError(http.StatusUnauthorized, "business token required")
	}
	return grant, nil
}

func (h *BusinessHandler) Me(c echo.Context) error {
	grant, err := GrantFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, grant)
}

// ListConversations serves recent traffic for the grant tenant only; the
// tenant comes from the token, never from the request.
func (h *BusinessHandler) ListConversations(c echo.Context) error {
	grant, err := GrantFromContext(c)
	if err != nil {
		return err
	}

	limit := 30
	if s := strings.TrimSpace(c.QueryParam("limit")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	records, err := h.bridge.Recent(c.Request().Context(), grant.TenantID, limit)
	if err != nil {
		h.logger.Error("list conversations failed", slog.Int64("tenant_id", grant.TenantID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list conversations failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"items": records})
}
