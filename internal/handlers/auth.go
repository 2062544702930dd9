package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/businessgohq/bridge/internal/admin"
	"github.com/businessgohq/bridge/internal/auth"
)

// AdminStore resolves panel accounts for login.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (admin.AdminUser, error)
	VerifyPassword(user admin.AdminUser, password string) bool
}

type AuthHandler struct {
	admins     AdminStore
	jwtSecret  string
	jwtExpires time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewAuthHandler wires the login and refresh endpoints. loginRate and
// loginBurst bound how fast credentials can be tried.
func NewAuthHandler(log *slog.Logger, admins AdminStore, jwtSecret string, jwtExpires time.Duration, loginRate float64, loginBurst int) *AuthHandler {
	if loginRate <= 0 {
		loginRate = 1
	}
	if loginBurst <= 0 {
		loginBurst = 5
	}
	return &AuthHandler{
		admins:     admins,
		jwtSecret:  jwtSecret,
		jwtExpires: jwtExpires,
		limiter:    rate.NewLimiter(rate.Limit(loginRate), loginBurst),
		logger:     log.With(slog.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
	e.POST("/auth/refresh", h.Refresh)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	if !h.limiter.Allow() {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts")
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	user, err := h.admins.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, admin.ErrAdminNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		h.logger.Error("admin lookup failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "login unavailable")
	}
	if !h.admins.VerifyPassword(user, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, expiresAt, err := auth.GenerateToken(user.ID, h.jwtSecret, h.jwtExpires)
	if err != nil {
		h.logger.Error("token generation failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "login unavailable")
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	token, expiresAt, err := auth.RefreshTokenFromContext(c, h.jwtSecret, h.jwtExpires)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}
