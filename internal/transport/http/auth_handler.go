package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/classtrack/attendance-api/internal/domain"
	"github.com/classtrack/attendance-api/internal/service"
	"github.com/classtrack/attendance-api/internal/util"
)

type AuthHandler struct {
	auth *service.AuthService
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

type tokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

func RegisterAuth(e *echo.Echo, auth *service.AuthService) {
	handler := &AuthHandler{auth: auth}

	group := e.Group("/api/v1/auth")
	group.POST("/register", handler.register)
	group.POST("/login", handler.login)
	group.POST("/google", handler.loginGoogle)
	group.GET("/me", handler.me, RequireAuth(auth))
}

func (h *AuthHandler) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}

	user, err := h.auth.RegisterWithEmail(c.Request().Context(), req.Email, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailAlreadyUsed):
			return c.JSON(http.StatusConflict, util.Error("email already registered"))
		case errors.Is(err, service.ErrInvalidRole):
			return c.JSON(http.StatusBadRequest, util.Error("role must be teacher or student"))
		case errors.Is(err, service.ErrWeakPassword):
			return c.JSON(http.StatusBadRequest, util.Error(err.Error()))
		case errors.Is(err, service.ErrInvalidCredentials):
			return c.JSON(http.StatusBadRequest, util.Error("email is required"))
		default:
			return c.JSON(http.StatusInternalServerError, util.Error("could not register"))
		}
	}
	return c.JSON(http.StatusCreated, util.Data("user", user))
}

func (h *AuthHandler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, util.Error("invalid request body"))
	}

	token, expiresAt, user, err := h.auth.LoginWithEmail(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, util.Error("invalid email or password"))
		}
		return c.JSON(http.StatusInternalServerError, util.Error("could not log in"))
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (h *AuthHandler) loginGoogle(c echo.Context) error {
	var req googleLoginRequest
	if err := c.Bind(&req); err != nil || req.IDToken == "" {
		return c.JSON(http.StatusBadRequest, util.Error("id_token is required"))
	}

	token, expiresAt, user, err := h.auth.LoginWithGoogle(c.Request().Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, service.ErrNotAuthenticated) {
			return c.JSON(http.StatusUnauthorized, util.Error("invalid google token"))
		}
		return c.JSON(http.StatusInternalServerError, util.Error("could not log in"))
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (h *AuthHandler) me(c echo.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	return c.JSON(http.StatusOK, util.Data("user", user))
}
