package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/backend/internal/model"
	"github.com/taskhub/backend/internal/obs"
	"github.com/taskhub/backend/internal/service"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "Username, email and password"
// @Success 201 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	token, user, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		obs.AuthEvent("register", outcome(err))
		writeError(c, err, "user")
		return
	}

	obs.AuthEvent("register", "success")
	c.JSON(http.StatusCreated, model.AuthResponse{
		ID:       user.ID,
		Token:    token,
		Username: user.Username,
		Email:    user.Email,
	})
}

// Login godoc
// @Summary Login
// @Description Username may also be the account email.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Username or email and password"
// @Success 200 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	token, user, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		obs.AuthEvent("login", outcome(err))
		writeError(c, err, "user")
		return
	}

	obs.AuthEvent("login", "success")
	c.JSON(http.StatusOK, model.AuthResponse{
		ID:       user.ID,
		Token:    token,
		Username: user.Username,
		Email:    user.Email,
	})
}

// Logout godoc
// @Summary Logout
// @Description Revokes the bearer token if one is sent. Always succeeds.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MessageResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"))
	if err := h.svc.Logout(c.Request.Context(), token); err != nil {
		obs.AuthEvent("logout", "error")
		slog.Warn("logout could not persist revocation",
			"request_id", c.GetString(requestIDKey),
			"error", err,
		)
	} else {
		obs.AuthEvent("logout", "success")
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "logged out successfully"})
}

// Me godoc
// @Summary Get current identity
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.AuthMeResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity := GetIdentity(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.ErrMissingToken.Error()})
		return
	}
	c.JSON(http.StatusOK, model.AuthMeResponse{
		UserID:   identity.ID,
		Username: identity.Username,
	})
}

func outcome(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, service.ErrConflict):
		return "conflict"
	case errors.Is(err, service.ErrUnauthorized):
		return "denied"
	default:
		return "error"
	}
}
