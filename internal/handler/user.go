package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/backend/internal/model"
	"github.com/taskhub/backend/internal/service"
)

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// GetMe godoc
// @Summary Get the caller's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.UserView
// @Failure 404 {object} model.ErrorResponse
// @Router /api/users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := mustIdentity(c)
	if !ok {
		return
	}
	user, err := h.svc.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, user.View())
}

// UpdateMe godoc
// @Summary Update the caller's username and email
// @Description Returns a fresh token carrying the new username.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.UpdateProfileRequest true "Profile"
// @Success 200 {object} model.ProfileResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/users/me [put]
func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req model.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, token, err := h.svc.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, model.ProfileResponse{UserView: user.View(), Token: token})
}

// ChangePassword godoc
// @Summary Change the caller's password
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/users/me/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req model.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), userID, req); err != nil {
		writeError(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "password updated"})
}

// DeleteMe godoc
// @Summary Delete the caller's account
// @Description Projects and tasks are removed with the account and every session of the account is revoked.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MessageResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/users/me [delete]
func (h *UserHandler) DeleteMe(c *gin.Context) {
	userID, ok := mustIdentity(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), userID); err != nil {
		writeError(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "account deleted"})
}
