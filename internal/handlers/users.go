package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibechecc/backend/internal/database"
	"github.com/vibechecc/backend/internal/util"
	"go.uber.org/zap"
)

// GetMe returns the authenticated user's full record.
func (h *Handlers) GetMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMeRequest carries the editable profile fields. Pointers so absent
// fields are left untouched.
type UpdateMeRequest struct {
	DisplayName *string   `json:"display_name" binding:"omitempty,min=1,max=50"`
	Bio         *string   `json:"bio" binding:"omitempty,max=500"`
	AvatarURL   *string   `json:"avatar_url"`
	Interests   *[]string `json:"interests" binding:"omitempty,max=20"`
	Onboarded   *bool     `json:"onboarded"`
}

// UpdateMe applies a partial profile update.
func (h *Handlers) UpdateMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}

	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	if req.Interests != nil {
		user.Interests = *req.Interests
	}
	if req.Onboarded != nil {
		user.Onboarded = *req.Onboarded
	}

	if err := database.DB.Save(user).Error; err != nil {
		h.log.Error("failed to update profile", zap.String("user_id", user.ID), zap.Error(err))
		util.RespondInternalError(c, "failed to update profile")
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetUser returns another user's public profile by username.
func (h *Handlers) GetUser(c *gin.Context) {
	user, ok := h.lookupUser(c, c.Param("username"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user.PublicProfile())
}
