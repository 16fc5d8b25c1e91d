package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibechecc/backend/internal/database"
	"github.com/vibechecc/backend/internal/errors"
	"github.com/vibechecc/backend/internal/models"
	"github.com/vibechecc/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxFeedLimit = 50

// CreateVibeRequest is the payload for posting a vibe.
type CreateVibeRequest struct {
	Title       string   `json:"title" binding:"required,min=1,max=120"`
	Description string   `json:"description" binding:"max=2000"`
	ImageURL    string   `json:"image_url"`
	Tags        []string `json:"tags" binding:"max=10"`
	IsPublic    *bool    `json:"is_public"`
}

// CreateVibe posts a new vibe for the authenticated user.
func (h *Handlers) CreateVibe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}

	var req CreateVibeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	vibe := models.Vibe{
		UserID:      user.ID,
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Tags:        req.Tags,
		IsPublic:    true,
	}
	if req.IsPublic != nil {
		vibe.IsPublic = *req.IsPublic
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&vibe).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			UpdateColumn("vibe_count", gorm.Expr("vibe_count + 1")).Error
	})
	if err != nil {
		h.log.Error("failed to create vibe", zap.String("user_id", user.ID), zap.Error(err))
		util.RespondInternalError(c, "failed to create vibe")
		return
	}

	c.JSON(http.StatusCreated, vibe)
}

// GetVibe returns a single vibe; private vibes are visible to their owner only.
func (h *Handlers) GetVibe(c *gin.Context) {
	var vibe models.Vibe
	err := database.DB.Preload("User").Where("id = ?", c.Param("id")).First(&vibe).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "vibe")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to load vibe")
		return
	}

	if !vibe.IsPublic && c.GetString("user_id") != vibe.UserID {
		util.RespondNotFound(c, "vibe")
		return
	}

	c.JSON(http.StatusOK, vibe)
}

// ListVibes is the public feed: recent public vibes, newest first, with
// optional tag filtering and limit/offset pagination.
func (h *Handlers) ListVibes(c *gin.Context) {
	limit := util.ClampLimit(util.ParseInt(c.Query("limit"), 20), maxFeedLimit)
	offset := util.ParseInt(c.Query("offset"), 0)

	q := database.DB.Preload("User").
		Where("is_public = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset)
	if username := c.Query("user"); username != "" {
		q = q.Joins("JOIN users ON users.id = vibes.user_id").
			Where("users.username = ?", username)
	}

	var vibes []models.Vibe
	if err := q.Find(&vibes).Error; err != nil {
		util.RespondInternalError(c, "failed to load feed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vibes":  vibes,
		"limit":  limit,
		"offset": offset,
	})
}

// DeleteVibe soft-deletes a vibe. Owner only.
func (h *Handlers) DeleteVibe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}

	var vibe models.Vibe
	err := database.DB.Where("id = ?", c.Param("id")).First(&vibe).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "vibe")
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to load vibe")
		return
	}

	if vibe.UserID != user.ID {
		util.RespondWithAPIError(c, errors.Forbidden("only the author can delete a vibe"))
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&vibe).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ? AND vibe_count > 0", user.ID).
			UpdateColumn("vibe_count", gorm.Expr("vibe_count - 1")).Error
	})
	if err != nil {
		h.log.Error("failed to delete vibe", zap.String("vibe_id", vibe.ID), zap.Error(err))
		util.RespondInternalError(c, "failed to delete vibe")
		return
	}

	c.Status(http.StatusNoContent)
}
