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

func (h *Handlers) lookupUser(c *gin.Context, username string) (*models.User, bool) {
	var user models.User
	err := database.DB.Where("username = ?", username).First(&user).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "user")
		return nil, false
	} else if err != nil {
		util.RespondInternalError(c, "failed to load user")
		return nil, false
	}
	return &user, true
}

// FollowUser creates the follow edge and bumps both cached counters.
func (h *Handlers) FollowUser(c *gin.Context) {
	follower, ok := currentUser(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}

	target, ok := h.lookupUser(c, c.Param("username"))
	if !ok {
		return
	}
	if target.ID == follower.ID {
		util.RespondWithAPIError(c, errors.ValidationError("username", "you cannot follow yourself"))
		return
	}

	var existing models.Follow
	err := database.DB.Where("follower_id = ? AND following_id = ?", follower.ID, target.ID).
		First(&existing).Error
	if err == nil {
		c.JSON(http.StatusOK, existing)
		return
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondInternalError(c, "failed to check follow state")
		return
	}

	follow := models.Follow{FollowerID: follower.ID, FollowingID: target.ID}
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&follow).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", target.ID).
			UpdateColumn("follower_count", gorm.Expr("follower_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", follower.ID).
			UpdateColumn("following_count", gorm.Expr("following_count + 1")).Error
	})
	if err != nil {
		h.log.Error("failed to create follow",
			zap.String("follower_id", follower.ID),
			zap.String("following_id", target.ID),
			zap.Error(err),
		)
		util.RespondInternalError(c, "failed to follow user")
		return
	}

	c.JSON(http.StatusCreated, follow)
}

// UnfollowUser removes the edge; a no-op 204 when it never existed.
func (h *Handlers) UnfollowUser(c *gin.Context) {
	follower, ok := currentUser(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}

	target, ok := h.lookupUser(c, c.Param("username"))
	if !ok {
		return
	}

	var follow models.Follow
	err := database.DB.Where("follower_id = ? AND following_id = ?", follower.ID, target.ID).
		First(&follow).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		c.Status(http.StatusNoContent)
		return
	} else if err != nil {
		util.RespondInternalError(c, "failed to check follow state")
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&follow).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ? AND follower_count > 0", target.ID).
			UpdateColumn("follower_count", gorm.Expr("follower_count - 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ? AND following_count > 0", follower.ID).
			UpdateColumn("following_count", gorm.Expr("following_count - 1")).Error
	})
	if err != nil {
		h.log.Error("failed to remove follow", zap.Error(err))
		util.RespondInternalError(c, "failed to unfollow user")
		return
	}

	c.Status(http.StatusNoContent)
}

// ListFollowers returns the public profiles of a user's followers.
func (h *Handlers) ListFollowers(c *gin.Context) {
	target, ok := h.lookupUser(c, c.Param("username"))
	if !ok {
		return
	}

	limit := util.ClampLimit(util.ParseInt(c.Query("limit"), 20), maxFeedLimit)
	var users []models.User
	err := database.DB.
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ?", target.ID).
		Order("follows.created_at DESC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		util.RespondInternalError(c, "failed to load followers")
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": publicProfiles(users)})
}

// ListFollowing returns who a user follows.
func (h *Handlers) ListFollowing(c *gin.Context) {
	target, ok := h.lookupUser(c, c.Param("username"))
	if !ok {
		return
	}

	limit := util.ClampLimit(util.ParseInt(c.Query("limit"), 20), maxFeedLimit)
	var users []models.User
	err := database.DB.
		Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ?", target.ID).
		Order("follows.created_at DESC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		util.RespondInternalError(c, "failed to load following")
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": publicProfiles(users)})
}

func publicProfiles(users []models.User) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(users))
	for i := range users {
		out = append(out, users[i].PublicProfile())
	}
	return out
}
