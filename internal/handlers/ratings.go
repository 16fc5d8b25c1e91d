package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibechecc/backend/internal/database"
	"github.com/vibechecc/backend/internal/errors"
	"github.com/vibechecc/backend/internal/experiments"
	"github.com/vibechecc/backend/internal/metrics"
	"github.com/vibechecc/backend/internal/models"
	"github.com/vibechecc/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RateVibeRequest is the payload for rating a vibe with an emoji.
type RateVibeRequest struct {
	Emoji  string  `json:"emoji" binding:"required"`
	Value  float64 `json:"value" binding:"required,min=1,max=5"`
	Review string  `json:"review" binding:"max=1000"`
}

// RateVibe records an emoji rating. A user rates a vibe at most once per
// emoji; repeating the same emoji updates the value instead of stacking.
func (h *Handlers) RateVibe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}

	var req RateVibeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
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
	if !vibe.IsPublic && vibe.UserID != user.ID {
		util.RespondNotFound(c, "vibe")
		return
	}
	if vibe.UserID == user.ID {
		util.RespondWithAPIError(c, errors.ValidationError("vibe_id", "you cannot rate your own vibe"))
		return
	}

	var rating models.Rating
	created := false
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("vibe_id = ? AND user_id = ? AND emoji = ?", vibe.ID, user.ID, req.Emoji).
			First(&rating).Error
		switch {
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			created = true
			rating = models.Rating{
				VibeID: vibe.ID,
				UserID: user.ID,
				Emoji:  req.Emoji,
				Value:  req.Value,
				Review: req.Review,
			}
			if err := tx.Create(&rating).Error; err != nil {
				return err
			}
			vibe.ApplyRating(req.Value)
		case err != nil:
			return err
		default:
			vibe.RatingSum += req.Value - rating.Value
			vibe.AverageRating = vibe.RatingSum / float64(vibe.RatingCount)
			rating.Value = req.Value
			rating.Review = req.Review
			if err := tx.Save(&rating).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Vibe{}).Where("id = ?", vibe.ID).
			UpdateColumns(map[string]interface{}{
				"rating_count":   vibe.RatingCount,
				"rating_sum":     vibe.RatingSum,
				"average_rating": vibe.AverageRating,
			}).Error
	})
	if err != nil {
		h.log.Error("failed to save rating",
			zap.String("vibe_id", vibe.ID),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		util.RespondInternalError(c, "failed to save rating")
		return
	}

	h.trackRatingConversions(c, user)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, rating)
}

// trackRatingConversions credits the rating to any running experiment that
// declares a metric keyed to the vibe_rated event.
func (h *Handlers) trackRatingConversions(c *gin.Context, user *models.User) {
	if h.experiments == nil {
		return
	}
	uctx := h.experimentContext(c, user)
	for _, exp := range h.experiments.Experiments() {
		if exp.Status != experiments.StatusRunning {
			continue
		}
		for _, m := range exp.Metrics {
			if m.EventName != "vibe_rated" {
				continue
			}
			h.experiments.TrackConversion(c.Request.Context(), exp.ID, user.ID, m.ID, 1, uctx)
			metrics.Get().ExperimentConversions.WithLabelValues(exp.ID, m.ID).Inc()
		}
	}
}

// ListRatings returns a vibe's ratings, newest first.
func (h *Handlers) ListRatings(c *gin.Context) {
	limit := util.ClampLimit(util.ParseInt(c.Query("limit"), 20), maxFeedLimit)
	offset := util.ParseInt(c.Query("offset"), 0)

	var ratings []models.Rating
	err := database.DB.Preload("User").
		Where("vibe_id = ?", c.Param("id")).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&ratings).Error
	if err != nil {
		util.RespondInternalError(c, "failed to load ratings")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ratings": ratings, "limit": limit, "offset": offset})
}
