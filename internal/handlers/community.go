package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibechecc/backend/internal/community"
	"github.com/vibechecc/backend/internal/util"
	"go.uber.org/zap"
)

const maxBoardLimit = 25

func parseWindow(c *gin.Context) community.Window {
	switch c.Query("window") {
	case "week":
		return community.WindowWeek
	case "day":
		return community.WindowDay
	default:
		return community.WindowAll
	}
}

// TopVibes serves the best-rated vibes board.
func (h *Handlers) TopVibes(c *gin.Context) {
	limit := util.ClampLimit(util.ParseInt(c.Query("limit"), 10), maxBoardLimit)
	entries, err := h.community.TopVibes(c.Request.Context(), parseWindow(c), limit)
	if err != nil {
		h.log.Error("top vibes board failed", zap.Error(err))
		util.RespondInternalError(c, "failed to load leaderboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// MostFollowed serves the follower-count board.
func (h *Handlers) MostFollowed(c *gin.Context) {
	limit := util.ClampLimit(util.ParseInt(c.Query("limit"), 10), maxBoardLimit)
	entries, err := h.community.MostFollowed(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("most followed board failed", zap.Error(err))
		util.RespondInternalError(c, "failed to load leaderboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// TopRaters serves the most-active-raters board.
func (h *Handlers) TopRaters(c *gin.Context) {
	limit := util.ClampLimit(util.ParseInt(c.Query("limit"), 10), maxBoardLimit)
	entries, err := h.community.TopRaters(c.Request.Context(), parseWindow(c), limit)
	if err != nil {
		h.log.Error("top raters board failed", zap.Error(err))
		util.RespondInternalError(c, "failed to load leaderboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// TopEmojis serves the emoji usage board.
func (h *Handlers) TopEmojis(c *gin.Context) {
	limit := util.ClampLimit(util.ParseInt(c.Query("limit"), 10), maxBoardLimit)
	entries, err := h.community.TopEmojis(c.Request.Context(), parseWindow(c), limit)
	if err != nil {
		h.log.Error("top emojis board failed", zap.Error(err))
		util.RespondInternalError(c, "failed to load leaderboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// CommunityStats serves the totals panel.
func (h *Handlers) CommunityStats(c *gin.Context) {
	stats, err := h.community.CommunityStats(c.Request.Context())
	if err != nil {
		h.log.Error("community stats failed", zap.Error(err))
		util.RespondInternalError(c, "failed to load stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
