package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibechecc/backend/internal/errors"
	"github.com/vibechecc/backend/internal/experiments"
	"github.com/vibechecc/backend/internal/metrics"
	"github.com/vibechecc/backend/internal/models"
	"github.com/vibechecc/backend/internal/util"
	"go.uber.org/zap"
)

// experimentContext builds the targeting context from the user record and
// request headers. The frontend passes page and session via X- headers; the
// country header comes from the CDN edge.
func (h *Handlers) experimentContext(c *gin.Context, user *models.User) *experiments.Context {
	uctx := &experiments.Context{
		IsNewUser: user.IsNew(time.Now().UTC()),
		Platform:  experiments.PlatformWeb,
		UserAgent: c.Request.UserAgent(),
		Page:      c.GetHeader("X-Page"),
		SessionID: c.GetHeader("X-Session-ID"),
		Country:   c.GetHeader("CF-IPCountry"),
	}
	if p := c.GetHeader("X-Platform"); p != "" {
		uctx.Platform = experiments.Platform(p)
	}
	if lang := c.GetHeader("Accept-Language"); lang != "" {
		if i := strings.IndexAny(lang, ",;"); i > 0 {
			lang = lang[:i]
		}
		uctx.Language = strings.TrimSpace(lang)
	}
	return uctx
}

// ExperimentVariant returns the caller's variant for one experiment,
// assigning on first eligible call. A null variant is a normal outcome: the
// frontend falls back to the control rendering.
func (h *Handlers) ExperimentVariant(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}

	experimentID := c.Param("id")
	v := h.experiments.GetVariant(c.Request.Context(), experimentID, user.ID, h.experimentContext(c, user))
	if v == nil {
		metrics.Get().ExperimentIneligible.WithLabelValues(experimentID).Inc()
		c.JSON(http.StatusOK, gin.H{"experiment_id": experimentID, "variant": nil})
		return
	}

	metrics.Get().ExperimentAssignments.WithLabelValues(experimentID, v.ID).Inc()
	c.JSON(http.StatusOK, gin.H{"experiment_id": experimentID, "variant": v})
}

// ActiveExperiments lists the running experiments the caller is assigned to.
func (h *Handlers) ActiveExperiments(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}

	active := h.experiments.ActiveExperiments(user.ID)
	out := make([]gin.H, 0, len(active))
	for _, a := range active {
		out = append(out, gin.H{
			"experiment_id": a.Experiment.ID,
			"name":          a.Experiment.Name,
			"variant":       a.Variant,
			"assigned_at":   a.Assignment.AssignedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"experiments": out})
}

// ConvertRequest reports a conversion against the caller's assignment.
type ConvertRequest struct {
	MetricID string  `json:"metric_id" binding:"required"`
	Value    float64 `json:"value"`
}

// ExperimentConvert records a conversion. Always 202: a conversion from an
// unassigned user is silently dropped, never an error the client must handle.
func (h *Handlers) ExperimentConvert(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		util.RespondUnauthorized(c)
		return
	}

	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	if req.Value == 0 {
		req.Value = 1
	}

	experimentID := c.Param("id")
	h.experiments.TrackConversion(c.Request.Context(), experimentID, user.ID, req.MetricID, req.Value, h.experimentContext(c, user))
	metrics.Get().ExperimentConversions.WithLabelValues(experimentID, req.MetricID).Inc()
	c.Status(http.StatusAccepted)
}

// ConfigureExperiment registers or replaces an experiment config.
func (h *Handlers) ConfigureExperiment(c *gin.Context) {
	var exp experiments.Experiment
	if err := c.ShouldBindJSON(&exp); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.experiments.Configure(exp); err != nil {
		if stderrors.Is(err, experiments.ErrInvalidConfig) {
			util.RespondWithAPIError(c, errors.ValidationError("experiment", err.Error()))
			return
		}
		h.log.Error("failed to configure experiment", zap.String("experiment_id", exp.ID), zap.Error(err))
		util.RespondInternalError(c, "failed to configure experiment")
		return
	}

	c.JSON(http.StatusCreated, h.experiments.Experiment(exp.ID))
}

// ListExperiments returns every registered experiment config.
func (h *Handlers) ListExperiments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"experiments": h.experiments.Experiments()})
}

// ResultsRequest carries per-variant metric tallies collected by the
// analytics pipeline; control and treatment arms are compared pairwise.
type ResultsRequest struct {
	Control  []experiments.MetricResult `json:"control" binding:"required"`
	Variants []experiments.MetricResult `json:"variants" binding:"required"`
}

// ExperimentResults runs the two-proportion significance test over posted
// tallies and reports whether the difference clears the experiment's bar.
func (h *Handlers) ExperimentResults(c *gin.Context) {
	exp := h.experiments.Experiment(c.Param("id"))
	if exp == nil {
		util.RespondNotFound(c, "experiment")
		return
	}

	var req ResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	p := experiments.Significance(req.Control, req.Variants)
	c.JSON(http.StatusOK, gin.H{
		"experiment_id":      exp.ID,
		"p_value":            p,
		"significance_level": exp.SignificanceLevel,
		"significant":        p > 0 && p < exp.SignificanceLevel,
	})
}
