// Package experiments assigns vibechecc users to A/B test variants and
// records exposure and conversion events against those assignments.
//
// Assignment is deterministic per (experiment, user) pair: a hash of the
// pair decides traffic inclusion, a second hash in a separate namespace
// decides the variant, and the resulting assignment is stored and mirrored
// to a persistence backend so it stays stable across sessions and server
// restarts.
package experiments

import (
	"context"
	"fmt"
	"sync"

	"github.com/vibechecc/backend/internal/analytics"
	"go.uber.org/zap"
)

// Service is the experiment engine. It is constructed explicitly with its
// persistence and analytics dependencies injected; there is no package
// singleton, so tests get isolation by building fresh instances.
//
// Safe for concurrent use by multiple request goroutines.
type Service struct {
	mu          sync.RWMutex
	experiments map[string]*Experiment
	exposed     map[string]struct{}

	store *assignmentStore
	sink  analytics.Sink
	log   *zap.Logger
}

// NewService builds a Service. persist may be nil (assignments live only
// in memory), sink may be nil (events are discarded), log may be nil.
func NewService(persist PersistenceStore, sink analytics.Sink, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if sink == nil {
		sink = analytics.NopSink{}
	}
	return &Service{
		experiments: make(map[string]*Experiment),
		exposed:     make(map[string]struct{}),
		store:       newAssignmentStore(persist, log),
		sink:        sink,
		log:         log,
	}
}

// Configure validates and registers an experiment. Validation failures are
// programmer error and fail fast; re-registering an id replaces the config.
// Assignments made under the old config are kept, since stability beats
// freshness for in-flight experiments.
func (s *Service) Configure(exp Experiment) error {
	if exp.SignificanceLevel == 0 {
		exp.SignificanceLevel = 0.05
	}
	if exp.MinDetectableEffect == 0 {
		exp.MinDetectableEffect = 0.05
	}
	if exp.Status == "" {
		exp.Status = StatusDraft
	}
	if err := exp.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.experiments[exp.ID] = &exp
	s.mu.Unlock()

	s.log.Info("experiment configured",
		zap.String("experiment_id", exp.ID),
		zap.String("status", string(exp.Status)),
		zap.Int("variants", len(exp.Variants)),
		zap.Float64("traffic_allocation", exp.TrafficAllocation),
	)
	s.emit(EventConfigured, "server", map[string]any{
		"experiment_id":      exp.ID,
		"experiment_name":    exp.Name,
		"variant_count":      len(exp.Variants),
		"traffic_allocation": exp.TrafficAllocation,
	}, nil)
	return nil
}

// Experiment returns the registered experiment with the given id, or nil.
func (s *Service) Experiment(id string) *Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.experiments[id]
}

// Experiments returns every registered experiment.
func (s *Service) Experiments() []*Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Experiment, 0, len(s.experiments))
	for _, e := range s.experiments {
		out = append(out, e)
	}
	return out
}

// GetVariant is the primary entry point: it returns the user's variant for
// a running experiment, assigning one on first eligible call. It returns
// nil when the experiment is unknown or not running, the user is outside
// the traffic allocation or fails targeting, or allocation falls through.
// All of those are normal outcomes, not errors.
//
// Repeated calls for the same pair return the same variant without
// re-randomizing.
func (s *Service) GetVariant(ctx context.Context, experimentID, userID string, uctx *Context) *Variant {
	exp := s.Experiment(experimentID)
	if exp == nil || exp.Status != StatusRunning {
		return nil
	}

	if existing := s.store.get(experimentID, userID); existing != nil {
		v := exp.Variant(existing.VariantID)
		if v != nil {
			s.trackExposure(exp, userID, v, uctx)
		}
		return v
	}

	if !eligible(exp, userID, uctx) {
		return nil
	}

	v := allocate(exp, userID)
	if v == nil {
		// Unreachable when weights sum to 1; seeing this means the config
		// drifted and is worth surfacing loudly.
		s.log.Warn("variant allocation fell through cumulative weights",
			zap.String("experiment_id", experimentID),
			zap.String("user_id", userID),
		)
		return nil
	}

	a := &Assignment{
		ExperimentID: experimentID,
		UserID:       userID,
		VariantID:    v.ID,
		AssignedAt:   assignmentTimestamp(),
		Context:      contextSnapshot(uctx),
	}
	a = s.store.put(ctx, a)
	// A concurrent call may have won the race; honor its variant.
	if a.VariantID != v.ID {
		v = exp.Variant(a.VariantID)
		return v
	}

	s.emit(EventAssigned, userID, map[string]any{
		"experiment_id": experimentID,
		"variant_id":    v.ID,
		"variant_name":  v.Name,
		"is_control":    v.Control,
	}, uctx)
	s.trackExposure(exp, userID, v, uctx)
	return v
}

// trackExposure emits the first-view event once per (experiment, user).
func (s *Service) trackExposure(exp *Experiment, userID string, v *Variant, uctx *Context) {
	key := pairKey(exp.ID, userID)
	s.mu.Lock()
	if _, seen := s.exposed[key]; seen {
		s.mu.Unlock()
		return
	}
	s.exposed[key] = struct{}{}
	s.mu.Unlock()

	s.emit(EventExposure, userID, map[string]any{
		"experiment_id": exp.ID,
		"variant_id":    v.ID,
	}, uctx)
}

// TrackConversion records a conversion against the user's existing
// assignment. Without an assignment it is a no-op: a conversion from a
// user who was never bucketed belongs to no arm.
func (s *Service) TrackConversion(ctx context.Context, experimentID, userID, metricID string, value float64, uctx *Context) {
	a := s.store.get(experimentID, userID)
	if a == nil {
		return
	}
	exp := s.Experiment(experimentID)
	if exp == nil {
		return
	}

	props := map[string]any{
		"experiment_id": experimentID,
		"variant_id":    a.VariantID,
		"metric_id":     metricID,
		"value":         value,
	}
	if m := exp.Metric(metricID); m != nil {
		props["metric_kind"] = string(m.Kind)
		if m.EventName != "" {
			props["metric_event"] = m.EventName
		}
	}
	s.emit(EventConversion, userID, props, uctx)
}

// ActiveExperiments lists the running experiments the user holds a stored
// assignment for.
func (s *Service) ActiveExperiments(userID string) []ActiveExperiment {
	var out []ActiveExperiment
	for _, a := range s.store.forUser(userID) {
		exp := s.Experiment(a.ExperimentID)
		if exp == nil || exp.Status != StatusRunning {
			continue
		}
		v := exp.Variant(a.VariantID)
		if v == nil {
			continue
		}
		out = append(out, ActiveExperiment{Experiment: exp, Variant: v, Assignment: a})
	}
	return out
}

// Assignment returns the stored assignment for the pair, or nil.
func (s *Service) Assignment(experimentID, userID string) *Assignment {
	return s.store.get(experimentID, userID)
}

// ClearAssignments drops every assignment, in memory and in the
// persistence mirror. Intended for test isolation and administrative
// resets; because the hash inputs per pair are fixed, re-bucketing after a
// clear returns the same variants unless the experiment configs changed.
func (s *Service) ClearAssignments(ctx context.Context) {
	s.store.clear(ctx)
	s.mu.Lock()
	s.exposed = make(map[string]struct{})
	s.mu.Unlock()
}

// ClearExperiments forgets every registered experiment config.
func (s *Service) ClearExperiments() {
	s.mu.Lock()
	s.experiments = make(map[string]*Experiment)
	s.mu.Unlock()
}

// contextSnapshot captures the targeting-relevant context onto the
// assignment record for later debugging of "why am I in this arm".
func contextSnapshot(ctx *Context) map[string]string {
	if ctx == nil {
		return nil
	}
	snap := make(map[string]string)
	if ctx.Platform != "" {
		snap["platform"] = string(ctx.Platform)
	}
	if ctx.Country != "" {
		snap["country"] = ctx.Country
	}
	if ctx.Language != "" {
		snap["language"] = ctx.Language
	}
	snap["is_new_user"] = fmt.Sprintf("%t", ctx.IsNewUser)
	for k, v := range ctx.Properties {
		snap[k] = v
	}
	return snap
}
