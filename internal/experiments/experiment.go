package experiments

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of an experiment.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Platform identifies the surface a request came from.
type Platform string

const (
	PlatformWeb     Platform = "web"
	PlatformMobile  Platform = "mobile"
	PlatformDesktop Platform = "desktop"
)

// MetricKind classifies what an experiment metric measures.
type MetricKind string

const (
	MetricConversion  MetricKind = "conversion"
	MetricRevenue     MetricKind = "revenue"
	MetricEngagement  MetricKind = "engagement"
	MetricPerformance MetricKind = "performance"
)

// GoalDirection says whether a metric should go up or down.
type GoalDirection string

const (
	GoalIncrease GoalDirection = "increase"
	GoalDecrease GoalDirection = "decrease"
)

// Variant is one treatment arm of an experiment.
type Variant struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Weight      float64           `json:"weight"`
	Config      map[string]string `json:"config,omitempty"`
	Control     bool              `json:"control"`
}

// Targeting restricts eligibility beyond the traffic gate. A nil Targeting
// means every user is eligible. Declared constraints are ANDed.
type Targeting struct {
	NewUsers       *bool             `json:"new_users,omitempty"`
	ReturningUsers *bool             `json:"returning_users,omitempty"`
	Platforms      []Platform        `json:"platforms,omitempty"`
	Countries      []string          `json:"countries,omitempty"`
	Languages      []string          `json:"languages,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
}

// Metric is a measurement attached to an experiment.
type Metric struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Kind      MetricKind    `json:"kind"`
	EventName string        `json:"event_name,omitempty"`
	Goal      GoalDirection `json:"goal"`
	Primary   bool          `json:"primary"`
}

// Experiment is a configured A/B/n test.
type Experiment struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Description         string     `json:"description,omitempty"`
	Status              Status     `json:"status"`
	StartedAt           time.Time  `json:"started_at"`
	EndsAt              *time.Time `json:"ends_at,omitempty"`
	Variants            []Variant  `json:"variants"`
	Targeting           *Targeting `json:"targeting,omitempty"`
	Metrics             []Metric   `json:"metrics,omitempty"`
	SignificanceLevel   float64    `json:"significance_level"`
	MinDetectableEffect float64    `json:"min_detectable_effect"`
	TrafficAllocation   float64    `json:"traffic_allocation"`
}

// Assignment binds one user to one variant within one experiment. Once
// written it is never overwritten for the same pair.
type Assignment struct {
	ExperimentID string            `json:"experiment_id"`
	UserID       string            `json:"user_id"`
	VariantID    string            `json:"variant_id"`
	AssignedAt   time.Time         `json:"assigned_at"`
	Context      map[string]string `json:"context,omitempty"`
}

// Context carries the request-side properties targeting predicates match
// against and the metadata analytics events are enriched with.
type Context struct {
	IsNewUser  bool              `json:"is_new_user"`
	Platform   Platform          `json:"platform,omitempty"`
	Country    string            `json:"country,omitempty"`
	Language   string            `json:"language,omitempty"`
	Page       string            `json:"page,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Connection string            `json:"connection,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// ActiveExperiment pairs a running experiment with a user's stored assignment.
type ActiveExperiment struct {
	Experiment *Experiment `json:"experiment"`
	Variant    *Variant    `json:"variant"`
	Assignment *Assignment `json:"assignment"`
}

// ErrInvalidConfig marks configuration mistakes caught at Configure time.
var ErrInvalidConfig = errors.New("invalid experiment config")

// weightTolerance is how far variant weights may drift from summing to 1.
const weightTolerance = 0.001

// Validate checks the invariants every registered experiment must hold:
// non-empty identity, at least two variants, weights summing to 1 and
// exactly one control arm.
func (e *Experiment) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidConfig)
	}
	if e.Name == "" {
		return fmt.Errorf("%w: experiment %q missing name", ErrInvalidConfig, e.ID)
	}
	if len(e.Variants) < 2 {
		return fmt.Errorf("%w: experiment %q needs at least two variants, got %d", ErrInvalidConfig, e.ID, len(e.Variants))
	}
	if e.TrafficAllocation < 0 || e.TrafficAllocation > 1 {
		return fmt.Errorf("%w: experiment %q traffic allocation %v outside [0,1]", ErrInvalidConfig, e.ID, e.TrafficAllocation)
	}

	var sum float64
	controls := 0
	for _, v := range e.Variants {
		if v.ID == "" {
			return fmt.Errorf("%w: experiment %q has a variant without an id", ErrInvalidConfig, e.ID)
		}
		sum += v.Weight
		if v.Control {
			controls++
		}
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: experiment %q variant weights sum to %v, want 1", ErrInvalidConfig, e.ID, sum)
	}
	if controls != 1 {
		return fmt.Errorf("%w: experiment %q has %d control variants, want exactly 1", ErrInvalidConfig, e.ID, controls)
	}
	return nil
}

// Variant returns the variant with the given id, or nil.
func (e *Experiment) Variant(id string) *Variant {
	for i := range e.Variants {
		if e.Variants[i].ID == id {
			return &e.Variants[i]
		}
	}
	return nil
}

// Metric returns the metric with the given id, or nil.
func (e *Experiment) Metric(id string) *Metric {
	for i := range e.Metrics {
		if e.Metrics[i].ID == id {
			return &e.Metrics[i]
		}
	}
	return nil
}
