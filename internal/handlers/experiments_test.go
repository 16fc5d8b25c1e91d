package handlers

import (
	"net/http"

	"github.com/vibechecc/backend/internal/database"
	"github.com/vibechecc/backend/internal/experiments"
	"github.com/vibechecc/backend/internal/models"
)

func (s *HandlersTestSuite) createAdmin(username string) *models.User {
	u := s.createUser(username)
	s.Require().NoError(database.DB.Model(u).Update("is_admin", true).Error)
	u.IsAdmin = true
	return u
}

func (s *HandlersTestSuite) configureHeroExperiment(status experiments.Status) {
	s.Require().NoError(s.exps.Configure(experiments.Experiment{
		ID:     "hero_tagline",
		Name:   "Hero tagline test",
		Status: status,
		Variants: []experiments.Variant{
			{ID: "control", Name: "Control", Weight: 0.5, Control: true},
			{ID: "playful", Name: "Playful", Weight: 0.5},
		},
		Metrics: []experiments.Metric{
			{ID: "signup", Name: "Signup", Kind: experiments.MetricConversion, EventName: "signed_up", Goal: experiments.GoalIncrease, Primary: true},
			{ID: "first_rating", Name: "First rating", Kind: experiments.MetricEngagement, EventName: "vibe_rated", Goal: experiments.GoalIncrease},
		},
		TrafficAllocation: 1.0,
	}))
}

func (s *HandlersTestSuite) TestExperimentVariantAssignsAndSticks() {
	s.configureHeroExperiment(experiments.StatusRunning)
	alice := s.createUser("alice")

	w := s.request(http.MethodGet, "/api/v1/experiments/hero_tagline/variant", nil, alice.ID)
	s.Equal(http.StatusOK, w.Code)

	var first struct {
		ExperimentID string               `json:"experiment_id"`
		Variant      *experiments.Variant `json:"variant"`
	}
	s.decode(w, &first)
	s.Require().NotNil(first.Variant)

	// second call returns the same arm
	w = s.request(http.MethodGet, "/api/v1/experiments/hero_tagline/variant", nil, alice.ID)
	var second struct {
		Variant *experiments.Variant `json:"variant"`
	}
	s.decode(w, &second)
	s.Require().NotNil(second.Variant)
	s.Equal(first.Variant.ID, second.Variant.ID)
}

func (s *HandlersTestSuite) TestExperimentVariantNullWhenPaused() {
	s.configureHeroExperiment(experiments.StatusPaused)
	alice := s.createUser("alice")

	w := s.request(http.MethodGet, "/api/v1/experiments/hero_tagline/variant", nil, alice.ID)
	s.Equal(http.StatusOK, w.Code)

	var resp struct {
		Variant *experiments.Variant `json:"variant"`
	}
	s.decode(w, &resp)
	s.Nil(resp.Variant)
}

func (s *HandlersTestSuite) TestExperimentVariantRequiresAuth() {
	s.configureHeroExperiment(experiments.StatusRunning)
	w := s.request(http.MethodGet, "/api/v1/experiments/hero_tagline/variant", nil, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlersTestSuite) TestActiveExperimentsListsAssignment() {
	s.configureHeroExperiment(experiments.StatusRunning)
	alice := s.createUser("alice")

	w := s.request(http.MethodGet, "/api/v1/experiments/active", nil, alice.ID)
	var before struct {
		Experiments []map[string]interface{} `json:"experiments"`
	}
	s.decode(w, &before)
	s.Empty(before.Experiments)

	s.request(http.MethodGet, "/api/v1/experiments/hero_tagline/variant", nil, alice.ID)

	w = s.request(http.MethodGet, "/api/v1/experiments/active", nil, alice.ID)
	var after struct {
		Experiments []map[string]interface{} `json:"experiments"`
	}
	s.decode(w, &after)
	s.Require().Len(after.Experiments, 1)
	s.Equal("hero_tagline", after.Experiments[0]["experiment_id"])
}

func (s *HandlersTestSuite) TestExperimentConvertAccepted() {
	s.configureHeroExperiment(experiments.StatusRunning)
	alice := s.createUser("alice")
	s.request(http.MethodGet, "/api/v1/experiments/hero_tagline/variant", nil, alice.ID)

	w := s.request(http.MethodPost, "/api/v1/experiments/hero_tagline/convert", map[string]interface{}{
		"metric_id": "signup",
	}, alice.ID)
	s.Equal(http.StatusAccepted, w.Code)

	events := s.sink.Named("experiment_conversion")
	s.Require().Len(events, 1)
	s.Equal(alice.ID, events[0].DistinctID)
	s.Equal("signup", events[0].Properties["metric_id"])
}

func (s *HandlersTestSuite) TestRatingCreditsExperimentMetric() {
	s.configureHeroExperiment(experiments.StatusRunning)
	alice := s.createUser("alice")
	bob := s.createUser("bob")
	vibe := s.seedVibe(alice, "sunset")

	// assign bob first so the conversion has an arm to land in
	s.request(http.MethodGet, "/api/v1/experiments/hero_tagline/variant", nil, bob.ID)

	w := s.request(http.MethodPost, "/api/v1/vibes/"+vibe.ID+"/ratings", map[string]interface{}{
		"emoji": "🔥", "value": 4,
	}, bob.ID)
	s.Equal(http.StatusCreated, w.Code)

	var found bool
	for _, e := range s.sink.Named("experiment_conversion") {
		if e.Properties["metric_id"] == "first_rating" && e.DistinctID == bob.ID {
			found = true
		}
	}
	s.True(found, "rating should convert the vibe_rated metric")
}

func (s *HandlersTestSuite) TestExperimentConfigRequiresAdmin() {
	s.configureHeroExperiment(experiments.StatusRunning)
	alice := s.createUser("alice")

	w := s.request(http.MethodPost, "/api/v1/experiments", map[string]interface{}{
		"id":     "takeover",
		"name":   "Not yours",
		"status": "running",
		"variants": []map[string]interface{}{
			{"id": "a", "weight": 0.5, "control": true},
			{"id": "b", "weight": 0.5},
		},
		"traffic_allocation": 1.0,
	}, alice.ID)
	s.Equal(http.StatusForbidden, w.Code)
	s.Nil(s.exps.Experiment("takeover"))

	w = s.request(http.MethodGet, "/api/v1/experiments", nil, alice.ID)
	s.Equal(http.StatusForbidden, w.Code)

	// a non-admin cannot replace a live config either
	w = s.request(http.MethodPost, "/api/v1/experiments", map[string]interface{}{
		"id":     "hero_tagline",
		"name":   "Rigged",
		"status": "running",
		"variants": []map[string]interface{}{
			{"id": "control", "weight": 1.0, "control": true},
			{"id": "playful", "weight": 0.0},
		},
		"traffic_allocation": 1.0,
	}, alice.ID)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("Hero tagline test", s.exps.Experiment("hero_tagline").Name)
}

func (s *HandlersTestSuite) TestExperimentResultsRequireAdmin() {
	s.configureHeroExperiment(experiments.StatusRunning)
	alice := s.createUser("alice")

	w := s.request(http.MethodPost, "/api/v1/experiments/hero_tagline/results", map[string]interface{}{
		"control":  []map[string]interface{}{{"variant_id": "control", "sample_size": 100, "conversion_rate": 0.1}},
		"variants": []map[string]interface{}{{"variant_id": "playful", "sample_size": 100, "conversion_rate": 0.2}},
	}, alice.ID)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *HandlersTestSuite) TestConfigureExperimentValidation() {
	alice := s.createAdmin("alice")

	w := s.request(http.MethodPost, "/api/v1/experiments", map[string]interface{}{
		"id":   "broken",
		"name": "Broken weights",
		"variants": []map[string]interface{}{
			{"id": "a", "weight": 0.5, "control": true},
			{"id": "b", "weight": 0.6},
		},
		"traffic_allocation": 1.0,
	}, alice.ID)
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.request(http.MethodPost, "/api/v1/experiments", map[string]interface{}{
		"id":     "ok",
		"name":   "Valid",
		"status": "running",
		"variants": []map[string]interface{}{
			{"id": "a", "weight": 0.5, "control": true},
			{"id": "b", "weight": 0.5},
		},
		"traffic_allocation": 1.0,
	}, alice.ID)
	s.Equal(http.StatusCreated, w.Code)
}

func (s *HandlersTestSuite) TestExperimentResultsEndpoint() {
	s.configureHeroExperiment(experiments.StatusRunning)
	alice := s.createAdmin("alice")

	w := s.request(http.MethodPost, "/api/v1/experiments/hero_tagline/results", map[string]interface{}{
		"control": []map[string]interface{}{
			{"variant_id": "control", "metric_id": "signup", "sample_size": 1000, "conversion_rate": 0.10},
		},
		"variants": []map[string]interface{}{
			{"variant_id": "playful", "metric_id": "signup", "sample_size": 1000, "conversion_rate": 0.16},
		},
	}, alice.ID)
	s.Equal(http.StatusOK, w.Code)

	var resp struct {
		PValue      float64 `json:"p_value"`
		Significant bool    `json:"significant"`
	}
	s.decode(w, &resp)
	s.Less(resp.PValue, 0.05)
	s.True(resp.Significant)

	w = s.request(http.MethodPost, "/api/v1/experiments/nope/results", map[string]interface{}{
		"control":  []map[string]interface{}{},
		"variants": []map[string]interface{}{},
	}, alice.ID)
	s.Equal(http.StatusNotFound, w.Code)
}
