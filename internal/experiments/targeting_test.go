package experiments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestTargetingNilMatchesEveryone(t *testing.T) {
	var targeting *Targeting
	assert.True(t, targeting.Matches(nil))
	assert.True(t, targeting.Matches(&Context{IsNewUser: true, Platform: PlatformMobile}))
}

func TestTargetingNewUsers(t *testing.T) {
	targeting := &Targeting{NewUsers: boolPtr(true)}
	assert.True(t, targeting.Matches(&Context{IsNewUser: true}))
	assert.False(t, targeting.Matches(&Context{IsNewUser: false}))
	assert.False(t, targeting.Matches(nil))
}

func TestTargetingReturningUsers(t *testing.T) {
	targeting := &Targeting{ReturningUsers: boolPtr(true)}
	assert.True(t, targeting.Matches(&Context{IsNewUser: false}))
	assert.False(t, targeting.Matches(&Context{IsNewUser: true}))
}

func TestTargetingPlatforms(t *testing.T) {
	targeting := &Targeting{Platforms: []Platform{PlatformWeb, PlatformMobile}}
	assert.True(t, targeting.Matches(&Context{Platform: PlatformWeb}))
	assert.True(t, targeting.Matches(&Context{Platform: PlatformMobile}))
	assert.False(t, targeting.Matches(&Context{Platform: PlatformDesktop}))
	assert.False(t, targeting.Matches(&Context{}))
}

func TestTargetingCountriesAndLanguages(t *testing.T) {
	targeting := &Targeting{Countries: []string{"US", "CA"}, Languages: []string{"en"}}
	assert.True(t, targeting.Matches(&Context{Country: "US", Language: "en"}))
	assert.False(t, targeting.Matches(&Context{Country: "FR", Language: "en"}))
	assert.False(t, targeting.Matches(&Context{Country: "US", Language: "fr"}))
}

func TestTargetingProperties(t *testing.T) {
	targeting := &Targeting{Properties: map[string]string{"tier": "premium"}}
	assert.True(t, targeting.Matches(&Context{Properties: map[string]string{"tier": "premium"}}))
	assert.False(t, targeting.Matches(&Context{Properties: map[string]string{"tier": "free"}}))
	assert.False(t, targeting.Matches(&Context{}))
}

func TestTargetingConstraintsAreANDed(t *testing.T) {
	targeting := &Targeting{
		NewUsers:  boolPtr(true),
		Platforms: []Platform{PlatformMobile},
	}
	assert.True(t, targeting.Matches(&Context{IsNewUser: true, Platform: PlatformMobile}))
	// Passing one constraint is not enough.
	assert.False(t, targeting.Matches(&Context{IsNewUser: true, Platform: PlatformWeb}))
	assert.False(t, targeting.Matches(&Context{IsNewUser: false, Platform: PlatformMobile}))
}
