package experiments

// Matches reports whether the supplied context satisfies every declared
// constraint. A nil Targeting matches everyone; a nil context only fails
// constraints that need context to evaluate.
func (t *Targeting) Matches(ctx *Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		ctx = &Context{}
	}

	if t.NewUsers != nil && *t.NewUsers != ctx.IsNewUser {
		return false
	}
	if t.ReturningUsers != nil && *t.ReturningUsers == ctx.IsNewUser {
		return false
	}
	if len(t.Platforms) > 0 && !containsPlatform(t.Platforms, ctx.Platform) {
		return false
	}
	if len(t.Countries) > 0 && !containsString(t.Countries, ctx.Country) {
		return false
	}
	if len(t.Languages) > 0 && !containsString(t.Languages, ctx.Language) {
		return false
	}
	for k, want := range t.Properties {
		if ctx.Properties[k] != want {
			return false
		}
	}
	return true
}

// eligible gates a user on traffic allocation first, then targeting.
// Failing either is a normal outcome, not an error: the caller sees
// "experiment not applicable" and moves on.
func eligible(exp *Experiment, userID string, ctx *Context) bool {
	if TrafficBucket(userID, exp.ID) > exp.TrafficAllocation {
		return false
	}
	return exp.Targeting.Matches(ctx)
}

func containsPlatform(set []Platform, p Platform) bool {
	for _, s := range set {
		if s == p {
			return true
		}
	}
	return false
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
