package experiments

// allocate picks a variant for an in-traffic user by inverse-CDF sampling
// over the variant weights: walk the variants in declaration order
// accumulating weight and take the first whose cumulative range covers the
// user's variant bucket. Declaration order breaks ties between equal-weight
// variants.
//
// Returns nil when no cumulative range reaches the bucket. Given the
// weights-sum-to-1 invariant enforced at Configure time that only happens
// through floating-point drift, so callers treat nil as a configuration
// error worth a warning, not a user-visible failure.
func allocate(exp *Experiment, userID string) *Variant {
	h := VariantBucket(userID, exp.ID)
	var cumulative float64
	for i := range exp.Variants {
		cumulative += exp.Variants[i].Weight
		if h <= cumulative {
			return &exp.Variants[i]
		}
	}
	return nil
}
