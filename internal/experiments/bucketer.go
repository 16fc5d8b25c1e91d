package experiments

import (
	"math"
	"unicode/utf16"
)

// hashMod is the largest 32-bit signed integer magnitude. Buckets are the
// hash value reduced modulo hashMod and normalized into [0, 1).
const hashMod = 2147483647

// Bucket deterministically maps a string to a value in [0, 1). It is the
// classic 31x rolling hash over UTF-16 code units, kept bit-for-bit
// compatible with the web client so a user lands in the same bucket no
// matter which surface computed it. Not collision-resistant and not meant
// for adversarial input; at vibechecc traffic the occasional collision
// just means two users share a bucket.
func Bucket(s string) float64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return math.Mod(math.Abs(float64(h)), hashMod) / hashMod
}

// TrafficBucket is the draw deciding whether a user is in an experiment's
// traffic at all.
func TrafficBucket(userID, experimentID string) float64 {
	return Bucket(userID + experimentID)
}

// VariantBucket is the draw deciding which arm an in-traffic user gets.
// The "_variant" suffix keeps this draw in a separate hash namespace from
// the traffic gate; collapsing the two would correlate traffic inclusion
// with variant choice.
func VariantBucket(userID, experimentID string) float64 {
	return Bucket(userID + experimentID + "_variant")
}
