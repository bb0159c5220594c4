package similarity

import "github.com/antzucaro/matchr"

// PhoneticBoost returns the Jaro-Winkler similarity of a person-name pair.
// PersonSimilarity returns it in place of the token-sort/initials score
// when that score is at least 0.70 and the Jaro-Winkler value is higher,
// so it can lift a pair across the 0.85 fuzzy threshold.
func PhoneticBoost(a, b string) float64 {
	return matchr.JaroWinkler(a, b, true)
}
