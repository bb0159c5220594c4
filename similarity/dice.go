// Package similarity implements the pure, side-effect-free string
// comparison primitives used by entity resolution: Sørensen–Dice over
// character bigrams, token-sort similarity, initial matching, abbreviation
// expansion, case-number/amount/location equality, and a type-aware
// dispatch table over all of them.
package similarity

import "unicode"

// paddingRune pads strings shorter than two runes so they still yield at
// least one bigram to compare.
const paddingRune = ' '

// bigrams returns the multiset (rune-pair -> count) of character bigrams
// in s. Strings of length 0 produce an empty multiset; strings of length 1
// are padded with paddingRune so a single bigram is produced.
func bigrams(s string) map[[2]rune]int {
	runes := []rune(s)
	if len(runes) == 0 {
		return map[[2]rune]int{}
	}
	if len(runes) == 1 {
		runes = []rune{runes[0], paddingRune}
	}
	m := make(map[[2]rune]int, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		m[[2]rune{runes[i], runes[i+1]}]++
	}
	return m
}

// Dice computes the Sørensen–Dice coefficient between a and b over
// character-bigram multisets: 2*|A∩B| / (|A|+|B|), where the intersection
// respects multiplicity (a repeated bigram counts up to the smaller of its
// two multiplicities).
func Dice(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ba, bb := bigrams(a), bigrams(b)
	totalA, totalB := 0, 0
	for _, c := range ba {
		totalA += c
	}
	for _, c := range bb {
		totalB += c
	}
	if totalA == 0 && totalB == 0 {
		return 1.0
	}
	if totalA == 0 || totalB == 0 {
		return 0.0
	}

	shared := 0
	for k, ca := range ba {
		if cb, ok := bb[k]; ok {
			if ca < cb {
				shared += ca
			} else {
				shared += cb
			}
		}
	}
	return 2.0 * float64(shared) / float64(totalA+totalB)
}

// NormalizedText lower-cases and trims whitespace; it is the baseline
// canonicalization applied before any type-specific rule.
func NormalizedText(s string) string {
	runes := []rune(s)
	start, end := 0, len(runes)
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	trimmed := runes[start:end]
	out := make([]rune, len(trimmed))
	for i, r := range trimmed {
		out[i] = unicode.ToLower(r)
	}
	return collapseSpace(string(out))
}

func collapseSpace(s string) string {
	var out []rune
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			prevSpace = true
			out = append(out, ' ')
			continue
		}
		prevSpace = false
		out = append(out, r)
	}
	return string(out)
}
