package retrieval

import "strings"

// domainSynonyms is a static legal + medical synonym map. Applied to the
// BM25 arm only: each query word that hits the map expands to
// "word OR syn1 OR syn2 ...", case-insensitive, deduplicated across words.
var domainSynonyms = map[string][]string{
	// Legal
	"plaintiff":     {"claimant", "complainant", "petitioner"},
	"defendant":     {"respondent", "accused"},
	"attorney":      {"lawyer", "counsel", "solicitor"},
	"contract":      {"agreement", "covenant"},
	"testimony":     {"deposition", "statement"},
	"exhibit":       {"evidence", "attachment"},
	"statute":       {"law", "code", "regulation", "ordinance"},
	"court":         {"tribunal", "forum"},
	"motion":        {"petition", "application"},
	"hearing":       {"proceeding", "session"},
	"damages":       {"compensation", "restitution"},
	"breach":        {"violation", "default"},
	"liability":     {"responsibility", "culpability"},
	"injunction":    {"restraining order"},
	"verdict":       {"judgment", "ruling", "decision"},
	"witness":       {"deponent"},
	// Medical
	"diagnosis":     {"assessment", "finding"},
	"treatment":     {"therapy", "care", "intervention"},
	"medication":    {"drug", "prescription", "pharmaceutical"},
	"symptom":       {"complaint", "manifestation"},
	"physician":     {"doctor", "clinician", "provider"},
	"patient":       {"individual", "subject"},
	"surgery":       {"operation", "procedure"},
	"prognosis":     {"outlook", "projection"},
	"injury":        {"trauma", "harm"},
	"disability":    {"impairment", "incapacity"},
	"admission":     {"hospitalization", "intake"},
	"discharge":     {"release"},
}

// expandSynonyms rewrites query into a bag-of-words OR expression where
// each word that hits domainSynonyms is widened to include its synonyms.
// Words with no match pass through unchanged.
func expandSynonyms(query string) string {
	words := strings.Fields(query)
	if len(words) == 0 {
		return query
	}

	seen := make(map[string]bool)
	var parts []string
	for _, w := range words {
		lower := strings.ToLower(strings.Trim(w, ".,;:!?\"'()[]"))
		if lower == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		if syns, ok := domainSynonyms[lower]; ok {
			group := append([]string{lower}, syns...)
			parts = append(parts, "("+strings.Join(group, " OR ")+")")
		} else {
			parts = append(parts, lower)
		}
	}
	return strings.Join(parts, " OR ")
}
