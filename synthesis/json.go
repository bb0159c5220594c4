package synthesis

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// codeBlockRe strips a markdown code fence (optionally tagged ```json)
// around a model's JSON response, tolerating both raw and fenced output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// extractJSON returns the JSON payload inside raw, unwrapping a single
// surrounding code fence if present.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := codeBlockRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}

// normalizeNodeName NFC-normalizes and lowercases an AI-mentioned entity
// name before resolving it against canonical_name/aliases, so composed and
// decomposed Unicode forms of the same name compare equal.
func normalizeNodeName(name string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(name)))
}
