// Package routenlp extracts origin/destination place names from unstructured
// question text using ordered regex patterns. It is an accelerator for the
// exact-match retrieval path, not a source of truth: a miss or a bogus match
// simply means the caller falls back to semantic search.
package routenlp

import (
	"regexp"
	"strings"
)

// Route is an extracted origin/destination pair, title-cased.
type Route struct {
	Origin      string
	Destination string
}

// Patterns are tried in order; first match wins. Captures are single
// words: "navi mumbai" extracts as "Mumbai". Known limitation, and the
// semantic fallback copes with it.
//
// reachRe captures destination before origin ("can I reach Pune from
// Mumbai"), so its groups are swapped before returning.
var (
	fromToRe = regexp.MustCompile(`from\s+(\w+)\s+to\s+(\w+)`)
	reachRe  = regexp.MustCompile(`reach\s+(\w+)\s+from\s+(\w+)`)
	bareToRe = regexp.MustCompile(`\b(\w+)\s+to\s+(\w+)\b`)
)

// ExtractRoute scans text for an origin/destination mention. ok is false
// when no pattern matches.
func ExtractRoute(text string) (route Route, ok bool) {
	lower := strings.ToLower(text)

	if m := fromToRe.FindStringSubmatch(lower); m != nil {
		return Route{Origin: titleCase(m[1]), Destination: titleCase(m[2])}, true
	}
	if m := reachRe.FindStringSubmatch(lower); m != nil {
		// Matched as "reach <destination> from <origin>".
		return Route{Origin: titleCase(m[2]), Destination: titleCase(m[1])}, true
	}
	if m := bareToRe.FindStringSubmatch(lower); m != nil {
		return Route{Origin: titleCase(m[1]), Destination: titleCase(m[2])}, true
	}
	return Route{}, false
}

// titleCase capitalizes the first letter of each word, matching how place
// names are stored in trip metadata.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
