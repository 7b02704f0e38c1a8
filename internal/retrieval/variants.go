package retrieval

import (
	"regexp"
	"strings"
)

var pronounPattern = regexp.MustCompile(`\b(you|your|yours|yourself|they|their|them)\b`)

// ResolveQuery expands second-person and deictic references in the utterance
// to the persona subject, so that retrieval matches the material's
// third-person phrasing.
func ResolveQuery(utterance, subject string) string {
	if subject == "" {
		return utterance
	}
	lower := strings.ToLower(utterance)
	return pronounPattern.ReplaceAllStringFunc(lower, func(m string) string {
		switch m {
		case "your", "yours", "their":
			return subject + "'s"
		default:
			return subject
		}
	})
}

// QueryVariants returns the deterministic derived queries to fan out
// alongside the primary query. Only evaluative/comparative queries get
// variants; everything else searches once.
func QueryVariants(query string, evaluative bool) []string {
	if !evaluative {
		return nil
	}
	return []string{
		query + " strengths and experience",
		query + " limitations and risks",
	}
}

// ExpandQuery widens a query for the single second-pass retrieval after a
// weak first pass.
func ExpandQuery(query string) string {
	return query + " background context details"
}
