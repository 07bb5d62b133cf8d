package jobs

import "strings"

// Filter returns postings whose title contains query, ignoring case.
// Relative order is preserved. An empty query returns postings unchanged.
func Filter(postings []Posting, query string) []Posting {
	if query == "" {
		return postings
	}
	q := strings.ToLower(query)
	filtered := make([]Posting, 0, len(postings))
	for _, p := range postings {
		if strings.Contains(strings.ToLower(p.Title), q) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
