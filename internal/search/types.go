package search

import "strings"

// Match is one candidate source returned by the reverse image search
// provider. Immutable once produced.
type Match struct {
	Title     string // may be empty
	URL       string // canonical source link
	Thumbnail string // thumbnail URL, may be empty
}

// CleanTitle derives a short title by cutting at the first dash-family
// delimiter. Provider titles tend to look like "Show Name – Episode 7
// screenshot compilation"; the first segment is the useful part.
func (m Match) CleanTitle() string {
	title := strings.TrimSpace(m.Title)
	if title == "" {
		return ""
	}
	if i := strings.IndexAny(title, "-–—"); i >= 0 {
		return strings.TrimSpace(title[:i])
	}
	return title
}

// Result is the full outcome of one reverse image search. Owned by the
// session for the lifetime of a search; replaced wholesale, never
// mutated.
type Result struct {
	Matches    []Match
	ResultsURL string // provider's own results page for "view all"
}

// Empty reports whether the search produced nothing worth rendering.
func (r *Result) Empty() bool {
	return r == nil || len(r.Matches) == 0
}

// SearchError is a provider-level failure (bad status, malformed
// payload).
type SearchError struct {
	Provider string
	Code     string
	Message  string
}

func (e *SearchError) Error() string {
	return e.Provider + ": " + e.Message
}
