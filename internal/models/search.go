package models

// SearchResults carries the de-duplicated union of all search strategies,
// scoped to the caller's organizations.
type SearchResults struct {
	Query string `json:"query"`
	Files []File `json:"files"`
}
