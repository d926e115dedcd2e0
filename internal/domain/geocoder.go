package domain

import (
	"context"
	"log/slog"
	"regexp"
)

// SearchRequest is one query against the geocoding backend.
type SearchRequest struct {
	Query string
	// Scope is a comma-joined list of country codes ("de", "at,ch"); empty means unrestricted.
	Scope string
	// ExcludePlaceIDs asks the backend to leave these results out.
	ExcludePlaceIDs []int64
}

// Searcher issues a single search against the geocoding backend.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]Candidate, error)
}

// Locator finds the best candidate for one (location, scope) attempt.
// A nil candidate with a nil error means the backend knows no such place.
type Locator interface {
	Locate(ctx context.Context, query, scope string) (*Candidate, error)
}

// typePreference ranks candidate types, most specific first.
var typePreference = []string{
	"postal_code", "administrative", "post_box", "city", "town", "village", "suburb",
	"region", "hamlet", "political", "protected_area", "county", "government",
	"residential", "ceremonial", "island", "station", "post_office",
	"motorway_junction", "bus_stop",
}

// "de-80331 münchen" carries its country in the prefix; once a scope is set
// the backend does better with the bare "80331 münchen".
var scopedPrefixRe = regexp.MustCompile(`^[a-z]{1,3}-(\d{4,5}.*)$`)

// BackendLocator implements Locator on top of a Searcher.
type BackendLocator struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewBackendLocator creates a BackendLocator.
func NewBackendLocator(searcher Searcher, logger *slog.Logger) *BackendLocator {
	return &BackendLocator{searcher: searcher, logger: logger}
}

// Locate searches the backend and ranks the results. When the first search
// returns exactly one candidate, a second search excluding it looks for a
// more specific match and both result sets are ranked together.
func (l *BackendLocator) Locate(ctx context.Context, query, scope string) (*Candidate, error) {
	q := SearchQuery(query, scope)

	results, err := l.searcher.Search(ctx, SearchRequest{Query: q, Scope: scope})
	if err != nil {
		return nil, err
	}

	if len(results) == 1 {
		more, err := l.searcher.Search(ctx, SearchRequest{
			Query:           q,
			Scope:           scope,
			ExcludePlaceIDs: []int64{results[0].PlaceID},
		})
		if err != nil {
			l.logger.Warn("supplementary search failed",
				"query", q,
				"scope", scope,
				"error", err,
			)
		} else {
			results = append(results, more...)
		}
	}

	return Rank(results), nil
}

// SearchQuery returns the text sent to the backend for a location under scope.
func SearchQuery(location, scope string) string {
	if scope == "" {
		return location
	}
	if m := scopedPrefixRe.FindStringSubmatch(location); m != nil {
		return m[1]
	}
	return location
}

// Rank picks the first candidate whose type appears earliest in the
// preference list. With no preferred type present the first candidate wins.
// It returns nil for an empty slice.
func Rank(candidates []Candidate) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	for _, typ := range typePreference {
		for i := range candidates {
			if candidates[i].Type == typ {
				c := candidates[i]
				return &c
			}
		}
	}
	c := candidates[0]
	return &c
}
