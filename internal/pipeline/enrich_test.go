package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/couchcryptid/member-locator/internal/location"
	"github.com/couchcryptid/member-locator/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scopedSearcher answers primary searches from a (query, scope) table and
// returns nothing for supplementary searches.
type scopedSearcher struct {
	results  map[[2]string][]domain.Candidate
	requests []domain.SearchRequest
}

func (s *scopedSearcher) Search(_ context.Context, req domain.SearchRequest) ([]domain.Candidate, error) {
	s.requests = append(s.requests, req)
	if len(req.ExcludePlaceIDs) > 0 {
		return nil, nil
	}
	return s.results[[2]string{req.Query, req.Scope}], nil
}

func (s *scopedSearcher) scopes() []string {
	var out []string
	for _, r := range s.requests {
		if len(r.ExcludePlaceIDs) == 0 {
			out = append(out, r.Scope)
		}
	}
	return out
}

func newTestEnricher(s domain.Searcher) *pipeline.LocationEnricher {
	table := location.DefaultTable()
	logger := discardLogger()
	return pipeline.NewEnricher(
		location.NewNormalizer(table, location.DefaultRules()),
		location.NewClassifier(table),
		domain.NewResolver(domain.NewBackendLocator(s, logger), logger),
		logger,
	)
}

var munich = domain.Candidate{
	PlaceID:     101,
	Type:        "city",
	Lat:         "48.1",
	Lon:         "11.6",
	BoundingBox: []string{"48.0", "48.2", "11.5", "11.7"},
	Address:     map[string]string{"country_code": "de"},
}

func TestLocationEnricher_BeiMuenchen(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() { domain.SetClock(nil) })

	s := &scopedSearcher{results: map[[2]string][]domain.Candidate{
		{"münchen", "de"}: {munich},
	}}
	member := domain.Member{UID: "12", Name: "Anna", Location: "bei München", VM: "Quest XS"}

	got, reason := newTestEnricher(s).Enrich(context.Background(), member)

	require.Equal(t, pipeline.Kept, reason)
	assert.Equal(t, member, got.Member)
	assert.Equal(t, domain.Resolution{
		Lat:         "48.1",
		Lon:         "11.6",
		Radius:      13379,
		CountryCode: "de",
	}, got.Resolution)
	assert.Equal(t, fakeClock.Now(), got.ProcessedAt)

	require.Len(t, s.requests, 2, "primary search plus one supplementary search")
	assert.Equal(t, domain.SearchRequest{Query: "münchen", Scope: "de"}, s.requests[0])
	assert.Equal(t, []int64{101}, s.requests[1].ExcludePlaceIDs)
}

func TestLocationEnricher_Drops(t *testing.T) {
	tests := []struct {
		name       string
		location   string
		want       pipeline.DropReason
		wantScopes []string
	}{
		{"empty", "", pipeline.DropNoLocation, nil},
		{"whitespace", "   ", pipeline.DropNoLocation, nil},
		{"blocklisted", "k.A.", pipeline.DropUnusable, nil},
		{"punctuation only", "?!", pipeline.DropUnusable, nil},
		{"unknown place", "Atlantis", pipeline.DropUnresolved, []string{"de,at,ch", ""}},
		{"unknown with 4-digit postal code", "9999 Atlantis", pipeline.DropUnresolved, []string{"at,ch", "dk,nl", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scopedSearcher{}
			_, reason := newTestEnricher(s).Enrich(context.Background(), domain.Member{UID: "1", Location: tt.location})

			assert.Equal(t, tt.want, reason)
			assert.Equal(t, tt.wantScopes, s.scopes())
		})
	}
}

func TestLocationEnricher_CountryOnlyWhenInferred(t *testing.T) {
	udine := domain.Candidate{
		PlaceID:     7,
		Type:        "city",
		Lat:         "46.06",
		Lon:         "13.24",
		BoundingBox: []string{"46.02", "46.11", "13.17", "13.30"},
		Address:     map[string]string{"country_code": "it"},
	}
	s := &scopedSearcher{results: map[[2]string][]domain.Candidate{
		{"33100 udine", "fr,fi,it"}: {udine},
	}}

	got, reason := newTestEnricher(s).Enrich(context.Background(), domain.Member{UID: "5", Location: "33100 Udine"})

	require.Equal(t, pipeline.Kept, reason)
	assert.Empty(t, got.CountryCode, "an uninferred country stays empty even when the candidate names one")
	assert.Equal(t, "33100", got.PostalCode)
	assert.True(t, got.Radius.Valid())
	assert.Equal(t, []string{"de", "fr,fi,it"}, s.scopes())
}

func TestLocationEnricher_NoBoundingBox(t *testing.T) {
	point := munich
	point.BoundingBox = nil
	s := &scopedSearcher{results: map[[2]string][]domain.Candidate{
		{"münchen", "de"}: {point},
	}}

	got, reason := newTestEnricher(s).Enrich(context.Background(), domain.Member{UID: "12", Location: "München"})

	require.Equal(t, pipeline.Kept, reason)
	assert.Equal(t, domain.RadiusNA, got.Radius)
}

func TestDropReason_String(t *testing.T) {
	assert.Equal(t, "kept", pipeline.Kept.String())
	assert.Equal(t, "no_location", pipeline.DropNoLocation.String())
	assert.Equal(t, "unusable", pipeline.DropUnusable.String())
	assert.Equal(t, "unresolved", pipeline.DropUnresolved.String())
}
