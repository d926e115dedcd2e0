package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/couchcryptid/member-locator/internal/location"
)

// DropReason says why a member was left out of the output.
type DropReason int

const (
	// Kept means the member resolved and is part of the output.
	Kept DropReason = iota
	// DropNoLocation means the profile has no location text.
	DropNoLocation
	// DropUnusable means the location normalized to nothing.
	DropUnusable
	// DropUnresolved means no geocode attempt found the location.
	DropUnresolved
)

func (r DropReason) String() string {
	switch r {
	case DropNoLocation:
		return "no_location"
	case DropUnusable:
		return "unusable"
	case DropUnresolved:
		return "unresolved"
	default:
		return "kept"
	}
}

// LocationEnricher implements Enricher: normalize, classify, resolve, then
// derive the radius from the winning candidate's bounding box.
type LocationEnricher struct {
	normalizer *location.Normalizer
	classifier *location.Classifier
	resolver   *domain.Resolver
	logger     *slog.Logger
}

// NewEnricher creates a LocationEnricher.
func NewEnricher(normalizer *location.Normalizer, classifier *location.Classifier, resolver *domain.Resolver, logger *slog.Logger) *LocationEnricher {
	return &LocationEnricher{
		normalizer: normalizer,
		classifier: classifier,
		resolver:   resolver,
		logger:     logger,
	}
}

func (e *LocationEnricher) Enrich(ctx context.Context, m domain.Member) (domain.EnrichedMember, DropReason) {
	if strings.TrimSpace(m.Location) == "" {
		return domain.EnrichedMember{}, DropNoLocation
	}

	canonical := e.normalizer.Normalize(m.Location)
	if canonical == "" {
		e.logger.Debug("location unusable", "uid", m.UID, "location", m.Location)
		return domain.EnrichedMember{}, DropUnusable
	}

	class := e.classifier.Classify(m.Location, canonical)
	candidate, outcome := e.resolver.Resolve(ctx, canonical, class.Country, class.PostalCode)
	if outcome != domain.OutcomeResolved {
		e.logger.Info("location not found",
			"uid", m.UID,
			"location", m.Location,
			"canonical", canonical,
			"country", class.Country,
			"postal_code", class.PostalCode,
		)
		return domain.EnrichedMember{}, DropUnresolved
	}

	return domain.NewEnrichedMember(m, domain.Resolution{
		Lat:         candidate.Lat,
		Lon:         candidate.Lon,
		Radius:      domain.RadiusFromBoundingBox(candidate.BoundingBox),
		PostalCode:  class.PostalCode,
		CountryCode: class.Country,
	}), Kept
}
