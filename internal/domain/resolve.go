package domain

import (
	"context"
	"log/slog"
)

// Outcome is the state of one resolution.
type Outcome int

const (
	// OutcomePending means no attempt has been made yet.
	OutcomePending Outcome = iota
	// OutcomeResolved means an attempt produced a candidate.
	OutcomeResolved
	// OutcomeExhausted means every attempt of the ladder came back empty.
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "pending"
	}
}

// Ladder returns the scopes to try, in order, for a location with the given
// inferred country and postal code. The empty scope means unrestricted.
func Ladder(country, postalCode string) []string {
	switch {
	case country != "":
		return []string{country}
	case len(postalCode) == 5:
		return []string{"de", "fr,fi,it", ""}
	case postalCode != "":
		return []string{"at,ch", "dk,nl", ""}
	default:
		return []string{"de,at,ch", ""}
	}
}

// Resolver walks the scope ladder until a locator attempt yields a candidate.
type Resolver struct {
	locator Locator
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(locator Locator, logger *slog.Logger) *Resolver {
	return &Resolver{locator: locator, logger: logger}
}

// Resolve tries every scope of the ladder for location and returns the first
// candidate found. A failing attempt is logged and counts as empty, so Resolve
// itself never fails; the context only stops the ladder early.
func (r *Resolver) Resolve(ctx context.Context, location, country, postalCode string) (*Candidate, Outcome) {
	for _, scope := range Ladder(country, postalCode) {
		if ctx.Err() != nil {
			break
		}
		c, err := r.locator.Locate(ctx, location, scope)
		if err != nil {
			r.logger.Warn("geocode attempt failed",
				"query", location,
				"scope", scope,
				"error", err,
			)
			continue
		}
		if c != nil {
			return c, OutcomeResolved
		}
	}
	return nil, OutcomeExhausted
}
