// Package domain models forum members and the resolution of their profile
// locations to coordinates.
//
// # Data Source
//
// Members come from the member directory of a XenForo forum. Each profile
// carries a free-text location field; it is whatever the member typed, in any
// language, with or without postal code, country, or punctuation noise:
//
//	"bei München", "D-80331 München", "80331 München (D)", "Wien, Österreich", "n/a"
//
// Cleaning the text and guessing country and postal code is the job of the
// location package. This package only sees the canonical text and the guesses.
//
// # Geocoding
//
// Candidates come from a Nominatim search endpoint. A [Locator] runs one
// (query, scope) attempt; the scope is a comma-joined country code list that
// maps to Nominatim's countrycodes parameter. [BackendLocator] picks the best
// candidate by type:
//
//	postal_code > administrative > post_box > city > town > village > suburb >
//	region > hamlet > political > protected_area > county > government >
//	residential > ceremonial > island > station > post_office >
//	motorway_junction > bus_stop
//
// Anything else falls back to the backend's own order. See [Rank].
//
// # Scope Ladder
//
// When the country is unknown, [Resolver] tries scopes from most to least
// likely for a German-speaking membership:
//
//	known country:        cc
//	5-digit postal code:  de | fr,fi,it | unrestricted
//	other postal code:    at,ch | dk,nl | unrestricted
//	no postal code:       de,at,ch | unrestricted
//
// The first attempt that yields a candidate wins. See [Ladder].
//
// # Radius
//
// The radius is the WGS-84 geodesic distance from the center of the
// candidate's bounding box to its north-west corner, rounded to meters. It is
// a half-diagonal, not an enclosing circle, and consumers rely on exactly this
// figure. Candidates without a bounding box get [RadiusNA], encoded as "N/A".
package domain
