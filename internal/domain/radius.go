package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
	"github.com/tidwall/geodesic"
)

// Radius is the uncertainty radius of a resolved location in meters.
// RadiusNA marks a candidate that came without a bounding box.
type Radius int

// RadiusNA is the "not available" radius. It is encoded as the JSON string "N/A".
const RadiusNA Radius = -1

const radiusNAText = "N/A"

// Valid reports whether r carries a distance.
func (r Radius) Valid() bool { return r >= 0 }

func (r Radius) String() string {
	if !r.Valid() {
		return radiusNAText
	}
	return strconv.Itoa(int(r))
}

// MarshalJSON encodes a valid radius as an integer and RadiusNA as "N/A".
func (r Radius) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return []byte(`"` + radiusNAText + `"`), nil
	}
	return []byte(strconv.Itoa(int(r))), nil
}

// UnmarshalJSON accepts an integer or the string "N/A".
func (r *Radius) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == `"`+radiusNAText+`"` || s == "null" {
		*r = RadiusNA
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid radius %s", s)
	}
	*r = Radius(n)
	return nil
}

// BoundingBox is a candidate's extent in degrees.
type BoundingBox struct {
	South, North, West, East float64
}

// ParseBoundingBox reads the backend's [south, north, west, east] string
// array. It reports false for anything that is not four finite numbers.
func ParseBoundingBox(raw []string) (BoundingBox, bool) {
	if len(raw) != 4 {
		return BoundingBox{}, false
	}
	var v [4]float64
	for i, s := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return BoundingBox{}, false
		}
		v[i] = f
	}
	return BoundingBox{South: v[0], North: v[1], West: v[2], East: v[3]}, true
}

// Center is the arithmetic midpoint of the box's latitude and longitude
// ranges. A box whose west edge is at -180 and east edge at 180 centres on
// the prime meridian, not the antimeridian.
func (b BoundingBox) Center() s2.LatLng {
	return s2.LatLngFromDegrees((b.South+b.North)/2, (b.West+b.East)/2)
}

// NorthWest is the box corner at (North, West).
func (b BoundingBox) NorthWest() s2.LatLng {
	return s2.LatLngFromDegrees(b.North, b.West)
}

// HalfDiagonal is the WGS-84 geodesic distance in meters from the center of
// the box to its north-west corner.
func (b BoundingBox) HalfDiagonal() float64 {
	center, nw := b.Center(), b.NorthWest()

	var meters float64
	geodesic.WGS84.Inverse(
		center.Lat.Degrees(), center.Lng.Degrees(),
		nw.Lat.Degrees(), nw.Lng.Degrees(),
		&meters, nil, nil,
	)
	return meters
}

// RadiusFromBoundingBox derives the radius of a candidate from its bounding
// box, rounded to the nearest meter. A missing or malformed box yields RadiusNA.
func RadiusFromBoundingBox(raw []string) Radius {
	box, ok := ParseBoundingBox(raw)
	if !ok {
		return RadiusNA
	}
	return Radius(math.Round(box.HalfDiagonal()))
}
