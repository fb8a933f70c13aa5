// Package geo models search coordinates and tiles a coverage radius into
// overlapping query zones that each fit under the places API radius cap.
package geo

import (
	"fmt"
	"math"
)

// MetersPerDegreeLat is the approximate length of one degree of latitude.
const MetersPerDegreeLat = 111320.0

// Default tuning factors for zone placement. They are empirical; the tiling
// only promises overlapping coverage, not an optimal cover.
const (
	DefaultCardinalFactor = 0.55
	DefaultDiagonalFactor = 0.7
)

// GeoPoint is a WGS84 coordinate in degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
}

// SearchZone is one query origin. Its radius is the process-wide zone cap.
type SearchZone struct {
	Center GeoPoint `json:"center"`
	Label  string   `json:"label"`
}

type direction struct {
	name     string
	latSign  float64
	lngSign  float64
	diagonal bool
}

// Tiling order: center first, then cardinals, then diagonals.
var directions = []direction{
	{name: "north", latSign: 1},
	{name: "south", latSign: -1},
	{name: "east", lngSign: 1},
	{name: "west", lngSign: -1},
	{name: "northeast", latSign: 1, lngSign: 1, diagonal: true},
	{name: "northwest", latSign: 1, lngSign: -1, diagonal: true},
	{name: "southeast", latSign: -1, lngSign: 1, diagonal: true},
	{name: "southwest", latSign: -1, lngSign: -1, diagonal: true},
}

// Tiler computes overlapping zones around a center point.
type Tiler struct {
	// ZoneCap is the per-call search radius limit in meters.
	ZoneCap float64
	// CardinalFactor scales the total radius into the N/S/E/W offset.
	CardinalFactor float64
	// DiagonalFactor scales the cardinal offset along both axes for diagonals.
	DiagonalFactor float64
	// Label prefixes every zone label, e.g. "Ocala, FL".
	Label string
}

// NewTiler returns a Tiler with the default placement factors.
func NewTiler(zoneCap float64, label string) Tiler {
	return Tiler{
		ZoneCap:        zoneCap,
		CardinalFactor: DefaultCardinalFactor,
		DiagonalFactor: DefaultDiagonalFactor,
		Label:          label,
	}
}

// Tile returns 1, 5, or 9 zones depending on how totalRadius compares to the
// zone cap.
func (t Tiler) Tile(center GeoPoint, totalRadius float64) []SearchZone {
	zones := []SearchZone{{Center: center, Label: t.label("center")}}
	if totalRadius <= t.ZoneCap {
		return zones
	}

	offsetMeters := totalRadius * t.CardinalFactor
	dLat := offsetMeters / MetersPerDegreeLat
	dLng := offsetMeters / (MetersPerDegreeLat * math.Cos(center.Latitude*math.Pi/180))
	withDiagonals := totalRadius > 2*t.ZoneCap

	for _, d := range directions {
		scale := 1.0
		if d.diagonal {
			if !withDiagonals {
				continue
			}
			scale = t.DiagonalFactor
		}
		zones = append(zones, SearchZone{
			Center: GeoPoint{
				Latitude:  center.Latitude + d.latSign*dLat*scale,
				Longitude: center.Longitude + d.lngSign*dLng*scale,
			},
			Label: t.label(d.name),
		})
	}
	return zones
}

func (t Tiler) label(dir string) string {
	if t.Label == "" {
		return dir
	}
	return fmt.Sprintf("%s (%s)", t.Label, dir)
}

// Tile is a convenience wrapper using the default placement factors.
func Tile(center GeoPoint, totalRadius, zoneCap float64) []SearchZone {
	return NewTiler(zoneCap, "").Tile(center, totalRadius)
}
