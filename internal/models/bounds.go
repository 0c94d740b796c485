package models

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Bounds is a viewport rectangle in degrees. West may exceed East when the
// view crosses the antimeridian.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// ValidCoordinate reports whether lat/lng are inside the usual degree ranges.
func ValidCoordinate(lat, lng float64) bool {
	return s2.LatLngFromDegrees(lat, lng).IsValid()
}

// Valid reports whether all corners are valid and south is not above north.
func (b Bounds) Valid() bool {
	return ValidCoordinate(b.North, b.East) &&
		ValidCoordinate(b.South, b.West) &&
		b.South <= b.North
}

// Rect returns the bounds as an s2 rectangle. Longitude intervals wrap.
func (b Bounds) Rect() s2.Rect {
	return s2.Rect{
		Lat: r1.Interval{
			Lo: (s1.Angle(b.South) * s1.Degree).Radians(),
			Hi: (s1.Angle(b.North) * s1.Degree).Radians(),
		},
		Lng: s1.IntervalFromEndpoints(
			(s1.Angle(b.West) * s1.Degree).Radians(),
			(s1.Angle(b.East) * s1.Degree).Radians(),
		),
	}
}

// Contains reports whether the point lies inside the bounds.
func (b Bounds) Contains(lat, lng float64) bool {
	return b.Rect().ContainsLatLng(s2.LatLngFromDegrees(lat, lng))
}

// Wraps reports whether the bounds cross the antimeridian.
func (b Bounds) Wraps() bool {
	return b.West > b.East
}
