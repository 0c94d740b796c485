package models

import (
	"errors"
	"time"
)

// IncidentQuery is the request body of the incident fetch endpoint.
type IncidentQuery struct {
	East          *float64 `json:"east"`
	West          *float64 `json:"west"`
	South         *float64 `json:"south"`
	North         *float64 `json:"north"`
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
	ExcludedIDs   []int    `json:"excludedIDs,omitempty"`
	Subcategories []int    `json:"subCategories,omitempty"`
}

// NewIncidentQuery builds a query for the given viewport and day range.
func NewIncidentQuery(b Bounds, start, end time.Time, subcategories, excluded []int) IncidentQuery {
	north, south, east, west := b.North, b.South, b.East, b.West
	return IncidentQuery{
		North:         &north,
		South:         &south,
		East:          &east,
		West:          &west,
		StartDate:     start.Format(DateLayout),
		EndDate:       end.Format(DateLayout),
		ExcludedIDs:   excluded,
		Subcategories: subcategories,
	}
}

// Validate checks coordinates and dates.
func (q *IncidentQuery) Validate() error {
	if q.East == nil || q.West == nil || q.South == nil || q.North == nil {
		return errors.New("all coordinates (east, west, south, north) must be provided")
	}

	if *q.East < -180 || *q.East > 180 || *q.West < -180 || *q.West > 180 {
		return errors.New("longitude must be between -180 and 180")
	}

	if *q.South < -90 || *q.South > 90 || *q.North < -90 || *q.North > 90 {
		return errors.New("latitude must be between -90 and 90")
	}

	if *q.South > *q.North {
		return errors.New("south must not be greater than north")
	}

	if q.StartDate == "" || q.EndDate == "" {
		return errors.New("both startDate and endDate must be provided")
	}

	start, err := time.Parse(DateLayout, q.StartDate)
	if err != nil {
		return errors.New("invalid startDate format, must be YYYY-MM-DD")
	}

	end, err := time.Parse(DateLayout, q.EndDate)
	if err != nil {
		return errors.New("invalid endDate format, must be YYYY-MM-DD")
	}

	if end.Before(start) {
		return errors.New("endDate must not be before startDate")
	}

	return nil
}

// Bounds returns the viewport. Call Validate first.
func (q *IncidentQuery) Bounds() Bounds {
	return Bounds{North: *q.North, South: *q.South, East: *q.East, West: *q.West}
}

// DateRange returns the first day and the day after the last day, so
// callers can select start <= crime_date < endExclusive.
func (q *IncidentQuery) DateRange() (start, endExclusive time.Time, err error) {
	start, err = time.Parse(DateLayout, q.StartDate)
	if err != nil {
		return
	}
	end, err := time.Parse(DateLayout, q.EndDate)
	if err != nil {
		return
	}
	return start, end.AddDate(0, 0, 1), nil
}
