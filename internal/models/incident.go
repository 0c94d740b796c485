package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

var (
	ErrMissingID          = errors.New("incident id is required")
	ErrMissingCoordinates = errors.New("latitude and longitude are required")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	ErrMissingSubcategory = errors.New("subcategory is required")
	ErrInvalidDate        = errors.New("invalid crime date")
)

// Incident is one geocoded crime record.
type Incident struct {
	bun.BaseModel `bun:"table:incidents,alias:i"`

	ID            int       `bun:"id,pk" json:"id"`
	Latitude      float64   `bun:"latitude,notnull" json:"latitude"`
	Longitude     float64   `bun:"longitude,notnull" json:"longitude"`
	SubcategoryID int       `bun:"subcategory_id,notnull" json:"subcategory_id"`
	OccurredAt    time.Time `bun:"crime_date,notnull" json:"crime_date"`
}

// Record converts the incident back to its wire form.
func (i Incident) Record() IncidentRecord {
	id, lat, lng, sub := i.ID, i.Latitude, i.Longitude, i.SubcategoryID
	return IncidentRecord{
		ID:            &id,
		Latitude:      &lat,
		Longitude:     &lng,
		SubcategoryID: &sub,
		CrimeDate:     i.OccurredAt.UTC().Format(time.RFC3339),
	}
}

// IncidentRecord is the unvalidated wire shape of an incident. Every field
// may be missing in a response, so nothing here is trusted until Incident
// has been called.
type IncidentRecord struct {
	ID            *int     `json:"id"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	SubcategoryID *int     `json:"subcategory_id"`
	CrimeDate     string   `json:"crime_date"`
}

// Incident validates the record and returns the typed incident.
func (r IncidentRecord) Incident() (Incident, error) {
	if r.ID == nil {
		return Incident{}, ErrMissingID
	}
	if r.Latitude == nil || r.Longitude == nil {
		return Incident{}, fmt.Errorf("incident %d: %w", *r.ID, ErrMissingCoordinates)
	}
	if !ValidCoordinate(*r.Latitude, *r.Longitude) {
		return Incident{}, fmt.Errorf("incident %d: %w", *r.ID, ErrInvalidCoordinates)
	}
	if r.SubcategoryID == nil {
		return Incident{}, fmt.Errorf("incident %d: %w", *r.ID, ErrMissingSubcategory)
	}
	at, err := ParseCrimeDate(r.CrimeDate)
	if err != nil {
		return Incident{}, fmt.Errorf("incident %d: %w", *r.ID, err)
	}

	return Incident{
		ID:            *r.ID,
		Latitude:      *r.Latitude,
		Longitude:     *r.Longitude,
		SubcategoryID: *r.SubcategoryID,
		OccurredAt:    at,
	}, nil
}

var crimeDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	DateLayout,
}

// ParseCrimeDate accepts a date with or without time of day. Values without
// a zone are read as UTC.
func ParseCrimeDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range crimeDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ImportResult summarises an incident import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}
