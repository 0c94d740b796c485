package markersync

import (
	"errors"
	"time"

	"crimemap/internal/models"
)

// ErrSurfaceUnavailable is returned when the render surface cannot be
// reached, e.g. before the map has a view.
var ErrSurfaceUnavailable = errors.New("render surface unavailable")

// Marker is a rendered incident together with the tags the reconciler
// evaluates. The tags travel with the marker; they are never re-read from
// the cache.
type Marker struct {
	ID            int       `json:"id"`
	SubcategoryID int       `json:"subcategory_id"`
	OccurredAt    time.Time `json:"crime_date"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
}

// MarkerFor builds the marker for a cached incident.
func MarkerFor(inc models.Incident) Marker {
	return Marker{
		ID:            inc.ID,
		SubcategoryID: inc.SubcategoryID,
		OccurredAt:    inc.OccurredAt,
		Latitude:      inc.Latitude,
		Longitude:     inc.Longitude,
	}
}

// Surface is a clustering marker layer. Batch calls exist because every
// individual mutation is expensive on a clustered layer.
type Surface interface {
	AddMarkers(markers []Marker) error
	RemoveMarkers(markers []Marker) error
	Markers() ([]Marker, error)
	Viewport() (models.Bounds, error)
	OnViewportChange(fn func()) (cancel func())
}
