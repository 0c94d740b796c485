package markersync

import (
	"fmt"
	"sort"
	"sync"

	"crimemap/internal/models"

	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"
)

// DefaultClusterLevel groups markers into s2 cells roughly 5km across.
const DefaultClusterLevel = 11

// ClusterLayer is an in-memory Surface. It keeps markers by id, tracks a
// viewport, and groups markers into s2 cells for clustered display.
type ClusterLayer struct {
	mu      sync.RWMutex
	markers map[int]Marker
	view    models.Bounds
	hasView bool

	listenerMu sync.Mutex
	listeners  map[uint64]func()
	nextID     uint64

	addBatches    int
	removeBatches int
}

// LayerStats counts batch operations applied to a layer.
type LayerStats struct {
	Markers       int
	AddBatches    int
	RemoveBatches int
}

// Cluster is a group of markers sharing an s2 cell.
type Cluster struct {
	Cell      s2.CellID
	Count     int
	Latitude  float64
	Longitude float64
	IDs       []int
}

func NewClusterLayer() *ClusterLayer {
	return &ClusterLayer{
		markers:   make(map[int]Marker),
		listeners: make(map[uint64]func()),
	}
}

// AddMarkers adds a batch. A marker with an id already on the layer
// replaces it.
func (l *ClusterLayer) AddMarkers(markers []Marker) error {
	if len(markers) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range markers {
		l.markers[m.ID] = m
	}
	l.addBatches++
	return nil
}

// RemoveMarkers removes a batch; unknown ids are ignored.
func (l *ClusterLayer) RemoveMarkers(markers []Marker) error {
	if len(markers) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range markers {
		delete(l.markers, m.ID)
	}
	l.removeBatches++
	return nil
}

// Markers returns the held markers ordered by id.
func (l *ClusterLayer) Markers() ([]Marker, error) {
	l.mu.RLock()
	out := make([]Marker, 0, len(l.markers))
	for _, m := range l.markers {
		out = append(out, m)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// IDs returns the held marker ids in ascending order.
func (l *ClusterLayer) IDs() []int {
	markers, _ := l.Markers()
	ids := make([]int, len(markers))
	for i, m := range markers {
		ids[i] = m.ID
	}
	return ids
}

// Viewport returns the current view or ErrSurfaceUnavailable before the
// first SetView.
func (l *ClusterLayer) Viewport() (models.Bounds, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.hasView {
		return models.Bounds{}, ErrSurfaceUnavailable
	}
	return l.view, nil
}

// SetView moves the layer and notifies viewport listeners.
func (l *ClusterLayer) SetView(b models.Bounds) error {
	if !b.Valid() {
		return fmt.Errorf("invalid viewport %+v", b)
	}
	l.mu.Lock()
	l.view = b
	l.hasView = true
	l.mu.Unlock()

	l.listenerMu.Lock()
	fns := make([]func(), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.listenerMu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

// OnViewportChange registers fn for every SetView.
func (l *ClusterLayer) OnViewportChange(fn func()) (cancel func()) {
	l.listenerMu.Lock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	l.listenerMu.Unlock()

	return func() {
		l.listenerMu.Lock()
		delete(l.listeners, id)
		l.listenerMu.Unlock()
	}
}

// Stats reports marker and batch counts.
func (l *ClusterLayer) Stats() LayerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LayerStats{
		Markers:       len(l.markers),
		AddBatches:    l.addBatches,
		RemoveBatches: l.removeBatches,
	}
}

// Visible returns held markers inside the current view.
func (l *ClusterLayer) Visible() []Marker {
	l.mu.RLock()
	view, hasView := l.view, l.hasView
	l.mu.RUnlock()
	if !hasView {
		return nil
	}

	markers, _ := l.Markers()
	rect := view.Rect()
	out := markers[:0]
	for _, m := range markers {
		if rect.ContainsLatLng(s2.LatLngFromDegrees(m.Latitude, m.Longitude)) {
			out = append(out, m)
		}
	}
	return out
}

// Clusters groups the held markers by their s2 cell at level. Larger
// clusters come first.
func (l *ClusterLayer) Clusters(level int) []Cluster {
	if level < 0 || level > s2.MaxLevel {
		level = DefaultClusterLevel
	}
	markers, _ := l.Markers()

	byCell := make(map[s2.CellID]*Cluster)
	for _, m := range markers {
		cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(m.Latitude, m.Longitude)).Parent(level)
		c, ok := byCell[cell]
		if !ok {
			c = &Cluster{Cell: cell}
			byCell[cell] = c
		}
		c.Count++
		c.Latitude += m.Latitude
		c.Longitude += m.Longitude
		c.IDs = append(c.IDs, m.ID)
	}

	out := make([]Cluster, 0, len(byCell))
	for _, c := range byCell {
		c.Latitude /= float64(c.Count)
		c.Longitude /= float64(c.Count)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Cell < out[j].Cell
	})
	return out
}

// FeatureCollection exports the held markers as GeoJSON points.
func (l *ClusterLayer) FeatureCollection() *geojson.FeatureCollection {
	markers, _ := l.Markers()
	fc := geojson.NewFeatureCollection()
	for _, m := range markers {
		f := geojson.NewPointFeature([]float64{m.Longitude, m.Latitude})
		f.ID = m.ID
		f.SetProperty("subcategory_id", m.SubcategoryID)
		f.SetProperty("crime_date", m.OccurredAt.Format(models.DateLayout))
		fc.AddFeature(f)
	}
	return fc
}
