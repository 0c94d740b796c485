package markersync

import (
	"fmt"
	"sort"

	"crimemap/internal/models"

	"go.uber.org/zap"
)

// Result lists the marker ids a reconciliation added and removed.
type Result struct {
	Added   []int
	Removed []int
}

// Empty reports whether the reconciliation changed nothing.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// Reconciler brings the markers on a Surface into agreement with the
// cache and a filter using one batch removal and one batch addition.
type Reconciler struct {
	cache   *Cache
	surface Surface
	logr    *zap.Logger
}

func NewReconciler(cache *Cache, surface Surface, logr *zap.Logger) *Reconciler {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Reconciler{cache: cache, surface: surface, logr: logr}
}

// Reconcile renders exactly the cached incidents matching f. Markers on
// the surface are judged by their own tags. A surface failure abandons
// the pass and leaves the surface as it was before the failing call.
func (r *Reconciler) Reconcile(f Filter) (Result, error) {
	current, err := r.surface.Markers()
	if err != nil {
		return Result{}, fmt.Errorf("enumerate markers: %w", err)
	}

	visible := make(map[int]struct{}, len(current))
	var toRemove []Marker
	for _, m := range current {
		if f.Matches(m.SubcategoryID, m.OccurredAt) {
			visible[m.ID] = struct{}{}
			continue
		}
		toRemove = append(toRemove, m)
	}

	var toAdd []Marker
	r.cache.Each(func(inc models.Incident) {
		if _, ok := visible[inc.ID]; ok {
			return
		}
		if f.Matches(inc.SubcategoryID, inc.OccurredAt) {
			toAdd = append(toAdd, MarkerFor(inc))
		}
	})

	var res Result
	if len(toRemove) > 0 {
		if err := r.surface.RemoveMarkers(toRemove); err != nil {
			return Result{}, fmt.Errorf("remove markers: %w", err)
		}
		res.Removed = markerIDs(toRemove)
	}
	if len(toAdd) > 0 {
		sort.Slice(toAdd, func(i, j int) bool { return toAdd[i].ID < toAdd[j].ID })
		if err := r.surface.AddMarkers(toAdd); err != nil {
			return res, fmt.Errorf("add markers: %w", err)
		}
		res.Added = markerIDs(toAdd)
	}

	if !res.Empty() {
		r.logr.Debug("markers reconciled",
			zap.Int("added", len(res.Added)),
			zap.Int("removed", len(res.Removed)),
			zap.Int("rendered", len(visible)+len(res.Added)))
	}
	return res, nil
}

func markerIDs(markers []Marker) []int {
	ids := make([]int, len(markers))
	for i, m := range markers {
		ids[i] = m.ID
	}
	sort.Ints(ids)
	return ids
}
