package markersync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crimemap/internal/models"
)

func date(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func incident(id, sub int, day string) models.Incident {
	return models.Incident{ID: id, Latitude: -23.55, Longitude: -46.63, SubcategoryID: sub, OccurredAt: date(day)}
}

func records(incs ...models.Incident) []models.IncidentRecord {
	out := make([]models.IncidentRecord, len(incs))
	for i, inc := range incs {
		out[i] = inc.Record()
	}
	return out
}

// fakeFetcher returns queued responses in order and records every query.
type fakeFetcher struct {
	mu        sync.Mutex
	responses [][]models.IncidentRecord
	errs      []error
	queries   []models.IncidentQuery
	block     chan struct{}
}

func (f *fakeFetcher) push(recs []models.IncidentRecord, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, recs)
	f.errs = append(f.errs, err)
}

func (f *fakeFetcher) FetchIncidents(ctx context.Context, q models.IncidentQuery) ([]models.IncidentRecord, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if len(f.responses) == 0 {
		return nil, nil
	}
	recs, err := f.responses[0], f.errs[0]
	f.responses, f.errs = f.responses[1:], f.errs[1:]
	return recs, err
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// brokenSurface fails every call.
type brokenSurface struct{}

var errCanvasMissing = errors.New("map canvas not found")

func (brokenSurface) AddMarkers([]Marker) error        { return errCanvasMissing }
func (brokenSurface) RemoveMarkers([]Marker) error     { return errCanvasMissing }
func (brokenSurface) Markers() ([]Marker, error)       { return nil, errCanvasMissing }
func (brokenSurface) Viewport() (models.Bounds, error) { return models.Bounds{}, ErrSurfaceUnavailable }
func (brokenSurface) OnViewportChange(func()) func()   { return func() {} }

var testView = models.Bounds{North: -23.4, South: -23.7, East: -46.4, West: -46.8}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
