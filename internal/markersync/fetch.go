package markersync

import (
	"context"
	"fmt"
	"time"

	"crimemap/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fetcher is the incident fetch endpoint. The query carries the ids the
// caller already holds so the source may leave them out; the cache stays
// the only authority on duplicates either way.
type Fetcher interface {
	FetchIncidents(ctx context.Context, q models.IncidentQuery) ([]models.IncidentRecord, error)
}

type requestIDKey struct{}

// WithRequestID tags ctx with a fetch request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the fetch request id, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Coordinator turns a viewport and filter into a fetch, validates the
// response and merges it into the cache.
type Coordinator struct {
	fetcher  Fetcher
	cache    *Cache
	logr     *zap.Logger
	timeout  time.Duration
	onMerged func(added []models.Incident)
}

// NewCoordinator wires a fetcher to a cache. onMerged runs after every
// successful fetch, even when nothing new arrived.
func NewCoordinator(fetcher Fetcher, cache *Cache, logr *zap.Logger, timeout time.Duration, onMerged func([]models.Incident)) *Coordinator {
	if logr == nil {
		logr = zap.NewNop()
	}
	if onMerged == nil {
		onMerged = func([]models.Incident) {}
	}
	return &Coordinator{
		fetcher:  fetcher,
		cache:    cache,
		logr:     logr,
		timeout:  timeout,
		onMerged: onMerged,
	}
}

// Query builds the request for bounds and f, excluding every cached id.
func (c *Coordinator) Query(bounds models.Bounds, f Filter) models.IncidentQuery {
	return models.NewIncidentQuery(bounds, f.Start(), f.End(), f.Subcategories(), c.cache.IDs())
}

// Fetch issues one request and merges the valid records it returns. On
// error the cache is untouched and onMerged is not called. An empty
// selection cannot match anything, so no request is sent and only
// onMerged runs.
func (c *Coordinator) Fetch(ctx context.Context, bounds models.Bounds, f Filter) ([]models.Incident, error) {
	if f.Empty() {
		c.onMerged(nil)
		return nil, nil
	}

	q := c.Query(bounds, f)
	requestID := uuid.NewString()
	ctx = WithRequestID(ctx, requestID)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logr := c.logr.With(zap.String("request_id", requestID))
	started := time.Now()

	records, err := c.fetcher.FetchIncidents(ctx, q)
	if err != nil {
		logr.Error("incident fetch failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}

	incidents := make([]models.Incident, 0, len(records))
	for _, rec := range records {
		inc, err := rec.Incident()
		if err != nil {
			logr.Warn("dropping malformed incident", zap.Error(err))
			continue
		}
		incidents = append(incidents, inc)
	}

	added := c.cache.Merge(incidents)
	logr.Debug("incident fetch merged",
		zap.Int("received", len(records)),
		zap.Int("added", len(added)),
		zap.Int("excluded", len(q.ExcludedIDs)),
		zap.Duration("elapsed", time.Since(started)))

	c.onMerged(added)
	return added, nil
}
