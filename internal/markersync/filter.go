package markersync

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Filter is an immutable snapshot of the selected subcategories and the
// inclusive day range. Dates are compared by UTC calendar day, so End
// covers the whole of its day.
type Filter struct {
	subcategories map[int]struct{}
	start         time.Time
	end           time.Time
}

// NewFilter builds a snapshot. start and end are truncated to their day.
func NewFilter(subcategories []int, start, end time.Time) Filter {
	set := make(map[int]struct{}, len(subcategories))
	for _, id := range subcategories {
		set[id] = struct{}{}
	}
	return Filter{subcategories: set, start: day(start), end: day(end)}
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Matches is the visibility predicate: the subcategory is selected and
// the day of occurredAt lies within [Start, End].
func (f Filter) Matches(subcategoryID int, occurredAt time.Time) bool {
	if _, ok := f.subcategories[subcategoryID]; !ok {
		return false
	}
	d := day(occurredAt)
	return !d.Before(f.start) && !d.After(f.end)
}

// Has reports whether the subcategory is selected.
func (f Filter) Has(subcategoryID int) bool {
	_, ok := f.subcategories[subcategoryID]
	return ok
}

// Subcategories returns the selected ids in ascending order.
func (f Filter) Subcategories() []int {
	ids := lo.Keys(f.subcategories)
	sort.Ints(ids)
	return ids
}

func (f Filter) Start() time.Time { return f.start }
func (f Filter) End() time.Time   { return f.end }

// Empty reports whether no subcategory is selected. Nothing can match an
// empty filter.
func (f Filter) Empty() bool {
	return len(f.subcategories) == 0
}

// WithSubcategories returns a copy with a new selection.
func (f Filter) WithSubcategories(ids []int) Filter {
	return NewFilter(ids, f.start, f.end)
}

// WithDateRange returns a copy with a new day range.
func (f Filter) WithDateRange(start, end time.Time) Filter {
	return NewFilter(f.Subcategories(), start, end)
}

// Equal reports whether both snapshots select the same incidents.
func (f Filter) Equal(o Filter) bool {
	if !f.start.Equal(o.start) || !f.end.Equal(o.end) || len(f.subcategories) != len(o.subcategories) {
		return false
	}
	for id := range f.subcategories {
		if _, ok := o.subcategories[id]; !ok {
			return false
		}
	}
	return true
}

// FilterState owns the current Filter and pushes every new snapshot to
// its subscribers. Updates are serialised and delivered in order; a
// subscriber must not update the state from inside its callback.
type FilterState struct {
	publishMu sync.Mutex

	mu          sync.RWMutex
	current     Filter
	subscribers map[uint64]func(Filter)
	nextID      uint64
}

// NewFilterState creates a state holding initial.
func NewFilterState(initial Filter) *FilterState {
	return &FilterState{
		current:     initial,
		subscribers: make(map[uint64]func(Filter)),
	}
}

// Current returns the latest snapshot.
func (s *FilterState) Current() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn for future snapshots. The returned func removes it.
func (s *FilterState) Subscribe(fn func(Filter)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// Update replaces the snapshot with fn(current) and notifies subscribers
// when it changed. It reports whether a new snapshot was published.
func (s *FilterState) Update(fn func(Filter) Filter) bool {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	next := fn(s.current)
	if next.Equal(s.current) {
		s.mu.Unlock()
		return false
	}
	s.current = next
	subs := make([]func(Filter), 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return true
}

// SetSubcategories publishes a new selection.
func (s *FilterState) SetSubcategories(ids []int) bool {
	return s.Update(func(f Filter) Filter { return f.WithSubcategories(ids) })
}

// SetDateRange publishes a new day range.
func (s *FilterState) SetDateRange(start, end time.Time) bool {
	return s.Update(func(f Filter) Filter { return f.WithDateRange(start, end) })
}
