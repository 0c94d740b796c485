package services

import (
	"context"
	"fmt"

	"crimemap/internal/models"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// maxImportErrors caps the error messages echoed back by an import.
const maxImportErrors = 20

type IncidentService struct {
	db   *bun.DB
	logr *zap.Logger
}

func NewIncidentService(db *bun.DB, logr *zap.Logger) *IncidentService {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &IncidentService{db: db, logr: logr}
}

// QueryIncidents returns incidents inside the query's viewport and day
// range, limited to its subcategories when any are given and leaving out
// the excluded ids. Call Validate on the query first.
func (s *IncidentService) QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error) {
	start, endExclusive, err := q.DateRange()
	if err != nil {
		return nil, fmt.Errorf("date range: %w", err)
	}
	b := q.Bounds()

	sel := s.db.NewSelect().
		Model((*models.Incident)(nil)).
		Where("i.latitude BETWEEN ? AND ?", b.South, b.North).
		Where("i.crime_date >= ?", start).
		Where("i.crime_date < ?", endExclusive)

	if b.Wraps() {
		sel = sel.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("i.longitude >= ?", b.West).WhereOr("i.longitude <= ?", b.East)
		})
	} else {
		sel = sel.Where("i.longitude BETWEEN ? AND ?", b.West, b.East)
	}

	if len(q.Subcategories) > 0 {
		sel = sel.Where("i.subcategory_id IN (?)", bun.In(q.Subcategories))
	}
	if len(q.ExcludedIDs) > 0 {
		sel = sel.Where("i.id NOT IN (?)", bun.In(q.ExcludedIDs))
	}

	var incidents []models.Incident
	if err := sel.OrderExpr("i.id ASC").Scan(ctx, &incidents); err != nil {
		return nil, err
	}
	for i := range incidents {
		incidents[i].OccurredAt = incidents[i].OccurredAt.UTC()
	}
	return incidents, nil
}

// ImportIncidents validates records and inserts the valid ones. Records
// whose id already exists are left untouched.
func (s *IncidentService) ImportIncidents(ctx context.Context, records []models.IncidentRecord) (*models.ImportResult, error) {
	result := &models.ImportResult{}
	incidents := make([]models.Incident, 0, len(records))
	seen := make(map[int]struct{}, len(records))

	for _, rec := range records {
		inc, err := rec.Incident()
		if err != nil {
			result.Rejected++
			if len(result.Errors) < maxImportErrors {
				result.Errors = append(result.Errors, err.Error())
			}
			s.logr.Warn("rejected incident record", zap.Error(err))
			continue
		}
		if _, dup := seen[inc.ID]; dup {
			continue
		}
		seen[inc.ID] = struct{}{}
		incidents = append(incidents, inc)
	}

	if len(incidents) == 0 {
		return result, nil
	}

	res, err := s.db.NewInsert().
		Model(&incidents).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert incidents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = int64(len(incidents))
	}
	result.Imported = int(n)

	s.logr.Info("incidents imported",
		zap.Int("imported", result.Imported),
		zap.Int("rejected", result.Rejected))
	return result, nil
}
