package database

import (
	"context"
	"fmt"

	"crimemap/internal/models"

	"github.com/uptrace/bun"
)

// Migrate creates the taxonomy and incident tables when they are missing.
func Migrate(ctx context.Context, db *bun.DB) error {
	tables := []any{
		(*models.Category)(nil),
		(*models.Subcategory)(nil),
		(*models.CategorySubcategory)(nil),
		(*models.Incident)(nil),
	}
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		name    string
		columns []string
	}{
		{"incidents_crime_date_idx", []string{"crime_date"}},
		{"incidents_lat_lng_idx", []string{"latitude", "longitude"}},
		{"incidents_subcategory_idx", []string{"subcategory_id"}},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			TableExpr("incidents").
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
