package services

import (
	"context"
	"testing"
	"time"

	"crimemap/internal/database"
	"crimemap/internal/models"

	"github.com/uptrace/bun"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func ptr[T any](v T) *T { return &v }

func record(id int, lat, lng float64, sub int, day string) models.IncidentRecord {
	return models.IncidentRecord{ID: ptr(id), Latitude: ptr(lat), Longitude: ptr(lng), SubcategoryID: ptr(sub), CrimeDate: day}
}

func seedIncidents(t *testing.T, svc *IncidentService) {
	t.Helper()
	res, err := svc.ImportIncidents(context.Background(), []models.IncidentRecord{
		record(1, -23.55, -46.63, 5, "2024-01-01"),
		record(2, -23.56, -46.64, 6, "2024-01-05"),
		record(3, -23.57, -46.65, 5, "2024-01-10T21:30:00Z"),
		record(4, -23.58, -46.66, 5, "2024-01-11"),
		record(5, 40.71, -74.00, 5, "2024-01-03"),
		record(6, 10.0, 179.5, 5, "2024-01-03"),
		record(7, 10.0, -179.5, 5, "2024-01-03"),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.Imported != 7 {
		t.Fatalf("Expected 7 imported, got %+v", res)
	}
}

func query(b models.Bounds, start, end string, subs, excluded []int) models.IncidentQuery {
	s, _ := time.Parse(models.DateLayout, start)
	e, _ := time.Parse(models.DateLayout, end)
	return models.NewIncidentQuery(b, s, e, subs, excluded)
}

func ids(incs []models.Incident) []int {
	out := make([]int, len(incs))
	for i, inc := range incs {
		out[i] = inc.ID
	}
	return out
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

var saoPaulo = models.Bounds{North: -23.4, South: -23.7, East: -46.4, West: -46.8}

func TestQueryIncidents(t *testing.T) {
	svc := NewIncidentService(newTestDB(t), nil)
	seedIncidents(t, svc)

	tests := []struct {
		name string
		q    models.IncidentQuery
		want []int
	}{
		{"viewport and inclusive range", query(saoPaulo, "2024-01-01", "2024-01-10", nil, nil), []int{1, 2, 3}},
		{"subcategory filter", query(saoPaulo, "2024-01-01", "2024-01-10", []int{5}, nil), []int{1, 3}},
		{"excluded ids", query(saoPaulo, "2024-01-01", "2024-01-31", nil, []int{1, 2}), []int{3, 4}},
		{"single day", query(saoPaulo, "2024-01-10", "2024-01-10", nil, nil), []int{3}},
		{"antimeridian", query(models.Bounds{North: 20, South: 0, East: -170, West: 170}, "2024-01-01", "2024-01-31", nil, nil), []int{6, 7}},
		{"nothing in range", query(saoPaulo, "2023-01-01", "2023-12-31", nil, nil), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.QueryIncidents(context.Background(), tt.q)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !equalInts(ids(got), tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, ids(got))
			}
		})
	}
}

func TestQueryIncidentsReturnsFields(t *testing.T) {
	svc := NewIncidentService(newTestDB(t), nil)
	seedIncidents(t, svc)

	got, err := svc.QueryIncidents(context.Background(), query(saoPaulo, "2024-01-10", "2024-01-10", nil, nil))
	if err != nil || len(got) != 1 {
		t.Fatalf("Expected one incident, got %v (%v)", got, err)
	}
	inc := got[0]
	if inc.SubcategoryID != 5 || inc.Latitude != -23.57 || inc.Longitude != -46.65 {
		t.Errorf("Unexpected incident %+v", inc)
	}
	want := time.Date(2024, 1, 10, 21, 30, 0, 0, time.UTC)
	if !inc.OccurredAt.Equal(want) {
		t.Errorf("Expected %v, got %v", want, inc.OccurredAt)
	}
}

func TestImportIncidentsRejectsAndDeduplicates(t *testing.T) {
	svc := NewIncidentService(newTestDB(t), nil)
	seedIncidents(t, svc)

	res, err := svc.ImportIncidents(context.Background(), []models.IncidentRecord{
		record(1, 0, 0, 9, "2030-01-01"),
		record(8, -23.5, -46.6, 5, "2024-01-02"),
		record(8, -23.5, -46.6, 6, "2024-01-02"),
		{ID: ptr(9), Latitude: ptr(1.0), CrimeDate: "2024-01-02"},
		record(10, 95, 0, 5, "2024-01-02"),
		record(11, 0, 0, 5, "yesterday"),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Imported != 1 || res.Rejected != 3 || len(res.Errors) != 3 {
		t.Errorf("Expected 1 imported and 3 rejected, got %+v", res)
	}

	got, err := svc.QueryIncidents(context.Background(), query(saoPaulo, "2024-01-01", "2024-01-31", nil, nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !equalInts(ids(got), []int{1, 2, 3, 4, 8}) {
		t.Errorf("Unexpected ids %v", ids(got))
	}
	if got[0].SubcategoryID != 5 {
		t.Errorf("Expected existing id 1 untouched, got %+v", got[0])
	}
}

func seedTaxonomy(t *testing.T, db *bun.DB) {
	t.Helper()
	ctx := context.Background()
	cats := []models.Category{{ID: 2, Name: "violence"}, {ID: 1, Name: "theft"}}
	subs := []models.Subcategory{
		{ID: 5, Name: "pickpocket", DisplayName: "Pickpocketing"},
		{ID: 6, Name: "burglary", DisplayName: "Burglary"},
		{ID: 7, Name: "assault"},
	}
	links := []models.CategorySubcategory{
		{CategoryID: 1, SubcategoryID: 6},
		{CategoryID: 1, SubcategoryID: 5},
		{CategoryID: 2, SubcategoryID: 7},
	}
	for _, m := range []any{&cats, &subs, &links} {
		if _, err := db.NewInsert().Model(m).Exec(ctx); err != nil {
			t.Fatalf("seed taxonomy: %v", err)
		}
	}
}

func TestGetCategoriesWithSubcategories(t *testing.T) {
	db := newTestDB(t)
	seedTaxonomy(t, db)
	svc := NewCategoryService(db, time.Minute)

	tree, err := svc.GetCategoriesWithSubcategories(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(tree) != 2 || tree[0].ID != 1 || tree[1].ID != 2 {
		t.Fatalf("Expected categories ordered by id, got %+v", tree)
	}
	if len(tree[0].Subcategories) != 2 || tree[0].Subcategories[0].ID != 5 {
		t.Errorf("Unexpected theft subcategories %+v", tree[0].Subcategories)
	}
	if tree[1].Subcategories[0].DisplayName != "assault" {
		t.Errorf("Expected display name to fall back to name, got %q", tree[1].Subcategories[0].DisplayName)
	}
	if got := models.SubcategoryIDs(tree); !equalInts(got, []int{5, 6, 7}) {
		t.Errorf("Unexpected subcategory ids %v", got)
	}
}

func TestCategoryTreeIsCached(t *testing.T) {
	db := newTestDB(t)
	seedTaxonomy(t, db)
	svc := NewCategoryService(db, time.Minute)

	if _, err := svc.GetCategoriesWithSubcategories(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := db.NewDelete().TableExpr("category_subcategories").Where("1 = 1").Exec(context.Background()); err != nil {
		t.Fatalf("delete links: %v", err)
	}

	tree, _ := svc.GetCategoriesWithSubcategories(context.Background())
	if len(tree) != 2 {
		t.Errorf("Expected cached tree, got %+v", tree)
	}

	svc.Invalidate()
	tree, _ = svc.GetCategoriesWithSubcategories(context.Background())
	if len(tree) != 0 {
		t.Errorf("Expected empty tree after invalidation, got %+v", tree)
	}
}
