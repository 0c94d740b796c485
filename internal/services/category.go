package services

import (
	"context"
	"fmt"
	"time"

	"crimemap/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/uptrace/bun"
)

const categoryTreeKey = "tree"

type CategoryService struct {
	db    *bun.DB
	cache *expirable.LRU[string, []models.Category]
}

// NewCategoryService caches the category tree for ttl; a zero ttl disables
// the cache.
func NewCategoryService(db *bun.DB, ttl time.Duration) *CategoryService {
	s := &CategoryService{db: db}
	if ttl > 0 {
		s.cache = expirable.NewLRU[string, []models.Category](1, nil, ttl)
	}
	return s
}

// GetCategoriesWithSubcategories returns every category with its
// subcategories, ordered by id.
func (s *CategoryService) GetCategoriesWithSubcategories(ctx context.Context) ([]models.Category, error) {
	if s.cache != nil {
		if tree, ok := s.cache.Get(categoryTreeKey); ok {
			return tree, nil
		}
	}

	var rows []struct {
		CategoryID      int    `bun:"category_id"`
		CategoryName    string `bun:"category_name"`
		SubcategoryID   int    `bun:"subcategory_id"`
		SubcategoryName string `bun:"subcategory_name"`
		DisplayName     string `bun:"display_name"`
	}

	err := s.db.NewSelect().
		ColumnExpr("c.id AS category_id").
		ColumnExpr("c.name AS category_name").
		ColumnExpr("sc.id AS subcategory_id").
		ColumnExpr("sc.name AS subcategory_name").
		ColumnExpr("COALESCE(sc.display_name, sc.name) AS display_name").
		TableExpr("categories AS c").
		Join("JOIN category_subcategories AS cs ON cs.category_id = c.id").
		Join("JOIN subcategories AS sc ON sc.id = cs.subcategory_id").
		OrderExpr("c.id ASC, sc.id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}

	tree := []models.Category{}
	index := make(map[int]int)
	for _, row := range rows {
		pos, ok := index[row.CategoryID]
		if !ok {
			pos = len(tree)
			index[row.CategoryID] = pos
			tree = append(tree, models.Category{
				ID:            row.CategoryID,
				Name:          row.CategoryName,
				Subcategories: []models.Subcategory{},
			})
		}
		tree[pos].Subcategories = append(tree[pos].Subcategories, models.Subcategory{
			ID:          row.SubcategoryID,
			Name:        row.SubcategoryName,
			DisplayName: row.DisplayName,
		})
	}

	if s.cache != nil {
		s.cache.Add(categoryTreeKey, tree)
	}
	return tree, nil
}

// Invalidate drops the cached tree.
func (s *CategoryService) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}
