package models

import "github.com/uptrace/bun"

// Category is a top-level crime category with its subcategories.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID            int           `bun:"id,pk" json:"id"`
	Name          string        `bun:"name,notnull" json:"name"`
	Subcategories []Subcategory `bun:"-" json:"subcategories"`
}

type Subcategory struct {
	bun.BaseModel `bun:"table:subcategories,alias:sc"`

	ID          int    `bun:"id,pk" json:"id"`
	Name        string `bun:"name,notnull" json:"name"`
	DisplayName string `bun:"display_name" json:"display_name"`
}

// CategorySubcategory links subcategories to categories.
type CategorySubcategory struct {
	bun.BaseModel `bun:"table:category_subcategories,alias:cs"`

	CategoryID    int `bun:"category_id,pk"`
	SubcategoryID int `bun:"subcategory_id,pk"`
}

// SubcategoryIDs flattens the tree into the ids of every subcategory.
func SubcategoryIDs(categories []Category) []int {
	var ids []int
	for _, c := range categories {
		for _, sc := range c.Subcategories {
			ids = append(ids, sc.ID)
		}
	}
	return ids
}
