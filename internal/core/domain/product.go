package domain

import "slices"

type (
	Product struct {
		ID           int64
		Name         string
		Description  string
		CategoryID   int64
		CategoryName string
		Price        float64
		Stock        int
		ImageURL     string
	}

	// A ProductQuery narrows the product search.
	//
	// Empty fields mean "no filter".
	ProductQuery struct {
		CategoryID string
		Query      string
	}

	Category struct {
		ID   int64
		Name string
	}
)

func (p Product) InStock() bool {
	return p.Stock > 0
}

// Categories returns the distinct categories of ps in order of first
// appearance. Products without a category id are skipped.
func Categories(ps []Product) []Category {
	var cs []Category
	for _, p := range ps {
		if p.CategoryID == 0 {
			continue
		}
		c := Category{ID: p.CategoryID, Name: p.CategoryName}
		if slices.Contains(cs, c) {
			continue
		}
		cs = append(cs, c)
	}
	return cs
}
