package apiclient

import (
	"bytes"

	"github.com/niksmo/storefront/internal/core/domain"
)

type (
	product struct {
		ID           int64   `json:"id"`
		Name         string  `json:"name"`
		Description  string  `json:"description"`
		CategoryID   int64   `json:"category_id"`
		CategoryName string  `json:"category_name"`
		Price        float64 `json:"price"`
		Stock        int     `json:"stock"`
		ImageURL     string  `json:"image_url"`
	}

	cartItem struct {
		ProductID        int64   `json:"product_id"`
		Name             string  `json:"name"`
		Price            float64 `json:"price"`
		Quantity         int     `json:"quantity"`
		ItemTotal        float64 `json:"item_total"`
		ItemTotalDisplay string  `json:"item_total_display"`
	}

	cart struct {
		Count        int        `json:"count"`
		Items        []cartItem `json:"items"`
		Total        float64    `json:"total"`
		TotalDisplay string     `json:"total_display"`
	}

	cartAction struct {
		Message   string `json:"message"`
		CartCount int    `json:"cart_count"`
	}

	favoriteToggle struct {
		Message string `json:"message"`
		Count   int    `json:"count"`
		IsAdded bool   `json:"is_added"`
	}

	errorBody struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
)

// favorites accepts both shapes the upstream uses: a bare array of
// products or an object with an items array.
type favorites []product

func (f *favorites) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var ps []product
		if err := json.Unmarshal(data, &ps); err != nil {
			return err
		}
		*f = ps
		return nil
	}

	var wrapped struct {
		Items []product `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*f = wrapped.Items
	return nil
}

func (p product) toDomain() domain.Product {
	return domain.Product{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		Price:        p.Price,
		Stock:        p.Stock,
		ImageURL:     p.ImageURL,
	}
}

func productsToDomain(ps []product) []domain.Product {
	out := make([]domain.Product, len(ps))
	for i := range ps {
		out[i] = ps[i].toDomain()
	}
	return out
}

func (c cart) toDomain() domain.Cart {
	dc := domain.Cart{
		Count:        c.Count,
		Total:        c.Total,
		TotalDisplay: c.TotalDisplay,
	}

	dc.Items = make([]domain.CartItem, len(c.Items))
	for i, it := range c.Items {
		dc.Items[i] = domain.CartItem{
			ProductID:        it.ProductID,
			Name:             it.Name,
			Price:            it.Price,
			Quantity:         it.Quantity,
			ItemTotal:        it.ItemTotal,
			ItemTotalDisplay: it.ItemTotalDisplay,
		}
	}
	return dc
}

func (a cartAction) toDomain() domain.CartActionResult {
	return domain.CartActionResult{Message: a.Message, CartCount: a.CartCount}
}

func (t favoriteToggle) toDomain() domain.FavoriteToggleResult {
	return domain.FavoriteToggleResult{
		Message: t.Message,
		Count:   t.Count,
		IsAdded: t.IsAdded,
	}
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}
	return b.Error
}
