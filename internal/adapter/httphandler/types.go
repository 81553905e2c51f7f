package httphandler

import (
	"github.com/niksmo/storefront/internal/adapter/render"
	"github.com/niksmo/storefront/internal/core/domain"
)

type (
	Product struct {
		ID           int64   `json:"id"`
		Name         string  `json:"name"`
		Description  string  `json:"description"`
		CategoryID   int64   `json:"category_id"`
		CategoryName string  `json:"category_name"`
		Price        float64 `json:"price"`
		Stock        int     `json:"stock"`
		ImageURL     string  `json:"image_url"`
		IsFavorite   bool    `json:"is_favorite"`
	}

	Cart struct {
		Count        int        `json:"count"`
		Items        []CartItem `json:"items"`
		Total        float64    `json:"total"`
		TotalDisplay string     `json:"total_display"`
	}

	CartItem struct {
		ProductID        int64   `json:"product_id"`
		Name             string  `json:"name"`
		Price            float64 `json:"price"`
		Quantity         int     `json:"quantity"`
		ItemTotal        float64 `json:"item_total"`
		ItemTotalDisplay string  `json:"item_total_display"`
	}

	CartPanel struct {
		Open bool  `json:"open"`
		Cart *Cart `json:"cart,omitempty"`
	}

	// A State holds the badge counts, null when the fetch failed.
	State struct {
		CartCount      *int `json:"cart_count"`
		FavoritesCount *int `json:"favorites_count"`
	}

	CartActionResult struct {
		Message   string `json:"message"`
		CartCount int    `json:"cart_count"`
	}

	FavoriteToggleResult struct {
		Message string `json:"message"`
		Count   int    `json:"count"`
		IsAdded bool   `json:"is_added"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)

func productsFromDomain(ps []domain.Product, favs domain.FavoriteIDs) []Product {
	out := make([]Product, len(ps))
	for i, p := range ps {
		out[i] = Product{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			CategoryID:   p.CategoryID,
			CategoryName: p.CategoryName,
			Price:        p.Price,
			Stock:        p.Stock,
			ImageURL:     p.ImageURL,
			IsFavorite:   favs.Contains(p.ID),
		}
	}
	return out
}

// cartFromDomain fills the display strings the way the cart panel shows
// them.
func cartFromDomain(c domain.Cart) Cart {
	items := make([]CartItem, len(c.Items))
	for i, it := range c.Items {
		items[i] = CartItem{
			ProductID:        it.ProductID,
			Name:             it.Name,
			Price:            it.Price,
			Quantity:         it.Quantity,
			ItemTotal:        it.ItemTotal,
			ItemTotalDisplay: render.Money(it.ItemTotalDisplay, it.ItemTotal),
		}
	}
	return Cart{
		Count:        c.Count,
		Items:        items,
		Total:        c.Total,
		TotalDisplay: render.CartTotal(c),
	}
}

func countsFromState(st domain.InitialState) render.Counts {
	var c render.Counts
	if st.CartErr == nil {
		c.Cart = &st.CartCount
	}
	if st.FavoritesErr == nil {
		c.Favorites = &st.FavoritesCount
	}
	return c
}

func stateFromCounts(c render.Counts) State {
	return State{CartCount: c.Cart, FavoritesCount: c.Favorites}
}
