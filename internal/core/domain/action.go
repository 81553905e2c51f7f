package domain

type (
	// A CartActionResult is the upstream reply to add-to-cart and
	// clear-cart.
	CartActionResult struct {
		Message   string
		CartCount int
	}

	// A FavoriteToggleResult is the upstream reply to toggle-favorite.
	FavoriteToggleResult struct {
		Message string
		Count   int
		IsAdded bool
	}

	// An InitialState carries the badge counts loaded on page load.
	//
	// Each half fails independently: a nil error marks the
	// corresponding count as valid.
	InitialState struct {
		CartCount      int
		CartErr        error
		FavoritesCount int
		FavoritesErr   error
	}
)

// A Page is what the first page load needs: the badge counts, the
// product list and the category filters, fetched together.
//
// Categories come from the unfiltered catalog so a filtered first load
// still offers every filter.
type Page struct {
	State       InitialState
	Products    []Product
	ProductsErr error
	Categories  []Category
}
