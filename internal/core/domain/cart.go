package domain

type (
	// A Cart is a snapshot of the upstream cart. Totals are never
	// recomputed locally.
	Cart struct {
		Count        int
		Items        []CartItem
		Total        float64
		TotalDisplay string
	}

	CartItem struct {
		ProductID        int64
		Name             string
		Price            float64
		Quantity         int
		ItemTotal        float64
		ItemTotalDisplay string
	}
)
