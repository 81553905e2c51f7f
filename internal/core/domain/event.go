package domain

import "time"

type ClientAction string

const (
	ActionSearch         ClientAction = "search"
	ActionAddToCart      ClientAction = "add_to_cart"
	ActionClearCart      ClientAction = "clear_cart"
	ActionToggleFavorite ClientAction = "toggle_favorite"
)

// A ClientEvent records one shopper action against the upstream.
type ClientEvent struct {
	SessionID  string
	Action     ClientAction
	ProductID  int64
	Query      string
	CategoryID string
	Succeeded  bool
	OccurredAt time.Time
}
