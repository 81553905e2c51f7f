package port

import (
	"context"
	"errors"

	"github.com/niksmo/storefront/internal/core/domain"
)

var ErrSessionNotFound = errors.New("session not found")

type closer interface {
	Close()
}

// A CatalogAPI is the upstream catalog, cart and favorites API.
//
// Implementations send cookies with every request and record the
// cookies set by the upstream back into the same map.
type CatalogAPI interface {
	SearchProducts(context.Context, domain.UpstreamCookies, domain.ProductQuery) ([]domain.Product, error)
	Cart(context.Context, domain.UpstreamCookies) (domain.Cart, error)
	Favorites(context.Context, domain.UpstreamCookies) ([]domain.Product, error)
	AddToCart(context.Context, domain.UpstreamCookies, int64) (domain.CartActionResult, error)
	ClearCart(context.Context, domain.UpstreamCookies) (domain.CartActionResult, error)
	ToggleFavorite(context.Context, domain.UpstreamCookies, int64) (domain.FavoriteToggleResult, error)
}

type SessionStorage interface {
	closer
	LoadSession(context.Context, string) (*domain.Session, error)
	SaveSession(context.Context, *domain.Session) error
}

type ClientEventsProducer interface {
	closer
	ProduceEvent(context.Context, domain.ClientEvent) error
}

type InitialStateLoader interface {
	LoadInitialState(context.Context, *domain.Session) domain.InitialState
}

type PageLoader interface {
	LoadPage(context.Context, *domain.Session, domain.ProductQuery) domain.Page
}

type ProductsSearcher interface {
	SearchProducts(context.Context, *domain.Session, domain.ProductQuery) ([]domain.Product, error)
}

type CartViewer interface {
	Cart(context.Context, *domain.Session) (domain.Cart, error)
}

type CartEditor interface {
	AddToCart(context.Context, *domain.Session, int64) (domain.CartActionResult, error)
	ClearCart(context.Context, *domain.Session) (domain.CartActionResult, error)
}

type FavoriteToggler interface {
	ToggleFavorite(context.Context, *domain.Session, int64) (domain.FavoriteToggleResult, error)
}

// A Storefront is everything the inbound adapters need from the core.
type Storefront interface {
	InitialStateLoader
	PageLoader
	ProductsSearcher
	CartViewer
	CartEditor
	FavoriteToggler
}
