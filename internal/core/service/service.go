package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/sourcegraph/conc"
)

var _ port.Storefront = (*Service)(nil)

type Service struct {
	api    port.CatalogAPI
	events port.ClientEventsProducer
	now    func() time.Time
}

func New(api port.CatalogAPI, events port.ClientEventsProducer) Service {
	return Service{api: api, events: events, now: time.Now}
}

// LoadInitialState fetches the cart and the favorites in parallel.
//
// The halves fail independently. On favorites success the session's
// cached favorite ids are replaced by the upstream list.
func (s Service) LoadInitialState(
	ctx context.Context, sess *domain.Session,
) domain.InitialState {
	const op = "Service.LoadInitialState"

	var (
		st   domain.InitialState
		favs []domain.Product
	)
	s.fanOut(sess,
		s.loadCartCount(ctx, op, &st),
		s.loadFavorites(ctx, op, &st, &favs),
	)
	s.settleInitialState(op, sess, st, favs)
	return st
}

// LoadPage runs [Service.LoadInitialState] and the product search in
// parallel. Cards are rendered against the freshly loaded favorites.
//
// A filtered load also fetches the unfiltered catalog for the category
// filters. If that fetch fails the filters fall back to the categories
// of the filtered products.
func (s Service) LoadPage(
	ctx context.Context, sess *domain.Session, q domain.ProductQuery,
) domain.Page {
	const op = "Service.LoadPage"

	var (
		page    domain.Page
		favs    []domain.Product
		catalog []domain.Product
		catErr  error
	)
	calls := []func(domain.UpstreamCookies){
		s.loadCartCount(ctx, op, &page.State),
		s.loadFavorites(ctx, op, &page.State, &favs),
		func(c domain.UpstreamCookies) {
			ps, err := s.api.SearchProducts(ctx, c, q)
			if err != nil {
				page.ProductsErr = fmt.Errorf("%s: %w", op, err)
				return
			}
			page.Products = ps
		},
	}
	filtered := q != domain.ProductQuery{}
	if filtered {
		calls = append(calls, func(c domain.UpstreamCookies) {
			catalog, catErr = s.api.SearchProducts(ctx, c, domain.ProductQuery{})
		})
	}
	s.fanOut(sess, calls...)

	s.settleInitialState(op, sess, page.State, favs)

	switch {
	case !filtered:
		page.Categories = domain.Categories(page.Products)
	case catErr != nil:
		slog.Warn("failed to load category filters",
			"op", op, "session", sess.ID, "err", catErr,
		)
		page.Categories = domain.Categories(page.Products)
	default:
		page.Categories = domain.Categories(catalog)
	}

	s.publishSearch(ctx, sess, q, page.ProductsErr == nil)
	return page
}

func (s Service) loadCartCount(
	ctx context.Context, op string, st *domain.InitialState,
) func(domain.UpstreamCookies) {
	return func(c domain.UpstreamCookies) {
		cart, err := s.api.Cart(ctx, c)
		if err != nil {
			st.CartErr = fmt.Errorf("%s: %w", op, err)
			return
		}
		st.CartCount = cart.Count
	}
}

func (s Service) loadFavorites(
	ctx context.Context,
	op string,
	st *domain.InitialState,
	favs *[]domain.Product,
) func(domain.UpstreamCookies) {
	return func(c domain.UpstreamCookies) {
		ps, err := s.api.Favorites(ctx, c)
		if err != nil {
			st.FavoritesErr = fmt.Errorf("%s: %w", op, err)
			return
		}
		*favs = ps
		st.FavoritesCount = len(ps)
	}
}

func (s Service) settleInitialState(
	op string, sess *domain.Session, st domain.InitialState, favs []domain.Product,
) {
	log := slog.With("op", op, "session", sess.ID)

	if st.CartErr != nil {
		log.Error("failed to load cart", "err", st.CartErr)
	}
	if st.FavoritesErr != nil {
		log.Error("failed to load favorites", "err", st.FavoritesErr)
		return
	}
	sess.FavoriteIDs = domain.FavoriteIDsOf(favs)
}

// fanOut runs calls concurrently, each against its own copy of the
// session's upstream cookies, and folds the changes back afterwards.
func (s Service) fanOut(
	sess *domain.Session, calls ...func(domain.UpstreamCookies),
) {
	base := sess.Cookies().Clone()
	clones := make([]domain.UpstreamCookies, len(calls))

	var wg conc.WaitGroup
	for i, call := range calls {
		clones[i] = base.Clone()
		wg.Go(func() { call(clones[i]) })
	}
	wg.Wait()

	for _, c := range clones {
		applyCookies(sess.Cookies(), base, c)
	}
}

func (s Service) SearchProducts(
	ctx context.Context, sess *domain.Session, q domain.ProductQuery,
) ([]domain.Product, error) {
	const op = "Service.SearchProducts"

	ps, err := s.api.SearchProducts(ctx, sess.Cookies(), q)
	s.publishSearch(ctx, sess, q, err == nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ps, nil
}

func (s Service) Cart(
	ctx context.Context, sess *domain.Session,
) (domain.Cart, error) {
	const op = "Service.Cart"

	cart, err := s.api.Cart(ctx, sess.Cookies())
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return cart, nil
}

func (s Service) AddToCart(
	ctx context.Context, sess *domain.Session, productID int64,
) (domain.CartActionResult, error) {
	const op = "Service.AddToCart"

	res, err := s.api.AddToCart(ctx, sess.Cookies(), productID)
	s.publish(ctx, domain.ClientEvent{
		SessionID: sess.ID,
		Action:    domain.ActionAddToCart,
		ProductID: productID,
		Succeeded: err == nil,
	})
	if err != nil {
		return domain.CartActionResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (s Service) ClearCart(
	ctx context.Context, sess *domain.Session,
) (domain.CartActionResult, error) {
	const op = "Service.ClearCart"

	res, err := s.api.ClearCart(ctx, sess.Cookies())
	s.publish(ctx, domain.ClientEvent{
		SessionID: sess.ID,
		Action:    domain.ActionClearCart,
		Succeeded: err == nil,
	})
	if err != nil {
		return domain.CartActionResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ToggleFavorite flips the product on the upstream, patches the cached ids
// with the reported state and then resyncs them from the upstream.
func (s Service) ToggleFavorite(
	ctx context.Context, sess *domain.Session, productID int64,
) (domain.FavoriteToggleResult, error) {
	const op = "Service.ToggleFavorite"

	res, err := s.api.ToggleFavorite(ctx, sess.Cookies(), productID)
	s.publish(ctx, domain.ClientEvent{
		SessionID: sess.ID,
		Action:    domain.ActionToggleFavorite,
		ProductID: productID,
		Succeeded: err == nil,
	})
	if err != nil {
		return domain.FavoriteToggleResult{}, fmt.Errorf("%s: %w", op, err)
	}

	sess.FavoriteIDs = sess.FavoriteIDs.With(productID, res.IsAdded)
	s.LoadInitialState(ctx, sess)
	return res, nil
}

func (s Service) publishSearch(
	ctx context.Context, sess *domain.Session, q domain.ProductQuery, ok bool,
) {
	s.publish(ctx, domain.ClientEvent{
		SessionID:  sess.ID,
		Action:     domain.ActionSearch,
		Query:      q.Query,
		CategoryID: q.CategoryID,
		Succeeded:  ok,
	})
}

func (s Service) publish(ctx context.Context, ev domain.ClientEvent) {
	const op = "Service.publish"

	ev.OccurredAt = s.now().UTC()
	if err := s.events.ProduceEvent(ctx, ev); err != nil {
		slog.Warn("failed to publish client event",
			"op", op, "action", ev.Action, "err", err,
		)
	}
}

// applyCookies copies into dst the cookies a fan-out call changed in its
// clone of base, and drops the ones it deleted.
func applyCookies(dst, base, clone domain.UpstreamCookies) {
	for k := range base {
		if _, ok := clone[k]; !ok {
			delete(dst, k)
		}
	}
	for k, v := range clone {
		if bv, ok := base[k]; !ok || bv != v {
			dst[k] = v
		}
	}
}
