package httphandler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/niksmo/storefront/internal/adapter/render"
	"github.com/niksmo/storefront/internal/adapter/storage"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type storefrontMock struct {
	mock.Mock
}

func (m *storefrontMock) LoadInitialState(
	ctx context.Context, sess *domain.Session,
) domain.InitialState {
	return m.Called(ctx, sess).Get(0).(domain.InitialState)
}

func (m *storefrontMock) LoadPage(
	ctx context.Context, sess *domain.Session, q domain.ProductQuery,
) domain.Page {
	return m.Called(ctx, sess, q).Get(0).(domain.Page)
}

func (m *storefrontMock) SearchProducts(
	ctx context.Context, sess *domain.Session, q domain.ProductQuery,
) ([]domain.Product, error) {
	args := m.Called(ctx, sess, q)
	ps, _ := args.Get(0).([]domain.Product)
	return ps, args.Error(1)
}

func (m *storefrontMock) Cart(
	ctx context.Context, sess *domain.Session,
) (domain.Cart, error) {
	args := m.Called(ctx, sess)
	return args.Get(0).(domain.Cart), args.Error(1)
}

func (m *storefrontMock) AddToCart(
	ctx context.Context, sess *domain.Session, id int64,
) (domain.CartActionResult, error) {
	args := m.Called(ctx, sess, id)
	return args.Get(0).(domain.CartActionResult), args.Error(1)
}

func (m *storefrontMock) ClearCart(
	ctx context.Context, sess *domain.Session,
) (domain.CartActionResult, error) {
	args := m.Called(ctx, sess)
	return args.Get(0).(domain.CartActionResult), args.Error(1)
}

func (m *storefrontMock) ToggleFavorite(
	ctx context.Context, sess *domain.Session, id int64,
) (domain.FavoriteToggleResult, error) {
	args := m.Called(ctx, sess, id)
	return args.Get(0).(domain.FavoriteToggleResult), args.Error(1)
}

type upstreamErr struct {
	msg string
}

func (e upstreamErr) Error() string           { return "upstream status 400: " + e.msg }
func (e upstreamErr) UpstreamMessage() string { return e.msg }

var errTransport = errors.New("connection refused")

func setupRouter(t *testing.T) (http.Handler, *storefrontMock) {
	t.Helper()

	sf := new(storefrontMock)
	t.Cleanup(func() { sf.AssertExpectations(t) })

	renderer, err := render.New("")
	require.NoError(t, err)
	catalog := render.NewCatalog("en")
	store := storage.NewMemoryStorage(time.Hour)

	router := NewRouter(
		NewHandler(sf, renderer, catalog),
		NewSessions(store, catalog, SessionConfig{}),
	)
	return router, sf
}

type reqOpt func(*http.Request)

func htmx(r *http.Request) {
	r.Header.Set("HX-Request", "true")
}

func acceptJSON(r *http.Request) {
	r.Header.Set("Accept", "application/json")
}

func withCookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) {
		if c != nil {
			r.AddCookie(c)
		}
	}
}

func serve(
	h http.Handler, method, target string, opts ...reqOpt,
) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Accept-Language", "en-US")
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultSessionCookie {
			return c
		}
	}
	t.Fatal("session cookie is not set")
	return nil
}

func alertOf(rec *httptest.ResponseRecorder) string {
	return rec.Header().Get("HX-Trigger")
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)

	rec := serve(router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPage(t *testing.T) {
	t.Run("RendersAndStartsSession", func(t *testing.T) {
		router, sf := setupRouter(t)
		q := domain.ProductQuery{CategoryID: "10", Query: "tea"}

		sf.On("LoadPage", mock.Anything, mock.Anything, q).
			Run(func(args mock.Arguments) {
				args.Get(1).(*domain.Session).FavoriteIDs = domain.FavoriteIDs{2}
			}).
			Return(domain.Page{
				State: domain.InitialState{CartCount: 3, FavoritesCount: 1},
				Products: []domain.Product{
					{ID: 1, Name: "Tea", CategoryID: 10, CategoryName: "Drinks", Stock: 1},
					{ID: 2, Name: "Mate", CategoryID: 10, CategoryName: "Drinks", Stock: 0},
				},
				Categories: []domain.Category{
					{ID: 10, Name: "Drinks"},
					{ID: 20, Name: "Bakery"},
				},
			})

		rec := serve(router, http.MethodGet, "/?query=tea&category_id=10")
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()

		assert.Contains(t, body, `<html lang="en" dir="ltr">`)
		assert.Contains(t, body, `<span id="cart-count">3</span>`)
		assert.Contains(t, body, `<span id="favorites-count">1</span>`)
		assert.Equal(t, 1, strings.Count(body, "remove-favorite-btn"))
		assert.Contains(t, body, `value="10" checked`)
		assert.Contains(t, body, `value="20">`)

		c := sessionCookie(t, rec)
		assert.Zero(t, c.MaxAge)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, "/", c.Path)
	})

	t.Run("ArabicLocale", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("LoadPage", mock.Anything, mock.Anything, mock.Anything).
			Return(domain.Page{ProductsErr: errTransport})

		rec := serve(router, http.MethodGet, "/", func(r *http.Request) {
			r.Header.Set("Accept-Language", "ar-SA,ar;q=0.9")
		})
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()

		assert.Contains(t, body, `dir="rtl"`)
		assert.Contains(t, body, "عفواً، حدث خطأ أثناء تحميل المنتجات.")
	})
}

func TestSessionIsKeptBetweenRequests(t *testing.T) {
	router, sf := setupRouter(t)

	var firstID string
	sf.On("LoadPage", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sess := args.Get(1).(*domain.Session)
			firstID = sess.ID
			sess.FavoriteIDs = domain.FavoriteIDs{7}
		}).
		Return(domain.Page{})
	sf.On("SearchProducts", mock.Anything, mock.MatchedBy(
		func(sess *domain.Session) bool { return sess.ID == firstID },
	), domain.ProductQuery{}).
		Return([]domain.Product{{ID: 7, Name: "Tea", Stock: 2}}, nil)

	rec := serve(router, http.MethodGet, "/")
	cookie := sessionCookie(t, rec)
	assert.Equal(t, firstID, cookie.Value)

	rec = serve(router, http.MethodGet, "/fragments/products", htmx, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "toggle-favorite-btn remove-favorite-btn")
	assert.Empty(t, rec.Result().Cookies())
}

func TestUnknownSessionCookieStartsNewSession(t *testing.T) {
	router, sf := setupRouter(t)
	sf.On("LoadInitialState", mock.Anything, mock.Anything).
		Return(domain.InitialState{})

	stale := &http.Cookie{Name: DefaultSessionCookie, Value: "not-a-uuid"}
	rec := serve(router, http.MethodGet, "/fragments/state", htmx, withCookie(stale))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "not-a-uuid", sessionCookie(t, rec).Value)
}

func TestProductsFragment(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("SearchProducts", mock.Anything, mock.Anything,
			domain.ProductQuery{Query: "zzz"}).
			Return([]domain.Product{}, nil)

		rec := serve(router, http.MethodGet, "/fragments/products?query=zzz", htmx)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "No products match the selected criteria.")
	})

	t.Run("Error", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("SearchProducts", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errTransport)

		rec := serve(router, http.MethodGet, "/fragments/products", htmx)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `class="products-error"`)
	})

	t.Run("JSON", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("SearchProducts", mock.Anything, mock.Anything, mock.Anything).
			Return([]domain.Product{{ID: 1, Name: "Tea", Price: 2.5, Stock: 4}}, nil)

		rec := serve(router, http.MethodGet, "/fragments/products", acceptJSON)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{
			"id": 1, "name": "Tea", "description": "", "category_id": 0,
			"category_name": "", "price": 2.5, "stock": 4, "image_url": "",
			"is_favorite": false
		}]`, rec.Body.String())
	})

	t.Run("JSONError", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("SearchProducts", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errTransport)

		rec := serve(router, http.MethodGet, "/fragments/products", acceptJSON)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestCartFragment(t *testing.T) {
	t.Run("Render", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("Cart", mock.Anything, mock.Anything).Return(domain.Cart{
			Count: 2,
			Items: []domain.CartItem{{Name: "Tea", Quantity: 2, ItemTotal: 5}},
			Total: 5,
		}, nil)

		rec := serve(router, http.MethodGet, "/fragments/cart", htmx)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Tea (x2)")
		assert.Contains(t, body, `<span id="cart-total">$5.00</span>`)
		assert.Contains(t, body, `<span id="cart-count" hx-swap-oob="true">2</span>`)
	})

	t.Run("Error", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("Cart", mock.Anything, mock.Anything).Return(domain.Cart{}, errTransport)

		rec := serve(router, http.MethodGet, "/fragments/cart", htmx)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t,
			`{"storefront:alert":"Something went wrong while loading the cart."}`,
			alertOf(rec),
		)
	})

	t.Run("JSON", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("Cart", mock.Anything, mock.Anything).Return(domain.Cart{}, nil)

		rec := serve(router, http.MethodGet, "/fragments/cart", acceptJSON)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"count":0,"items":[],"total":0,"total_display":"$0.00"}`,
			rec.Body.String(),
		)
	})

	t.Run("JSONEmptyIgnoresUpstreamTotal", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("Cart", mock.Anything, mock.Anything).
			Return(domain.Cart{Total: 5, TotalDisplay: "5,00 €"}, nil)

		rec := serve(router, http.MethodGet, "/fragments/cart", acceptJSON)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"count":0,"items":[],"total":5,"total_display":"$0.00"}`,
			rec.Body.String(),
		)
	})

	t.Run("OpensPanelForLaterActions", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("Cart", mock.Anything, mock.Anything).Return(domain.Cart{}, nil).Twice()
		sf.On("ClearCart", mock.Anything, mock.Anything).
			Return(domain.CartActionResult{Message: "Cleared"}, nil)

		rec := serve(router, http.MethodGet, "/fragments/cart", htmx)
		require.Equal(t, http.StatusOK, rec.Code)
		cookie := sessionCookie(t, rec)

		rec = serve(router, http.MethodPost, "/cart/clear", htmx, withCookie(cookie))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(),
			`<div id="cart-display" class="cart-display" hx-swap-oob="true">`)
	})
}

func TestStateFragment(t *testing.T) {
	router, sf := setupRouter(t)
	sf.On("LoadInitialState", mock.Anything, mock.Anything).
		Return(domain.InitialState{CartErr: errTransport, FavoritesCount: 4})

	rec := serve(router, http.MethodGet, "/fragments/state", acceptJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cart_count":null,"favorites_count":4}`, rec.Body.String())

	rec = serve(router, http.MethodGet, "/fragments/state", htmx)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		`<span id="favorites-count" hx-swap-oob="true">4</span>`,
		rec.Body.String(),
	)
}

func TestToggleCartPanel(t *testing.T) {
	router, sf := setupRouter(t)
	sf.On("Cart", mock.Anything, mock.Anything).
		Return(domain.Cart{Count: 1, Items: []domain.CartItem{{Name: "Tea", Quantity: 1}}}, nil).
		Once()

	rec := serve(router, http.MethodPost, "/cart/panel", htmx)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tea (x1)")
	cookie := sessionCookie(t, rec)

	rec = serve(router, http.MethodPost, "/cart/panel", htmx, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="cart-display hidden"`)
	assert.NotContains(t, rec.Body.String(), "Tea")
}

func TestAddToCart(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("AddToCart", mock.Anything, mock.Anything, int64(5)).
			Return(domain.CartActionResult{Message: "Added", CartCount: 3}, nil)

		rec := serve(router, http.MethodPost, "/cart/add/5", htmx)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `{"storefront:alert":"Added"}`, alertOf(rec))
		assert.Equal(t,
			`<span id="cart-count" hx-swap-oob="true">3</span>`,
			rec.Body.String(),
		)
	})

	t.Run("UpstreamMessage", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("AddToCart", mock.Anything, mock.Anything, int64(5)).
			Return(domain.CartActionResult{}, upstreamErr{"out of stock"})

		rec := serve(router, http.MethodPost, "/cart/add/5", htmx)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, `{"storefront:alert":"Adding failed: out of stock"}`, alertOf(rec))
	})

	t.Run("Unreachable", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("AddToCart", mock.Anything, mock.Anything, int64(5)).
			Return(domain.CartActionResult{}, errTransport)

		rec := serve(router, http.MethodPost, "/cart/add/5", acceptJSON)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.JSONEq(t,
			`{"error":"Could not reach the server to add the product."}`,
			rec.Body.String(),
		)
	})

	t.Run("InvalidID", func(t *testing.T) {
		router, _ := setupRouter(t)

		rec := serve(router, http.MethodPost, "/cart/add/abc", htmx)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnsupportedBody", func(t *testing.T) {
		router, _ := setupRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/cart/add/5", strings.NewReader("x"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestClearCart(t *testing.T) {
	t.Run("JSONNeedsConfirmation", func(t *testing.T) {
		router, _ := setupRouter(t)

		rec := serve(router, http.MethodPost, "/cart/clear", acceptJSON)
		assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
		assert.JSONEq(t,
			`{"error":"Are you sure you want to empty the shopping cart?"}`,
			rec.Body.String(),
		)
	})

	t.Run("JSONConfirmed", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("ClearCart", mock.Anything, mock.Anything).
			Return(domain.CartActionResult{Message: "Cleared"}, nil)

		rec := serve(router, http.MethodPost, "/cart/clear?confirm=true", acceptJSON)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Cleared","cart_count":0}`, rec.Body.String())
	})

	t.Run("ClosedPanelIsNotRendered", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("ClearCart", mock.Anything, mock.Anything).
			Return(domain.CartActionResult{Message: "Cleared"}, nil)

		rec := serve(router, http.MethodPost, "/cart/clear", htmx)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "cart-display")
		assert.Contains(t, rec.Body.String(), `<span id="cart-count" hx-swap-oob="true">0</span>`)
	})

	t.Run("OpenPanelIsRendered", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("Cart", mock.Anything, mock.Anything).Return(domain.Cart{}, nil).Twice()
		sf.On("ClearCart", mock.Anything, mock.Anything).
			Return(domain.CartActionResult{Message: "Cleared"}, nil)

		rec := serve(router, http.MethodPost, "/cart/panel", htmx)
		cookie := sessionCookie(t, rec)

		rec = serve(router, http.MethodPost, "/cart/clear", htmx, withCookie(cookie))
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `<div id="cart-display" class="cart-display" hx-swap-oob="true">`)
		assert.Contains(t, body, "Your cart is empty.")
		assert.Contains(t, body, `<span id="cart-total">$0.00</span>`)
	})
}

func TestToggleFavorite(t *testing.T) {
	t.Run("Added", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("ToggleFavorite", mock.Anything, mock.Anything, int64(9)).
			Return(domain.FavoriteToggleResult{Message: "Saved", Count: 2, IsAdded: true}, nil)

		rec := serve(router, http.MethodPost, "/favorites/toggle/9", htmx)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "toggle-favorite-btn remove-favorite-btn")
		assert.Contains(t, body, `<span id="favorites-count" hx-swap-oob="true">2</span>`)
		assert.Equal(t, `{"storefront:alert":"Saved"}`, alertOf(rec))
	})

	t.Run("Failure", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("ToggleFavorite", mock.Anything, mock.Anything, int64(9)).
			Return(domain.FavoriteToggleResult{}, upstreamErr{"not found"})

		rec := serve(router, http.MethodPost, "/favorites/toggle/9", htmx)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, `{"storefront:alert":"Operation failed: not found"}`, alertOf(rec))
	})

	t.Run("JSON", func(t *testing.T) {
		router, sf := setupRouter(t)
		sf.On("ToggleFavorite", mock.Anything, mock.Anything, int64(9)).
			Return(domain.FavoriteToggleResult{Message: "Removed", Count: 0}, nil)

		rec := serve(router, http.MethodPost, "/favorites/toggle/9", acceptJSON)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"message":"Removed","count":0,"is_added":false}`,
			rec.Body.String(),
		)
	})
}

func TestAsciiJSON(t *testing.T) {
	assert.Equal(t,
		`{"a":"\u00e9\ud83e\udd0d"}`,
		asciiJSON([]byte(`{"a":"é🤍"}`)),
	)
}

func TestWantsJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, wantsJSON(r))

	r.Header.Set("Accept", "text/html, application/json;q=0.9")
	assert.True(t, wantsJSON(r))

	r.Header.Set("HX-Request", "true")
	assert.False(t, wantsJSON(r))
}
