package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var _ port.CatalogAPI = (*Client)(nil)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultProductsPath = "/api/products"

	cartPath           = "/cart"
	favoritesPath      = "/favorites"
	cartAddPath        = "/cart/add/"
	cartClearPath      = "/cart/clear"
	favoriteTogglePath = "/favorites/toggle/"

	maxBodySize = 4 << 20
)

var (
	ErrInvalidBaseURL = errors.New("invalid upstream base url")
	ErrBreakerOpen    = errors.New("upstream circuit breaker is open")
)

// A StatusError is returned for every non-2xx upstream reply.
type StatusError struct {
	StatusCode int
	// Message is the upstream supplied message, may be empty.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
}

// UpstreamMessage returns the message meant for the shopper.
func (e *StatusError) UpstreamMessage() string {
	return e.Message
}

type Config struct {
	BaseURL      string
	ProductsPath string
	// Timeout bounds one upstream request, zero means no timeout.
	Timeout time.Duration
	// ReadAttempts applies to idempotent reads only, mutations are sent
	// exactly once.
	ReadAttempts int
	Breaker      BreakerConfig
}

type Opt func(*Client)

// HTTPClientOpt replaces the instrumented default client.
func HTTPClientOpt(hc *http.Client) Opt {
	return func(c *Client) {
		c.httpClient = hc
	}
}

type Client struct {
	baseURL      *url.URL
	productsPath string
	httpClient   *http.Client
	breaker      breaker
	readRetry    retry.RetryConfig
}

func New(cfg Config, opts ...Opt) (Client, error) {
	const op = "apiclient.New"

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return Client{}, fmt.Errorf("%s: %w: %q", op, ErrInvalidBaseURL, cfg.BaseURL)
	}

	productsPath := cfg.ProductsPath
	if productsPath == "" {
		productsPath = DefaultProductsPath
	}

	c := Client{
		baseURL:      base,
		productsPath: productsPath,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		breaker: newBreaker(cfg.Breaker),
		readRetry: retry.RetryConfig{
			MaxAttempts: cfg.ReadAttempts,
			Backoff:     retry.ExponentialBackoff(50 * time.Millisecond),
			ShouldRetry: retryableRead,
		},
	}

	for _, opt := range opts {
		opt(&c)
	}
	return c, nil
}

func (c Client) SearchProducts(
	ctx context.Context, cookies domain.UpstreamCookies, q domain.ProductQuery,
) ([]domain.Product, error) {
	const op = "Client.SearchProducts"

	params := url.Values{}
	params.Set("query", q.Query)
	if q.CategoryID != "" {
		params.Set("category_id", q.CategoryID)
	}

	var ps []product
	if err := c.read(ctx, cookies, c.productsPath, params, &ps); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return productsToDomain(ps), nil
}

func (c Client) Cart(
	ctx context.Context, cookies domain.UpstreamCookies,
) (domain.Cart, error) {
	const op = "Client.Cart"

	var v cart
	if err := c.read(ctx, cookies, cartPath, nil, &v); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return v.toDomain(), nil
}

func (c Client) Favorites(
	ctx context.Context, cookies domain.UpstreamCookies,
) ([]domain.Product, error) {
	const op = "Client.Favorites"

	var v favorites
	if err := c.read(ctx, cookies, favoritesPath, nil, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return productsToDomain(v), nil
}

func (c Client) AddToCart(
	ctx context.Context, cookies domain.UpstreamCookies, productID int64,
) (domain.CartActionResult, error) {
	const op = "Client.AddToCart"

	var v cartAction
	path := cartAddPath + strconv.FormatInt(productID, 10)
	if err := c.mutate(ctx, cookies, path, &v); err != nil {
		return domain.CartActionResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return v.toDomain(), nil
}

func (c Client) ClearCart(
	ctx context.Context, cookies domain.UpstreamCookies,
) (domain.CartActionResult, error) {
	const op = "Client.ClearCart"

	var v cartAction
	if err := c.mutate(ctx, cookies, cartClearPath, &v); err != nil {
		return domain.CartActionResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return v.toDomain(), nil
}

func (c Client) ToggleFavorite(
	ctx context.Context, cookies domain.UpstreamCookies, productID int64,
) (domain.FavoriteToggleResult, error) {
	const op = "Client.ToggleFavorite"

	var v favoriteToggle
	path := favoriteTogglePath + strconv.FormatInt(productID, 10)
	if err := c.mutate(ctx, cookies, path, &v); err != nil {
		return domain.FavoriteToggleResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return v.toDomain(), nil
}

// reply is what is left of an upstream response once the body is read.
type reply struct {
	statusCode int
	body       []byte
	cookies    []*http.Cookie
}

func (c Client) read(
	ctx context.Context,
	cookies domain.UpstreamCookies,
	path string,
	params url.Values,
	v any,
) error {
	rep, err := retry.DoWithResult(ctx, c.readRetry, func() (reply, error) {
		return c.send(ctx, cookies, path, params)
	})
	if err != nil {
		return err
	}
	return decode(rep, v)
}

// mutate sends a state-changing request. The upstream exposes mutations
// as GET endpoints.
func (c Client) mutate(
	ctx context.Context, cookies domain.UpstreamCookies, path string, v any,
) error {
	rep, err := c.send(ctx, cookies, path, nil)
	if err != nil {
		return err
	}
	return decode(rep, v)
}

// send performs one request. Upstream cookies are recorded before the
// status is checked, the upstream may open a session on any reply.
func (c Client) send(
	ctx context.Context,
	cookies domain.UpstreamCookies,
	path string,
	params url.Values,
) (reply, error) {
	const op = "Client.send"
	log := slog.With("op", op, "path", path)

	req, err := c.newRequest(ctx, cookies, path, params)
	if err != nil {
		return reply{}, fmt.Errorf("%s: %w", op, err)
	}

	rep, err := c.breaker.execute(func() (reply, error) {
		return c.roundTrip(req)
	})
	storeCookies(cookies, rep.cookies)
	if err != nil {
		return reply{}, err
	}

	log.Debug("upstream replied", "status", rep.statusCode)

	if rep.statusCode < 200 || rep.statusCode > 299 {
		return reply{}, statusError(rep)
	}
	return rep, nil
}

func (c Client) newRequest(
	ctx context.Context,
	cookies domain.UpstreamCookies,
	path string,
	params url.Values,
) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return req, nil
}

func (c Client) roundTrip(req *http.Request) (reply, error) {
	const op = "Client.roundTrip"
	log := slog.With("op", op)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return reply{}, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			log.Warn("failed to close response body", "err", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	rep := reply{
		statusCode: res.StatusCode,
		body:       body,
		cookies:    res.Cookies(),
	}
	if err != nil {
		return rep, fmt.Errorf("%s: failed to read body: %w", op, err)
	}

	if rep.statusCode >= http.StatusInternalServerError {
		return rep, statusError(rep)
	}
	return rep, nil
}

func decode(rep reply, v any) error {
	const op = "apiclient.decode"
	if err := json.Unmarshal(rep.body, v); err != nil {
		return fmt.Errorf("%s: invalid upstream JSON: %w", op, err)
	}
	return nil
}

func statusError(rep reply) *StatusError {
	var b errorBody
	_ = json.Unmarshal(rep.body, &b)
	return &StatusError{StatusCode: rep.statusCode, Message: b.text()}
}

func storeCookies(dst domain.UpstreamCookies, cs []*http.Cookie) {
	if dst == nil {
		return
	}
	for _, c := range cs {
		if c.MaxAge < 0 || c.Value == "" {
			delete(dst, c.Name)
			continue
		}
		dst[c.Name] = c.Value
	}
}

func retryableRead(err error) bool {
	if errors.Is(err, ErrBreakerOpen) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return true
}
