package httphandler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/niksmo/storefront/internal/adapter/render"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AlertEvent is the client event the page turns into an alert box.
const AlertEvent = "storefront:alert"

type Handler struct {
	sf       port.Storefront
	renderer render.Renderer
	catalog  render.Catalog
}

func NewHandler(
	sf port.Storefront, renderer render.Renderer, catalog render.Catalog,
) Handler {
	return Handler{sf: sf, renderer: renderer, catalog: catalog}
}

// NewRouter mounts the page, fragment and action routes behind the
// session middleware.
func NewRouter(h Handler, sessions Sessions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", Health)

	r.Group(func(r chi.Router) {
		r.Use(AllowForms)
		r.Use(sessions.Middleware)

		r.Get("/", h.Page)
		r.Route("/fragments", func(r chi.Router) {
			r.Get("/products", h.Products)
			r.Get("/cart", h.Cart)
			r.Get("/state", h.State)
		})
		r.Post("/cart/panel", h.ToggleCartPanel)
		r.Post("/cart/add/{id}", h.AddToCart)
		r.Post("/cart/clear", h.ClearCart)
		r.Post("/favorites/toggle/{id}", h.ToggleFavorite)
	})

	return r
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h Handler) messages(sess *domain.Session) render.Messages {
	return h.catalog.Lookup(sess.Locale)
}

func (h Handler) Page(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.Page"
	log := slog.With("op", op)

	sess := sessionFrom(r.Context())
	m := h.messages(sess)
	q := productQuery(r)

	page := h.sf.LoadPage(r.Context(), sess, q)
	if page.ProductsErr != nil {
		log.Error("failed to load products", "err", page.ProductsErr)
	}
	sess.CartOpen = false

	writeHTML(w, op, func(w io.Writer) error {
		return h.renderer.Page(w, render.PageData{
			T:           m,
			Query:       q,
			Products:    page.Products,
			ProductsErr: page.ProductsErr != nil,
			Categories:  page.Categories,
			Favorites:   sess.FavoriteIDs,
			Counts:      countsFromState(page.State),
			Cart:        render.CartPanel{T: m},
		})
	})
}

func (h Handler) Products(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.Products"
	log := slog.With("op", op)

	sess := sessionFrom(r.Context())
	m := h.messages(sess)

	ps, err := h.sf.SearchProducts(r.Context(), sess, productQuery(r))
	if err != nil {
		log.Error("failed to load products", "err", err)
	}

	if wantsJSON(r) {
		if err != nil {
			writeJSON(w, http.StatusBadGateway, ErrorResponse{m.ProductsError})
			return
		}
		writeJSON(w, http.StatusOK, productsFromDomain(ps, sess.FavoriteIDs))
		return
	}

	if err != nil {
		writeHTML(w, op, func(w io.Writer) error {
			return h.renderer.ProductsError(w, m)
		})
		return
	}
	writeHTML(w, op, func(w io.Writer) error {
		return h.renderer.Products(w, m, ps, sess.FavoriteIDs)
	})
}

// Cart renders the open cart panel and marks the panel open, so later
// actions keep it fresh.
func (h Handler) Cart(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.Cart"
	log := slog.With("op", op)

	sess := sessionFrom(r.Context())
	m := h.messages(sess)

	cart, err := h.sf.Cart(r.Context(), sess)
	if err != nil {
		log.Error("failed to load cart", "err", err)
		h.failed(w, r, m.CartFetchError)
		return
	}
	sess.CartOpen = true

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, cartFromDomain(cart))
		return
	}
	writeHTML(w, op,
		func(w io.Writer) error {
			return h.renderer.Cart(w, render.CartPanel{T: m, Open: true, Cart: cart}, false)
		},
		func(w io.Writer) error {
			return h.renderer.Counts(w, render.Counts{Cart: &cart.Count})
		},
	)
}

func (h Handler) State(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.State"

	sess := sessionFrom(r.Context())
	counts := countsFromState(h.sf.LoadInitialState(r.Context(), sess))

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, stateFromCounts(counts))
		return
	}
	writeHTML(w, op, func(w io.Writer) error {
		return h.renderer.Counts(w, counts)
	})
}

// ToggleCartPanel flips the cart panel. Opening it loads the cart.
func (h Handler) ToggleCartPanel(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.ToggleCartPanel"
	log := slog.With("op", op)

	sess := sessionFrom(r.Context())
	m := h.messages(sess)
	sess.CartOpen = !sess.CartOpen

	var (
		cart domain.Cart
		err  error
	)
	if sess.CartOpen {
		cart, err = h.sf.Cart(r.Context(), sess)
		if err != nil {
			log.Error("failed to load cart", "err", err)
			sess.CartOpen = false
		}
	}

	if wantsJSON(r) {
		if err != nil {
			writeJSON(w, http.StatusBadGateway, ErrorResponse{m.CartFetchError})
			return
		}
		panel := CartPanel{Open: sess.CartOpen}
		if sess.CartOpen {
			c := cartFromDomain(cart)
			panel.Cart = &c
		}
		writeJSON(w, http.StatusOK, panel)
		return
	}

	if err != nil {
		setAlert(w, m.CartFetchError)
	}
	panel := render.CartPanel{T: m, Open: sess.CartOpen, Cart: cart}
	fns := []func(io.Writer) error{
		func(w io.Writer) error { return h.renderer.Cart(w, panel, false) },
	}
	if sess.CartOpen {
		fns = append(fns, func(w io.Writer) error {
			return h.renderer.Counts(w, render.Counts{Cart: &cart.Count})
		})
	}
	writeHTML(w, op, fns...)
}

func (h Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.AddToCart"
	log := slog.With("op", op)

	id, ok := productID(r)
	if !ok {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	sess := sessionFrom(r.Context())
	m := h.messages(sess)

	res, err := h.sf.AddToCart(r.Context(), sess, id)
	if err != nil {
		log.Error("failed to add to cart", "productID", id, "err", err)
		h.failed(w, r, failureText(err, m.AddFailedText, m.AddUnreachable))
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, CartActionResult{res.Message, res.CartCount})
		return
	}
	setAlert(w, res.Message)
	writeHTML(w, op, func(w io.Writer) error {
		return h.renderer.Counts(w, render.Counts{Cart: &res.CartCount})
	})
}

// ClearCart empties the cart. The browser asks for confirmation first,
// JSON callers confirm with confirm=true.
func (h Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.ClearCart"
	log := slog.With("op", op)

	sess := sessionFrom(r.Context())
	m := h.messages(sess)

	if wantsJSON(r) && r.FormValue("confirm") != "true" {
		writeJSON(w, http.StatusPreconditionRequired, ErrorResponse{m.ClearConfirm})
		return
	}

	res, err := h.sf.ClearCart(r.Context(), sess)
	if err != nil {
		log.Error("failed to clear cart", "err", err)
		h.failed(w, r, failureText(err, m.ClearFailedText, m.ClearUnreachable))
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, CartActionResult{res.Message, res.CartCount})
		return
	}

	setAlert(w, res.Message)
	fns := []func(io.Writer) error{
		func(w io.Writer) error {
			return h.renderer.Counts(w, render.Counts{Cart: &res.CartCount})
		},
	}
	if sess.CartOpen {
		cart, err := h.sf.Cart(r.Context(), sess)
		if err != nil {
			log.Error("failed to reload cart", "err", err)
		} else {
			panel := render.CartPanel{T: m, Open: true, Cart: cart}
			fns = append(fns, func(w io.Writer) error {
				return h.renderer.Cart(w, panel, true)
			})
		}
	}
	writeHTML(w, op, fns...)
}

func (h Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.ToggleFavorite"
	log := slog.With("op", op)

	id, ok := productID(r)
	if !ok {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	sess := sessionFrom(r.Context())
	m := h.messages(sess)

	res, err := h.sf.ToggleFavorite(r.Context(), sess, id)
	if err != nil {
		log.Error("failed to toggle favorite", "productID", id, "err", err)
		h.failed(w, r, failureText(err, m.ToggleFailedText, m.ToggleUnreachable))
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, FavoriteToggleResult{res.Message, res.Count, res.IsAdded})
		return
	}
	setAlert(w, res.Message)
	writeHTML(w, op,
		func(w io.Writer) error {
			return h.renderer.FavoriteButton(w, m, id, res.IsAdded)
		},
		func(w io.Writer) error {
			return h.renderer.Counts(w, render.Counts{Favorites: &res.Count})
		},
	)
}

// failed reports an upstream failure. htmx callers get the alert and no
// swap.
func (h Handler) failed(w http.ResponseWriter, r *http.Request, msg string) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{msg})
		return
	}
	setAlert(w, msg)
	w.WriteHeader(http.StatusNoContent)
}

type upstreamMessager interface {
	UpstreamMessage() string
}

// failureText prefers the message the upstream sent with its error reply.
func failureText(
	err error, withReason func(string) string, unreachable string,
) string {
	var um upstreamMessager
	if errors.As(err, &um) && um.UpstreamMessage() != "" {
		return withReason(um.UpstreamMessage())
	}
	return unreachable
}

func productQuery(r *http.Request) domain.ProductQuery {
	q := r.URL.Query()
	return domain.ProductQuery{
		CategoryID: strings.TrimSpace(q.Get("category_id")),
		Query:      q.Get("query"),
	}
}

func productID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// wantsJSON reports whether a non-htmx caller accepts JSON.
func wantsJSON(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return false
	}
	for part := range strings.SplitSeq(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == "application/json" {
			return true
		}
	}
	return false
}

func writeHTML(w http.ResponseWriter, op string, fns ...func(io.Writer) error) {
	log := slog.With("op", op)

	var buf bytes.Buffer
	for _, fn := range fns {
		if err := fn(&buf); err != nil {
			log.Error("failed to render", "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Error("failed to write response body", "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	const op = "httphandler.writeJSON"

	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "op", op, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		slog.Error("failed to write response body", "op", op, "err", err)
	}
}

// setAlert asks htmx to raise [AlertEvent] with msg. The header is kept
// ASCII, browsers decode header values as Latin-1.
func setAlert(w http.ResponseWriter, msg string) {
	if msg == "" {
		return
	}
	b, err := json.Marshal(map[string]string{AlertEvent: msg})
	if err != nil {
		return
	}
	w.Header().Set("HX-Trigger", asciiJSON(b))
}

func asciiJSON(b []byte) string {
	var sb strings.Builder
	for _, r := range string(b) {
		if r < utf8.RuneSelf {
			sb.WriteRune(r)
			continue
		}
		for _, u := range utf16.Encode([]rune{r}) {
			fmt.Fprintf(&sb, `\u%04x`, u)
		}
	}
	return sb.String()
}
