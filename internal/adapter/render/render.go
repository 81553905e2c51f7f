package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/niksmo/storefront/internal/core/domain"
)

// DefaultHTMXSrc is the htmx script loaded by the page.
const DefaultHTMXSrc = "https://unpkg.com/htmx.org@2.0.4"

const (
	placeholderImage = "/static/placeholder.png"
	unknownCount     = "-"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

// Renderer writes the page and its htmx fragments.
type Renderer struct {
	tmpl    *template.Template
	htmxSrc string
}

// New parses the embedded templates.
func New(htmxSrc string) (Renderer, error) {
	const op = "render.New"

	tmpl, err := template.ParseFS(templatesFS, "templates/*.gohtml")
	if err != nil {
		return Renderer{}, fmt.Errorf("%s: %w", op, err)
	}
	if htmxSrc == "" {
		htmxSrc = DefaultHTMXSrc
	}
	return Renderer{tmpl: tmpl, htmxSrc: htmxSrc}, nil
}

// PageData is everything the full page shows on first load.
type PageData struct {
	T           Messages
	Query       domain.ProductQuery
	Products    []domain.Product
	ProductsErr bool
	// Categories feed the filter radios independently of Products.
	Categories []domain.Category
	Favorites  domain.FavoriteIDs
	Counts     Counts
	Cart       CartPanel
}

// Counts are the header badges. A nil count renders as unknown.
type Counts struct {
	Cart      *int
	Favorites *int
}

// CartPanel describes the cart display. A closed panel renders hidden and
// ignores the rest of the fields.
type CartPanel struct {
	T    Messages
	Open bool
	Cart domain.Cart
}

type pageView struct {
	T           Messages
	HTMXSrc     string
	Query       domain.ProductQuery
	Categories  []categoryView
	Products    productsView
	ProductsErr bool
	Counts      countsView
	Cart        cartView
}

type categoryView struct {
	ID    int64
	Name  string
	Value string
}

type productsView struct {
	T     Messages
	Cards []cardView
}

type cardView struct {
	T        Messages
	P        domain.Product
	ImageURL string
	Price    string
	Fav      favoriteView
}

type favoriteView struct {
	ProductID int64
	Class     string
	Label     string
}

type cartView struct {
	T     Messages
	Open  bool
	OOB   bool
	Items []cartItemView
	Total string
}

type cartItemView struct {
	Name     string
	Quantity int
	Total    string
}

type countsView struct {
	Cart          string
	Favorites     string
	ShowCart      bool
	ShowFavorites bool
	OOB           bool
}

func (r Renderer) Page(w io.Writer, d PageData) error {
	v := pageView{
		T:           d.T,
		HTMXSrc:     r.htmxSrc,
		Query:       d.Query,
		Categories:  categoriesView(d.Categories),
		Products:    newProductsView(d.T, d.Products, d.Favorites),
		ProductsErr: d.ProductsErr,
		Counts:      newCountsView(d.Counts, false),
		Cart:        newCartView(d.Cart, false),
	}
	return r.execute(w, "page", v)
}

// Products writes the grid content: product cards or the empty message.
func (r Renderer) Products(
	w io.Writer, m Messages, products []domain.Product, favs domain.FavoriteIDs,
) error {
	return r.execute(w, "products", newProductsView(m, products, favs))
}

// ProductsError writes the fragment that replaces the grid when the search
// failed.
func (r Renderer) ProductsError(w io.Writer, m Messages) error {
	return r.execute(w, "products-error", m)
}

// Cart writes the cart panel. With oob set the panel is marked for an
// out of band swap.
func (r Renderer) Cart(w io.Writer, p CartPanel, oob bool) error {
	return r.execute(w, "cart-panel", newCartView(p, oob))
}

func (r Renderer) FavoriteButton(
	w io.Writer, m Messages, productID int64, isFavorite bool,
) error {
	return r.execute(w, "favorite-button", newFavoriteView(m, productID, isFavorite))
}

// Counts writes out of band badge updates for the non nil counts.
func (r Renderer) Counts(w io.Writer, c Counts) error {
	return r.execute(w, "counts", newCountsView(c, true))
}

// execute renders into a buffer first so a template error never leaves a
// partial response.
func (r Renderer) execute(w io.Writer, name string, data any) error {
	const op = "Renderer.execute"

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("%s: %s: %w", op, name, err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func categoriesView(cs []domain.Category) []categoryView {
	out := make([]categoryView, len(cs))
	for i, c := range cs {
		out[i] = categoryView{
			ID: c.ID, Name: c.Name, Value: strconv.FormatInt(c.ID, 10),
		}
	}
	return out
}

func newProductsView(
	m Messages, products []domain.Product, favs domain.FavoriteIDs,
) productsView {
	cards := make([]cardView, len(products))
	for i, p := range products {
		img := p.ImageURL
		if img == "" {
			img = placeholderImage
		}
		cards[i] = cardView{
			T:        m,
			P:        p,
			ImageURL: img,
			Price:    Money("", p.Price),
			Fav:      newFavoriteView(m, p.ID, favs.Contains(p.ID)),
		}
	}
	return productsView{T: m, Cards: cards}
}

func newFavoriteView(m Messages, productID int64, isFavorite bool) favoriteView {
	if isFavorite {
		return favoriteView{
			ProductID: productID,
			Class:     "remove-favorite-btn",
			Label:     m.FavoriteRemove,
		}
	}
	return favoriteView{
		ProductID: productID,
		Class:     "add-favorite-btn",
		Label:     m.FavoriteAdd,
	}
}

func newCartView(p CartPanel, oob bool) cartView {
	v := cartView{T: p.T, Open: p.Open, OOB: oob}
	if !p.Open {
		return v
	}
	v.Items = make([]cartItemView, len(p.Cart.Items))
	for i, it := range p.Cart.Items {
		v.Items[i] = cartItemView{
			Name:     it.Name,
			Quantity: it.Quantity,
			Total:    Money(it.ItemTotalDisplay, it.ItemTotal),
		}
	}
	v.Total = CartTotal(p.Cart)
	return v
}

func newCountsView(c Counts, oob bool) countsView {
	v := countsView{
		Cart:          unknownCount,
		Favorites:     unknownCount,
		ShowCart:      c.Cart != nil,
		ShowFavorites: c.Favorites != nil,
		OOB:           oob,
	}
	if c.Cart != nil {
		v.Cart = strconv.Itoa(*c.Cart)
	}
	if c.Favorites != nil {
		v.Favorites = strconv.Itoa(*c.Favorites)
	}
	return v
}
