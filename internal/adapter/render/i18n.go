package render

import (
	"fmt"

	"golang.org/x/text/language"
)

// Messages holds the user facing strings of one locale.
type Messages struct {
	Lang string
	Dir  string

	Title          string
	SearchLabel    string
	SearchButton   string
	AllCategories  string
	Favorites      string
	Cart           string
	ViewCart       string
	ClearCart      string
	ClearConfirm   string
	CartTotalLabel string

	Loading        string
	ProductsError  string
	NoProducts     string
	Category       string
	Price          string
	InStock        string
	OutOfStock     string
	AddToCart      string
	FavoriteAdd    string
	FavoriteRemove string

	CartEmpty      string
	CartFetchError string

	AddFailed         string
	AddUnreachable    string
	ClearFailed       string
	ClearUnreachable  string
	ToggleFailed      string
	ToggleUnreachable string
}

// InStockText formats the stock line of a product card.
func (m Messages) InStockText(stock int) string {
	return fmt.Sprintf(m.InStock, stock)
}

func (m Messages) AddFailedText(reason string) string {
	return fmt.Sprintf(m.AddFailed, reason)
}

func (m Messages) ClearFailedText(reason string) string {
	return fmt.Sprintf(m.ClearFailed, reason)
}

func (m Messages) ToggleFailedText(reason string) string {
	return fmt.Sprintf(m.ToggleFailed, reason)
}

var arabic = Messages{
	Lang: "ar",
	Dir:  "rtl",

	Title:          "المتجر",
	SearchLabel:    "ابحث عن منتج",
	SearchButton:   "بحث",
	AllCategories:  "الكل",
	Favorites:      "المفضلة",
	Cart:           "السلة",
	ViewCart:       "عرض السلة",
	ClearCart:      "تفريغ السلة",
	ClearConfirm:   "هل أنت متأكد من تفريغ سلة المشتريات؟",
	CartTotalLabel: "المجموع:",

	Loading:        "جاري تحميل المنتجات...",
	ProductsError:  "عفواً، حدث خطأ أثناء تحميل المنتجات.",
	NoProducts:     "لا توجد منتجات تطابق المعايير المختارة.",
	Category:       "الفئة:",
	Price:          "السعر:",
	InStock:        "متوفر: %d",
	OutOfStock:     "نفد المخزون",
	AddToCart:      "أضف إلى السلة",
	FavoriteAdd:    "🤍 أضف للمفضلة",
	FavoriteRemove: "❤️ إزالة",

	CartEmpty:      "سلة المشتريات فارغة.",
	CartFetchError: "حدث خطأ أثناء جلب محتويات السلة.",

	AddFailed:         "فشل الإضافة: %s",
	AddUnreachable:    "فشل الاتصال بالخادم لإضافة المنتج.",
	ClearFailed:       "فشل التفريغ: %s",
	ClearUnreachable:  "فشل الاتصال بالخادم لتفريغ السلة.",
	ToggleFailed:      "فشل العملية: %s",
	ToggleUnreachable: "فشل الاتصال بالخادم لتحديث المفضلة.",
}

var english = Messages{
	Lang: "en",
	Dir:  "ltr",

	Title:          "Store",
	SearchLabel:    "Search products",
	SearchButton:   "Search",
	AllCategories:  "All",
	Favorites:      "Favorites",
	Cart:           "Cart",
	ViewCart:       "View cart",
	ClearCart:      "Clear cart",
	ClearConfirm:   "Are you sure you want to empty the shopping cart?",
	CartTotalLabel: "Total:",

	Loading:        "Loading products...",
	ProductsError:  "Sorry, something went wrong while loading products.",
	NoProducts:     "No products match the selected criteria.",
	Category:       "Category:",
	Price:          "Price:",
	InStock:        "In stock: %d",
	OutOfStock:     "Out of stock",
	AddToCart:      "Add to cart",
	FavoriteAdd:    "🤍 Add to favorites",
	FavoriteRemove: "❤️ Remove",

	CartEmpty:      "Your cart is empty.",
	CartFetchError: "Something went wrong while loading the cart.",

	AddFailed:         "Adding failed: %s",
	AddUnreachable:    "Could not reach the server to add the product.",
	ClearFailed:       "Clearing failed: %s",
	ClearUnreachable:  "Could not reach the server to clear the cart.",
	ToggleFailed:      "Operation failed: %s",
	ToggleUnreachable: "Could not reach the server to update favorites.",
}

// A Catalog picks [Messages] for a request.
type Catalog struct {
	messages []Messages
	matcher  language.Matcher
}

// NewCatalog builds the catalog with defaultLocale as the fallback.
// Unknown default locales fall back to Arabic.
func NewCatalog(defaultLocale string) Catalog {
	all := []Messages{arabic, english}

	def := 0
	for i, m := range all {
		if m.Lang == defaultLocale {
			def = i
		}
	}
	all[0], all[def] = all[def], all[0]

	tags := make([]language.Tag, len(all))
	for i, m := range all {
		tags[i] = language.Make(m.Lang)
	}

	return Catalog{
		messages: all,
		matcher:  language.NewMatcher(tags),
	}
}

// Match returns the supported locale closest to an Accept-Language header
// value.
func (c Catalog) Match(acceptLanguage string) string {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return c.messages[0].Lang
	}
	_, idx, conf := c.matcher.Match(prefs...)
	if conf == language.No {
		return c.messages[0].Lang
	}
	return c.messages[idx].Lang
}

// Lookup returns the messages of locale, or of the default locale.
func (c Catalog) Lookup(locale string) Messages {
	for _, m := range c.messages {
		if m.Lang == locale {
			return m
		}
	}
	return c.messages[0]
}
