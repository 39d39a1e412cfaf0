package domain

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Product is the catalog view a caller hands to the cart when adding a line.
type Product struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Image  string          `json:"image,omitempty"`
	Sizes  []string        `json:"sizes,omitempty"`
	Colors []string        `json:"colors,omitempty"`
	Stock  *int            `json:"stock,omitempty"`
}

type CartLine struct {
	Key             string          `json:"key"`
	ProductID       int64           `json:"product_id"`
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Image           string          `json:"image,omitempty"`
	Quantity        int             `json:"quantity"`
	SelectedSize    string          `json:"selected_size,omitempty"`
	SelectedColor   string          `json:"selected_color,omitempty"`
	Sizes           []string        `json:"sizes,omitempty"`
	Colors          []string        `json:"colors,omitempty"`
	AvailableStock  *int            `json:"available_stock,omitempty"`
	ServerItemID    int64           `json:"server_item_id,omitempty"`
	ServerVariantID *int64          `json:"server_variant_id,omitempty"`
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// LineKey identifies an anonymous line by product and chosen options.
func LineKey(productID int64, size, color string) string {
	return fmt.Sprintf("%d::%s::%s", productID, size, color)
}

// ServerLineKey is the key of a line backed by a server cart item.
func ServerLineKey(itemID int64) string {
	return strconv.FormatInt(itemID, 10)
}

// clamp bounds q by the known stock. Unknown or negative stock leaves q as is.
func (l CartLine) clamp(q int) int {
	if l.AvailableStock != nil && *l.AvailableStock >= 0 && q > *l.AvailableStock {
		return *l.AvailableStock
	}
	return q
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NewLine builds an anonymous line for product with the given options.
func NewLine(p Product, qty int, size, color string) CartLine {
	return CartLine{
		Key:            LineKey(p.ID, size, color),
		ProductID:      p.ID,
		Name:           p.Name,
		UnitPrice:      p.Price,
		Image:          p.Image,
		Quantity:       qty,
		SelectedSize:   size,
		SelectedColor:  color,
		Sizes:          p.Sizes,
		Colors:         p.Colors,
		AvailableStock: p.Stock,
	}
}

type Lines []CartLine

func (ls Lines) Find(key string) int {
	for i := range ls {
		if ls[i].Key == key {
			return i
		}
	}
	return -1
}

// Add merges line into the list: a matching key has its quantity increased,
// otherwise the line is appended.
func (ls *Lines) Add(line CartLine) error {
	if line.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	if i := ls.Find(line.Key); i >= 0 {
		cur := (*ls)[i]
		q := cur.clamp(cur.Quantity + line.Quantity)
		if q <= 0 {
			return ErrOutOfStock
		}
		(*ls)[i].Quantity = q
		return nil
	}

	line.Quantity = line.clamp(line.Quantity)
	if line.Quantity <= 0 {
		return ErrOutOfStock
	}
	*ls = append(*ls, line)
	return nil
}

// SetQty sets the quantity of the line with key. A non-positive quantity, or
// one clamped down to zero, removes the line.
func (ls *Lines) SetQty(key string, qty int) error {
	i := ls.Find(key)
	if i < 0 {
		return ErrLineNotFound
	}
	q := (*ls)[i].clamp(qty)
	if q <= 0 {
		return ls.Remove(key)
	}
	(*ls)[i].Quantity = q
	return nil
}

func (ls *Lines) Remove(key string) error {
	i := ls.Find(key)
	if i < 0 {
		return ErrLineNotFound
	}
	*ls = append((*ls)[:i], (*ls)[i+1:]...)
	return nil
}

func (ls Lines) Count() int {
	n := 0
	for _, l := range ls {
		n += l.Quantity
	}
	return n
}

func (ls Lines) Totals() Totals {
	subtotal := decimal.Zero
	for _, l := range ls {
		subtotal = subtotal.Add(l.LineTotal())
	}
	// shipping is quoted by the backend during checkout
	shipping := decimal.Zero
	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal.Add(shipping),
	}
}

// Clone returns a copy that shares no backing array with ls.
func (ls Lines) Clone() Lines {
	if ls == nil {
		return Lines{}
	}
	out := make(Lines, len(ls))
	copy(out, ls)
	return out
}
