package domain

import "github.com/shopspring/decimal"

// ServerCart is the authenticated cart as returned by GET /cart/.
type ServerCart struct {
	ID    int64            `json:"id"`
	User  int64            `json:"user"`
	Items []ServerCartItem `json:"items"`
}

type Availability struct {
	Status      string `json:"status"`
	Available   *int   `json:"available"`
	Requested   int    `json:"requested"`
	CanPurchase bool   `json:"can_purchase"`
}

type ServerCartItem struct {
	ID              int64           `json:"id"`
	Product         int64           `json:"product"`
	ProductName     string          `json:"product_name"`
	ProductPrice    decimal.Decimal `json:"product_price"`
	Variant         *int64          `json:"variant"`
	VariantSize     string          `json:"variant_size"`
	SizeLabel       string          `json:"size_label"`
	Quantity        int             `json:"quantity"`
	Availability    *Availability   `json:"availability"`
	ProductImageURL string          `json:"product_image_url"`
}

func (it ServerCartItem) size() string {
	if it.SizeLabel != "" {
		return it.SizeLabel
	}
	return it.VariantSize
}

// Lines normalizes the server cart into cart lines keyed by server item id.
func (c *ServerCart) Lines() Lines {
	if c == nil {
		return Lines{}
	}
	out := make(Lines, 0, len(c.Items))
	for _, it := range c.Items {
		line := CartLine{
			Key:             ServerLineKey(it.ID),
			ProductID:       it.Product,
			Name:            it.ProductName,
			UnitPrice:       it.ProductPrice,
			Image:           it.ProductImageURL,
			Quantity:        it.Quantity,
			SelectedSize:    it.size(),
			ServerItemID:    it.ID,
			ServerVariantID: it.Variant,
		}
		if it.Availability != nil && it.Availability.Available != nil {
			stock := *it.Availability.Available
			line.AvailableStock = &stock
		}
		out = append(out, line)
	}
	return out
}
