package payment

import "context"

// Product is a catalog entry returned by the payment system's product query.
// Entries are loaded once per process and are not persisted.
type Product struct {
	ProductID      string
	LocalizedTitle string

	// Price is the decimal amount; DisplayPrice is the platform-formatted
	// string for Price in PriceLocale.
	Price        float64
	DisplayPrice string
	PriceLocale  string
}

// LocalizedPrice returns the user-facing price label. Free products render
// as "Get".
func (p *Product) LocalizedPrice() string {
	if p.Price == 0 {
		return "Get"
	}
	if p.DisplayPrice == "" {
		return "Unknown Price"
	}
	return p.DisplayPrice
}

type Catalog interface {
	// Products returns catalog entries for the requested product
	// identifiers. Unknown identifiers are omitted from the result.
	Products(ctx context.Context, productIDs ...string) ([]*Product, error)
}
