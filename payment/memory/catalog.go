package memory

import (
	"context"

	"github.com/pashaMoroz/entitlement-server/payment"
)

// Catalog serves a fixed product list.
type Catalog struct {
	products map[string]*payment.Product
}

func NewCatalog(products ...*payment.Product) *Catalog {
	byID := make(map[string]*payment.Product, len(products))
	for _, p := range products {
		byID[p.ProductID] = p
	}
	return &Catalog{products: byID}
}

func (c *Catalog) Products(ctx context.Context, productIDs ...string) ([]*payment.Product, error) {
	var res []*payment.Product
	for _, id := range productIDs {
		if p, ok := c.products[id]; ok {
			cloned := *p
			res = append(res, &cloned)
		}
	}
	return res, nil
}
