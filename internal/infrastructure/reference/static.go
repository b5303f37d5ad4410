package reference

import (
	"context"

	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/erp/orderdesk/internal/infrastructure/config"
	"github.com/shopspring/decimal"
)

// Catalog serves a fixed set of reference data
type Catalog struct {
	products  []trade.Product
	suppliers []trade.Party
	customers []trade.Party
}

// NewCatalog creates a catalog from the given lists
func NewCatalog(products []trade.Product, suppliers, customers []trade.Party) *Catalog {
	return &Catalog{
		products:  products,
		suppliers: suppliers,
		customers: customers,
	}
}

// NewCatalogFromConfig creates a catalog from the [catalog] config section
func NewCatalogFromConfig(cfg config.CatalogConfig) *Catalog {
	products := make([]trade.Product, 0, len(cfg.Products))
	for _, p := range cfg.Products {
		cost := decimal.NewFromFloat(p.DefaultCost)
		products = append(products, trade.Product{
			ID:          trade.ReferenceID(p.ID),
			Name:        p.Name,
			DefaultCost: &cost,
		})
	}
	return NewCatalog(products, toParties(cfg.Suppliers), toParties(cfg.Customers))
}

func toParties(in []config.CatalogParty) []trade.Party {
	out := make([]trade.Party, 0, len(in))
	for _, p := range in {
		out = append(out, trade.Party{ID: trade.ReferenceID(p.ID), Name: p.Name})
	}
	return out
}

// Products implements trade.ReferenceData
func (c *Catalog) Products(ctx context.Context) ([]trade.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]trade.Product(nil), c.products...), nil
}

// Suppliers implements trade.ReferenceData
func (c *Catalog) Suppliers(ctx context.Context) ([]trade.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]trade.Party(nil), c.suppliers...), nil
}

// Customers implements trade.ReferenceData
func (c *Catalog) Customers(ctx context.Context) ([]trade.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]trade.Party(nil), c.customers...), nil
}

var _ trade.ReferenceData = (*Catalog)(nil)
