package trade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// UnknownName is displayed when a reference id cannot be resolved
const UnknownName = "Unknown"

// ReferenceID identifies a product or party. Reference endpoints return ids
// either as JSON strings or numbers, so both are accepted when decoding.
type ReferenceID string

// IsEmpty reports whether no reference is set
func (id ReferenceID) IsEmpty() bool {
	return id == ""
}

// String returns the id as a string
func (id ReferenceID) String() string {
	return string(id)
}

// UnmarshalJSON accepts a string, a number or null
func (id *ReferenceID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ReferenceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("reference id must be a string or number: %w", err)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*id = ReferenceID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ReferenceID(n.String())
	return nil
}

// Product is reference data for a line item
type Product struct {
	ID          ReferenceID      `json:"id"`
	Name        string           `json:"name"`
	DefaultCost *decimal.Decimal `json:"defaultCost,omitempty"`
}

// UnitCost returns the product's default unit cost, zero when unknown
func (p Product) UnitCost() decimal.Decimal {
	if p.DefaultCost == nil || p.DefaultCost.IsNegative() {
		return decimal.Zero
	}
	return *p.DefaultCost
}

// Party is a supplier or a customer
type Party struct {
	ID   ReferenceID `json:"id"`
	Name string      `json:"name"`
}

// ReferenceData provides the products and parties an order can refer to
type ReferenceData interface {
	Products(ctx context.Context) ([]Product, error)
	Suppliers(ctx context.Context) ([]Party, error)
	Customers(ctx context.Context) ([]Party, error)
}

// PartiesFor returns suppliers for purchases and customers for sales
func PartiesFor(ctx context.Context, ref ReferenceData, direction Direction) ([]Party, error) {
	if direction == DirectionPurchase {
		return ref.Suppliers(ctx)
	}
	return ref.Customers(ctx)
}

// NameIndex resolves reference ids to display names
type NameIndex map[ReferenceID]string

// NewProductIndex builds a NameIndex over products
func NewProductIndex(products []Product) NameIndex {
	idx := make(NameIndex, len(products))
	for _, p := range products {
		idx[p.ID] = p.Name
	}
	return idx
}

// NewPartyIndex builds a NameIndex over parties
func NewPartyIndex(parties []Party) NameIndex {
	idx := make(NameIndex, len(parties))
	for _, p := range parties {
		idx[p.ID] = p.Name
	}
	return idx
}

// Resolve returns the display name for id and whether it was found.
// Unresolved ids yield UnknownName.
func (idx NameIndex) Resolve(id ReferenceID) (string, bool) {
	if name, ok := idx[id]; ok && name != "" {
		return name, true
	}
	return UnknownName, false
}
