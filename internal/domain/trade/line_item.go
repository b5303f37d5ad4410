package trade

import (
	"github.com/erp/orderdesk/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LineItem represents one product row of an order
type LineItem struct {
	ProductID ReferenceID     // optional
	UnitCost  decimal.Decimal // >= 0
	Quantity  int64           // >= 1
}

// NewLineItem creates an empty row: no product, zero cost, quantity 1
func NewLineItem() LineItem {
	return LineItem{
		UnitCost: decimal.Zero,
		Quantity: 1,
	}
}

// normalize enforces the row invariants at the mutation boundary:
// negative costs become 0 and quantities below 1 become 1.
func (i LineItem) normalize() LineItem {
	if i.UnitCost.IsNegative() {
		i.UnitCost = decimal.Zero
	}
	if i.Quantity < 1 {
		i.Quantity = 1
	}
	return i
}

// BilledQuantity is the quantity the row is priced and printed with.
// A negative quantity, possible only in decoded records, counts as zero.
func (i LineItem) BilledQuantity() int64 {
	if i.Quantity < 0 {
		return 0
	}
	return i.Quantity
}

// LineItemStore is the ordered, mutable collection of rows of one order.
// Rows are identified by position for the current session only.
// The store never becomes empty.
type LineItemStore struct {
	items []LineItem
}

// NewLineItemStore creates a store holding a single empty row
func NewLineItemStore() *LineItemStore {
	return &LineItemStore{items: []LineItem{NewLineItem()}}
}

// Len returns the number of rows
func (s *LineItemStore) Len() int {
	return len(s.items)
}

// Add appends an empty row and returns its index
func (s *LineItemStore) Add() int {
	s.items = append(s.items, NewLineItem())
	return len(s.items) - 1
}

// Append adds a filled row and returns its index
func (s *LineItemStore) Append(item LineItem) int {
	s.items = append(s.items, item.normalize())
	return len(s.items) - 1
}

// Remove deletes the row at index. Removing the last remaining row, or an
// index out of range, is a no-op and returns false.
func (s *LineItemStore) Remove(index int) bool {
	if len(s.items) <= 1 || index < 0 || index >= len(s.items) {
		return false
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	return true
}

// At returns a copy of the row at index
func (s *LineItemStore) At(index int) (LineItem, error) {
	if index < 0 || index >= len(s.items) {
		return LineItem{}, shared.NewDomainError("ITEM_NOT_FOUND", "Line item not found")
	}
	return s.items[index], nil
}

// Update applies fn to the row at index, then re-normalizes the row
func (s *LineItemStore) Update(index int, fn func(item *LineItem)) error {
	if index < 0 || index >= len(s.items) {
		return shared.NewDomainError("ITEM_NOT_FOUND", "Line item not found")
	}
	item := s.items[index]
	fn(&item)
	s.items[index] = item.normalize()
	return nil
}

// SetProduct sets the product of a row
func (s *LineItemStore) SetProduct(index int, productID ReferenceID) error {
	return s.Update(index, func(item *LineItem) { item.ProductID = productID })
}

// SetUnitCost sets the unit cost of a row
func (s *LineItemStore) SetUnitCost(index int, cost decimal.Decimal) error {
	return s.Update(index, func(item *LineItem) { item.UnitCost = cost })
}

// SetQuantity sets the quantity of a row
func (s *LineItemStore) SetQuantity(index int, quantity int64) error {
	return s.Update(index, func(item *LineItem) { item.Quantity = quantity })
}

// Items returns a snapshot of the rows. Mutating it does not affect the store.
func (s *LineItemStore) Items() []LineItem {
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Reset returns the store to a single empty row
func (s *LineItemStore) Reset() {
	s.items = []LineItem{NewLineItem()}
}
