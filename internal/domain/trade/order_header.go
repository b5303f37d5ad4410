package trade

import (
	"time"

	"github.com/erp/orderdesk/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Direction distinguishes outbound sales from inbound purchases
type Direction string

const (
	DirectionSales    Direction = "sales"
	DirectionPurchase Direction = "purchase"
)

// IsValid checks if the direction is known
func (d Direction) IsValid() bool {
	return d == DirectionSales || d == DirectionPurchase
}

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// ResourcePath is the collection path used by the remote endpoints
func (d Direction) ResourcePath() string {
	if d == DirectionPurchase {
		return "purchases"
	}
	return "sales"
}

// StorageKey is the fixed key under which local fallback records are kept
func (d Direction) StorageKey() string {
	if d == DirectionPurchase {
		return "purchaseRecords"
	}
	return "salesRecords"
}

// DocumentPrefix prefixes generated document numbers
func (d Direction) DocumentPrefix() string {
	if d == DirectionPurchase {
		return "PO"
	}
	return "INV"
}

// ParseDirection maps a collection path or direction name to a Direction
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "sales", "sale":
		return DirectionSales, true
	case "purchase", "purchases":
		return DirectionPurchase, true
	}
	return "", false
}

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "Pending"
	OrderStatusApproved      OrderStatus = "Approved"
	OrderStatusPaid          OrderStatus = "Paid"
	OrderStatusReceived      OrderStatus = "Received"
	OrderStatusPartiallyPaid OrderStatus = "Partially Paid"
	OrderStatusCancelled     OrderStatus = "Cancelled"
)

// IsValid checks if the status is a valid OrderStatus for any direction
func (s OrderStatus) IsValid() bool {
	return s.IsValidFor(DirectionSales) || s.IsValidFor(DirectionPurchase)
}

// IsValidFor checks if the status applies to orders of the given direction
func (s OrderStatus) IsValidFor(d Direction) bool {
	switch s {
	case OrderStatusPending, OrderStatusCancelled:
		return true
	case OrderStatusPaid, OrderStatusPartiallyPaid:
		return d == DirectionSales
	case OrderStatusApproved, OrderStatusReceived:
		return d == DirectionPurchase
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// StatusesFor lists the statuses selectable for a direction
func StatusesFor(d Direction) []OrderStatus {
	if d == DirectionPurchase {
		return []OrderStatus{OrderStatusPending, OrderStatusApproved, OrderStatusReceived, OrderStatusCancelled}
	}
	return []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusPartiallyPaid, OrderStatusCancelled}
}

// OrderHeader holds the order-level fields of an order being edited.
// Monetary adjustments are stored as entered; the pricing functions coerce
// them at read time.
type OrderHeader struct {
	Direction      Direction
	DocumentNumber string
	OrderDate      time.Time
	ExpectedDate   time.Time // zero when not set
	PartyID        ReferenceID
	Status         OrderStatus
	ShippingFee    decimal.Decimal
	Discount       decimal.Decimal
	TaxRatePercent decimal.Decimal
	Notes          string
}

// NewOrderHeader returns a header with defaults: the given document number,
// today's date, Pending status and zero adjustments.
func NewOrderHeader(direction Direction, documentNumber string, today time.Time) OrderHeader {
	return OrderHeader{
		Direction:      direction,
		DocumentNumber: documentNumber,
		OrderDate:      DateOnly(today),
		Status:         OrderStatusPending,
		ShippingFee:    decimal.Zero,
		Discount:       decimal.Zero,
		TaxRatePercent: decimal.Zero,
	}
}

// Adjustments returns the coerced, non-negative order-level adjustments
func (h OrderHeader) Adjustments() Adjustments {
	return Adjustments{
		ShippingFee:    valueobject.NonNegative(h.ShippingFee),
		Discount:       h.Discount,
		TaxRatePercent: valueobject.NonNegative(h.TaxRatePercent),
	}
}

// DateOnly strips the clock from t and pins it to UTC so that dates survive
// a "2006-01-02" round trip unchanged.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
