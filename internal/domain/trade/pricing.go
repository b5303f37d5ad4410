package trade

import (
	"github.com/erp/orderdesk/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Adjustments are the order-level inputs of the pricing functions
type Adjustments struct {
	ShippingFee    decimal.Decimal
	Discount       decimal.Decimal
	TaxRatePercent decimal.Decimal
}

// OrderTotals are derived from line items and adjustments on every read.
// They are never kept as independent mutable state.
type OrderTotals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingFee     decimal.Decimal `json:"shipping"`
	ClampedDiscount decimal.Decimal `json:"discountApplied"`
	TaxAmount       decimal.Decimal `json:"taxAmount"`
	GrandTotal      decimal.Decimal `json:"grandTotal"`
}

// LineTotal returns quantity * unit cost. Negative inputs count as zero.
func LineTotal(item LineItem) decimal.Decimal {
	return valueobject.NewMoney(valueobject.NonNegative(item.UnitCost)).MultiplyByInt(item.BilledQuantity()).Amount()
}

// Subtotal sums the line totals
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(LineTotal(item))
	}
	return sum
}

// PayableBase is subtotal plus shipping, the ceiling for any discount
func PayableBase(subtotal, shippingFee decimal.Decimal) decimal.Decimal {
	return valueobject.NonNegative(subtotal).Add(valueobject.NonNegative(shippingFee))
}

// ClampDiscount bounds the discount to [0, subtotal + shipping].
// The discount is always taken before tax.
func ClampDiscount(discount, subtotal, shippingFee decimal.Decimal) decimal.Decimal {
	base := PayableBase(subtotal, shippingFee)
	d := valueobject.NonNegative(discount)
	if d.GreaterThan(base) {
		return base
	}
	return d
}

// TaxAmount applies the flat rate to the post-discount, post-shipping base.
// It is never negative.
func TaxAmount(subtotal, shippingFee, clampedDiscount, taxRatePercent decimal.Decimal) decimal.Decimal {
	taxable := valueobject.NonNegative(PayableBase(subtotal, shippingFee).Sub(clampedDiscount))
	return valueobject.NewMoney(taxable).CalculatePercentage(valueobject.NonNegative(taxRatePercent)).Amount()
}

// GrandTotal is subtotal + shipping - clamped discount + tax
func GrandTotal(subtotal, shippingFee, clampedDiscount, taxAmount decimal.Decimal) decimal.Decimal {
	return valueobject.NewMoney(PayableBase(subtotal, shippingFee)).
		Subtract(valueobject.NewMoney(clampedDiscount)).
		Add(valueobject.NewMoney(taxAmount)).
		Amount()
}

// ComputeTotals derives all totals from a snapshot of rows and adjustments
func ComputeTotals(items []LineItem, adj Adjustments) OrderTotals {
	subtotal := Subtotal(items)
	shipping := valueobject.NonNegative(adj.ShippingFee)
	discount := ClampDiscount(adj.Discount, subtotal, shipping)
	tax := TaxAmount(subtotal, shipping, discount, adj.TaxRatePercent)

	return OrderTotals{
		Subtotal:        subtotal,
		ShippingFee:     shipping,
		ClampedDiscount: discount,
		TaxAmount:       tax,
		GrandTotal:      GrandTotal(subtotal, shipping, discount, tax),
	}
}

// ComputeHeaderTotals derives totals for a header and its rows
func ComputeHeaderTotals(items []LineItem, header OrderHeader) OrderTotals {
	return ComputeTotals(items, header.Adjustments())
}
