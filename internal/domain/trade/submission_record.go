package trade

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/erp/orderdesk/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of order dates
const DateLayout = "2006-01-02"

// SubmissionRecord is the immutable payload handed to persistence:
// header fields, computed totals and the rows at submit time.
// Its JSON field names depend on Direction (see MarshalJSON).
type SubmissionRecord struct {
	Direction      Direction
	DocumentNumber string
	OrderDate      time.Time
	ExpectedDate   time.Time
	PartyID        ReferenceID
	Status         OrderStatus
	Notes          string
	ShippingFee    decimal.Decimal
	Discount       decimal.Decimal
	TaxRatePercent decimal.Decimal
	Items          []LineItem
	Totals         OrderTotals
}

// LineItems returns a copy of the record's rows
func (r SubmissionRecord) LineItems() []LineItem {
	out := make([]LineItem, len(r.Items))
	copy(out, r.Items)
	return out
}

// Equal compares two records field by field, using numeric equality for
// amounts so that 58 and 58.00 compare equal.
func (r SubmissionRecord) Equal(o SubmissionRecord) bool {
	if r.Direction != o.Direction ||
		r.DocumentNumber != o.DocumentNumber ||
		!r.OrderDate.Equal(o.OrderDate) ||
		!r.ExpectedDate.Equal(o.ExpectedDate) ||
		r.PartyID != o.PartyID ||
		r.Status != o.Status ||
		r.Notes != o.Notes ||
		!r.ShippingFee.Equal(o.ShippingFee) ||
		!r.Discount.Equal(o.Discount) ||
		!r.TaxRatePercent.Equal(o.TaxRatePercent) ||
		len(r.Items) != len(o.Items) {
		return false
	}
	for i := range r.Items {
		a, b := r.Items[i], o.Items[i]
		if a.ProductID != b.ProductID || a.Quantity != b.Quantity || !a.UnitCost.Equal(b.UnitCost) {
			return false
		}
	}
	return r.Totals.Subtotal.Equal(o.Totals.Subtotal) &&
		r.Totals.ShippingFee.Equal(o.Totals.ShippingFee) &&
		r.Totals.ClampedDiscount.Equal(o.Totals.ClampedDiscount) &&
		r.Totals.TaxAmount.Equal(o.Totals.TaxAmount) &&
		r.Totals.GrandTotal.Equal(o.Totals.GrandTotal)
}

// Matches reports whether the record matches a free-text query on document
// number, party id or notes (case-insensitive)
func (r SubmissionRecord) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.DocumentNumber), q) ||
		strings.Contains(strings.ToLower(r.PartyID.String()), q) ||
		strings.Contains(strings.ToLower(r.Notes), q)
}

// recordItemWire is one row on the wire. Sales rows carry "price",
// purchase rows carry "cost".
type recordItemWire struct {
	ProductID ReferenceID        `json:"productId"`
	Qty       any                `json:"qty"`
	Price     *valueobject.Money `json:"price,omitempty"`
	Cost      *valueobject.Money `json:"cost,omitempty"`
}

type recordWire struct {
	InvoiceNumber   string            `json:"invoiceNumber,omitempty"`
	PurchaseNumber  string            `json:"purchaseNumber,omitempty"`
	Date            string            `json:"date"`
	DueDate         string            `json:"dueDate,omitempty"`
	ExpectedDate    string            `json:"expectedDate,omitempty"`
	CustomerID      *ReferenceID      `json:"customerId,omitempty"`
	SupplierID      *ReferenceID      `json:"supplierId,omitempty"`
	Status          OrderStatus       `json:"status"`
	Notes           string            `json:"notes,omitempty"`
	Shipping        valueobject.Money `json:"shipping"`
	Discount        valueobject.Money `json:"discount"`
	TaxRate         valueobject.Money `json:"taxRate"`
	Items           []recordItemWire  `json:"items"`
	Subtotal        valueobject.Money `json:"subtotal"`
	DiscountApplied valueobject.Money `json:"discountApplied"`
	TaxAmount       valueobject.Money `json:"taxAmount"`
	GrandTotal      valueobject.Money `json:"grandTotal"`
}

// MarshalJSON writes the record with direction-specific field names
func (r SubmissionRecord) MarshalJSON() ([]byte, error) {
	w := recordWire{
		Date:            formatDate(r.OrderDate),
		Status:          r.Status,
		Notes:           r.Notes,
		Shipping:        valueobject.NewMoney(r.ShippingFee),
		Discount:        valueobject.NewMoney(r.Discount),
		TaxRate:         valueobject.NewMoney(r.TaxRatePercent),
		Items:           make([]recordItemWire, 0, len(r.Items)),
		Subtotal:        valueobject.NewMoney(r.Totals.Subtotal),
		DiscountApplied: valueobject.NewMoney(r.Totals.ClampedDiscount),
		TaxAmount:       valueobject.NewMoney(r.Totals.TaxAmount),
		GrandTotal:      valueobject.NewMoney(r.Totals.GrandTotal),
	}
	party := r.PartyID

	if r.Direction == DirectionPurchase {
		w.PurchaseNumber = r.DocumentNumber
		w.ExpectedDate = formatDate(r.ExpectedDate)
		w.SupplierID = &party
	} else {
		w.InvoiceNumber = r.DocumentNumber
		w.DueDate = formatDate(r.ExpectedDate)
		w.CustomerID = &party
	}

	for _, item := range r.Items {
		amount := valueobject.NewMoney(item.UnitCost)
		iw := recordItemWire{ProductID: item.ProductID, Qty: item.Quantity}
		if r.Direction == DirectionPurchase {
			iw.Cost = &amount
		} else {
			iw.Price = &amount
		}
		w.Items = append(w.Items, iw)
	}

	return json.Marshal(w)
}

// UnmarshalJSON reads either naming. A record carrying purchaseNumber or
// supplierId is a purchase; anything else is a sale. Missing or malformed
// numbers decode as zero.
func (r *SubmissionRecord) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	rec := SubmissionRecord{
		Direction:      DirectionSales,
		DocumentNumber: w.InvoiceNumber,
		OrderDate:      parseDate(w.Date),
		ExpectedDate:   parseDate(w.DueDate),
		Status:         w.Status,
		Notes:          w.Notes,
		ShippingFee:    w.Shipping.Amount(),
		Discount:       w.Discount.Amount(),
		TaxRatePercent: w.TaxRate.Amount(),
		Items:          make([]LineItem, 0, len(w.Items)),
		Totals: OrderTotals{
			Subtotal:        w.Subtotal.Amount(),
			ShippingFee:     w.Shipping.Amount(),
			ClampedDiscount: w.DiscountApplied.Amount(),
			TaxAmount:       w.TaxAmount.Amount(),
			GrandTotal:      w.GrandTotal.Amount(),
		},
	}
	if w.CustomerID != nil {
		rec.PartyID = *w.CustomerID
	}

	if w.PurchaseNumber != "" || w.SupplierID != nil {
		rec.Direction = DirectionPurchase
		rec.DocumentNumber = w.PurchaseNumber
		rec.ExpectedDate = parseDate(w.ExpectedDate)
		if w.SupplierID != nil {
			rec.PartyID = *w.SupplierID
		}
	}

	for _, iw := range w.Items {
		item := LineItem{
			ProductID: iw.ProductID,
			Quantity:  valueobject.Coerce(iw.Qty).IntPart(),
		}
		switch {
		case iw.Price != nil:
			item.UnitCost = iw.Price.Amount()
		case iw.Cost != nil:
			item.UnitCost = iw.Cost.Amount()
		default:
			item.UnitCost = decimal.Zero
		}
		rec.Items = append(rec.Items, item)
	}

	*r = rec
	return nil
}

// DecodeRecords decodes a JSON array of records. An absent or malformed
// value decodes as an empty list.
func DecodeRecords(raw string) []SubmissionRecord {
	if strings.TrimSpace(raw) == "" {
		return []SubmissionRecord{}
	}
	var records []SubmissionRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil || records == nil {
		return []SubmissionRecord{}
	}
	return records
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// parseDate accepts "2006-01-02" or RFC 3339. Unparseable values are zero.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOnly(t)
	}
	return time.Time{}
}
