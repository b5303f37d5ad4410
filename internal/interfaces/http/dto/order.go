package dto

import (
	"strings"
	"time"

	"github.com/erp/orderdesk/internal/domain/shared/valueobject"
	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/shopspring/decimal"
)

// ListQuery are the query parameters of the order list endpoints
type ListQuery struct {
	Page int    `form:"page" binding:"omitempty,min=1"`
	Size int    `form:"size" binding:"omitempty,min=1,max=500"`
	Q    string `form:"q" binding:"max=200"`
}

// ToDomain converts the query parameters
func (q ListQuery) ToDomain() trade.ListQuery {
	return trade.ListQuery{Page: q.Page, Size: q.Size, Q: q.Q}
}

// InvoiceQuery selects the invoice output format
type InvoiceQuery struct {
	Format string `form:"format" binding:"omitempty,oneof=json html pdf"`
}

// QuoteItem is one row of a draft order. Amounts are loosely typed: numbers,
// numeric strings and null are accepted, anything else counts as zero.
type QuoteItem struct {
	ProductID trade.ReferenceID `json:"productId"`
	UnitCost  any               `json:"unitCost"`
	Quantity  any               `json:"qty"`
}

// QuoteRequest prices a draft order without submitting it
type QuoteRequest struct {
	Items    []QuoteItem `json:"items" binding:"max=500"`
	Shipping any         `json:"shipping"`
	Discount any         `json:"discount"`
	TaxRate  any         `json:"taxRate"`
}

// ToDomain coerces the draft into rows and adjustments
func (r QuoteRequest) ToDomain() ([]trade.LineItem, trade.Adjustments) {
	items := make([]trade.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, trade.LineItem{
			ProductID: it.ProductID,
			UnitCost:  valueobject.Coerce(it.UnitCost),
			Quantity:  valueobject.Coerce(it.Quantity).IntPart(),
		})
	}
	return items, trade.Adjustments{
		ShippingFee:    valueobject.Coerce(r.Shipping),
		Discount:       valueobject.Coerce(r.Discount),
		TaxRatePercent: valueobject.Coerce(r.TaxRate),
	}
}

// QuoteLine is the priced form of one draft row
type QuoteLine struct {
	ProductID trade.ReferenceID `json:"productId"`
	Amount    valueobject.Money `json:"amount"`
}

// QuoteResponse carries the totals of a draft, as numbers and for display
type QuoteResponse struct {
	Lines           []QuoteLine       `json:"lines"`
	Subtotal        valueobject.Money `json:"subtotal"`
	Shipping        valueobject.Money `json:"shipping"`
	DiscountApplied valueobject.Money `json:"discountApplied"`
	TaxAmount       valueobject.Money `json:"taxAmount"`
	GrandTotal      valueobject.Money `json:"grandTotal"`
	Display         map[string]string `json:"display"`
	// Submittable is false when nothing is priced yet
	Submittable bool `json:"submittable"`
}

// NewQuoteResponse builds the response from the priced rows and totals
func NewQuoteResponse(items []trade.LineItem, totals trade.OrderTotals) QuoteResponse {
	lines := make([]QuoteLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, QuoteLine{
			ProductID: it.ProductID,
			Amount:    valueobject.NewMoney(trade.LineTotal(it)),
		})
	}
	return QuoteResponse{
		Lines:           lines,
		Subtotal:        valueobject.NewMoney(totals.Subtotal),
		Shipping:        valueobject.NewMoney(totals.ShippingFee),
		DiscountApplied: valueobject.NewMoney(totals.ClampedDiscount),
		TaxAmount:       valueobject.NewMoney(totals.TaxAmount),
		GrandTotal:      valueobject.NewMoney(totals.GrandTotal),
		Display: map[string]string{
			"subtotal":        valueobject.FormatAmount(totals.Subtotal),
			"shipping":        valueobject.FormatAmount(totals.ShippingFee),
			"discountApplied": valueobject.FormatAmount(totals.ClampedDiscount),
			"taxAmount":       valueobject.FormatAmount(totals.TaxAmount),
			"grandTotal":      valueobject.FormatAmount(totals.GrandTotal),
		},
		Submittable: totals.Subtotal.IsPositive(),
	}
}

// OrderItemRequest is one submitted row. Sales rows carry price, purchase
// rows carry cost.
type OrderItemRequest struct {
	ProductID trade.ReferenceID `json:"productId"`
	Qty       any               `json:"qty"`
	Price     any               `json:"price"`
	Cost      any               `json:"cost"`
}

// UnitCost returns the row's price or cost, whichever is present
func (i OrderItemRequest) UnitCost() decimal.Decimal {
	if i.Price != nil {
		return valueobject.Coerce(i.Price)
	}
	return valueobject.Coerce(i.Cost)
}

// OrderRequest is a submitted order in either naming: invoiceNumber,
// customerId and dueDate for sales; purchaseNumber, supplierId and
// expectedDate for purchases. Totals are never read from the request.
type OrderRequest struct {
	InvoiceNumber  string             `json:"invoiceNumber"`
	PurchaseNumber string             `json:"purchaseNumber"`
	Date           string             `json:"date"`
	DueDate        string             `json:"dueDate"`
	ExpectedDate   string             `json:"expectedDate"`
	CustomerID     *trade.ReferenceID `json:"customerId"`
	SupplierID     *trade.ReferenceID `json:"supplierId"`
	Status         trade.OrderStatus  `json:"status"`
	Notes          string             `json:"notes" binding:"max=2000"`
	Shipping       any                `json:"shipping"`
	Discount       any                `json:"discount"`
	TaxRate        any                `json:"taxRate"`
	Items          []OrderItemRequest `json:"items" binding:"max=500"`
}

// Direction returns the direction implied by the field names, or false when
// the request mixes sales and purchase fields. A request using neither
// naming matches any direction and yields "".
func (r OrderRequest) Direction() (trade.Direction, bool) {
	sales := r.InvoiceNumber != "" || r.CustomerID != nil || r.DueDate != ""
	purchase := r.PurchaseNumber != "" || r.SupplierID != nil || r.ExpectedDate != ""
	switch {
	case sales && purchase:
		return "", false
	case sales:
		return trade.DirectionSales, true
	case purchase:
		return trade.DirectionPurchase, true
	}
	return "", true
}

// DocumentNumber returns the number in the request's naming
func (r OrderRequest) DocumentNumber() string {
	if r.PurchaseNumber != "" {
		return r.PurchaseNumber
	}
	return r.InvoiceNumber
}

// PartyID returns the customer or supplier id
func (r OrderRequest) PartyID() trade.ReferenceID {
	switch {
	case r.SupplierID != nil:
		return *r.SupplierID
	case r.CustomerID != nil:
		return *r.CustomerID
	}
	return ""
}

// OrderDate parses date; ok is false when it is set but malformed
func (r OrderRequest) OrderDate() (time.Time, bool) {
	return parseRequestDate(r.Date)
}

// Expected parses dueDate or expectedDate
func (r OrderRequest) Expected() (time.Time, bool) {
	if r.ExpectedDate != "" {
		return parseRequestDate(r.ExpectedDate)
	}
	return parseRequestDate(r.DueDate)
}

// LineItems coerces the submitted rows
func (r OrderRequest) LineItems() []trade.LineItem {
	items := make([]trade.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, trade.LineItem{
			ProductID: it.ProductID,
			UnitCost:  it.UnitCost(),
			Quantity:  valueobject.Coerce(it.Qty).IntPart(),
		})
	}
	return items
}

func parseRequestDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(trade.DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return trade.DateOnly(t), true
	}
	return time.Time{}, false
}

// SubmitResponse is returned for a persisted order
type SubmitResponse struct {
	OK     bool                    `json:"ok"`
	Source string                  `json:"source"`
	Record *trade.SubmissionRecord `json:"data"`
	// PrintError is set when the order was persisted but printing failed
	PrintError string `json:"printError,omitempty"`
}
