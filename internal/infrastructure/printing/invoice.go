package printing

import (
	"strings"
	"time"

	"github.com/erp/orderdesk/internal/domain/printing"
	"github.com/erp/orderdesk/internal/domain/shared/valueobject"
	"github.com/erp/orderdesk/internal/domain/trade"
	"go.uber.org/zap"
)

// DefaultClosingNote ends every invoice unless configured otherwise
const DefaultClosingNote = "Thank you for your business!"

// InvoiceRendererOption configures an InvoiceRenderer
type InvoiceRendererOption func(*InvoiceRenderer)

// WithCompanyName prints the company name above the title
func WithCompanyName(name string) InvoiceRendererOption {
	return func(r *InvoiceRenderer) {
		r.companyName = name
	}
}

// WithClosingNote replaces the closing note
func WithClosingNote(note string) InvoiceRendererOption {
	return func(r *InvoiceRenderer) {
		if note != "" {
			r.closingNote = note
		}
	}
}

// WithRendererLogger sets the logger that reports unresolved references
func WithRendererLogger(logger *zap.Logger) InvoiceRendererOption {
	return func(r *InvoiceRenderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// InvoiceRenderer builds the printable document of a submitted order. It
// reads the record and never changes it. Products and parties that cannot be
// resolved are printed as "Unknown"; amounts always come from the record.
type InvoiceRenderer struct {
	companyName string
	closingNote string
	logger      *zap.Logger
}

// NewInvoiceRenderer creates a new InvoiceRenderer
func NewInvoiceRenderer(opts ...InvoiceRendererOption) *InvoiceRenderer {
	r := &InvoiceRenderer{
		closingNote: DefaultClosingNote,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render lays out record using products and parties to resolve names
func (r *InvoiceRenderer) Render(record trade.SubmissionRecord, products, parties trade.NameIndex) printing.InvoiceDocument {
	doc := printing.InvoiceDocument{
		Title:          "INVOICE",
		CompanyName:    r.companyName,
		NumberLabel:    "Invoice Number",
		DocumentNumber: record.DocumentNumber,
		Date:           formatDate(record.OrderDate),
		ExpectedLabel:  "Due Date",
		ExpectedDate:   formatDate(record.ExpectedDate),
		PartyLabel:     "Customer",
		Status:         record.Status.String(),
		Notes:          strings.TrimSpace(record.Notes),
		ClosingNote:    r.closingNote,
	}
	if record.Direction == trade.DirectionPurchase {
		doc.Title = "PURCHASE ORDER"
		doc.NumberLabel = "PO Number"
		doc.ExpectedLabel = "Expected Date"
		doc.PartyLabel = "Supplier"
	}

	if record.PartyID.IsEmpty() {
		doc.PartyName = trade.UnknownName
	} else {
		name, ok := parties.Resolve(record.PartyID)
		if !ok {
			r.logger.Debug("Party not found for invoice",
				zap.String("document_number", record.DocumentNumber),
				zap.String("party_id", record.PartyID.String()),
			)
		}
		doc.PartyName = name
	}

	items := record.LineItems()
	doc.Rows = make([]printing.InvoiceRow, 0, len(items))
	for i, item := range items {
		name, ok := products.Resolve(item.ProductID)
		if !ok {
			r.logger.Debug("Product not found for invoice row",
				zap.String("document_number", record.DocumentNumber),
				zap.Int("row", i+1),
				zap.String("product_id", item.ProductID.String()),
			)
		}
		doc.Rows = append(doc.Rows, printing.InvoiceRow{
			Index:       i + 1,
			ProductName: name,
			Quantity:    item.BilledQuantity(),
			UnitCost:    valueobject.FormatAmount(item.UnitCost),
			Amount:      valueobject.FormatAmount(trade.LineTotal(item)),
		})
	}

	t := record.Totals
	doc.Totals = printing.InvoiceTotals{
		Subtotal:   valueobject.FormatAmount(t.Subtotal),
		Shipping:   valueobject.FormatAmount(t.ShippingFee),
		Discount:   valueobject.FormatAmount(t.ClampedDiscount),
		Tax:        valueobject.FormatAmount(t.TaxAmount),
		GrandTotal: valueobject.FormatAmount(t.GrandTotal),
	}
	return doc
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(trade.DateLayout)
}
