package trade

import (
	"context"
	"sync"
	"time"

	"github.com/erp/orderdesk/internal/domain/shared"
	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoicePrinter produces the printable document of a persisted order
type InvoicePrinter interface {
	Print(ctx context.Context, record trade.SubmissionRecord) error
}

// RowPatch carries the row fields to change; nil fields are left as they are
type RowPatch struct {
	ProductID *trade.ReferenceID
	UnitCost  *decimal.Decimal
	Quantity  *int64
}

// SubmitOutcome is the result of a successful OrderForm.Submit
type SubmitOutcome struct {
	Result *trade.SubmitResult
	Record trade.SubmissionRecord
	// Stale is set when the form was reset while the submission was in
	// flight; the form was not reset a second time.
	Stale bool
	// PrintErr is set when the order was persisted but printing failed
	PrintErr error
}

// OrderForm is one editing session of a sales or purchase order. It owns the
// header and the rows, derives totals on every read, and drives submission
// through the gateway. All methods are safe for concurrent use.
type OrderForm struct {
	mu sync.Mutex

	direction trade.Direction
	header    trade.OrderHeader
	items     *trade.LineItemStore
	touched   map[string]bool

	submitting  bool
	generation  uint64
	lastPayload *trade.SubmissionRecord

	assembler *OrderAssembler
	gateway   trade.SubmissionGateway
	numbers   trade.DocumentNumberGenerator
	printer   InvoicePrinter
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrderForm creates a form with fresh defaults: a generated document
// number, today's date and a single empty row.
func NewOrderForm(gateway trade.SubmissionGateway, numbers trade.DocumentNumberGenerator) *OrderForm {
	f := &OrderForm{
		direction: gateway.Direction(),
		assembler: NewOrderAssembler(),
		gateway:   gateway,
		numbers:   numbers,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	f.resetLocked()
	return f
}

// SetPrinter attaches a printer that runs after every successful submission
func (f *OrderForm) SetPrinter(printer InvoicePrinter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.printer = printer
}

// SetLogger sets the logger
func (f *OrderForm) SetLogger(logger *zap.Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if logger != nil {
		f.logger = logger
	}
}

// SetClock replaces the time source used for defaults
func (f *OrderForm) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if now != nil {
		f.now = now
	}
}

// Direction returns the direction of the form
func (f *OrderForm) Direction() trade.Direction {
	return f.direction
}

// Header returns a snapshot of the header
func (f *OrderForm) Header() trade.OrderHeader {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.header
}

// Items returns a snapshot of the rows
func (f *OrderForm) Items() []trade.LineItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items.Items()
}

// Totals recomputes the totals from the current rows and header
func (f *OrderForm) Totals() trade.OrderTotals {
	f.mu.Lock()
	defer f.mu.Unlock()
	return trade.ComputeHeaderTotals(f.items.Items(), f.header)
}

// AddRow appends an empty row and returns its index
func (f *OrderForm) AddRow() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[FieldItems] = true
	return f.items.Add()
}

// RemoveRow deletes a row. The last remaining row is never removed.
func (f *OrderForm) RemoveRow(index int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[FieldItems] = true
	return f.items.Remove(index)
}

// UpdateRow applies a patch to a row
func (f *OrderForm) UpdateRow(index int, patch RowPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[FieldItems] = true
	return f.items.Update(index, func(item *trade.LineItem) {
		if patch.ProductID != nil {
			item.ProductID = *patch.ProductID
		}
		if patch.UnitCost != nil {
			item.UnitCost = *patch.UnitCost
		}
		if patch.Quantity != nil {
			item.Quantity = *patch.Quantity
		}
	})
}

// SelectProduct sets the product of a row and seeds its unit cost with the
// product's default cost
func (f *OrderForm) SelectProduct(index int, product trade.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[FieldItems] = true
	return f.items.Update(index, func(item *trade.LineItem) {
		item.ProductID = product.ID
		item.UnitCost = product.UnitCost()
	})
}

// SetPartyID sets the customer (sales) or supplier (purchase)
func (f *OrderForm) SetPartyID(id trade.ReferenceID) {
	f.updateHeader(FieldPartyID, func(h *trade.OrderHeader) { h.PartyID = id })
}

// SetDocumentNumber overrides the generated document number
func (f *OrderForm) SetDocumentNumber(number string) {
	f.updateHeader(FieldDocumentNumber, func(h *trade.OrderHeader) { h.DocumentNumber = number })
}

// SetOrderDate sets the order date
func (f *OrderForm) SetOrderDate(date time.Time) {
	f.updateHeader(FieldOrderDate, func(h *trade.OrderHeader) { h.OrderDate = trade.DateOnly(date) })
}

// SetExpectedDate sets the due date (sales) or expected date (purchase)
func (f *OrderForm) SetExpectedDate(date time.Time) {
	f.updateHeader(FieldExpectedDate, func(h *trade.OrderHeader) { h.ExpectedDate = trade.DateOnly(date) })
}

// SetStatus sets the order status
func (f *OrderForm) SetStatus(status trade.OrderStatus) {
	f.updateHeader(FieldStatus, func(h *trade.OrderHeader) { h.Status = status })
}

// SetShippingFee sets the shipping fee
func (f *OrderForm) SetShippingFee(fee decimal.Decimal) {
	f.updateHeader(FieldShippingFee, func(h *trade.OrderHeader) { h.ShippingFee = fee })
}

// SetDiscount sets the requested discount; it is clamped when totals are read
func (f *OrderForm) SetDiscount(discount decimal.Decimal) {
	f.updateHeader(FieldDiscount, func(h *trade.OrderHeader) { h.Discount = discount })
}

// SetTaxRate sets the flat tax rate in percent
func (f *OrderForm) SetTaxRate(percent decimal.Decimal) {
	f.updateHeader(FieldTaxRate, func(h *trade.OrderHeader) { h.TaxRatePercent = percent })
}

// SetNotes sets the free-text notes
func (f *OrderForm) SetNotes(notes string) {
	f.updateHeader(FieldNotes, func(h *trade.OrderHeader) { h.Notes = notes })
}

func (f *OrderForm) updateHeader(field string, fn func(h *trade.OrderHeader)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.header)
	f.touched[field] = true
}

// Touched reports whether the user interacted with a field
func (f *OrderForm) Touched(field string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touched[field]
}

// Submitting reports whether a submission is in flight
func (f *OrderForm) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// LastPayload returns the record of the most recent failed submission, kept
// so the user can resubmit. It is nil after a success or a reset.
func (f *OrderForm) LastPayload() *trade.SubmissionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastPayload == nil {
		return nil
	}
	rec := *f.lastPayload
	rec.Items = rec.LineItems()
	return &rec
}

// Reset discards the current order and starts a new one with a new document
// number. A submission still in flight completes but will not reset the form.
func (f *OrderForm) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

func (f *OrderForm) resetLocked() {
	now := f.now()
	f.header = trade.NewOrderHeader(f.direction, f.numbers.Next(f.direction, now), now)
	if f.items == nil {
		f.items = trade.NewLineItemStore()
	} else {
		f.items.Reset()
	}
	f.touched = make(map[string]bool)
	f.lastPayload = nil
	f.generation++
}

// Submit assembles the order and hands it to the gateway.
//
// An incomplete order returns a *shared.ValidationError, marks every field
// touched and never reaches the gateway. A second call while one is in
// flight returns shared.ErrSubmissionInProgress. On gateway failure the
// form is left untouched. On success the order is printed when a printer is
// attached and the form is reset to a new order.
func (f *OrderForm) Submit(ctx context.Context) (*SubmitOutcome, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, shared.ErrSubmissionInProgress
	}

	record, err := f.assembler.Assemble(f.header, f.items.Items())
	if err != nil {
		for _, field := range AllFields {
			f.touched[field] = true
		}
		f.mu.Unlock()
		return nil, err
	}

	f.submitting = true
	generation := f.generation
	payload := record
	f.lastPayload = &payload
	gateway, printer, logger := f.gateway, f.printer, f.logger
	f.mu.Unlock()

	logger.Debug("Submitting order",
		zap.String("direction", record.Direction.String()),
		zap.String("document_number", record.DocumentNumber),
		zap.String("grand_total", record.Totals.GrandTotal.String()),
	)

	result, err := gateway.Submit(ctx, record)
	if err != nil {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
		logger.Warn("Order submission failed",
			zap.String("document_number", record.DocumentNumber),
			zap.Error(err),
		)
		return nil, err
	}

	outcome := &SubmitOutcome{Result: result, Record: record}

	f.mu.Lock()
	stale := generation != f.generation
	f.mu.Unlock()

	if stale {
		outcome.Stale = true
		logger.Info("Submission completed after the form was reset",
			zap.String("document_number", record.DocumentNumber),
		)
	} else if printer != nil {
		if err := printer.Print(ctx, record); err != nil {
			outcome.PrintErr = err
			logger.Warn("Failed to print order",
				zap.String("document_number", record.DocumentNumber),
				zap.Error(err),
			)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if generation == f.generation {
		f.resetLocked()
	} else {
		outcome.Stale = true
	}
	return outcome, nil
}
