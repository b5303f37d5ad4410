package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tradeapp "github.com/erp/orderdesk/internal/application/trade"
	"github.com/erp/orderdesk/internal/domain/printing"
	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/erp/orderdesk/internal/infrastructure/export"
	"github.com/erp/orderdesk/internal/infrastructure/logger"
	"github.com/erp/orderdesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OrderGateway is the submission gateway of one direction
type OrderGateway interface {
	trade.SubmissionGateway
	// Clear removes every local record; remote gateways return
	// shared.ErrNotSupported
	Clear(ctx context.Context) error
}

// InvoicePrinter renders persisted orders
type InvoicePrinter interface {
	tradeapp.InvoicePrinter
	Document(ctx context.Context, record trade.SubmissionRecord) printing.InvoiceDocument
	HTML(ctx context.Context, record trade.SubmissionRecord) (string, error)
	PDF(ctx context.Context, record trade.SubmissionRecord) ([]byte, string, error)
}

// OrderHandlerOption configures an OrderHandler
type OrderHandlerOption func(*OrderHandler)

// WithPrinter enables the invoice endpoint
func WithPrinter(p InvoicePrinter) OrderHandlerOption {
	return func(h *OrderHandler) { h.printer = p }
}

// WithPrintOnSubmit prints every order right after it is persisted
func WithPrintOnSubmit(enabled bool) OrderHandlerOption {
	return func(h *OrderHandler) { h.printOnSubmit = enabled }
}

// WithReference resolves party names for exports and default unit costs
func WithReference(ref trade.ReferenceData) OrderHandlerOption {
	return func(h *OrderHandler) { h.reference = ref }
}

// WithClock replaces the time source of new orders
func WithClock(now func() time.Time) OrderHandlerOption {
	return func(h *OrderHandler) { h.now = now }
}

// OrderHandler serves the orders of one direction under /sales or /purchases
type OrderHandler struct {
	BaseHandler
	direction     trade.Direction
	gateway       OrderGateway
	numbers       trade.DocumentNumberGenerator
	printer       InvoicePrinter
	printOnSubmit bool
	reference     trade.ReferenceData
	now           func() time.Time
}

// NewOrderHandler creates a handler for the gateway's direction
func NewOrderHandler(gateway OrderGateway, numbers trade.DocumentNumberGenerator, opts ...OrderHandlerOption) *OrderHandler {
	h := &OrderHandler{
		direction: gateway.Direction(),
		gateway:   gateway,
		numbers:   numbers,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Direction returns the handled direction
func (h *OrderHandler) Direction() trade.Direction {
	return h.direction
}

// RegisterRoutes registers the order routes on rg
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/" + h.direction.ResourcePath())
	orders.POST("", h.Submit)
	orders.GET("", h.List)
	orders.DELETE("", h.Clear)
	orders.GET("/export.xlsx", h.Export)
	orders.GET("/:id", h.Get)
	orders.GET("/:id/invoice", h.Invoice)
}

// Submit prices, validates and persists an order.
//
//	POST /api/{sales|purchases}
//
// An empty document number is replaced by a generated one. Totals in the
// request are ignored and recomputed.
func (h *OrderHandler) Submit(c *gin.Context) {
	var req dto.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid order payload: "+err.Error())
		return
	}
	if d, ok := req.Direction(); !ok || (d != "" && d != h.direction) {
		h.BadRequest(c, fmt.Sprintf("Order fields do not match %s orders", h.direction))
		return
	}

	ctx := c.Request.Context()
	log := logger.L(ctx)

	form := tradeapp.NewOrderForm(h.gateway, h.numbers)
	form.SetClock(h.now)
	form.Reset()
	form.SetLogger(log)
	if h.printOnSubmit && h.printer != nil {
		form.SetPrinter(h.printer)
	}
	if err := h.fill(ctx, form, req); err != nil {
		h.HandleError(c, err)
		return
	}

	ctx = logger.WithDocumentNumber(ctx, form.Header().DocumentNumber)
	outcome, err := form.Submit(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	record := outcome.Record
	resp := dto.SubmitResponse{OK: true, Record: &record}
	if outcome.Result != nil {
		resp.Source = outcome.Result.Source
		if outcome.Result.Data != nil {
			record = *outcome.Result.Data
		}
	}
	if outcome.PrintErr != nil {
		resp.PrintError = outcome.PrintErr.Error()
	}
	logger.L(ctx).Info("Order submitted",
		zap.String("source", resp.Source),
		zap.String("grand_total", record.Totals.GrandTotal.String()),
	)
	h.Created(c, resp)
}

// fill copies the request onto a fresh form. Rows without a price or cost
// take the product's default cost.
func (h *OrderHandler) fill(ctx context.Context, form *tradeapp.OrderForm, req dto.OrderRequest) error {
	if n := req.DocumentNumber(); n != "" {
		form.SetDocumentNumber(n)
	}
	if date, ok := req.OrderDate(); !ok {
		form.SetOrderDate(time.Time{})
	} else if !date.IsZero() {
		form.SetOrderDate(date)
	}
	if expected, ok := req.Expected(); ok && !expected.IsZero() {
		form.SetExpectedDate(expected)
	}
	if party := req.PartyID(); !party.IsEmpty() {
		form.SetPartyID(party)
	}
	if req.Status != "" {
		form.SetStatus(req.Status)
	}
	form.SetShippingFee(coerce(req.Shipping))
	form.SetDiscount(coerce(req.Discount))
	form.SetTaxRate(coerce(req.TaxRate))
	form.SetNotes(req.Notes)

	var products map[trade.ReferenceID]trade.Product
	items := req.LineItems()
	for i, item := range items {
		index := 0
		if i > 0 {
			index = form.AddRow()
		}
		raw := req.Items[i]
		if raw.Price == nil && raw.Cost == nil && h.reference != nil {
			if products == nil {
				products = h.productIndex(ctx)
			}
			if p, ok := products[item.ProductID]; ok {
				if err := form.SelectProduct(index, p); err != nil {
					return err
				}
				qty := item.Quantity
				if err := form.UpdateRow(index, tradeapp.RowPatch{Quantity: &qty}); err != nil {
					return err
				}
				continue
			}
		}
		productID, cost, qty := item.ProductID, item.UnitCost, item.Quantity
		if err := form.UpdateRow(index, tradeapp.RowPatch{ProductID: &productID, UnitCost: &cost, Quantity: &qty}); err != nil {
			return err
		}
	}
	return nil
}

func (h *OrderHandler) productIndex(ctx context.Context) map[trade.ReferenceID]trade.Product {
	products, err := h.reference.Products(ctx)
	if err != nil {
		logger.L(ctx).Warn("Failed to load products", zap.Error(err))
		return map[trade.ReferenceID]trade.Product{}
	}
	idx := make(map[trade.ReferenceID]trade.Product, len(products))
	for _, p := range products {
		idx[p.ID] = p
	}
	return idx
}

// List returns persisted orders.
//
//	GET /api/{sales|purchases}?page=&size=&q=
func (h *OrderHandler) List(c *gin.Context) {
	var query dto.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
		return
	}

	records, err := h.gateway.List(c.Request.Context(), query.ToDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if query.Page > 0 || query.Size > 0 {
		h.SuccessWithMeta(c, records, int64(len(records)), max(query.Page, 1), query.Size)
		return
	}
	h.Success(c, records)
}

// Get returns one order.
//
//	GET /api/{sales|purchases}/:id
func (h *OrderHandler) Get(c *gin.Context) {
	record, ok := h.lookup(c)
	if !ok {
		return
	}
	h.Success(c, record)
}

// Clear removes every locally stored order.
//
//	DELETE /api/{sales|purchases}
func (h *OrderHandler) Clear(c *gin.Context) {
	if err := h.gateway.Clear(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Export downloads every order as a spreadsheet.
//
//	GET /api/{sales|purchases}/export.xlsx
func (h *OrderHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	records, err := h.gateway.List(ctx, trade.ListQuery{})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	parties := trade.NameIndex{}
	if h.reference != nil {
		list, err := trade.PartiesFor(ctx, h.reference, h.direction)
		if err != nil {
			logger.L(ctx).Warn("Failed to load parties for export", zap.Error(err))
		} else {
			parties = trade.NewPartyIndex(list)
		}
	}

	c.Header("Content-Type", export.ContentTypeXLSX)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(h.direction)))
	c.Status(http.StatusOK)
	if err := export.WriteRecordsXLSX(c.Writer, h.direction, records, parties); err != nil {
		logger.L(ctx).Error("Failed to write export", zap.Error(err))
		_ = c.Error(err)
	}
}

// Invoice renders the printable document of an order.
//
//	GET /api/{sales|purchases}/:id/invoice?format=json|html|pdf
func (h *OrderHandler) Invoice(c *gin.Context) {
	if h.printer == nil {
		h.Error(c, http.StatusNotImplemented, dto.ErrCodeNotSupported, "Invoice printing is not enabled")
		return
	}
	var query dto.InvoiceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
		return
	}
	record, ok := h.lookup(c)
	if !ok {
		return
	}
	ctx := logger.WithDocumentNumber(c.Request.Context(), record.DocumentNumber)

	switch query.Format {
	case "html":
		html, err := h.printer.HTML(ctx, *record)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
	case "pdf":
		data, name, err := h.printer.PDF(ctx, *record)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, "application/pdf", data)
	default:
		h.Success(c, h.printer.Document(ctx, *record))
	}
}

// lookup loads the order named by the :id parameter, writing the error
// response itself when it cannot
func (h *OrderHandler) lookup(c *gin.Context) (*trade.SubmissionRecord, bool) {
	id := c.Param("id")
	record, err := h.gateway.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	if record == nil {
		h.NotFound(c, fmt.Sprintf("Order %s not found", id))
		return nil, false
	}
	return record, true
}
