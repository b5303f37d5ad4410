package printing

import (
	"context"
	"errors"
	"io"

	tradeapp "github.com/erp/orderdesk/internal/application/trade"
	"github.com/erp/orderdesk/internal/domain/printing"
	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/erp/orderdesk/internal/infrastructure/logger"
	"github.com/erp/orderdesk/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Output formats reported to the InvoiceRecorder
const (
	FormatJSON = "json"
	FormatHTML = "html"
	FormatPDF  = "pdf"
)

// ErrPDFUnavailable is returned when no PDF renderer is configured
var ErrPDFUnavailable = errors.New("PDF rendering is not enabled")

// InvoiceRecorder counts rendered invoices by format
type InvoiceRecorder interface {
	ObserveInvoice(format string)
}

// PrinterOption configures a Printer
type PrinterOption func(*Printer)

// WithPDFRenderer enables PDF output
func WithPDFRenderer(r PDFRenderer) PrinterOption {
	return func(p *Printer) { p.pdf = r }
}

// WithStorage keeps every printed PDF in store
func WithStorage(store PDFStorage) PrinterOption {
	return func(p *Printer) { p.store = store }
}

// WithReferenceData resolves product and party names through ref
func WithReferenceData(ref trade.ReferenceData) PrinterOption {
	return func(p *Printer) { p.reference = ref }
}

// WithRecorder counts rendered invoices
func WithRecorder(rec InvoiceRecorder) PrinterOption {
	return func(p *Printer) { p.recorder = rec }
}

// WithPaperSize sets the PDF paper size
func WithPaperSize(size printing.PaperSize) PrinterOption {
	return func(p *Printer) { p.paperSize = size }
}

// WithPrinterLogger sets the logger
func WithPrinterLogger(l *zap.Logger) PrinterOption {
	return func(p *Printer) {
		if l != nil {
			p.logger = l
		}
	}
}

// Printer renders submitted orders as JSON documents, HTML pages or PDF
// files, and stores printed PDFs.
type Printer struct {
	renderer  *InvoiceRenderer
	layout    *HTMLTemplate
	pdf       PDFRenderer
	store     PDFStorage
	reference trade.ReferenceData
	recorder  InvoiceRecorder
	paperSize printing.PaperSize
	logger    *zap.Logger
}

// NewPrinter creates a Printer. Without WithPDFRenderer only the document
// and HTML outputs are available.
func NewPrinter(renderer *InvoiceRenderer, layout *HTMLTemplate, opts ...PrinterOption) *Printer {
	p := &Printer{
		renderer:  renderer,
		layout:    layout,
		paperSize: printing.PaperSizeA4,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PDFEnabled reports whether PDF output is available
func (p *Printer) PDFEnabled() bool {
	return p.pdf != nil
}

// Document builds the invoice document of record
func (p *Printer) Document(ctx context.Context, record trade.SubmissionRecord) printing.InvoiceDocument {
	doc := p.document(ctx, record)
	p.observe(FormatJSON)
	return doc
}

// HTML renders record as a standalone HTML page
func (p *Printer) HTML(ctx context.Context, record trade.SubmissionRecord) (string, error) {
	out, err := p.layout.Render(p.document(ctx, record))
	if err != nil {
		return "", err
	}
	p.observe(FormatHTML)
	return out, nil
}

// PDF renders record and returns the PDF bytes and the file name
func (p *Printer) PDF(ctx context.Context, record trade.SubmissionRecord) ([]byte, string, error) {
	if p.pdf == nil {
		return nil, "", ErrPDFUnavailable
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_printer", "pdf",
		telemetry.WithAttribute(telemetry.SpanAttrOrderNumber, record.DocumentNumber),
		telemetry.WithAttribute(telemetry.SpanAttrDirection, record.Direction.String()),
	)
	defer span.End()

	doc := p.document(ctx, record)
	html, err := p.layout.Render(doc)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, "", err
	}
	result, err := p.pdf.Render(ctx, &RenderRequest{
		DocumentNumber: doc.DocumentNumber,
		Title:          doc.Title + " " + doc.DocumentNumber,
		HTML:           html,
		PaperSize:      p.paperSize,
		Margins:        printing.DefaultMargins(),
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, "", err
	}
	telemetry.AddEvent(span, "pdf_rendered", "pages", result.Pages, "bytes", len(result.PDF))
	p.observe(FormatPDF)
	return result.PDF, doc.FileName(), nil
}

// Print renders record as PDF and stores it as <documentNumber>.pdf
func (p *Printer) Print(ctx context.Context, record trade.SubmissionRecord) error {
	data, name, err := p.PDF(ctx, record)
	if err != nil {
		return err
	}
	if p.store == nil {
		return nil
	}
	res, err := p.store.Store(ctx, name, data)
	if err != nil {
		return err
	}
	logger.L(ctx).Info("Invoice printed",
		zap.String("document_number", record.DocumentNumber),
		zap.String("location", res.Location),
	)
	return nil
}

// Stored opens a previously printed PDF
func (p *Printer) Stored(ctx context.Context, name string) (io.ReadCloser, error) {
	if p.store == nil {
		return nil, NewRenderError(ErrCodeNotFound, "PDF storage is not configured", nil)
	}
	return p.store.Get(ctx, name)
}

func (p *Printer) document(ctx context.Context, record trade.SubmissionRecord) printing.InvoiceDocument {
	products, parties := p.indexes(ctx, record.Direction)
	return p.renderer.Render(record, products, parties)
}

// indexes loads the name lookups. Reference data that cannot be loaded only
// costs the names: the document is still produced with "Unknown".
func (p *Printer) indexes(ctx context.Context, direction trade.Direction) (trade.NameIndex, trade.NameIndex) {
	if p.reference == nil {
		return trade.NameIndex{}, trade.NameIndex{}
	}

	products, err := p.reference.Products(ctx)
	if err != nil {
		p.logger.Warn("Failed to load products for invoice", zap.Error(err))
	}
	parties, err := trade.PartiesFor(ctx, p.reference, direction)
	if err != nil {
		p.logger.Warn("Failed to load parties for invoice",
			zap.String("direction", direction.String()),
			zap.Error(err),
		)
	}
	return trade.NewProductIndex(products), trade.NewPartyIndex(parties)
}

func (p *Printer) observe(format string) {
	if p.recorder != nil {
		p.recorder.ObserveInvoice(format)
	}
}

var _ tradeapp.InvoicePrinter = (*Printer)(nil)
