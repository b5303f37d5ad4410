// Package printing turns submitted orders into printable invoices.
//
// InvoiceRenderer builds the logical document from a record and the
// reference data, HTMLTemplate lays it out as HTML, a PDFRenderer (headless
// Chrome through chromedp) converts that to PDF, and a PDFStorage keeps the
// file on disk or in S3-compatible object storage under <documentNumber>.pdf.
//
//	printer := printing.NewPrinter(renderer, html, pdf, store, catalog)
//	if err := printer.Print(ctx, record); err != nil {
//	    return err
//	}
package printing
