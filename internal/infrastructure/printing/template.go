package printing

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/erp/orderdesk/internal/domain/printing"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{title .Title}} {{.DocumentNumber}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; font-size: 10pt; color: #222; }
  h1 { font-size: 18pt; text-align: center; margin: 0 0 8px; }
  h2 { font-size: 14pt; margin: 16px 0 4px; }
  .company { text-align: center; font-size: 12pt; }
  .meta p { margin: 2px 0; }
  table.items { width: 100%; border-collapse: collapse; }
  table.items th, table.items td { border-bottom: 1px solid #ccc; padding: 4px; }
  .num { text-align: right; }
  .center { text-align: center; }
  table.totals { margin-left: auto; }
  table.totals td { padding: 2px 6px; }
  .grand td { font-weight: bold; }
  .closing { text-align: center; margin-top: 24px; }
</style>
</head>
<body>
{{- if .CompanyName}}
<div class="company">{{.CompanyName}}</div>
{{- end}}
<h1>{{.Title}}</h1>
<div class="meta">
  <p>{{.NumberLabel}}: {{.DocumentNumber}}</p>
  <p>Date: {{.Date}}</p>
  {{- if .ExpectedDate}}
  <p>{{.ExpectedLabel}}: {{.ExpectedDate}}</p>
  {{- end}}
  <p>{{.PartyLabel}}: {{.PartyName}}</p>
  {{- if .Status}}
  <p>Status: {{title .Status}}</p>
  {{- end}}
</div>
<h2>Items</h2>
<table class="items">
  <thead>
    <tr><th>SL</th><th>Product</th><th>Qty</th><th class="num">Cost</th><th class="num">Amount</th></tr>
  </thead>
  <tbody>
  {{- range .Rows}}
    <tr><td class="center">{{.Index}}</td><td>{{.ProductName}}</td><td class="center">{{.Quantity}}</td><td class="num">{{.UnitCost}}</td><td class="num">{{.Amount}}</td></tr>
  {{- end}}
  </tbody>
</table>
<table class="totals">
  <tr><td>Subtotal:</td><td class="num">{{.Totals.Subtotal}}</td></tr>
  <tr><td>Shipping:</td><td class="num">{{.Totals.Shipping}}</td></tr>
  <tr><td>Discount:</td><td class="num">{{.Totals.Discount}}</td></tr>
  <tr><td>Tax:</td><td class="num">{{.Totals.Tax}}</td></tr>
  <tr class="grand"><td>Grand Total:</td><td class="num">{{.Totals.GrandTotal}}</td></tr>
</table>
{{- if .Notes}}
<p class="notes">Notes: {{.Notes}}</p>
{{- end}}
<p class="closing">{{.ClosingNote}}</p>
</body>
</html>
`

// HTMLTemplate lays out an InvoiceDocument as a standalone HTML page
type HTMLTemplate struct {
	tmpl *template.Template
}

// NewHTMLTemplate parses the built-in invoice layout
func NewHTMLTemplate() (*HTMLTemplate, error) {
	return NewHTMLTemplateFromString(invoiceTemplate)
}

// NewHTMLTemplateFromString parses a custom layout. The template receives a
// printing.InvoiceDocument and may use the title and upper functions.
func NewHTMLTemplateFromString(content string) (*HTMLTemplate, error) {
	tmpl, err := template.New("invoice").Funcs(template.FuncMap{
		"title": titleCase,
		"upper": strings.ToUpper,
	}).Parse(content)
	if err != nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "failed to parse invoice template", err)
	}
	return &HTMLTemplate{tmpl: tmpl}, nil
}

// Render executes the template for doc
func (t *HTMLTemplate) Render(doc printing.InvoiceDocument) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, doc); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, fmt.Sprintf("failed to render invoice %s", doc.DocumentNumber), err)
	}
	return buf.String(), nil
}

// titleCase converts string to title case using proper Unicode handling
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}
