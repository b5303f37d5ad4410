package printing

import "strings"

// InvoiceDocument is the logical content of a printed order: a header block,
// one row per line item, a totals block and a closing note. Every amount is
// already formatted for display.
type InvoiceDocument struct {
	Title          string        `json:"title"`
	CompanyName    string        `json:"companyName,omitempty"`
	NumberLabel    string        `json:"numberLabel"`
	DocumentNumber string        `json:"documentNumber"`
	Date           string        `json:"date"`
	ExpectedLabel  string        `json:"expectedLabel,omitempty"`
	ExpectedDate   string        `json:"expectedDate,omitempty"`
	PartyLabel     string        `json:"partyLabel"`
	PartyName      string        `json:"partyName"`
	Status         string        `json:"status,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	Rows           []InvoiceRow  `json:"rows"`
	Totals         InvoiceTotals `json:"totals"`
	ClosingNote    string        `json:"closingNote"`
}

// InvoiceRow is one printed line item
type InvoiceRow struct {
	Index       int    `json:"index"` // 1-based
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	UnitCost    string `json:"unitCost"`
	Amount      string `json:"amount"`
}

// InvoiceTotals is the printed totals block
type InvoiceTotals struct {
	Subtotal   string `json:"subtotal"`
	Shipping   string `json:"shipping"`
	Discount   string `json:"discount"`
	Tax        string `json:"tax"`
	GrandTotal string `json:"grandTotal"`
}

// FileName is the name the document is saved or downloaded under
func (d InvoiceDocument) FileName() string {
	name := strings.TrimSpace(d.DocumentNumber)
	name = strings.NewReplacer("/", "-", "\\", "-").Replace(name)
	if name == "" {
		name = "document"
	}
	return name + ".pdf"
}
