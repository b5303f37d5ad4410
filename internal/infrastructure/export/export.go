// Package export writes submitted orders to spreadsheet files.
package export

import (
	"fmt"
	"io"

	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the MIME type of the workbooks written here
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headings = []any{
	"Document Number",
	"Date",
	"Expected Date",
	"Party",
	"Status",
	"Items",
	"Subtotal",
	"Shipping",
	"Discount",
	"Tax",
	"Grand Total",
}

// SheetName is the worksheet title used for a direction
func SheetName(direction trade.Direction) string {
	if direction == trade.DirectionPurchase {
		return "Purchases"
	}
	return "Sales"
}

// FileName is the download name of a direction's export
func FileName(direction trade.Direction) string {
	return direction.ResourcePath() + ".xlsx"
}

// WriteRecordsXLSX writes one row per record to a single-sheet workbook.
// Party ids are shown by name when parties resolves them.
func WriteRecordsXLSX(w io.Writer, direction trade.Direction, records []trade.SubmissionRecord, parties trade.NameIndex) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := SheetName(direction)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &headings); err != nil {
		return fmt.Errorf("writing headings: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		party, _ := parties.Resolve(rec.PartyID)
		row := []any{
			rec.DocumentNumber,
			dateCell(rec.OrderDate.Format(trade.DateLayout), rec.OrderDate.IsZero()),
			dateCell(rec.ExpectedDate.Format(trade.DateLayout), rec.ExpectedDate.IsZero()),
			party,
			rec.Status.String(),
			len(rec.Items),
			rec.Totals.Subtotal.InexactFloat64(),
			rec.Totals.ShippingFee.InexactFloat64(),
			rec.Totals.ClampedDiscount.InexactFloat64(),
			rec.Totals.TaxAmount.InexactFloat64(),
			rec.Totals.GrandTotal.InexactFloat64(),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 24); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func dateCell(formatted string, zero bool) string {
	if zero {
		return ""
	}
	return formatted
}
