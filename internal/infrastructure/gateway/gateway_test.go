package gateway

import (
	"time"

	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/shopspring/decimal"
)

func testRecord(direction trade.Direction, number string) trade.SubmissionRecord {
	items := []trade.LineItem{
		{ProductID: "p-1", Quantity: 2, UnitCost: decimal.NewFromInt(150)},
		{ProductID: "p-2", Quantity: 1, UnitCost: decimal.NewFromInt(910)},
	}
	header := trade.NewOrderHeader(direction, number, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	header.PartyID = "c-7"
	header.ExpectedDate = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	header.ShippingFee = decimal.NewFromInt(100)
	header.Discount = decimal.NewFromInt(50)
	header.TaxRatePercent = decimal.NewFromInt(5)
	header.Notes = "Deliver to dock 4"

	return trade.SubmissionRecord{
		Direction:      direction,
		DocumentNumber: number,
		OrderDate:      header.OrderDate,
		ExpectedDate:   header.ExpectedDate,
		PartyID:        header.PartyID,
		Status:         header.Status,
		Notes:          header.Notes,
		ShippingFee:    header.ShippingFee,
		Discount:       header.Discount,
		TaxRatePercent: header.TaxRatePercent,
		Items:          items,
		Totals:         trade.ComputeHeaderTotals(items, header),
	}
}
