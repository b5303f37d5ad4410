package trade

import (
	"reflect"
	"strings"
	"time"

	"github.com/erp/orderdesk/internal/domain/shared"
	"github.com/erp/orderdesk/internal/domain/shared/valueobject"
	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/go-playground/validator/v10"
)

// Form field names used in validation errors and touched tracking
const (
	FieldDocumentNumber = "documentNumber"
	FieldOrderDate      = "orderDate"
	FieldExpectedDate   = "expectedDate"
	FieldPartyID        = "partyId"
	FieldStatus         = "status"
	FieldShippingFee    = "shippingFee"
	FieldDiscount       = "discount"
	FieldTaxRate        = "taxRate"
	FieldNotes          = "notes"
	FieldItems          = "items"
)

// AllFields lists every form field, in display order
var AllFields = []string{
	FieldDocumentNumber,
	FieldOrderDate,
	FieldExpectedDate,
	FieldPartyID,
	FieldStatus,
	FieldShippingFee,
	FieldDiscount,
	FieldTaxRate,
	FieldNotes,
	FieldItems,
}

// RuleSubtotalPositive is reported on the items field when nothing is priced
const RuleSubtotalPositive = "subtotal_positive"

// headerInput is the validated view of an OrderHeader
type headerInput struct {
	Direction      trade.Direction `json:"direction" validate:"required,direction"`
	DocumentNumber string          `json:"documentNumber" validate:"required"`
	OrderDate      time.Time       `json:"orderDate" validate:"required"`
	PartyID        string          `json:"partyId" validate:"required"`
	Status         string          `json:"status" validate:"required,order_status"`
}

// OrderAssembler turns the editable order state into an immutable
// SubmissionRecord, refusing incomplete orders.
type OrderAssembler struct {
	validate *validator.Validate
}

// NewOrderAssembler creates a new OrderAssembler
func NewOrderAssembler() *OrderAssembler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("direction", func(fl validator.FieldLevel) bool {
		return trade.Direction(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		direction := trade.Direction(fl.Parent().FieldByName("Direction").String())
		return trade.OrderStatus(fl.Field().String()).IsValidFor(direction)
	})
	return &OrderAssembler{validate: v}
}

// Assemble validates the header and rows and builds the record that is sent
// to the gateway. Totals are computed from the same snapshot of rows that the
// record carries. The only error it returns is a *shared.ValidationError.
func (a *OrderAssembler) Assemble(header trade.OrderHeader, items []trade.LineItem) (trade.SubmissionRecord, error) {
	rows := make([]trade.LineItem, len(items))
	copy(rows, items)

	adj := header.Adjustments()
	totals := trade.ComputeTotals(rows, adj)

	fields := a.validateHeader(header)
	if !totals.Subtotal.IsPositive() {
		fields = append(fields, shared.FieldError{Field: FieldItems, Rule: RuleSubtotalPositive})
	}
	if len(fields) > 0 {
		return trade.SubmissionRecord{}, shared.NewValidationError(fields...)
	}

	return trade.SubmissionRecord{
		Direction:      header.Direction,
		DocumentNumber: strings.TrimSpace(header.DocumentNumber),
		OrderDate:      trade.DateOnly(header.OrderDate),
		ExpectedDate:   trade.DateOnly(header.ExpectedDate),
		PartyID:        header.PartyID,
		Status:         header.Status,
		Notes:          header.Notes,
		ShippingFee:    adj.ShippingFee,
		Discount:       valueobject.NonNegative(adj.Discount),
		TaxRatePercent: adj.TaxRatePercent,
		Items:          rows,
		Totals:         totals,
	}, nil
}

func (a *OrderAssembler) validateHeader(header trade.OrderHeader) []shared.FieldError {
	input := headerInput{
		Direction:      header.Direction,
		DocumentNumber: strings.TrimSpace(header.DocumentNumber),
		OrderDate:      header.OrderDate,
		PartyID:        strings.TrimSpace(header.PartyID.String()),
		Status:         header.Status.String(),
	}

	err := a.validate.Struct(input)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []shared.FieldError{{Field: "header", Rule: "invalid"}}
	}

	fields := make([]shared.FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, shared.FieldError{Field: e.Field(), Rule: e.Tag()})
	}
	return fields
}
