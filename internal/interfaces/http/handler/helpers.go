package handler

import (
	"github.com/erp/orderdesk/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// coerce reads a loosely typed JSON amount; anything unusable is zero
func coerce(v any) decimal.Decimal {
	return valueobject.Coerce(v)
}
