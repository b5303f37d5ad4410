package handler

import (
	"net/http"

	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/erp/orderdesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// QuoteHandler prices draft orders without persisting them
type QuoteHandler struct {
	BaseHandler
}

// NewQuoteHandler creates a new QuoteHandler
func NewQuoteHandler() *QuoteHandler {
	return &QuoteHandler{}
}

// RegisterRoutes registers the quote route on rg
func (h *QuoteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/quote", h.Quote)
}

// Quote returns line amounts and order totals for a draft. Rows follow the
// editor's rules: negative costs count as zero and quantities below one as one.
//
//	POST /api/quote
func (h *QuoteHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid quote payload: "+err.Error())
		return
	}

	items, adj := req.ToDomain()
	store := trade.NewLineItemStore()
	for i, item := range items {
		if i == 0 {
			_ = store.Update(0, func(row *trade.LineItem) { *row = item })
			continue
		}
		store.Append(item)
	}
	rows := store.Items()
	h.Success(c, dto.NewQuoteResponse(rows, trade.ComputeTotals(rows, adj)))
}
