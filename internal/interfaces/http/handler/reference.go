package handler

import (
	"net/http"

	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/erp/orderdesk/internal/infrastructure/logger"
	"github.com/erp/orderdesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReferenceHandler exposes the products and parties orders refer to
type ReferenceHandler struct {
	BaseHandler
	reference trade.ReferenceData
}

// NewReferenceHandler creates a new ReferenceHandler
func NewReferenceHandler(ref trade.ReferenceData) *ReferenceHandler {
	return &ReferenceHandler{reference: ref}
}

// RegisterRoutes registers the reference routes on rg
func (h *ReferenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/products", h.Products)
	rg.GET("/suppliers", h.Suppliers)
	rg.GET("/customers", h.Customers)
}

// Products lists products. GET /api/products
func (h *ReferenceHandler) Products(c *gin.Context) {
	products, err := h.reference.Products(c.Request.Context())
	if err != nil {
		h.upstreamError(c, "products", err)
		return
	}
	h.Success(c, products)
}

// Suppliers lists suppliers. GET /api/suppliers
func (h *ReferenceHandler) Suppliers(c *gin.Context) {
	parties, err := h.reference.Suppliers(c.Request.Context())
	if err != nil {
		h.upstreamError(c, "suppliers", err)
		return
	}
	h.Success(c, parties)
}

// Customers lists customers. GET /api/customers
func (h *ReferenceHandler) Customers(c *gin.Context) {
	parties, err := h.reference.Customers(c.Request.Context())
	if err != nil {
		h.upstreamError(c, "customers", err)
		return
	}
	h.Success(c, parties)
}

func (h *ReferenceHandler) upstreamError(c *gin.Context, resource string, err error) {
	_ = c.Error(err)
	logger.GetGinLogger(c).Warn("Reference data unavailable", zap.String("resource", resource), zap.Error(err))
	h.Error(c, http.StatusBadGateway, dto.ErrCodeUpstreamUnavailable, "Failed to load "+resource)
}
