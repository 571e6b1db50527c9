package trading

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridtrade/energy-portal/energy-portal-backend/internal/ledger"
	"gridtrade/energy-portal/energy-portal-backend/internal/market"
	"gridtrade/energy-portal/energy-portal-backend/pkg/carbon"
)

// Handler handles HTTP requests for ledger mutations and quotes.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new trading handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers mutation and quote routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/listings", h.createListing)
	router.POST("/listings/:id/purchases", h.buyEnergy)
	router.GET("/listings/:id/quote", h.quotePurchase)
}

type createListingRequest struct {
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description" binding:"required"`
	Image        string          `json:"image"`
	FuelType     string          `json:"fuel_type" binding:"required"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit"`
	EnergyAmount decimal.Decimal `json:"energy_amount"`
}

// createListing handles POST /api/v1/listings.
func (h *Handler) createListing(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.CreateListing(c.Request.Context(), ledger.ListingDraft{
		Name:         req.Name,
		Description:  req.Description,
		Image:        req.Image,
		FuelType:     carbon.FuelType(req.FuelType),
		CostPerUnit:  req.CostPerUnit,
		EnergyAmount: req.EnergyAmount,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type purchaseRequest struct {
	Mode          string           `json:"mode"`
	EnergyAmount  *decimal.Decimal `json:"energy_amount"`
	PaymentAmount *decimal.Decimal `json:"payment_amount"`
}

// buyEnergy handles POST /api/v1/listings/:id/purchases. The mode defaults to
// whichever amount field is present.
func (h *Handler) buyEnergy(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order := PurchaseOrder{ListingID: id, Mode: PurchaseMode(req.Mode)}
	if order.Mode == "" {
		if req.EnergyAmount != nil {
			order.Mode = BuyByEnergy
		} else {
			order.Mode = BuyByPayment
		}
	}
	if req.EnergyAmount != nil {
		order.Energy = *req.EnergyAmount
	}
	if req.PaymentAmount != nil {
		order.Payment = *req.PaymentAmount
	}

	result, err := h.service.BuyEnergy(c.Request.Context(), order)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// quotePurchase handles GET /api/v1/listings/:id/quote?energy=…|payment=….
func (h *Handler) quotePurchase(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	var energy, payment *decimal.Decimal
	if raw := c.Query("energy"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid energy amount"})
			return
		}
		energy = &v
	}
	if raw := c.Query("payment"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment amount"})
			return
		}
		payment = &v
	}

	quote, err := h.service.QuotePurchase(c.Request.Context(), id, energy, payment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// respondError maps mutation failures onto HTTP statuses. A rejected signing
// prompt is a benign cancellation, not a fault.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, market.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, market.ErrInsufficientSupply):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, market.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, market.ErrSigningRejected):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, market.ErrLedgerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Mutation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
