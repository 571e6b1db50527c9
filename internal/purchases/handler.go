package purchases

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gridtrade/energy-portal/energy-portal-backend/internal/market"
)

// Handler handles HTTP requests for purchase projections.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new purchases handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers purchase projection routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/listings/:id/purchases", h.listingHistory)
	router.GET("/buyers/:address/purchases", h.userGroups)
}

// listingHistory handles GET /api/v1/listings/:id/purchases.
func (h *Handler) listingHistory(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	group, err := h.service.HistoryForListing(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// userGroups handles GET /api/v1/buyers/:address/purchases.
func (h *Handler) userGroups(c *gin.Context) {
	buyer := c.Param("address")

	groups, err := h.service.GroupsForUser(c.Request.Context(), buyer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups, "count": len(groups)})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, market.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, market.ErrLedgerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
