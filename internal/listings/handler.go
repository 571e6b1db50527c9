package listings

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gridtrade/energy-portal/energy-portal-backend/internal/market"
)

// Handler handles HTTP requests for the listing projection.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new listings handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers listing projection routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/listings", h.listListings)
	router.GET("/listings/:id", h.getListing)
	router.GET("/owners/:address/listings", h.listByOwner)
	router.GET("/stats", h.getStats)
}

// listListings handles GET /api/v1/listings. Stale snapshots served after a
// failed refresh carry X-Projection-Stale so the UI can warn instead of
// going blank.
func (h *Handler) listListings(c *gin.Context) {
	force := c.Query("refresh") == "true"

	ls, stale, err := h.service.Listings(c.Request.Context(), force)
	if err != nil {
		respondError(c, err)
		return
	}
	if stale {
		c.Header("X-Projection-Stale", "true")
	}
	c.JSON(http.StatusOK, gin.H{"listings": ls, "count": len(ls)})
}

// getListing handles GET /api/v1/listings/:id.
func (h *Handler) getListing(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	listing, err := h.service.Listing(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// listByOwner handles GET /api/v1/owners/:address/listings.
func (h *Handler) listByOwner(c *gin.Context) {
	owner := c.Param("address")
	force := c.Query("refresh") == "true"

	ls, stale, err := h.service.ListingsForOwner(c.Request.Context(), owner, force)
	if err != nil {
		respondError(c, err)
		return
	}
	if stale {
		c.Header("X-Projection-Stale", "true")
	}
	c.JSON(http.StatusOK, gin.H{"listings": ls, "count": len(ls)})
}

// getStats handles GET /api/v1/stats.
func (h *Handler) getStats(c *gin.Context) {
	count, err := h.service.Count(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"number_of_listings": count})
}

// respondError maps the ledger failure taxonomy onto HTTP statuses.
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
