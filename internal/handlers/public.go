package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/fieldops/internal/services"
	"github.com/h4ks-com/fieldops/internal/units"
	"gorm.io/gorm"
)

// PublicHandler serves unauthenticated endpoints: health and reference data.
type PublicHandler struct {
	catalogService *services.CatalogService
	db             *gorm.DB
}

func NewPublicHandler(catalogService *services.CatalogService, db *gorm.DB) *PublicHandler {
	return &PublicHandler{catalogService: catalogService, db: db}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type UnitsResponse struct {
	Units []string `json:"units"`
}

// Health godoc
// @Summary Health check
// @Tags public
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *PublicHandler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Database: err.Error()})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}

// ListActivityTypes godoc
// @Summary List activity types
// @Tags public
// @Produce json
// @Success 200 {array} models.ActivityType
// @Router /activity-types [get]
func (h *PublicHandler) ListActivityTypes(c *gin.Context) {
	types, err := h.catalogService.ListActivityTypes()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

// ListUnits godoc
// @Summary List accepted units
// @Tags public
// @Produce json
// @Success 200 {object} UnitsResponse
// @Router /units [get]
func (h *PublicHandler) ListUnits(c *gin.Context) {
	c.JSON(http.StatusOK, UnitsResponse{Units: units.Known()})
}
