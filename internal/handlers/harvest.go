package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/fieldops/internal/services"
)

type HarvestHandler struct {
	harvestService *services.HarvestService
}

func NewHarvestHandler(harvestService *services.HarvestService) *HarvestHandler {
	return &HarvestHandler{harvestService: harvestService}
}

// ListHarvests godoc
// @Summary List harvest records of a campaign
// @Tags harvests
// @Produce json
// @Security BearerAuth
// @Param campaign_id query int true "Campaign ID"
// @Success 200 {array} models.HarvestRecord
// @Failure 400 {object} ErrorResponse
// @Router /harvests [get]
func (h *HarvestHandler) ListHarvests(c *gin.Context) {
	campaignID, err := strconv.ParseUint(c.Query("campaign_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "campaign_id is required", Kind: "validation"})
		return
	}

	records, err := h.harvestService.ListByCampaign(c.Request.Context(), uint(campaignID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetHarvest godoc
// @Summary Get a harvest record
// @Description Record with its classification, rejection and post-harvest detail
// @Tags harvests
// @Produce json
// @Security BearerAuth
// @Param code path string true "Record code, C<campaign>-P<plot>-<yyyymmdd>"
// @Success 200 {object} models.HarvestRecord
// @Failure 404 {object} ErrorResponse
// @Router /harvests/{code} [get]
func (h *HarvestHandler) GetHarvest(c *gin.Context) {
	record, err := h.harvestService.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
