package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/h4ks-com/fieldops/internal/services"
)

// AdminHandler manages the reference data: users, plots and campaigns.
type AdminHandler struct {
	catalogService *services.CatalogService
}

func NewAdminHandler(catalogService *services.CatalogService) *AdminHandler {
	return &AdminHandler{catalogService: catalogService}
}

type UserListResponse struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

type UpsertUserRequest struct {
	Username string `json:"username" binding:"required"`
	FullName string `json:"full_name"`
	Role     string `json:"role" binding:"omitempty,oneof=supervisor technician worker"`
	Active   *bool  `json:"active"`
}

type CreatePlotRequest struct {
	Code   string  `json:"code" binding:"required"`
	Name   string  `json:"name"`
	AreaHa float64 `json:"area_ha" binding:"gte=0"`
}

type CreateCampaignRequest struct {
	Name      string   `json:"name" binding:"required"`
	StartDate string   `json:"start_date" binding:"required" example:"2025-01-01"`
	EndDate   string   `json:"end_date" example:"2025-12-31"`
	Open      *bool    `json:"open"`
	Periods   []string `json:"periods"`
}

type CampaignResponse struct {
	Campaign *models.Campaign `json:"campaign"`
	Periods  []models.Period  `json:"periods"`
}

// ListUsers godoc
// @Summary List all users (Admin)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} UserListResponse
// @Failure 403 {object} ErrorResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.catalogService.ListUsers()
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]UserListResponse, len(users))
	for i, user := range users {
		response[i] = UserListResponse{
			ID:        user.ID,
			Username:  user.Username,
			FullName:  user.FullName,
			Role:      user.Role,
			Active:    user.Active,
			CreatedAt: user.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, response)
}

// UpsertUser godoc
// @Summary Create or update a user (Admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpsertUserRequest true "User"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Router /admin/users [put]
func (h *AdminHandler) UpsertUser(c *gin.Context) {
	var req UpsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	active := req.Active == nil || *req.Active

	user, err := h.catalogService.EnsureUser(req.Username, req.FullName, req.Role, active)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreatePlot godoc
// @Summary Register a plot (Admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePlotRequest true "Plot"
// @Success 201 {object} models.Plot
// @Failure 400 {object} ErrorResponse
// @Router /admin/plots [post]
func (h *AdminHandler) CreatePlot(c *gin.Context) {
	var req CreatePlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	plot, err := h.catalogService.EnsurePlot(req.Code, req.Name, req.AreaHa)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plot)
}

// CreateCampaign godoc
// @Summary Open a campaign with its periods (Admin)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCampaignRequest true "Campaign"
// @Success 201 {object} CampaignResponse
// @Failure 400 {object} ErrorResponse
// @Router /admin/campaigns [post]
func (h *AdminHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "start_date must be formatted as YYYY-MM-DD", Kind: "validation"})
		return
	}
	var end *time.Time
	if req.EndDate != "" {
		parsed, err := time.Parse(time.DateOnly, req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "end_date must be formatted as YYYY-MM-DD", Kind: "validation"})
			return
		}
		end = &parsed
	}
	open := req.Open == nil || *req.Open

	campaign, periods, err := h.catalogService.CreateCampaign(req.Name, start, end, open, req.Periods)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CampaignResponse{Campaign: campaign, Periods: periods})
}
