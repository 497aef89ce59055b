package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/fieldops/internal/services"
	"github.com/shopspring/decimal"
)

type InventoryHandler struct {
	inventoryService *services.InventoryService
}

func NewInventoryHandler(inventoryService *services.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

type QuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity" swaggertype:"number"`
	Unit     string          `json:"unit"`
	Reason   string          `json:"reason"`
}

type AdjustRequest struct {
	Delta  decimal.Decimal `json:"delta" swaggertype:"number"`
	Unit   string          `json:"unit"`
	Reason string          `json:"reason" binding:"required"`
}

type LoanRequest struct {
	WorkerID uint            `json:"worker_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" swaggertype:"number"`
	TaskID   *uint           `json:"task_id"`
}

type ReturnRequest struct {
	WorkerID uint `json:"worker_id" binding:"required"`
}

// ListItems godoc
// @Summary List inventory items
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param category query string false "consumable, tool or equipment"
// @Success 200 {array} models.InventoryItem
// @Router /inventory/items [get]
func (h *InventoryHandler) ListItems(c *gin.Context) {
	items, err := h.inventoryService.ListItems(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// CreateItem godoc
// @Summary Create an inventory item
// @Description The initial stock is recorded as an opening movement
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreateItemInput true "Item"
// @Success 201 {object} models.InventoryItem
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /inventory/items [post]
func (h *InventoryHandler) CreateItem(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req services.CreateItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.inventoryService.CreateItem(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// GetItem godoc
// @Summary Get an inventory item
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Success 200 {object} models.InventoryItem
// @Failure 404 {object} ErrorResponse
// @Router /inventory/items/{id} [get]
func (h *InventoryHandler) GetItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.inventoryService.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Movements godoc
// @Summary Item ledger
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Success 200 {array} models.InventoryMovement
// @Failure 404 {object} ErrorResponse
// @Router /inventory/items/{id}/movements [get]
func (h *InventoryHandler) Movements(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	movements, err := h.inventoryService.Movements(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

// Audit godoc
// @Summary Replay an item's ledger
// @Description Recomputes every snapshot from zero and compares it with the cached stock
// @Tags inventory
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Success 200 {object} services.AuditReport
// @Failure 404 {object} ErrorResponse
// @Router /inventory/items/{id}/audit [get]
func (h *InventoryHandler) Audit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	report, err := h.inventoryService.ReplayItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Receive godoc
// @Summary Receive stock
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body QuantityRequest true "Quantity"
// @Success 201 {object} models.InventoryMovement
// @Failure 400 {object} ErrorResponse
// @Router /inventory/items/{id}/receive [post]
func (h *InventoryHandler) Receive(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	mv, err := h.inventoryService.Receive(c.Request.Context(), actor, id, req.Quantity, req.Unit, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mv)
}

// Adjust godoc
// @Summary Adjust stock
// @Description Signed correction; may leave the stock negative
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body AdjustRequest true "Adjustment"
// @Success 201 {object} models.InventoryMovement
// @Failure 400 {object} ErrorResponse
// @Router /inventory/items/{id}/adjust [post]
func (h *InventoryHandler) Adjust(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	mv, err := h.inventoryService.Adjust(c.Request.Context(), actor, id, req.Delta, req.Unit, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mv)
}

// WriteOff godoc
// @Summary Write off stock
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body QuantityRequest true "Quantity"
// @Success 201 {object} models.InventoryMovement
// @Failure 409 {object} LowStockResponse
// @Router /inventory/items/{id}/write-off [post]
func (h *InventoryHandler) WriteOff(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	mv, err := h.inventoryService.WriteOff(c.Request.Context(), actor, id, req.Quantity, req.Unit, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mv)
}

// Loan godoc
// @Summary Loan a tool or equipment
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body LoanRequest true "Loan"
// @Success 201 {object} models.ToolLoan
// @Failure 409 {object} ErrorResponse
// @Router /inventory/items/{id}/loan [post]
func (h *InventoryHandler) Loan(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req LoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	loan, err := h.inventoryService.Loan(c.Request.Context(), actor, services.LoanInput{
		ItemID:   id,
		WorkerID: req.WorkerID,
		Quantity: req.Quantity,
		TaskID:   req.TaskID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

// Return godoc
// @Summary Return a loaned tool
// @Tags inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Param request body ReturnRequest true "Worker"
// @Success 200 {object} models.ToolLoan
// @Failure 404 {object} ErrorResponse
// @Router /inventory/items/{id}/return [post]
func (h *InventoryHandler) Return(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	loan, err := h.inventoryService.Return(c.Request.Context(), actor, id, req.WorkerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}
