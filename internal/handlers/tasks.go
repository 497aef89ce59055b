package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/fieldops/internal/services"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

type CreateTaskRequest struct {
	ActivityType  string `json:"activity_type" binding:"required"`
	PlotID        uint   `json:"plot_id" binding:"required"`
	CampaignID    *uint  `json:"campaign_id"`
	PeriodID      *uint  `json:"period_id"`
	ScheduledDate string `json:"scheduled_date" binding:"required" example:"2025-03-01"`
	Description   string `json:"description"`
	Assignees     []uint `json:"assignees"`
}

type AssignmentsRequest struct {
	WorkerIDs []uint `json:"worker_ids"`
}

type TransitionRequest struct {
	Comment string `json:"comment"`
}

type CompleteTaskRequest struct {
	Comment    string          `json:"comment"`
	Indicators json.RawMessage `json:"indicators" swaggertype:"object"`
}

type VerifyTaskRequest struct {
	Comment string `json:"comment"`
	Force   bool   `json:"force"`
}

type CancelTaskRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type RequirementsRequest struct {
	Lines []services.RequirementInput `json:"lines" binding:"dive"`
}

type ConsumablesRequest struct {
	Lines []services.ConsumableInput `json:"lines" binding:"dive"`
}

type TaskListQuery struct {
	State        string `form:"state"`
	PlotID       uint   `form:"plot_id"`
	ActivityType string `form:"activity_type"`
	WorkerID     uint   `form:"worker_id"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset       int    `form:"offset" binding:"omitempty,min=0"`
}

// bindOptionalJSON binds the body when one was sent.
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return false
	}
	return true
}

// CreateTask godoc
// @Summary Create a field task
// @Description Plan a task on a plot; it starts assigned when assignees are given, pending otherwise
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTaskRequest true "Task"
// @Success 201 {object} models.Task
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	scheduled, err := time.Parse(time.DateOnly, req.ScheduledDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "scheduled_date must be formatted as YYYY-MM-DD", Kind: "validation"})
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), actor, services.CreateTaskInput{
		ActivityType:  req.ActivityType,
		PlotID:        req.PlotID,
		CampaignID:    req.CampaignID,
		PeriodID:      req.PeriodID,
		ScheduledDate: scheduled,
		Description:   req.Description,
		Assignees:     req.Assignees,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// ListTasks godoc
// @Summary List tasks
// @Description Workers only see the tasks they are assigned to
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param state query string false "State"
// @Param plot_id query int false "Plot ID"
// @Param activity_type query string false "Activity type code"
// @Param worker_id query int false "Assigned worker ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.Task
// @Failure 400 {object} ErrorResponse
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var q TaskListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), actor, services.TaskFilter{
		State:        q.State,
		PlotID:       q.PlotID,
		ActivityType: q.ActivityType,
		WorkerID:     q.WorkerID,
		Limit:        q.Limit,
		Offset:       q.Offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tasks)
}

// GetTask godoc
// @Summary Get a task
// @Description Task with assignments, state history, configuration, reservations and harvest record
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} services.TaskDetail
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.taskService.GetTask(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// UpdateAssignments godoc
// @Summary Replace task assignees
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body AssignmentsRequest true "Worker IDs"
// @Success 200 {object} models.Task
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /tasks/{id}/assignments [put]
func (h *TaskHandler) UpdateAssignments(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req AssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.taskService.UpdateAssignments(c.Request.Context(), actor, id, req.WorkerIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// StartTask godoc
// @Summary Start a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body TransitionRequest false "Comment"
// @Success 200 {object} models.Task
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /tasks/{id}/start [post]
func (h *TaskHandler) StartTask(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req TransitionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	task, err := h.taskService.StartTask(c.Request.Context(), actor, id, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// CompleteTask godoc
// @Summary Complete a task
// @Description Report the work result; indicators are validated against the activity's schema
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body CompleteTaskRequest false "Indicators"
// @Success 200 {object} models.Task
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} IndicatorErrorResponse
// @Router /tasks/{id}/complete [post]
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req CompleteTaskRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	task, err := h.taskService.CompleteTask(c.Request.Context(), actor, id, req.Comment, req.Indicators)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// VerifyTask godoc
// @Summary Verify a completed task
// @Description Consolidates harvest figures and consumes the task's consumables; force allows negative stock
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body VerifyTaskRequest false "Verification"
// @Success 200 {object} models.Task
// @Failure 409 {object} LowStockResponse
// @Failure 422 {object} MassBalanceResponse
// @Router /tasks/{id}/verify [post]
func (h *TaskHandler) VerifyTask(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req VerifyTaskRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	task, err := h.taskService.VerifyTask(c.Request.Context(), actor, id, req.Comment, req.Force)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// CancelTask godoc
// @Summary Cancel a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body CancelTaskRequest true "Reason"
// @Success 200 {object} models.Task
// @Failure 409 {object} ErrorResponse
// @Router /tasks/{id}/cancel [post]
func (h *TaskHandler) CancelTask(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req CancelTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.taskService.CancelTask(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// ConfigureRequirements godoc
// @Summary Replace tool and equipment requirements
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body RequirementsRequest true "Lines"
// @Success 200 {object} models.Task
// @Failure 400 {object} ErrorResponse
// @Router /tasks/{id}/requirements [put]
func (h *TaskHandler) ConfigureRequirements(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req RequirementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.taskService.ConfigureRequirements(c.Request.Context(), actor, id, req.Lines)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// ConfigureConsumables godoc
// @Summary Replace consumable lines
// @Description Voids earlier reservations and reserves each new line
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param request body ConsumablesRequest true "Lines"
// @Success 200 {object} models.Task
// @Failure 400 {object} ErrorResponse
// @Router /tasks/{id}/consumables [put]
func (h *TaskHandler) ConfigureConsumables(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ConsumablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.taskService.ConfigureConsumables(c.Request.Context(), actor, id, req.Lines)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}
