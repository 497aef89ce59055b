package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h4ks-com/fieldops/internal/indicators"
	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/h4ks-com/fieldops/internal/observability"
	"github.com/h4ks-com/fieldops/internal/repository"
	"github.com/h4ks-com/fieldops/internal/units"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateTaskInput struct {
	ActivityType  string
	PlotID        uint
	CampaignID    *uint
	PeriodID      *uint
	ScheduledDate time.Time
	Description   string
	Assignees     []uint
}

type RequirementInput struct {
	ItemID   uint            `json:"item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	Category string          `json:"category" binding:"required,oneof=tool equipment"`
}

type ConsumableInput struct {
	ItemID   uint            `json:"item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
}

type TaskFilter = repository.TaskFilter

// TaskDetail is a task with everything hanging off it.
type TaskDetail struct {
	Task         models.Task                   `json:"task"`
	Assignments  []models.TaskAssignment       `json:"assignments"`
	History      []models.TaskStateLog         `json:"history"`
	Requirements []models.TaskRequirement      `json:"requirements"`
	Consumables  []models.TaskConsumable       `json:"consumables"`
	Reservations []models.InventoryReservation `json:"reservations"`
	Harvest      *models.HarvestRecord         `json:"harvest,omitempty"`
}

type TaskServiceDeps struct {
	Tasks        *repository.TaskRepository
	Users        *repository.UserRepository
	Catalog      *repository.CatalogRepository
	Inventory    *repository.InventoryRepository
	Harvests     *repository.HarvestRepository
	Registry     *indicators.Registry
	Ledger       InventoryLedger
	Consolidator HarvestConsolidator
	Notifier     Notifier
}

// TaskService drives the task lifecycle. Every operation runs in one
// transaction with the task row locked; notifications queued during the
// transaction are dispatched only after it commits.
type TaskService struct {
	taskRepo      *repository.TaskRepository
	userRepo      *repository.UserRepository
	catalogRepo   *repository.CatalogRepository
	inventoryRepo *repository.InventoryRepository
	harvestRepo   *repository.HarvestRepository
	registry      *indicators.Registry
	ledger        InventoryLedger
	consolidator  HarvestConsolidator
	notifier      Notifier
	db            *gorm.DB
}

func NewTaskService(db *gorm.DB, deps TaskServiceDeps) *TaskService {
	return &TaskService{
		taskRepo:      deps.Tasks,
		userRepo:      deps.Users,
		catalogRepo:   deps.Catalog,
		inventoryRepo: deps.Inventory,
		harvestRepo:   deps.Harvests,
		registry:      deps.Registry,
		ledger:        deps.Ledger,
		consolidator:  deps.Consolidator,
		notifier:      deps.Notifier,
		db:            db,
	}
}

type outbox []Notification

func (o *outbox) add(recipient uint, category, title, message string, ref map[string]any) {
	*o = append(*o, Notification{RecipientID: recipient, Category: category, Title: title, Message: message, Reference: ref})
}

func (s *TaskService) observe(ctx context.Context, action string, taskID uint) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, "TaskService."+action, trace.WithAttributes(attribute.Int("task.id", int(taskID))))
	start := time.Now()
	return ctx, func(errp *error) {
		observability.TaskTransitionsTotal.WithLabelValues(action, ErrorKind(*errp)).Inc()
		observability.OperationDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
		endSpan(span, *errp)
	}
}

// mutate locks the task, runs fn and commits, then dispatches the queued
// notifications and returns the reloaded task.
func (s *TaskService) mutate(ctx context.Context, actor Actor, action string, taskID uint, fn func(tx *gorm.DB, task *models.Task, out *outbox) error) (task *models.Task, err error) {
	ctx, done := s.observe(ctx, action, taskID)
	defer done(&err)

	var (
		out      outbox
		from, to string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.taskRepo.FindByIDForUpdate(tx, taskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w %d", ErrTaskNotFound, taskID)
			}
			return err
		}
		from = locked.State
		if err := fn(tx, locked, &out); err != nil {
			return err
		}
		to = locked.State
		return nil
	})
	if err != nil {
		slog.DebugContext(ctx, "task operation rejected", "action", action, "task_id", taskID, "actor_id", actor.ID, "error", err)
		return nil, err
	}

	if from != to {
		slog.InfoContext(ctx, "task transition", "task_id", taskID, "from", from, "to", to, "actor_id", actor.ID)
	}
	s.dispatch(ctx, out)
	return s.load(taskID)
}

func (s *TaskService) dispatch(ctx context.Context, out outbox) {
	DispatchAll(context.WithoutCancel(ctx), s.notifier, out)
}

func (s *TaskService) load(taskID uint) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w %d", ErrTaskNotFound, taskID)
	}
	return task, nil
}

// moveInTx applies a guarded state change and appends its log entry.
func (s *TaskService) moveInTx(tx *gorm.DB, task *models.Task, to string, actor Actor, comment string) error {
	if err := checkTransition(task.State, to); err != nil {
		return err
	}
	task.State = to
	if err := s.taskRepo.UpdateInTx(tx, task); err != nil {
		return err
	}
	return s.logInTx(tx, task, actor, comment)
}

func (s *TaskService) logInTx(tx *gorm.DB, task *models.Task, actor Actor, comment string) error {
	return s.taskRepo.AppendStateLogInTx(tx, &models.TaskStateLog{
		TaskID:  task.ID,
		State:   task.State,
		ActorID: actor.ID,
		Comment: comment,
	})
}

func (s *TaskService) requireAssigneeOrManager(tx *gorm.DB, actor Actor, task *models.Task, action string) error {
	if actor.CanManage() {
		return nil
	}
	assigned, err := s.taskRepo.IsAssignedInTx(tx, task.ID, actor.ID)
	if err != nil {
		return err
	}
	if !assigned {
		return fmt.Errorf("%w: user %d is not assigned to task %d and cannot %s it", ErrForbidden, actor.ID, task.ID, action)
	}
	return nil
}

func requireOpen(task *models.Task, action string) error {
	if isTerminal(task.State) {
		return &InvalidTransitionError{From: task.State, Action: action}
	}
	return nil
}

// loadWorkersInTx checks that every id is an existing, active user.
func (s *TaskService) loadWorkersInTx(tx *gorm.DB, ids []uint) (map[uint]models.User, error) {
	users, err := s.userRepo.FindByIDsInTx(tx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			return nil, fmt.Errorf("%w %d", ErrUserNotFound, id)
		}
		if !u.Active {
			return nil, validationf("worker %d (%s) is inactive", id, u.Username)
		}
	}
	return users, nil
}

func assignmentRole(u models.User) string {
	if u.CanManage() {
		return models.AssignmentSupervisor
	}
	return models.AssignmentExecutor
}

func dedupe(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func taskRef(task *models.Task) map[string]any {
	return map[string]any{"taskId": task.ID, "activityType": task.ActivityType}
}

func (s *TaskService) isHarvestInTx(tx *gorm.DB, task *models.Task) (bool, error) {
	at, err := s.catalogRepo.FindActivityTypeInTx(tx, task.ActivityType)
	if err != nil {
		return false, err
	}
	if at == nil {
		return task.ActivityType == indicators.Harvest, nil
	}
	return at.Harvest, nil
}

func (s *TaskService) CreateTask(ctx context.Context, actor Actor, input CreateTaskInput) (task *models.Task, err error) {
	ctx, done := s.observe(ctx, "create", 0)
	defer done(&err)

	if err := requireManager(actor, "create tasks"); err != nil {
		return nil, err
	}
	if input.PlotID == 0 {
		return nil, validationf("plot is required")
	}
	if input.ScheduledDate.IsZero() {
		return nil, validationf("scheduled date is required")
	}
	if input.PeriodID != nil && input.CampaignID == nil {
		return nil, validationf("a period requires a campaign")
	}
	assignees := dedupe(input.Assignees)

	var out outbox
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		at, err := s.catalogRepo.FindActivityTypeInTx(tx, input.ActivityType)
		if err != nil {
			return err
		}
		if at == nil {
			return validationf("unknown activity type %q", input.ActivityType)
		}
		if !at.Harvest && !s.registry.Has(at.Code) {
			return validationf("activity type %q has no indicator schema", at.Code)
		}
		if at.Harvest && input.CampaignID == nil {
			return validationf("harvest tasks require a campaign")
		}

		plot, err := s.catalogRepo.FindPlotInTx(tx, input.PlotID)
		if err != nil {
			return err
		}
		if plot == nil {
			return notFoundf("plot %d", input.PlotID)
		}

		if input.CampaignID != nil {
			campaign, err := s.catalogRepo.FindCampaignInTx(tx, *input.CampaignID)
			if err != nil {
				return err
			}
			if campaign == nil {
				return notFoundf("campaign %d", *input.CampaignID)
			}
			if !campaign.Open {
				return validationf("campaign %q is closed", campaign.Name)
			}
		}
		if input.PeriodID != nil {
			period, err := s.catalogRepo.FindPeriodInTx(tx, *input.PeriodID)
			if err != nil {
				return err
			}
			if period == nil {
				return notFoundf("period %d", *input.PeriodID)
			}
			if period.CampaignID != *input.CampaignID {
				return validationf("period %d does not belong to campaign %d", period.ID, *input.CampaignID)
			}
		}

		workers, err := s.loadWorkersInTx(tx, assignees)
		if err != nil {
			return err
		}

		task = &models.Task{
			ActivityType:  at.Code,
			PlotID:        plot.ID,
			CampaignID:    input.CampaignID,
			PeriodID:      input.PeriodID,
			ScheduledDate: input.ScheduledDate,
			Description:   strings.TrimSpace(input.Description),
			State:         models.TaskPending,
			CreatedByID:   actor.ID,
			Data:          datatypes.NewJSONType(models.TaskData{}),
		}
		if len(assignees) > 0 {
			task.State = models.TaskAssigned
		}
		if err := s.taskRepo.Create(tx, task); err != nil {
			return translateDBError(err)
		}

		rows := make([]models.TaskAssignment, 0, len(assignees))
		for _, id := range assignees {
			rows = append(rows, models.TaskAssignment{
				TaskID:       task.ID,
				WorkerID:     id,
				Role:         assignmentRole(workers[id]),
				AssignedByID: actor.ID,
			})
			out.add(id, models.NotifyTaskAssigned, "Nueva tarea asignada",
				fmt.Sprintf("Se le asignó la tarea #%d (%s) en el lote %s", task.ID, at.Name, plot.Code), taskRef(task))
		}
		if err := s.taskRepo.CreateAssignmentsInTx(tx, rows); err != nil {
			return translateDBError(err)
		}

		return s.logInTx(tx, task, actor, "created")
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "task created", "task_id", task.ID, "activity_type", task.ActivityType, "state", task.State, "actor_id", actor.ID)
	s.dispatch(ctx, out)
	return s.load(task.ID)
}

// UpdateAssignments makes the task's assignee set equal to target. Submitting
// the current set again writes nothing.
func (s *TaskService) UpdateAssignments(ctx context.Context, actor Actor, taskID uint, target []uint) (*models.Task, error) {
	if err := requireManager(actor, "assign tasks"); err != nil {
		return nil, err
	}
	target = dedupe(target)

	return s.mutate(ctx, actor, "assign", taskID, func(tx *gorm.DB, task *models.Task, out *outbox) error {
		if err := requireOpen(task, "reassign"); err != nil {
			return err
		}

		current, err := s.taskRepo.AssignmentsInTx(tx, task.ID)
		if err != nil {
			return err
		}
		currentIDs := make([]uint, len(current))
		for i, a := range current {
			currentIDs[i] = a.WorkerID
		}

		var added, removed []uint
		for _, id := range target {
			if !slices.Contains(currentIDs, id) {
				added = append(added, id)
			}
		}
		for _, id := range currentIDs {
			if !slices.Contains(target, id) {
				removed = append(removed, id)
			}
		}
		if len(added) == 0 && len(removed) == 0 {
			return nil
		}

		workers, err := s.loadWorkersInTx(tx, added)
		if err != nil {
			return err
		}
		if err := s.taskRepo.DeleteAssignmentsInTx(tx, task.ID, removed); err != nil {
			return err
		}
		rows := make([]models.TaskAssignment, 0, len(added))
		for _, id := range added {
			rows = append(rows, models.TaskAssignment{
				TaskID:       task.ID,
				WorkerID:     id,
				Role:         assignmentRole(workers[id]),
				AssignedByID: actor.ID,
			})
			out.add(id, models.NotifyTaskAssigned, "Nueva tarea asignada",
				fmt.Sprintf("Se le asignó la tarea #%d (%s)", task.ID, task.ActivityType), taskRef(task))
		}
		if err := s.taskRepo.CreateAssignmentsInTx(tx, rows); err != nil {
			return translateDBError(err)
		}

		if task.State == models.TaskPending && len(target) > 0 {
			task.State = models.TaskAssigned
			if err := s.taskRepo.UpdateInTx(tx, task); err != nil {
				return err
			}
		}
		return s.logInTx(tx, task, actor, fmt.Sprintf("+%v -%v", idList(added), idList(removed)))
	})
}

func idList(ids []uint) []uint {
	if ids == nil {
		return []uint{}
	}
	return ids
}

func (s *TaskService) StartTask(ctx context.Context, actor Actor, taskID uint, comment string) (*models.Task, error) {
	return s.mutate(ctx, actor, "start", taskID, func(tx *gorm.DB, task *models.Task, _ *outbox) error {
		if err := s.requireAssigneeOrManager(tx, actor, task, "start"); err != nil {
			return err
		}
		return s.moveInTx(tx, task, models.TaskInProgress, actor, comment)
	})
}

// CompleteTask records the work result. A non-empty payload is validated
// against the activity's indicator schema (harvest payloads are decoded
// structurally) and stored with its summary.
func (s *TaskService) CompleteTask(ctx context.Context, actor Actor, taskID uint, comment string, payload json.RawMessage) (*models.Task, error) {
	return s.mutate(ctx, actor, "complete", taskID, func(tx *gorm.DB, task *models.Task, _ *outbox) error {
		if err := s.requireAssigneeOrManager(tx, actor, task, "complete"); err != nil {
			return err
		}
		if err := checkTransition(task.State, models.TaskCompleted); err != nil {
			return err
		}

		if trimmed := strings.TrimSpace(string(payload)); trimmed != "" && trimmed != "null" {
			if err := s.applyIndicatorsInTx(tx, task, payload); err != nil {
				return err
			}
		} else {
			harvest, err := s.isHarvestInTx(tx, task)
			if err != nil {
				return err
			}
			// a harvest cannot complete without its figures
			if harvest {
				return &IndicatorValidationError{
					ActivityType: task.ActivityType,
					Fields:       []indicators.FieldError{{Field: "kgCosechados", Rule: "required", Message: "is required"}},
				}
			}
		}
		return s.moveInTx(tx, task, models.TaskCompleted, actor, comment)
	})
}

func (s *TaskService) applyIndicatorsInTx(tx *gorm.DB, task *models.Task, payload json.RawMessage) error {
	harvest, err := s.isHarvestInTx(tx, task)
	if err != nil {
		return err
	}

	data := task.Data.Data()
	if harvest {
		h, err := DecodeHarvestIndicators(payload)
		if err != nil {
			return err
		}
		data.Harvest = h
		task.Data = datatypes.NewJSONType(data)
		return nil
	}

	ind, err := s.registry.Validate(task.ActivityType, payload)
	if err != nil {
		if errors.Is(err, indicators.ErrNoSchema) {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return err
	}
	summary, err := s.registry.Summarize(task.ActivityType, ind)
	if err != nil {
		return err
	}
	key, _ := s.registry.SummaryKey(task.ActivityType)
	normalized, err := json.Marshal(ind)
	if err != nil {
		return err
	}

	data.Indicators = normalized
	if data.Summaries == nil {
		data.Summaries = map[string]indicators.Summary{}
	}
	data.Summaries[key] = summary
	task.Data = datatypes.NewJSONType(data)
	return nil
}

// VerifyTask closes a completed task: harvest consolidation first, then the
// consumption of every consumable line, then the state change. With force
// set, consumption may drive stock negative.
func (s *TaskService) VerifyTask(ctx context.Context, actor Actor, taskID uint, comment string, force bool) (*models.Task, error) {
	if err := requireManager(actor, "verify tasks"); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, "verify", taskID, func(tx *gorm.DB, task *models.Task, out *outbox) error {
		if err := checkTransition(task.State, models.TaskVerified); err != nil {
			return err
		}

		harvest, err := s.isHarvestInTx(tx, task)
		if err != nil {
			return err
		}
		if harvest {
			if _, err := s.consolidator.ConsolidateInTx(tx, task); err != nil {
				return err
			}
		}

		lines, err := s.taskRepo.ConsumablesInTx(tx, task.ID)
		if err != nil {
			return err
		}
		reserved, err := s.inventoryRepo.ReservationsInTx(tx, task.ID, models.ReservationReserved)
		if err != nil {
			return err
		}
		byItem := make(map[uint]models.InventoryReservation, len(reserved))
		for _, r := range reserved {
			byItem[r.ItemID] = r
		}

		correlation := uuid.NewString()
		var low []*models.InventoryItem
		for _, line := range lines {
			req := ConsumeRequest{
				TaskID:        task.ID,
				ItemID:        line.ItemID,
				Quantity:      line.Quantity,
				Unit:          line.Unit,
				Forced:        force,
				ActorID:       actor.ID,
				CorrelationID: correlation,
				Reason:        fmt.Sprintf("task %d verified", task.ID),
			}
			if r, ok := byItem[line.ItemID]; ok {
				id := r.ID
				req.Quantity, req.Unit, req.ReservationID = r.Quantity, r.Unit, &id
			}
			res, err := s.ledger.ConsumeInTx(tx, req)
			if err != nil {
				return err
			}
			if res.Item.BelowMinimum() {
				low = append(low, res.Item)
			}
		}

		if _, err := s.ledger.VoidReservationsInTx(tx, task.ID); err != nil {
			return err
		}
		if err := s.moveInTx(tx, task, models.TaskVerified, actor, comment); err != nil {
			return err
		}

		assignments, err := s.taskRepo.AssignmentsInTx(tx, task.ID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			out.add(a.WorkerID, models.NotifyTaskVerified, "Tarea verificada",
				fmt.Sprintf("La tarea #%d (%s) fue verificada", task.ID, task.ActivityType), taskRef(task))
		}

		if len(low) > 0 {
			supervisors, err := s.userRepo.FindActiveByRoleInTx(tx, models.RoleSupervisor)
			if err != nil {
				return err
			}
			for _, item := range low {
				for _, sup := range supervisors {
					out.add(sup.ID, models.NotifyLowStock, "Stock bajo",
						fmt.Sprintf("%s (%s) quedó en %s %s, mínimo %s", item.Name, item.Code, item.CurrentStock, item.BaseUnit, item.MinimumStock),
						map[string]any{"itemId": item.ID, "itemCode": item.Code, "taskId": task.ID})
				}
			}
		}
		return nil
	})
}

// CancelTask releases the task's reservations without touching stock.
func (s *TaskService) CancelTask(ctx context.Context, actor Actor, taskID uint, reason string) (*models.Task, error) {
	if err := requireManager(actor, "cancel tasks"); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, "cancel", taskID, func(tx *gorm.DB, task *models.Task, out *outbox) error {
		if err := checkTransition(task.State, models.TaskCancelled); err != nil {
			return err
		}
		if _, err := s.ledger.VoidReservationsInTx(tx, task.ID); err != nil {
			return err
		}
		if err := s.moveInTx(tx, task, models.TaskCancelled, actor, reason); err != nil {
			return err
		}

		assignments, err := s.taskRepo.AssignmentsInTx(tx, task.ID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			out.add(a.WorkerID, models.NotifyTaskCancelled, "Tarea cancelada",
				fmt.Sprintf("La tarea #%d (%s) fue cancelada: %s", task.ID, task.ActivityType, reason), taskRef(task))
		}
		return nil
	})
}

// ConfigureRequirements replaces the task's tool and equipment requirements.
func (s *TaskService) ConfigureRequirements(ctx context.Context, actor Actor, taskID uint, inputs []RequirementInput) (*models.Task, error) {
	if err := requireManager(actor, "configure tasks"); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, "configure_requirements", taskID, func(tx *gorm.DB, task *models.Task, _ *outbox) error {
		if err := requireOpen(task, "configure"); err != nil {
			return err
		}
		items, err := s.itemsInTx(tx, len(inputs), func(i int) uint { return inputs[i].ItemID })
		if err != nil {
			return err
		}

		rows := make([]models.TaskRequirement, 0, len(inputs))
		for _, in := range inputs {
			item := items[in.ItemID]
			if in.Category != models.RequirementTool && in.Category != models.RequirementEquipment {
				return validationf("requirement category must be tool or equipment, got %q", in.Category)
			}
			if item.Category != in.Category {
				return validationf("item %s is a %s, not a %s", item.Code, item.Category, in.Category)
			}
			unit, err := checkLine(&item, in.Quantity, in.Unit)
			if err != nil {
				return err
			}
			rows = append(rows, models.TaskRequirement{
				TaskID:   task.ID,
				ItemID:   item.ID,
				Quantity: in.Quantity,
				Unit:     unit,
				Category: in.Category,
			})
		}
		return s.taskRepo.ReplaceRequirementsInTx(tx, task.ID, rows)
	})
}

// ConfigureConsumables replaces the task's consumable lines. Prior
// reservations are voided and one fresh reservation is taken per line.
func (s *TaskService) ConfigureConsumables(ctx context.Context, actor Actor, taskID uint, inputs []ConsumableInput) (*models.Task, error) {
	if err := requireManager(actor, "configure tasks"); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, "configure_consumables", taskID, func(tx *gorm.DB, task *models.Task, _ *outbox) error {
		if err := requireOpen(task, "configure"); err != nil {
			return err
		}
		items, err := s.itemsInTx(tx, len(inputs), func(i int) uint { return inputs[i].ItemID })
		if err != nil {
			return err
		}

		seen := make(map[uint]bool, len(inputs))
		rows := make([]models.TaskConsumable, 0, len(inputs))
		for _, in := range inputs {
			item := items[in.ItemID]
			if seen[item.ID] {
				return validationf("item %s listed more than once", item.Code)
			}
			seen[item.ID] = true
			if item.Category != models.CategoryConsumable {
				return validationf("item %s is a %s, not a consumable", item.Code, item.Category)
			}
			unit, err := checkLine(&item, in.Quantity, in.Unit)
			if err != nil {
				return err
			}
			rows = append(rows, models.TaskConsumable{
				TaskID:   task.ID,
				ItemID:   item.ID,
				Quantity: in.Quantity,
				Unit:     unit,
			})
		}

		if err := s.taskRepo.ReplaceConsumablesInTx(tx, task.ID, rows); err != nil {
			return translateDBError(err)
		}
		if _, err := s.ledger.VoidReservationsInTx(tx, task.ID); err != nil {
			return err
		}
		for _, row := range rows {
			if _, err := s.ledger.ReserveInTx(tx, task.ID, row.ItemID, row.Quantity, row.Unit); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *TaskService) itemsInTx(tx *gorm.DB, n int, id func(int) uint) (map[uint]models.InventoryItem, error) {
	ids := make([]uint, n)
	for i := range ids {
		ids[i] = id(i)
	}
	items, err := s.inventoryRepo.FindItemsInTx(tx, ids)
	if err != nil {
		return nil, err
	}
	for _, itemID := range ids {
		if _, ok := items[itemID]; !ok {
			return nil, fmt.Errorf("%w %d", ErrItemNotFound, itemID)
		}
	}
	return items, nil
}

// checkLine validates a configured quantity and returns its canonical unit.
func checkLine(item *models.InventoryItem, quantity decimal.Decimal, unit string) (string, error) {
	if !quantity.IsPositive() {
		return "", validationf("quantity for item %s must be positive", item.Code)
	}
	if unit == "" {
		unit = item.BaseUnit
	}
	sym, err := units.Normalize(unit)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, err := units.Factor(sym, item.BaseUnit); err != nil {
		return "", fmt.Errorf("%w: item %s: %v", ErrValidation, item.Code, err)
	}
	return sym, nil
}

func (s *TaskService) GetTask(ctx context.Context, actor Actor, taskID uint) (detail *TaskDetail, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.GetTask", trace.WithAttributes(attribute.Int("task.id", int(taskID))))
	defer func() { endSpan(span, err) }()

	tx := s.db.WithContext(ctx)
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w %d", ErrTaskNotFound, taskID)
	}
	if err := s.requireAssigneeOrManager(tx, actor, task, "view"); err != nil {
		return nil, err
	}

	detail = &TaskDetail{Task: *task, Assignments: task.Assignments}
	if detail.History, err = s.taskRepo.StateLogsInTx(tx, taskID); err != nil {
		return nil, err
	}
	if detail.Requirements, err = s.taskRepo.RequirementsInTx(tx, taskID); err != nil {
		return nil, err
	}
	if detail.Consumables, err = s.taskRepo.ConsumablesInTx(tx, taskID); err != nil {
		return nil, err
	}
	if detail.Reservations, err = s.inventoryRepo.ReservationsInTx(tx, taskID, ""); err != nil {
		return nil, err
	}
	if detail.Harvest, err = s.harvestRepo.FindByTaskIDInTx(tx, taskID); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListTasks returns task projections. Workers only see tasks they are assigned to.
func (s *TaskService) ListTasks(ctx context.Context, actor Actor, filter TaskFilter) ([]models.Task, error) {
	if !actor.CanManage() {
		filter.WorkerID = actor.ID
	}
	return s.taskRepo.List(filter)
}
