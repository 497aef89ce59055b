package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
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

// InventoryLedger is the part of the ledger the task lifecycle drives. Every
// method runs inside the caller's transaction.
type InventoryLedger interface {
	ReserveInTx(tx *gorm.DB, taskID, itemID uint, quantity decimal.Decimal, unit string) (*models.InventoryReservation, error)
	VoidReservationsInTx(tx *gorm.DB, taskID uint) (int64, error)
	ConsumeInTx(tx *gorm.DB, req ConsumeRequest) (*ConsumeResult, error)
}

type ConsumeRequest struct {
	TaskID        uint
	ItemID        uint
	Quantity      decimal.Decimal
	Unit          string
	Forced        bool
	ReservationID *uint
	ActorID       uint
	CorrelationID string
	Reason        string
}

type ConsumeResult struct {
	Movement *models.InventoryMovement
	Item     *models.InventoryItem
}

type CreateItemInput struct {
	Code         string          `json:"code" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Category     string          `json:"category" binding:"required,oneof=consumable tool equipment"`
	BaseUnit     string          `json:"base_unit" binding:"required"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
	InitialStock decimal.Decimal `json:"initial_stock"`
	Metadata     map[string]any  `json:"metadata"`
}

type LoanInput struct {
	ItemID   uint
	WorkerID uint
	Quantity decimal.Decimal
	TaskID   *uint
}

// AuditReport is the result of replaying an item's movements from zero.
type AuditReport struct {
	ItemID          uint            `json:"item_id"`
	Movements       int             `json:"movements"`
	ReplayedStock   decimal.Decimal `json:"replayed_stock"`
	CachedStock     decimal.Decimal `json:"cached_stock"`
	FirstMismatchID *uint           `json:"first_mismatch_id,omitempty"`
	Consistent      bool            `json:"consistent"`
}

type InventoryService struct {
	inventoryRepo *repository.InventoryRepository
	userRepo      *repository.UserRepository
	db            *gorm.DB
	now           func() time.Time
}

func NewInventoryService(inventoryRepo *repository.InventoryRepository, userRepo *repository.UserRepository, db *gorm.DB) *InventoryService {
	return &InventoryService{
		inventoryRepo: inventoryRepo,
		userRepo:      userRepo,
		db:            db,
		now:           time.Now,
	}
}

// toBase converts quantity declared in unit into the item's base unit.
func toBase(item *models.InventoryItem, quantity decimal.Decimal, unit string) (decimal.Decimal, decimal.Decimal, string, error) {
	if unit == "" {
		unit = item.BaseUnit
	}
	sym, err := units.Normalize(unit)
	if err != nil {
		return decimal.Zero, decimal.Zero, "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	base, factor, err := units.Convert(quantity, sym, item.BaseUnit)
	if err != nil {
		return decimal.Zero, decimal.Zero, "", fmt.Errorf("%w: item %s: %v", ErrValidation, item.Code, err)
	}
	return base, factor, sym, nil
}

// recordInTx appends mv to the item's ledger and moves the cached stock to
// the new snapshot. item must have been read under lock by the caller.
func (s *InventoryService) recordInTx(tx *gorm.DB, item *models.InventoryItem, mv *models.InventoryMovement) error {
	mv.ItemID = item.ID
	mv.ResultingStock = item.CurrentStock.Add(mv.Delta())
	if mv.CorrelationID == "" {
		mv.CorrelationID = uuid.NewString()
	}
	if err := s.inventoryRepo.CreateMovementInTx(tx, mv); err != nil {
		return err
	}
	if !mv.Delta().IsZero() {
		item.CurrentStock = mv.ResultingStock
		if err := s.inventoryRepo.UpdateStockInTx(tx, item); err != nil {
			return err
		}
	}
	observability.InventoryMovementsTotal.WithLabelValues(mv.Type).Inc()
	return nil
}

func (s *InventoryService) lockItem(tx *gorm.DB, itemID uint) (*models.InventoryItem, error) {
	item, err := s.inventoryRepo.FindItemForUpdate(tx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w %d", ErrItemNotFound, itemID)
		}
		return nil, err
	}
	return item, nil
}

func (s *InventoryService) ReserveInTx(tx *gorm.DB, taskID, itemID uint, quantity decimal.Decimal, unit string) (*models.InventoryReservation, error) {
	if !quantity.IsPositive() {
		return nil, validationf("reservation quantity must be positive")
	}
	item, err := s.inventoryRepo.FindItemInTx(tx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w %d", ErrItemNotFound, itemID)
	}
	base, _, sym, err := toBase(item, quantity, unit)
	if err != nil {
		return nil, err
	}

	reservation := &models.InventoryReservation{
		TaskID:       taskID,
		ItemID:       itemID,
		Quantity:     quantity,
		Unit:         sym,
		QuantityBase: base,
		State:        models.ReservationReserved,
	}
	if err := s.inventoryRepo.CreateReservationInTx(tx, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

func (s *InventoryService) VoidReservationsInTx(tx *gorm.DB, taskID uint) (int64, error) {
	return s.inventoryRepo.VoidReservationsInTx(tx, taskID, s.now())
}

// ConsumeInTx debits the item by the requested quantity. A debit that would
// leave the stock negative fails with *LowStockError unless req.Forced is set,
// in which case the movement is written with forced=true in its reference.
func (s *InventoryService) ConsumeInTx(tx *gorm.DB, req ConsumeRequest) (*ConsumeResult, error) {
	if !req.Quantity.IsPositive() {
		return nil, validationf("consumption quantity must be positive")
	}

	item, err := s.lockItem(tx, req.ItemID)
	if err != nil {
		return nil, err
	}

	base, factor, sym, err := toBase(item, req.Quantity, req.Unit)
	if err != nil {
		return nil, err
	}

	resulting := item.CurrentStock.Sub(base)
	short := resulting.IsNegative()
	if short && !req.Forced {
		observability.LowStockRejectionsTotal.Inc()
		return nil, &LowStockError{
			ItemID:    item.ID,
			ItemCode:  item.Code,
			Requested: base,
			Available: item.CurrentStock,
			Shortfall: resulting.Neg(),
		}
	}

	reference := datatypes.JSONMap{}
	if req.TaskID != 0 {
		reference["taskId"] = req.TaskID
	}
	if req.ReservationID != nil {
		reference["reservationId"] = *req.ReservationID
	}
	if short {
		reference["forced"] = true
		observability.ForcedConsumptionsTotal.Inc()
		slog.Warn("forced consumption below zero", "item_id", item.ID, "task_id", req.TaskID, "resulting_stock", resulting.String())
	}

	mv := &models.InventoryMovement{
		Type:          models.MovementOut,
		Quantity:      req.Quantity,
		Unit:          sym,
		Factor:        factor,
		QuantityBase:  base,
		Reason:        req.Reason,
		Reference:     reference,
		CorrelationID: req.CorrelationID,
		ActorID:       req.ActorID,
	}
	if err := s.recordInTx(tx, item, mv); err != nil {
		return nil, err
	}

	if req.ReservationID != nil {
		if err := s.inventoryRepo.ResolveReservationInTx(tx, *req.ReservationID, models.ReservationConsumed, s.now()); err != nil {
			return nil, err
		}
	}

	return &ConsumeResult{Movement: mv, Item: item}, nil
}

func (s *InventoryService) CreateItem(ctx context.Context, actor Actor, input CreateItemInput) (item *models.InventoryItem, err error) {
	ctx, span := tracer.Start(ctx, "InventoryService.CreateItem")
	defer func() { endSpan(span, err) }()

	if err := requireManager(actor, "create inventory items"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Code) == "" || strings.TrimSpace(input.Name) == "" {
		return nil, validationf("code and name are required")
	}
	switch input.Category {
	case models.CategoryConsumable, models.CategoryTool, models.CategoryEquipment:
	default:
		return nil, validationf("unknown category %q", input.Category)
	}
	baseUnit, err := units.Normalize(input.BaseUnit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if input.InitialStock.IsNegative() || input.MinimumStock.IsNegative() {
		return nil, validationf("stock levels cannot be negative")
	}

	item = &models.InventoryItem{
		Code:         strings.TrimSpace(input.Code),
		Name:         strings.TrimSpace(input.Name),
		Category:     input.Category,
		BaseUnit:     baseUnit,
		CurrentStock: decimal.Zero,
		MinimumStock: input.MinimumStock,
	}
	if len(input.Metadata) > 0 {
		item.Metadata = datatypes.JSONMap(input.Metadata)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return translateDBError(err)
		}
		if !input.InitialStock.IsPositive() {
			return nil
		}
		return s.recordInTx(tx, item, &models.InventoryMovement{
			Type:         models.MovementIn,
			Quantity:     input.InitialStock,
			Unit:         baseUnit,
			Factor:       decimal.NewFromInt(1),
			QuantityBase: input.InitialStock,
			Reason:       "opening balance",
			ActorID:      actor.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *InventoryService) GetItem(ctx context.Context, itemID uint) (*models.InventoryItem, error) {
	item, err := s.inventoryRepo.FindItemInTx(s.db.WithContext(ctx), itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w %d", ErrItemNotFound, itemID)
	}
	return item, nil
}

func (s *InventoryService) ListItems(ctx context.Context, category string) ([]models.InventoryItem, error) {
	return s.inventoryRepo.ListItems(category)
}

// Receive records goods entering the store.
func (s *InventoryService) Receive(ctx context.Context, actor Actor, itemID uint, quantity decimal.Decimal, unit, reason string) (*models.InventoryMovement, error) {
	if !quantity.IsPositive() {
		return nil, validationf("quantity must be positive")
	}
	return s.administrative(ctx, actor, "Receive", itemID, func(tx *gorm.DB, item *models.InventoryItem) (*models.InventoryMovement, error) {
		base, factor, sym, err := toBase(item, quantity, unit)
		if err != nil {
			return nil, err
		}
		return &models.InventoryMovement{
			Type: models.MovementIn, Quantity: quantity, Unit: sym, Factor: factor, QuantityBase: base, Reason: reason,
		}, nil
	})
}

// Adjust corrects the stock by delta (base unit when unit is empty). A
// negative adjustment may drive the stock below zero.
func (s *InventoryService) Adjust(ctx context.Context, actor Actor, itemID uint, delta decimal.Decimal, unit, reason string) (*models.InventoryMovement, error) {
	if delta.IsZero() {
		return nil, validationf("adjustment delta cannot be zero")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, validationf("adjustment reason is required")
	}
	return s.administrative(ctx, actor, "Adjust", itemID, func(tx *gorm.DB, item *models.InventoryItem) (*models.InventoryMovement, error) {
		base, factor, sym, err := toBase(item, delta.Abs(), unit)
		if err != nil {
			return nil, err
		}
		mvType := models.MovementAdjustIn
		if delta.IsNegative() {
			mvType = models.MovementAdjustOut
		}
		return &models.InventoryMovement{
			Type: mvType, Quantity: delta.Abs(), Unit: sym, Factor: factor, QuantityBase: base, Reason: reason,
		}, nil
	})
}

// WriteOff removes damaged or expired stock. Unlike Adjust it never drives
// the stock negative.
func (s *InventoryService) WriteOff(ctx context.Context, actor Actor, itemID uint, quantity decimal.Decimal, unit, reason string) (*models.InventoryMovement, error) {
	if !quantity.IsPositive() {
		return nil, validationf("quantity must be positive")
	}
	return s.administrative(ctx, actor, "WriteOff", itemID, func(tx *gorm.DB, item *models.InventoryItem) (*models.InventoryMovement, error) {
		base, factor, sym, err := toBase(item, quantity, unit)
		if err != nil {
			return nil, err
		}
		if resulting := item.CurrentStock.Sub(base); resulting.IsNegative() {
			return nil, &LowStockError{ItemID: item.ID, ItemCode: item.Code, Requested: base, Available: item.CurrentStock, Shortfall: resulting.Neg()}
		}
		return &models.InventoryMovement{
			Type: models.MovementWriteOff, Quantity: quantity, Unit: sym, Factor: factor, QuantityBase: base, Reason: reason,
		}, nil
	})
}

func (s *InventoryService) administrative(
	ctx context.Context,
	actor Actor,
	op string,
	itemID uint,
	build func(tx *gorm.DB, item *models.InventoryItem) (*models.InventoryMovement, error),
) (mv *models.InventoryMovement, err error) {
	ctx, span := tracer.Start(ctx, "InventoryService."+op, trace.WithAttributes(attribute.Int("item.id", int(itemID))))
	defer func() { endSpan(span, err) }()

	if err := requireManager(actor, "change inventory"); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.lockItem(tx, itemID)
		if err != nil {
			return err
		}
		mv, err = build(tx, item)
		if err != nil {
			return err
		}
		mv.ActorID = actor.ID
		return s.recordInTx(tx, item, mv)
	})
	if err != nil {
		return nil, err
	}
	return mv, nil
}

// Loan hands a tool or piece of equipment to a worker. Loans do not change
// the stock; they are bounded by stock minus the quantity already out.
func (s *InventoryService) Loan(ctx context.Context, actor Actor, input LoanInput) (loan *models.ToolLoan, err error) {
	ctx, span := tracer.Start(ctx, "InventoryService.Loan", trace.WithAttributes(attribute.Int("item.id", int(input.ItemID))))
	defer func() { endSpan(span, err) }()

	if err := requireManager(actor, "loan tools"); err != nil {
		return nil, err
	}
	if !input.Quantity.IsPositive() {
		return nil, validationf("loan quantity must be positive")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.lockItem(tx, input.ItemID)
		if err != nil {
			return err
		}
		if item.Category != models.CategoryTool && item.Category != models.CategoryEquipment {
			return validationf("item %s is a %s and cannot be loaned", item.Code, item.Category)
		}

		worker, err := s.userRepo.FindByIDInTx(tx, input.WorkerID)
		if err != nil {
			return err
		}
		if worker == nil {
			return fmt.Errorf("%w %d", ErrUserNotFound, input.WorkerID)
		}
		if !worker.Active {
			return validationf("worker %d is inactive", worker.ID)
		}

		open, err := s.inventoryRepo.OpenLoansInTx(tx, item.ID)
		if err != nil {
			return err
		}
		out := decimal.Zero
		for _, l := range open {
			out = out.Add(l.Quantity)
		}
		if available := item.CurrentStock.Sub(out); input.Quantity.GreaterThan(available) {
			return fmt.Errorf("%w: only %s %s of %s available for loan", ErrConflict, available, item.BaseUnit, item.Code)
		}

		loan = &models.ToolLoan{
			ItemID:   item.ID,
			WorkerID: worker.ID,
			TaskID:   input.TaskID,
			Quantity: input.Quantity,
			LoanedAt: s.now(),
		}
		if err := s.inventoryRepo.CreateLoanInTx(tx, loan); err != nil {
			return err
		}

		reference := datatypes.JSONMap{"loanId": loan.ID, "workerId": worker.ID}
		if input.TaskID != nil {
			reference["taskId"] = *input.TaskID
		}
		return s.recordInTx(tx, item, &models.InventoryMovement{
			Type:         models.MovementLoanOut,
			Quantity:     input.Quantity,
			Unit:         item.BaseUnit,
			Factor:       decimal.NewFromInt(1),
			QuantityBase: input.Quantity,
			Reason:       "loan to " + worker.Username,
			Reference:    reference,
			ActorID:      actor.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Return closes the worker's oldest open loan of the item.
func (s *InventoryService) Return(ctx context.Context, actor Actor, itemID, workerID uint) (loan *models.ToolLoan, err error) {
	ctx, span := tracer.Start(ctx, "InventoryService.Return", trace.WithAttributes(attribute.Int("item.id", int(itemID))))
	defer func() { endSpan(span, err) }()

	if err := requireManager(actor, "receive returned tools"); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.lockItem(tx, itemID)
		if err != nil {
			return err
		}
		loan, err = s.inventoryRepo.FindOpenLoanInTx(tx, itemID, workerID)
		if err != nil {
			return err
		}
		if loan == nil {
			return notFoundf("no open loan of item %d for worker %d", itemID, workerID)
		}
		if err := s.inventoryRepo.CloseLoanInTx(tx, loan, s.now()); err != nil {
			return err
		}
		return s.recordInTx(tx, item, &models.InventoryMovement{
			Type:         models.MovementLoanReturn,
			Quantity:     loan.Quantity,
			Unit:         item.BaseUnit,
			Factor:       decimal.NewFromInt(1),
			QuantityBase: loan.Quantity,
			Reason:       "loan returned",
			Reference:    datatypes.JSONMap{"loanId": loan.ID, "workerId": workerID},
			ActorID:      actor.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *InventoryService) Movements(ctx context.Context, itemID uint) ([]models.InventoryMovement, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.inventoryRepo.Movements(itemID)
}

// ReplayItem recomputes every snapshot of the item's ledger from zero and
// compares the result with the cached stock.
func (s *InventoryService) ReplayItem(ctx context.Context, itemID uint) (*AuditReport, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	movements, err := s.inventoryRepo.Movements(itemID)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{ItemID: itemID, Movements: len(movements), CachedStock: item.CurrentStock}
	running := decimal.Zero
	for i := range movements {
		m := &movements[i]
		running = running.Add(m.Delta())
		if report.FirstMismatchID == nil && !running.Equal(m.ResultingStock) {
			id := m.ID
			report.FirstMismatchID = &id
		}
	}
	report.ReplayedStock = running
	report.Consistent = report.FirstMismatchID == nil && running.Equal(item.CurrentStock)
	return report, nil
}
