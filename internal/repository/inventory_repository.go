package repository

import (
	"errors"
	"time"

	"github.com/h4ks-com/fieldops/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) CreateItem(item *models.InventoryItem) error {
	return r.db.Create(item).Error
}

func (r *InventoryRepository) FindItem(id uint) (*models.InventoryItem, error) {
	return r.FindItemInTx(r.db, id)
}

func (r *InventoryRepository) FindItemInTx(tx *gorm.DB, id uint) (*models.InventoryItem, error) {
	var item models.InventoryItem
	return firstOrNil(tx.Where("id = ?", id), &item)
}

func (r *InventoryRepository) FindItemByCode(code string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	return firstOrNil(r.db.Where("code = ?", code), &item)
}

func (r *InventoryRepository) FindItemForUpdate(tx *gorm.DB, id uint) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *InventoryRepository) FindItemsInTx(tx *gorm.DB, ids []uint) (map[uint]models.InventoryItem, error) {
	found := make(map[uint]models.InventoryItem, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var items []models.InventoryItem
	if err := tx.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		found[it.ID] = it
	}
	return found, nil
}

func (r *InventoryRepository) ListItems(category string) ([]models.InventoryItem, error) {
	q := r.db.Order("code")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var items []models.InventoryItem
	err := q.Find(&items).Error
	return items, err
}

func (r *InventoryRepository) UpdateStockInTx(tx *gorm.DB, item *models.InventoryItem) error {
	return tx.Model(item).Update("current_stock", item.CurrentStock).Error
}

func (r *InventoryRepository) CreateMovementInTx(tx *gorm.DB, movement *models.InventoryMovement) error {
	return tx.Create(movement).Error
}

func (r *InventoryRepository) Movements(itemID uint) ([]models.InventoryMovement, error) {
	var rows []models.InventoryMovement
	err := r.db.Where("item_id = ?", itemID).Order("id").Find(&rows).Error
	return rows, err
}

func (r *InventoryRepository) CreateReservationInTx(tx *gorm.DB, reservation *models.InventoryReservation) error {
	return tx.Create(reservation).Error
}

// ReservationsInTx lists the task's reservations, optionally filtered by state.
func (r *InventoryRepository) ReservationsInTx(tx *gorm.DB, taskID uint, state string) ([]models.InventoryReservation, error) {
	q := tx.Where("task_id = ?", taskID)
	if state != "" {
		q = q.Where("state = ?", state)
	}
	var rows []models.InventoryReservation
	err := q.Order("id").Find(&rows).Error
	return rows, err
}

func (r *InventoryRepository) ResolveReservationInTx(tx *gorm.DB, id uint, state string, at time.Time) error {
	return tx.Model(&models.InventoryReservation{}).
		Where("id = ? AND state = ?", id, models.ReservationReserved).
		Updates(map[string]any{"state": state, "resolved_at": at}).Error
}

// VoidReservationsInTx marks every outstanding reservation of the task voided
// and returns how many rows changed.
func (r *InventoryRepository) VoidReservationsInTx(tx *gorm.DB, taskID uint, at time.Time) (int64, error) {
	res := tx.Model(&models.InventoryReservation{}).
		Where("task_id = ? AND state = ?", taskID, models.ReservationReserved).
		Updates(map[string]any{"state": models.ReservationVoided, "resolved_at": at})
	return res.RowsAffected, res.Error
}

func (r *InventoryRepository) CreateLoanInTx(tx *gorm.DB, loan *models.ToolLoan) error {
	return tx.Create(loan).Error
}

func (r *InventoryRepository) OpenLoansInTx(tx *gorm.DB, itemID uint) ([]models.ToolLoan, error) {
	var rows []models.ToolLoan
	err := tx.Where("item_id = ? AND returned_at IS NULL", itemID).Order("id").Find(&rows).Error
	return rows, err
}

// FindOpenLoanInTx returns the oldest unreturned loan of the item held by the worker, or nil.
func (r *InventoryRepository) FindOpenLoanInTx(tx *gorm.DB, itemID, workerID uint) (*models.ToolLoan, error) {
	var loan models.ToolLoan
	err := tx.Where("item_id = ? AND worker_id = ? AND returned_at IS NULL", itemID, workerID).
		Order("id").First(&loan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &loan, nil
}

func (r *InventoryRepository) CloseLoanInTx(tx *gorm.DB, loan *models.ToolLoan, at time.Time) error {
	loan.ReturnedAt = &at
	return tx.Model(loan).Update("returned_at", at).Error
}
