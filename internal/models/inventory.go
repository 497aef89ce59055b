package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CategoryConsumable = "consumable"
	CategoryTool       = "tool"
	CategoryEquipment  = "equipment"
)

const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementAdjustIn   = "adjust-in"
	MovementAdjustOut  = "adjust-out"
	MovementLoanOut    = "loan-out"
	MovementLoanReturn = "loan-return"
	MovementWriteOff   = "write-off"
)

const (
	ReservationReserved = "reserved"
	ReservationConsumed = "consumed"
	ReservationVoided   = "voided"
)

type InventoryItem struct {
	gorm.Model
	Code         string            `gorm:"uniqueIndex;not null;size:64" json:"code"`
	Name         string            `gorm:"not null" json:"name"`
	Category     string            `gorm:"not null;index;size:16" json:"category"`
	BaseUnit     string            `gorm:"not null;size:16" json:"base_unit"`
	CurrentStock decimal.Decimal   `gorm:"type:decimal(20,6);not null;default:0" json:"current_stock"`
	MinimumStock decimal.Decimal   `gorm:"type:decimal(20,6);not null;default:0" json:"minimum_stock"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
}

func (i *InventoryItem) BelowMinimum() bool {
	return i.CurrentStock.LessThan(i.MinimumStock)
}

// InventoryMovement is an append-only ledger row. ResultingStock is the item
// stock after applying the movement's signed delta.
type InventoryMovement struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	ItemID         uint              `gorm:"not null;index" json:"item_id"`
	Type           string            `gorm:"not null;size:16;index" json:"type"`
	Quantity       decimal.Decimal   `gorm:"type:decimal(20,6);not null" json:"quantity"`
	Unit           string            `gorm:"not null;size:16" json:"unit"`
	Factor         decimal.Decimal   `gorm:"type:decimal(20,6);not null" json:"factor"`
	QuantityBase   decimal.Decimal   `gorm:"type:decimal(20,6);not null" json:"quantity_base"`
	ResultingStock decimal.Decimal   `gorm:"type:decimal(20,6);not null" json:"resulting_stock"`
	Reason         string            `gorm:"type:text" json:"reason"`
	Reference      datatypes.JSONMap `json:"reference,omitempty"`
	CorrelationID  string            `gorm:"size:36;index" json:"correlation_id"`
	ActorID        uint              `json:"actor_id"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Delta returns the signed stock change of the movement in the item's base unit.
func (m *InventoryMovement) Delta() decimal.Decimal {
	switch m.Type {
	case MovementIn, MovementAdjustIn:
		return m.QuantityBase
	case MovementOut, MovementAdjustOut, MovementWriteOff:
		return m.QuantityBase.Neg()
	default:
		return decimal.Zero
	}
}

type InventoryReservation struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	TaskID       uint            `gorm:"not null;index" json:"task_id"`
	ItemID       uint            `gorm:"not null;index" json:"item_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	Unit         string          `gorm:"not null;size:16" json:"unit"`
	QuantityBase decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity_base"`
	State        string          `gorm:"not null;size:16;index" json:"state"`
	CreatedAt    time.Time       `json:"created_at"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
}

type ToolLoan struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ItemID     uint            `gorm:"not null;index" json:"item_id"`
	WorkerID   uint            `gorm:"not null;index" json:"worker_id"`
	TaskID     *uint           `gorm:"index" json:"task_id,omitempty"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	LoanedAt   time.Time       `gorm:"not null" json:"loaned_at"`
	ReturnedAt *time.Time      `json:"returned_at,omitempty"`
}
