package models

import (
	"encoding/json"
	"time"

	"github.com/h4ks-com/fieldops/internal/indicators"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TaskPending    = "pending"
	TaskAssigned   = "assigned"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskVerified   = "verified"
	TaskCancelled  = "cancelled"
)

const (
	AssignmentExecutor   = "executor"
	AssignmentSupervisor = "supervisor"
)

const (
	RequirementTool      = "tool"
	RequirementEquipment = "equipment"
)

// TaskData holds the activity-specific payload of a task. Indicators is the
// normalized payload of the variant named by the task's activity type.
type TaskData struct {
	Indicators json.RawMessage               `json:"indicators,omitempty"`
	Summaries  map[string]indicators.Summary `json:"summaries,omitempty"`
	Harvest    *HarvestIndicators            `json:"harvest,omitempty"`
}

type Task struct {
	gorm.Model
	ActivityType  string                       `gorm:"not null;index;size:32" json:"activity_type"`
	PlotID        uint                         `gorm:"not null;index" json:"plot_id"`
	Plot          *Plot                        `gorm:"foreignKey:PlotID" json:"plot,omitempty"`
	CampaignID    *uint                        `gorm:"index" json:"campaign_id,omitempty"`
	PeriodID      *uint                        `gorm:"index" json:"period_id,omitempty"`
	ScheduledDate time.Time                    `gorm:"not null" json:"scheduled_date"`
	Description   string                       `gorm:"type:text" json:"description"`
	State         string                       `gorm:"not null;index;size:16" json:"state"`
	CreatedByID   uint                         `gorm:"not null" json:"created_by_id"`
	Data          datatypes.JSONType[TaskData] `json:"data"`
	Assignments   []TaskAssignment             `gorm:"foreignKey:TaskID" json:"assignments,omitempty"`
}

func (t *Task) Terminal() bool {
	return t.State == TaskVerified || t.State == TaskCancelled
}

type TaskAssignment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TaskID       uint      `gorm:"not null;uniqueIndex:idx_assignment_task_worker" json:"task_id"`
	WorkerID     uint      `gorm:"not null;uniqueIndex:idx_assignment_task_worker;index" json:"worker_id"`
	Worker       *User     `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
	Role         string    `gorm:"not null;size:16" json:"role"`
	AssignedByID uint      `gorm:"not null" json:"assigned_by_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// TaskStateLog is append-only; entries are ordered by ID.
type TaskStateLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	State     string    `gorm:"not null;size:16" json:"state"`
	ActorID   uint      `gorm:"not null" json:"actor_id"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type TaskRequirement struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	TaskID   uint            `gorm:"not null;index" json:"task_id"`
	ItemID   uint            `gorm:"not null" json:"item_id"`
	Item     *InventoryItem  `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	Quantity decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	Unit     string          `gorm:"not null;size:16" json:"unit"`
	Category string          `gorm:"not null;size:16" json:"category"`
}

type TaskConsumable struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	TaskID   uint            `gorm:"not null;uniqueIndex:idx_consumable_task_item" json:"task_id"`
	ItemID   uint            `gorm:"not null;uniqueIndex:idx_consumable_task_item" json:"item_id"`
	Item     *InventoryItem  `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	Quantity decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	Unit     string          `gorm:"not null;size:16" json:"unit"`
}
