package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NotifyTaskAssigned  = "tarea_asignada"
	NotifyTaskVerified  = "tarea_verificada"
	NotifyTaskCancelled = "tarea_cancelada"
	NotifyLowStock      = "stock_bajo"
)

type Notification struct {
	gorm.Model
	RecipientID uint              `gorm:"not null;index" json:"recipient_id"`
	Category    string            `gorm:"not null;size:32;index" json:"category"`
	Title       string            `gorm:"not null" json:"title"`
	Message     string            `gorm:"type:text" json:"message"`
	Reference   datatypes.JSONMap `json:"reference,omitempty"`
	ReadAt      *time.Time        `json:"read_at,omitempty"`
}
