package repository

import (
	"time"

	"github.com/h4ks-com/fieldops/internal/models"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

func (r *NotificationRepository) ListByRecipient(recipientID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	q := r.db.Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Notification
	err := q.Order("id DESC").Find(&rows).Error
	return rows, err
}

// MarkRead stamps the notification read and reports whether it belonged to the recipient.
func (r *NotificationRepository) MarkRead(id, recipientID uint, at time.Time) (bool, error) {
	res := r.db.Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read_at", at)
	return res.RowsAffected > 0, res.Error
}
