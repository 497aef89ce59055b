package services

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/h4ks-com/fieldops/internal/observability"
	"github.com/h4ks-com/fieldops/internal/repository"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const dispatchConcurrency = 4

type Notification struct {
	RecipientID uint
	Category    string
	Title       string
	Message     string
	Reference   map[string]any
}

// Notifier delivers one notification to one recipient.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// DispatchAll delivers the batch with bounded concurrency. Delivery failures
// are logged and counted; the number of failed deliveries is returned.
func DispatchAll(ctx context.Context, notifier Notifier, batch []Notification) int {
	if notifier == nil || len(batch) == 0 {
		return 0
	}

	var failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dispatchConcurrency)
	for _, n := range batch {
		g.Go(func() error {
			if err := notifier.Notify(gctx, n); err != nil {
				failed.Add(1)
				observability.NotificationsTotal.WithLabelValues(n.Category, "error").Inc()
				slog.Warn("notification delivery failed",
					"recipient_id", n.RecipientID,
					"category", n.Category,
					"error", err,
				)
				return nil
			}
			observability.NotificationsTotal.WithLabelValues(n.Category, "ok").Inc()
			return nil
		})
	}
	_ = g.Wait()
	return int(failed.Load())
}

// NotificationService stores notifications as inbox rows.
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	now              func() time.Time
}

func NewNotificationService(notificationRepo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo, now: time.Now}
}

func (s *NotificationService) Notify(ctx context.Context, n Notification) error {
	row := &models.Notification{
		RecipientID: n.RecipientID,
		Category:    n.Category,
		Title:       n.Title,
		Message:     n.Message,
	}
	if len(n.Reference) > 0 {
		row.Reference = datatypes.JSONMap(n.Reference)
	}
	if err := s.notificationRepo.Create(row); err != nil {
		return err
	}
	slog.InfoContext(ctx, "notification stored",
		"notification_id", row.ID,
		"recipient_id", n.RecipientID,
		"category", n.Category,
	)
	return nil
}

func (s *NotificationService) List(ctx context.Context, actor Actor, unreadOnly bool) ([]models.Notification, error) {
	return s.notificationRepo.ListByRecipient(actor.ID, unreadOnly, 100)
}

func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id uint) error {
	ok, err := s.notificationRepo.MarkRead(id, actor.ID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return notFoundf("notification %d", id)
	}
	return nil
}
