package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/lib/metrics"
	"github.com/linemk/proshop/internal/storage"
)

const (
	newOrderTitle     = "New Order Received"
	orderUpdatedTitle = "Order Updated"
)

// ErrNoOrderRecipient - некому отправить уведомление о новом заказе
var ErrNoOrderRecipient = errors.New("no order notification recipient")

// OrderEventPublisher пишет уведомления о событиях заказа.
// Вызывается только после того, как заказ сохранен; его ошибки не должны
// влиять на результат операции с заказом, вызывающий их только журналирует.
type OrderEventPublisher struct {
	log               *slog.Logger
	userRepo          storage.UserStorage
	notificationsRepo storage.NotificationStorage
	metrics           *metrics.Metrics
	// recipientID - явно настроенный получатель, 0 - первый по id администратор
	recipientID int64
	now         func() time.Time
}

func NewOrderEventPublisher(log *slog.Logger, userRepo storage.UserStorage, notificationsRepo storage.NotificationStorage, m *metrics.Metrics, recipientID int64) *OrderEventPublisher {
	return &OrderEventPublisher{
		log:               log,
		userRepo:          userRepo,
		notificationsRepo: notificationsRepo,
		metrics:           m,
		recipientID:       recipientID,
		now:               time.Now,
	}
}

// Publish пишет ровно одно уведомление типа "order" о новом заказе
func (p *OrderEventPublisher) Publish(ctx context.Context, order *models.Order, actor *models.User) error {
	const op = "service.OrderEventPublisher.Publish"

	recipient, err := p.resolveRecipient(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n := models.Notification{
		UserID:    recipient,
		Title:     newOrderTitle,
		Message:   fmt.Sprintf("Order #%s placed by %s", order.ShortID(), actor.Name),
		Type:      models.NotificationOrder,
		CreatedAt: p.now().UTC(),
	}
	if err := p.write(ctx, n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info("order notification written",
		slog.String("op", op),
		slog.String("orderID", order.ID.String()),
		slog.Int64("recipientID", recipient),
	)
	return nil
}

// PublishStatusChange сообщает владельцу заказа о смене статуса
func (p *OrderEventPublisher) PublishStatusChange(ctx context.Context, order *models.Order) error {
	const op = "service.OrderEventPublisher.PublishStatusChange"

	n := models.Notification{
		UserID:    order.UserID,
		Title:     fmt.Sprintf("%s: %s", orderUpdatedTitle, order.Status),
		Message:   fmt.Sprintf("Your order #%s is now %s.", order.ShortID(), order.Status),
		Type:      models.NotificationOrder,
		CreatedAt: p.now().UTC(),
	}
	if err := p.write(ctx, n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *OrderEventPublisher) write(ctx context.Context, n models.Notification) error {
	inserted, err := p.notificationsRepo.CreateNotifications(ctx, []models.Notification{n})
	if err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	p.metrics.Notifications.WithLabelValues(n.Type).Add(float64(inserted))
	return nil
}

func (p *OrderEventPublisher) resolveRecipient(ctx context.Context) (int64, error) {
	if p.recipientID > 0 {
		return p.recipientID, nil
	}

	admins, err := p.userRepo.ListUsersByRole(ctx, models.RoleAdmin)
	if err != nil {
		return 0, fmt.Errorf("failed to load admins: %w", err)
	}
	if len(admins) == 0 {
		return 0, ErrNoOrderRecipient
	}
	// репозиторий отдает пользователей по возрастанию id
	return admins[0].ID, nil
}
