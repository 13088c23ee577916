package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/lib/metrics"
	"github.com/linemk/proshop/internal/storage"
)

// BigOfferThreshold - минимальная скидка в процентах, о которой оповещаются покупатели
const BigOfferThreshold = 20.0

const offerTitle = "🔥 Big Offer Alert!"

// IsBigOffer сообщает, пересекла ли скидка порог "большого предложения".
// Срабатывает только на рост скидки до значения >= порога: неизменная или
// уменьшенная скидка, как и небольшая, уведомлений не порождает.
// Отсутствующая прежняя скидка считается нулевой, отсутствующая новая - не срабатывает.
// Нечисловые значения (NaN, Inf) никогда не срабатывают.
func IsBigOffer(previous, next *float64) bool {
	if next == nil {
		return false
	}
	n := *next
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return false
	}

	p := 0.0
	if previous != nil {
		if math.IsNaN(*previous) {
			return false
		}
		p = *previous
	}
	return n >= BigOfferThreshold && n > p
}

// OfferMessage формирует текст уведомления о скидке
func OfferMessage(productName string, discount float64) string {
	return fmt.Sprintf("%s is now %s%% OFF! Grab it before it's gone.",
		productName, strconv.FormatFloat(discount, 'f', -1, 64))
}

// OfferDispatcher рассылает уведомление о скидке всем покупателям (роль "user").
// Рассылка выполняется вне запроса, не повторяется и не дедуплицируется:
// два близких пересечения порога дадут две пачки уведомлений.
type OfferDispatcher struct {
	log               *slog.Logger
	userRepo          storage.UserStorage
	notificationsRepo storage.NotificationStorage
	metrics           *metrics.Metrics
	now               func() time.Time
}

func NewOfferDispatcher(log *slog.Logger, userRepo storage.UserStorage, notificationsRepo storage.NotificationStorage, m *metrics.Metrics) *OfferDispatcher {
	return &OfferDispatcher{
		log:               log,
		userRepo:          userRepo,
		notificationsRepo: notificationsRepo,
		metrics:           m,
		now:               time.Now,
	}
}

// Dispatch пишет по одному уведомлению на каждого покупателя одной пачкой.
// Ошибка возвращается только для журналирования фоновым раннером.
func (d *OfferDispatcher) Dispatch(ctx context.Context, product models.Product, discount float64) error {
	const op = "service.OfferDispatcher.Dispatch"
	logger := d.log.With(
		slog.String("op", op),
		slog.String("batchID", uuid.NewString()),
		slog.Int64("productID", product.ID),
		slog.Float64("discount", discount),
	)

	// снимок получателей без блокировки: смена роли во время рассылки не учитывается
	recipients, err := d.userRepo.ListUsersByRole(ctx, models.RoleUser)
	if err != nil {
		return fmt.Errorf("%s: failed to load recipients: %w", op, err)
	}
	if len(recipients) == 0 {
		logger.Info("no recipients for offer notification")
		return nil
	}

	createdAt := d.now().UTC()
	message := OfferMessage(product.Name, discount)
	batch := make([]models.Notification, 0, len(recipients))
	for _, user := range recipients {
		if user.Role != models.RoleUser {
			continue
		}
		batch = append(batch, models.Notification{
			UserID:    user.ID,
			Title:     offerTitle,
			Message:   message,
			Type:      models.NotificationAlert,
			CreatedAt: createdAt,
		})
	}

	inserted, err := d.notificationsRepo.CreateNotifications(ctx, batch)
	if err != nil {
		return fmt.Errorf("%s: failed to write notifications: %w", op, err)
	}
	d.metrics.Notifications.WithLabelValues(models.NotificationAlert).Add(float64(inserted))

	logger.Info("offer notifications sent", slog.Int("recipients", len(batch)), slog.Int64("inserted", inserted))
	return nil
}
