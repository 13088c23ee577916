package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/storage"
)

const (
	DefaultNotificationLimit = 20
	MaxNotificationLimit     = 100
)

// NotificationService - операции над уведомлениями вызывающего пользователя.
// Каждая операция ограничена владельцем: чужое уведомление выглядит как отсутствующее.
type NotificationService interface {
	List(ctx context.Context, userID int64, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	ClearAll(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, id, userID int64) error
	DeleteMany(ctx context.Context, ids []int64, userID int64) (int64, error)
}

type notificationService struct {
	log               *slog.Logger
	notificationsRepo storage.NotificationStorage
	defaultLimit      int
}

func NewNotificationService(log *slog.Logger, notificationsRepo storage.NotificationStorage, defaultLimit int) NotificationService {
	if defaultLimit <= 0 || defaultLimit > MaxNotificationLimit {
		defaultLimit = DefaultNotificationLimit
	}
	return &notificationService{
		log:               log,
		notificationsRepo: notificationsRepo,
		defaultLimit:      defaultLimit,
	}
}

// List возвращает последние уведомления, limit <= 0 заменяется значением по умолчанию
func (s *notificationService) List(ctx context.Context, userID int64, limit int) ([]*models.Notification, error) {
	const op = "service.NotificationService.List"

	switch {
	case limit <= 0:
		limit = s.defaultLimit
	case limit > MaxNotificationLimit:
		limit = MaxNotificationLimit
	}

	list, err := s.notificationsRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		s.log.Error("failed to list notifications", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID int64) error {
	const op = "service.NotificationService.MarkRead"

	if err := s.notificationsRepo.MarkRead(ctx, id, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	const op = "service.NotificationService.MarkAllRead"

	n, err := s.notificationsRepo.MarkAllRead(ctx, userID)
	if err != nil {
		s.log.Error("failed to mark notifications read", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (s *notificationService) ClearAll(ctx context.Context, userID int64) (int64, error) {
	const op = "service.NotificationService.ClearAll"

	n, err := s.notificationsRepo.DeleteAllByUser(ctx, userID)
	if err != nil {
		s.log.Error("failed to clear notifications", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("notifications cleared", slog.String("op", op), slog.Int64("userID", userID), slog.Int64("deleted", n))
	return n, nil
}

func (s *notificationService) Delete(ctx context.Context, id, userID int64) error {
	const op = "service.NotificationService.Delete"

	if err := s.notificationsRepo.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteMany удаляет только уведомления вызывающего; чужие id молча пропускаются
func (s *notificationService) DeleteMany(ctx context.Context, ids []int64, userID int64) (int64, error) {
	const op = "service.NotificationService.DeleteMany"

	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.notificationsRepo.DeleteMany(ctx, ids, userID)
	if err != nil {
		s.log.Error("failed to delete notifications", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
