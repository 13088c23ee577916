package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/service"
	"github.com/linemk/proshop/internal/storage"
)

type DeleteNotificationsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// ListNotificationsHandler обрабатывает GET /api/notifications?limit=N
func ListNotificationsHandler(log *slog.Logger, notificationService service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListNotificationsHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := callerFromRequest(w, r, logger)
		if !ok {
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		list, err := notificationService.List(r.Context(), userID, limit)
		if err != nil {
			logger.Error("failed to list notifications", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []*models.Notification{}
		}

		writeJSON(w, logger, http.StatusOK, list)
	}
}

// MarkNotificationReadHandler обрабатывает PATCH /api/notifications/{id}/read.
// Чужое уведомление неотличимо от отсутствующего.
func MarkNotificationReadHandler(log *slog.Logger, notificationService service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.MarkNotificationReadHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := callerFromRequest(w, r, logger)
		if !ok {
			return
		}
		id, ok := int64Param(r, "id")
		if !ok {
			http.Error(w, "invalid notification id", http.StatusBadRequest)
			return
		}

		if err := notificationService.MarkRead(r.Context(), id, userID); err != nil {
			writeNotificationError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, MessageResponse{Message: "Notification marked as read"})
	}
}

// MarkAllNotificationsReadHandler обрабатывает PATCH /api/notifications/read-all
func MarkAllNotificationsReadHandler(log *slog.Logger, notificationService service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.MarkAllNotificationsReadHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := callerFromRequest(w, r, logger)
		if !ok {
			return
		}

		n, err := notificationService.MarkAllRead(r.Context(), userID)
		if err != nil {
			writeNotificationError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, MessageResponse{Message: "All notifications marked as read", Count: &n})
	}
}

// ClearNotificationsHandler обрабатывает DELETE /api/notifications/clear
func ClearNotificationsHandler(log *slog.Logger, notificationService service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ClearNotificationsHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := callerFromRequest(w, r, logger)
		if !ok {
			return
		}

		n, err := notificationService.ClearAll(r.Context(), userID)
		if err != nil {
			writeNotificationError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, MessageResponse{Message: "All notifications cleared", Count: &n})
	}
}

// DeleteNotificationHandler обрабатывает DELETE /api/notifications/{id}
func DeleteNotificationHandler(log *slog.Logger, notificationService service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteNotificationHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := callerFromRequest(w, r, logger)
		if !ok {
			return
		}
		id, ok := int64Param(r, "id")
		if !ok {
			http.Error(w, "invalid notification id", http.StatusBadRequest)
			return
		}

		if err := notificationService.Delete(r.Context(), id, userID); err != nil {
			writeNotificationError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, MessageResponse{Message: "Notification deleted"})
	}
}

// DeleteNotificationsHandler обрабатывает DELETE /api/notifications с телом {"ids": [...]}
func DeleteNotificationsHandler(log *slog.Logger, notificationService service.NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteNotificationsHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := callerFromRequest(w, r, logger)
		if !ok {
			return
		}

		var req DeleteNotificationsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		n, err := notificationService.DeleteMany(r.Context(), req.IDs, userID)
		if err != nil {
			writeNotificationError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusOK, MessageResponse{Message: "Notifications deleted", Count: &n})
	}
}

func writeNotificationError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if errors.Is(err, storage.ErrNotificationNotFound) {
		logger.Warn("notification not found", slog.Any("error", err))
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	logger.Error("notification operation failed", slog.Any("error", err))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
