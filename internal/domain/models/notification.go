package models

import "time"

// типы уведомлений
const (
	NotificationOrder  = "order"
	NotificationAlert  = "alert"
	NotificationUser   = "user"
	NotificationSystem = "system"
)

// Notification - уведомление, адресованное ровно одному пользователю
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
