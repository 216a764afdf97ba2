package model

import "time"

// AuditEntry is one line of the audit log.
type AuditEntry struct {
	CreatedAt  time.Time `json:"created_at"`
	Action     string    `json:"action"`
	EntityKind string    `json:"entity_kind"`
	Detail     string    `json:"detail"`
	ActorName  string    `json:"actor_name"`
	ActorID    *int64    `json:"actor_id,omitempty"`
	EntityID   *int64    `json:"entity_id,omitempty"`
	ID         int64     `json:"id"`
}

// NotificationLevel grades a notification.
type NotificationLevel string

// Notification levels.
const (
	LevelInfo    NotificationLevel = "INFO"
	LevelWarning NotificationLevel = "WARNING"
	LevelError   NotificationLevel = "ERROR"
)

// IsValid reports whether the level is one of the known values.
func (l NotificationLevel) IsValid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError:
		return true
	}
	return false
}

// Notification surfaces the outcome of an action to a user.
type Notification struct {
	CreatedAt time.Time         `json:"created_at"`
	Message   string            `json:"message"`
	Level     NotificationLevel `json:"level"`
	UserID    *int64            `json:"user_id,omitempty"`
	ID        int64             `json:"id"`
	Read      bool              `json:"read"`
}
