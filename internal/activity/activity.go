// Package activity keeps the audit log and the per-user notifications.
package activity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/service"
)

// Audit actions.
const (
	ActionBulkUpload   = "bulk file upload"
	ActionPDFRecord    = "create record from PDF"
	ActionCreateRecord = "create record"
	ActionUpdateRecord = "update record"
	ActionDeleteRecord = "delete record"
)

// Entity kinds referenced by audit entries.
const (
	EntitySourceFile = "source_file"
	EntityRecord     = "qualified_record"
)

// AuditLimit is how many entries the audit listing returns.
const AuditLimit = 200

// Recorder writes audit entries.
type Recorder interface {
	Record(ctx context.Context, actor *model.User, action, entityKind string, entityID int64, detail string) error
}

// Notifier delivers notifications to a user.
type Notifier interface {
	Notify(ctx context.Context, user *model.User, level model.NotificationLevel, message string) error
}

// Log implements Recorder and Notifier over storage.
type Log struct {
	store  service.Storage
	logger *slog.Logger
}

var (
	_ Recorder = (*Log)(nil)
	_ Notifier = (*Log)(nil)
)

// NewLog creates a Log. A nil logger uses slog.Default.
func NewLog(store service.Storage, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{store: store, logger: logger}
}

// Record appends an audit entry. A nil actor is logged as the system.
func (l *Log) Record(ctx context.Context, actor *model.User, action, entityKind string, entityID int64, detail string) error {
	entry := &model.AuditEntry{
		Action:     action,
		EntityKind: entityKind,
		Detail:     detail,
		ActorName:  "system",
	}
	if actor != nil {
		entry.ActorID = &actor.ID
		entry.ActorName = actor.Username
	}
	if entityID > 0 {
		entry.EntityID = &entityID
	}

	if err := l.store.CreateAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to record %q: %w", action, err)
	}
	l.logger.Debug("audit", "action", action, "actor", entry.ActorName, "entity", entityKind, "entity_id", entityID)
	return nil
}

// Notify stores a notification addressed to user.
func (l *Log) Notify(ctx context.Context, user *model.User, level model.NotificationLevel, message string) error {
	n := &model.Notification{Message: message, Level: level}
	if user != nil {
		n.UserID = &user.ID
	}
	if err := l.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}
	return nil
}

// Entries returns the latest audit entries, newest first.
func (l *Log) Entries(ctx context.Context) ([]model.AuditEntry, error) {
	return l.store.ListAuditEntries(ctx, AuditLimit)
}

// Notifications lists the notifications viewer may see. Superusers see every
// notification; everyone else only their own.
func (l *Log) Notifications(ctx context.Context, viewer *model.User, filter service.NotificationFilter) ([]model.Notification, error) {
	if viewer == nil {
		return nil, common.ErrUnauthenticated
	}
	if !viewer.IsSuperuser {
		filter.UserID = &viewer.ID
	}
	if filter.Level != "" && !filter.Level.IsValid() {
		return nil, fmt.Errorf("%w: level %q", common.ErrInvalidInput, filter.Level)
	}
	return l.store.ListNotifications(ctx, filter)
}

// MarkRead flags a notification of viewer as read.
func (l *Log) MarkRead(ctx context.Context, viewer *model.User, id int64) error {
	if viewer == nil {
		return common.ErrUnauthenticated
	}
	var owner *int64
	if !viewer.IsSuperuser {
		owner = &viewer.ID
	}
	return l.store.MarkNotificationRead(ctx, id, owner)
}
