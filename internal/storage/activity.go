package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/service"
)

// CreateAuditEntry appends an entry to the audit log.
func (s *SQLStorage) CreateAuditEntry(ctx context.Context, entry *model.AuditEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: audit entry", ErrNilParameter)
	}
	if err := validateString(entry.Action, "action"); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	id, err := s.insert(ctx, `
		INSERT INTO audit_entries (actor_id, actor_name, action, entity_kind, entity_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullableID(entry.ActorID), entry.ActorName, entry.Action, entry.EntityKind,
		nullableID(entry.EntityID), entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAuditEntries returns the latest limit entries, newest first. A
// non-positive limit returns everything.
func (s *SQLStorage) ListAuditEntries(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, actor_id, actor_name, action, entity_kind, entity_id, detail, created_at
		FROM audit_entries
		ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var actorID, entityID sql.NullInt64
		if err := rows.Scan(&e.ID, &actorID, &e.ActorName, &e.Action, &e.EntityKind, &entityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if actorID.Valid {
			e.ActorID = &actorID.Int64
		}
		if entityID.Valid {
			e.EntityID = &entityID.Int64
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateNotification stores a notification. A blank level becomes INFO.
func (s *SQLStorage) CreateNotification(ctx context.Context, n *model.Notification) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("%w: notification", ErrNilParameter)
	}
	if err := validateString(n.Message, "message"); err != nil {
		return err
	}
	if n.Level == "" {
		n.Level = model.LevelInfo
	}
	if !n.Level.IsValid() {
		return fmt.Errorf("%w: level %q", ErrInvalidStatus, n.Level)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	id, err := s.insert(ctx, `
		INSERT INTO notifications (user_id, message, level, is_read, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		nullableID(n.UserID), n.Message, string(n.Level), n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	n.ID = id
	return nil
}

// ListNotifications returns the notifications matching filter, newest first.
func (s *SQLStorage) ListNotifications(ctx context.Context, filter service.NotificationFilter) ([]model.Notification, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var where []string
	var args []any
	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Level != "" {
		where = append(where, "level = ?")
		args = append(args, string(filter.Level))
	}
	if filter.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		where = append(where, "created_at < ?")
		args = append(args, filter.To.UTC())
	}

	query := `SELECT id, user_id, message, level, is_read, created_at FROM notifications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		var userID sql.NullInt64
		var level string
		if err := rows.Scan(&n.ID, &userID, &n.Message, &level, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Level = model.NotificationLevel(level)
		if userID.Valid {
			n.UserID = &userID.Int64
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags a notification as read. When userID is set the
// notification must belong to that user.
func (s *SQLStorage) MarkNotificationRead(ctx context.Context, id int64, userID *int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	query := `UPDATE notifications SET is_read = ? WHERE id = ?`
	args := []any{true, id}
	if userID != nil {
		query += ` AND user_id = ?`
		args = append(args, *userID)
	}

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: notification %d", common.ErrNotFound, id)
	}
	return nil
}
