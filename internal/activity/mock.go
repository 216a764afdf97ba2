package activity

import (
	"context"
	"sync"

	"github.com/Veraticus/nuam/internal/model"
)

// AuditCall is one recorded Record call.
type AuditCall struct {
	Actor      *model.User
	Action     string
	EntityKind string
	Detail     string
	EntityID   int64
}

// NotifyCall is one recorded Notify call.
type NotifyCall struct {
	User    *model.User
	Level   model.NotificationLevel
	Message string
}

// Mock is an in-memory Recorder and Notifier for testing.
type Mock struct {
	RecordErr   error
	NotifyErr   error
	AuditCalls  []AuditCall
	NotifyCalls []NotifyCall
	mu          sync.Mutex
}

var (
	_ Recorder = (*Mock)(nil)
	_ Notifier = (*Mock)(nil)
)

// NewMock creates an empty mock.
func NewMock() *Mock {
	return &Mock{}
}

// Record implements Recorder.
func (m *Mock) Record(_ context.Context, actor *model.User, action, entityKind string, entityID int64, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AuditCalls = append(m.AuditCalls, AuditCall{
		Actor:      actor,
		Action:     action,
		EntityKind: entityKind,
		EntityID:   entityID,
		Detail:     detail,
	})
	return m.RecordErr
}

// Notify implements Notifier.
func (m *Mock) Notify(_ context.Context, user *model.User, level model.NotificationLevel, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.NotifyCalls = append(m.NotifyCalls, NotifyCall{User: user, Level: level, Message: message})
	return m.NotifyErr
}

// Actions returns the recorded audit actions in call order.
func (m *Mock) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.AuditCalls))
	for i, c := range m.AuditCalls {
		out[i] = c.Action
	}
	return out
}

// LastNotification returns the latest Notify call, or false when there was none.
func (m *Mock) LastNotification() (NotifyCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.NotifyCalls) == 0 {
		return NotifyCall{}, false
	}
	return m.NotifyCalls[len(m.NotifyCalls)-1], true
}
