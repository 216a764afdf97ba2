package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/service"
)

func TestAuditEntries(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	actor := createTestUser(t, store, "admin", model.RoleAdministrator)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		entityID := int64(i + 1)
		require.NoError(t, store.CreateAuditEntry(ctx, &model.AuditEntry{
			ActorID:    &actor.ID,
			ActorName:  actor.Username,
			Action:     "create record",
			EntityKind: "QualifiedRecord",
			EntityID:   &entityID,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	latest, err := store.ListAuditEntries(ctx, 3)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	require.NotNil(t, latest[0].EntityID)
	assert.Equal(t, int64(5), *latest[0].EntityID)
	assert.Equal(t, "admin", latest[0].ActorName)

	all, err := store.ListAuditEntries(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	assert.ErrorIs(t, store.CreateAuditEntry(ctx, &model.AuditEntry{}), ErrEmptyString)
}

func TestNotifications(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	ana := createTestUser(t, store, "ana", model.RoleBroker)
	luis := createTestUser(t, store, "luis", model.RoleBroker)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	notes := []*model.Notification{
		{UserID: &ana.ID, Message: "File #1 processed.", CreatedAt: base},
		{UserID: &ana.ID, Message: "File #2 failed.", Level: model.LevelError, CreatedAt: base.Add(time.Hour)},
		{UserID: &luis.ID, Message: "PDF rejected.", Level: model.LevelWarning, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, n := range notes {
		require.NoError(t, store.CreateNotification(ctx, n))
	}
	assert.Equal(t, model.LevelInfo, notes[0].Level)

	mine, err := store.ListNotifications(ctx, service.NotificationFilter{UserID: &ana.ID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, notes[1].ID, mine[0].ID)

	errorsOnly, err := store.ListNotifications(ctx, service.NotificationFilter{Level: model.LevelError})
	require.NoError(t, err)
	require.Len(t, errorsOnly, 1)

	from := base.Add(30 * time.Minute)
	ranged, err := store.ListNotifications(ctx, service.NotificationFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	err = store.MarkNotificationRead(ctx, notes[2].ID, &ana.ID)
	assert.ErrorIs(t, err, common.ErrNotFound, "cannot mark another user's notification")

	require.NoError(t, store.MarkNotificationRead(ctx, notes[0].ID, &ana.ID))
	mine, err = store.ListNotifications(ctx, service.NotificationFilter{UserID: &ana.ID})
	require.NoError(t, err)
	assert.True(t, mine[1].Read)
	assert.False(t, mine[0].Read)

	assert.ErrorIs(t, store.CreateNotification(ctx, &model.Notification{Message: "x", Level: "LOUD"}), ErrInvalidStatus)
}
