package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/service"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store/memory"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

func TestDeliveryRegistry(t *testing.T) {
	ctx := context.Background()
	targets := memory.NewDeliveryTargetStore()
	logs := memory.NewNotificationLogStore()
	r := service.NewDeliveryRegistry(targets, logs, zap.NewNop())

	tgt, err := r.Register(ctx, resident, " tok-1 ", "Android")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tgt.Token)
	assert.Equal(t, "android", tgt.DeviceType)
	assert.True(t, tgt.Active)

	tgt, err = r.Register(ctx, resident, "tok-2", "")
	require.NoError(t, err)
	assert.Equal(t, "unknown", tgt.DeviceType)

	_, err = r.Register(ctx, resident, "tok-3", "fridge")
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = r.Register(ctx, resident, "", "ios")
	assert.ErrorIs(t, err, types.ErrValidation)

	list, err := r.List(ctx, resident)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, r.Unregister(ctx, resident, "tok-1"))
	assert.ErrorIs(t, r.Unregister(ctx, resident, "tok-1"), types.ErrNotFound, "already inactive")
	assert.ErrorIs(t, r.Unregister(ctx, guard, "tok-2"), types.ErrNotFound, "another user's token")

	list, err = r.List(ctx, resident)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "tok-2", list[0].Token)
}

func TestDeliveryRegistry_Notifications(t *testing.T) {
	ctx := context.Background()
	logs := memory.NewNotificationLogStore()
	r := service.NewDeliveryRegistry(memory.NewDeliveryTargetStore(), logs, nil)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var entries []types.NotificationLog
	for i := 0; i < 60; i++ {
		entries = append(entries, types.NotificationLog{
			UserID:    "resident-1",
			Channel:   "push",
			EventType: types.EventRequestCreated,
			Status:    types.NotificationDelivered,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, logs.AppendLogs(ctx, entries))

	got, err := r.Notifications(ctx, resident, 0)
	require.NoError(t, err)
	assert.Len(t, got, 50, "default limit")
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt), "newest first")

	got, err = r.Notifications(ctx, resident, 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = r.Notifications(ctx, guard, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
