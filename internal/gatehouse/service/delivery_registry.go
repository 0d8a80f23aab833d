package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

var deviceTypes = map[string]struct{}{"android": {}, "ios": {}, "web": {}, "unknown": {}}

// DeliveryRegistry manages a user's push tokens and exposes their
// notification history.
type DeliveryRegistry struct {
	targets store.DeliveryTargetStore
	logs    store.NotificationLogStore
	logger  *zap.Logger
}

func NewDeliveryRegistry(ts store.DeliveryTargetStore, ls store.NotificationLogStore, logger *zap.Logger) *DeliveryRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryRegistry{targets: ts, logs: ls, logger: logger.Named("devices")}
}

func (r *DeliveryRegistry) Register(ctx context.Context, actor types.Actor, token, deviceType string) (types.DeliveryTarget, error) {
	if err := requireActor(actor); err != nil {
		return types.DeliveryTarget{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return types.DeliveryTarget{}, types.Invalid("token", "is required")
	}
	deviceType = defaultString(strings.ToLower(strings.TrimSpace(deviceType)), "unknown")
	if _, ok := deviceTypes[deviceType]; !ok {
		return types.DeliveryTarget{}, types.Invalid("device_type", "must be android, ios or web")
	}

	t, err := r.targets.Upsert(ctx, types.DeliveryTarget{UserID: actor.ID, Token: token, DeviceType: deviceType})
	if err != nil {
		return types.DeliveryTarget{}, err
	}
	r.logger.Info("delivery target registered", zap.String("user_id", actor.ID), zap.String("device_type", deviceType))
	return t, nil
}

func (r *DeliveryRegistry) Unregister(ctx context.Context, actor types.Actor, token string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return types.Invalid("token", "is required")
	}
	changed, err := r.targets.Deactivate(ctx, actor.ID, token)
	if err != nil {
		return err
	}
	if !changed {
		return types.NotFound("delivery_target", token)
	}
	return nil
}

func (r *DeliveryRegistry) List(ctx context.Context, actor types.Actor) ([]types.DeliveryTarget, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return r.targets.ListActive(ctx, actor.ID)
}

func (r *DeliveryRegistry) Notifications(ctx context.Context, actor types.Actor, limit int) ([]types.NotificationLog, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return r.logs.ListLogs(ctx, actor.ID, limit)
}
