package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

const channelPush = "push"

// Dispatcher resolves users to their active devices, sends once, prunes
// tokens the provider rejected and writes the notification log.
type Dispatcher struct {
	targets store.DeliveryTargetStore
	logs    store.NotificationLogStore
	sender  Sender
	logger  *zap.Logger
	now     func() time.Time
}

// Summary counts one dispatch.
type Summary struct {
	Users       int
	Devices     int
	Delivered   int
	Failed      int
	Invalidated int64
}

func NewDispatcher(ts store.DeliveryTargetStore, ls store.NotificationLogStore, s Sender, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		targets: ts,
		logs:    ls,
		sender:  s,
		logger:  logger.Named("push"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch never fails the caller's operation; the returned error is for
// logging only and is always a *types.DeliveryError.
func (d *Dispatcher) Dispatch(ctx context.Context, userIDs []string, msg Message) (Summary, error) {
	users := dedupe(userIDs)
	sum := Summary{Users: len(users)}
	if len(users) == 0 {
		return sum, nil
	}

	targets, err := d.targets.ListActive(ctx, users...)
	if err != nil {
		return sum, &types.DeliveryError{Channel: channelPush, Err: fmt.Errorf("list targets: %w", err)}
	}

	byUser := make(map[string][]string, len(users))
	tokens := make([]string, 0, len(targets))
	for _, t := range targets {
		byUser[t.UserID] = append(byUser[t.UserID], t.Token)
		tokens = append(tokens, t.Token)
	}
	sum.Devices = len(tokens)

	results := make(map[string]Result, len(tokens))
	var sendErr error
	if len(tokens) > 0 {
		rs, err := d.sender.Send(ctx, tokens, msg)
		if err != nil {
			sendErr = &types.DeliveryError{Channel: channelPush, Err: err}
			for _, t := range tokens {
				results[t] = Result{Token: t, Err: err}
			}
		}
		for _, r := range rs {
			results[r.Token] = r
		}
	}

	var invalid []string
	for _, r := range results {
		switch {
		case r.OK():
			sum.Delivered++
		default:
			sum.Failed++
			if r.Invalid {
				invalid = append(invalid, r.Token)
			}
		}
	}
	if len(invalid) > 0 {
		n, err := d.targets.DeactivateTokens(ctx, invalid)
		if err != nil {
			d.logger.Warn("deactivate invalid tokens", zap.Error(err))
		}
		sum.Invalidated = n
		d.logger.Info("invalid tokens deactivated", zap.Int64("count", n))
	}

	payload, _ := json.Marshal(msg)
	now := d.now()
	entries := make([]types.NotificationLog, 0, len(users))
	for _, u := range users {
		e := types.NotificationLog{
			UserID:      u,
			Channel:     channelPush,
			EventType:   msg.Kind,
			RequestID:   msg.RequestID,
			Payload:     string(payload),
			DeviceCount: len(byUser[u]),
			CreatedAt:   now,
		}
		for _, t := range byUser[u] {
			if results[t].OK() {
				e.DeliveredCount++
			}
		}
		switch {
		case e.DeviceCount == 0:
			e.Status = types.NotificationNoTargets
		case e.DeliveredCount > 0:
			e.Status = types.NotificationDelivered
			at := now
			e.DeliveredAt = &at
		default:
			e.Status = types.NotificationFailed
		}
		entries = append(entries, e)
	}
	if err := d.logs.AppendLogs(ctx, entries); err != nil {
		d.logger.Error("append notification logs", zap.Error(err))
	}

	d.logger.Debug("push dispatched",
		zap.String("event_type", string(msg.Kind)),
		zap.Int("users", sum.Users),
		zap.Int("devices", sum.Devices),
		zap.Int("delivered", sum.Delivered))
	return sum, sendErr
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
