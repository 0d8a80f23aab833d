package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// NotificationLogStore is an in-memory append-only log of push dispatches.
type NotificationLogStore struct {
	mu   sync.Mutex
	next int64
	logs []types.NotificationLog
}

func NewNotificationLogStore() *NotificationLogStore {
	return &NotificationLogStore{}
}

func (s *NotificationLogStore) AppendLogs(_ context.Context, logs []types.NotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range logs {
		s.next++
		l.ID = s.next
		if l.CreatedAt.IsZero() {
			l.CreatedAt = time.Now().UTC()
		}
		s.logs = append(s.logs, l)
	}
	return nil
}

// ListLogs returns the newest entries first.
func (s *NotificationLogStore) ListLogs(_ context.Context, userID string, limit int) ([]types.NotificationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.NotificationLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].UserID != userID {
			continue
		}
		out = append(out, s.logs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// All returns a copy of every entry in insertion order. Test-only helper.
func (s *NotificationLogStore) All() []types.NotificationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.NotificationLog, len(s.logs))
	copy(out, s.logs)
	return out
}
