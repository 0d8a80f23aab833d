package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

type DeliveryTargetStore struct {
	mu      sync.RWMutex
	byToken map[string]types.DeliveryTarget
	order   []string
}

func NewDeliveryTargetStore() *DeliveryTargetStore {
	return &DeliveryTargetStore{byToken: make(map[string]types.DeliveryTarget)}
}

func (s *DeliveryTargetStore) Upsert(_ context.Context, t types.DeliveryTarget) (types.DeliveryTarget, error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byToken[t.Token]
	if !ok {
		cur = types.DeliveryTarget{ID: uuid.NewString(), Token: t.Token, CreatedAt: now}
		s.order = append(s.order, t.Token)
	}
	cur.UserID = t.UserID
	cur.DeviceType = t.DeviceType
	cur.Active = true
	cur.UpdatedAt = now
	s.byToken[t.Token] = cur
	return cur, nil
}

func (s *DeliveryTargetStore) Deactivate(_ context.Context, userID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byToken[token]
	if !ok || cur.UserID != userID || !cur.Active {
		return false, nil
	}
	cur.Active = false
	cur.UpdatedAt = time.Now().UTC()
	s.byToken[token] = cur
	return true, nil
}

func (s *DeliveryTargetStore) DeactivateTokens(_ context.Context, tokens []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, tok := range tokens {
		cur, ok := s.byToken[tok]
		if !ok || !cur.Active {
			continue
		}
		cur.Active = false
		cur.UpdatedAt = time.Now().UTC()
		s.byToken[tok] = cur
		n++
	}
	return n, nil
}

func (s *DeliveryTargetStore) ListActive(_ context.Context, userIDs ...string) ([]types.DeliveryTarget, error) {
	want := make(map[string]struct{}, len(userIDs))
	for _, u := range userIDs {
		want[u] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.DeliveryTarget
	for _, tok := range s.order {
		t := s.byToken[tok]
		if _, ok := want[t.UserID]; ok && t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

// Get returns the target for token regardless of state. Test-only helper.
func (s *DeliveryTargetStore) Get(token string) (types.DeliveryTarget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byToken[token]
	return t, ok
}
