package realtime

import (
	"sync"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// Registry maps topics to subscribed clients.
type Registry struct {
	mu      sync.RWMutex
	members map[types.Topic]map[*Client]struct{}
	joined  map[*Client]map[types.Topic]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[types.Topic]map[*Client]struct{}),
		joined:  make(map[*Client]map[types.Topic]struct{}),
	}
}

// Subscribe is idempotent. It reports whether c was newly added.
func (r *Registry) Subscribe(c *Client, t types.Topic) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[t]
	if !ok {
		set = make(map[*Client]struct{})
		r.members[t] = set
	}
	if _, ok := set[c]; ok {
		return false
	}
	set[c] = struct{}{}

	topics, ok := r.joined[c]
	if !ok {
		topics = make(map[types.Topic]struct{})
		r.joined[c] = topics
	}
	topics[t] = struct{}{}
	return true
}

// Unsubscribe is idempotent. It reports whether c was a member.
func (r *Registry) Unsubscribe(c *Client, t types.Topic) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remove(c, t)
}

// Drop removes every membership of c.
func (r *Registry) Drop(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t := range r.joined[c] {
		r.remove(c, t)
	}
	delete(r.joined, c)
}

func (r *Registry) remove(c *Client, t types.Topic) bool {
	set, ok := r.members[t]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.members, t)
	}
	if topics := r.joined[c]; topics != nil {
		delete(topics, t)
		if len(topics) == 0 {
			delete(r.joined, c)
		}
	}
	return true
}

// Delivery pairs a client with the first of the requested topics it holds.
type Delivery struct {
	Client *Client
	Topic  types.Topic
}

// Members returns each client subscribed to any of topics exactly once.
func (r *Registry) Members(topics ...types.Topic) []Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Client]struct{})
	var out []Delivery
	for _, t := range topics {
		for c := range r.members[t] {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, Delivery{Client: c, Topic: t})
		}
	}
	return out
}

// Topics lists the topics c holds.
func (r *Registry) Topics(c *Client) []types.Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Topic, 0, len(r.joined[c]))
	for t := range r.joined[c] {
		out = append(out, t)
	}
	return out
}

// Count returns the number of clients on t.
func (r *Registry) Count(t types.Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[t])
}
