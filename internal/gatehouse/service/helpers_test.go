package service_test

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/service"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store/memory"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

var (
	resident = types.Actor{ID: "resident-1", Role: types.RoleResident}
	outsider = types.Actor{ID: "resident-9", Role: types.RoleResident}
	guard    = types.Actor{ID: "guard-1", Role: types.RoleGuard}
	stranger = types.Actor{ID: "guard-9", Role: types.RoleGuard}
	admin    = types.Actor{ID: "admin-1", Role: types.RoleSocietyAdmin}
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recorder) Notify(ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Types() []types.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) Last() types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	engine   *service.Engine
	requests *memory.AccessRequestStore
	dir      *memory.Directory
	events   *recorder
	clock    *clock
}

func newFixture(t *testing.T, opts ...func(*service.EngineConfig)) *fixture {
	t.Helper()
	f := &fixture{
		requests: memory.NewAccessRequestStore(),
		dir:      memory.NewDirectory(),
		events:   &recorder{},
		clock:    newClock(),
	}
	f.dir.AddFlat("F-101", "S-1", "resident-1").AddFlat("F-102", "S-1").AddGuard("S-1", "guard-1")
	f.dir.AddFlat("F-201", "S-2", "resident-9").AddGuard("S-2", "guard-9")

	cfg := service.EngineConfig{Now: f.clock.Now}
	for _, o := range opts {
		o(&cfg)
	}
	f.engine = service.NewEngine(f.requests, f.dir, f.events, zap.NewNop(), cfg)
	return f
}

func rajKumar() service.NewRequest {
	return service.NewRequest{VisitorName: "Raj Kumar", Phone: "+911234567890", FlatID: "F-101"}
}
