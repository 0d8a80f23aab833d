package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// Directory is a mutable stand-in for the tenant service.
type Directory struct {
	mu        sync.RWMutex
	flats     map[string]string              // flat -> society
	residents map[string]map[string]struct{} // flat -> users
	guards    map[string]map[string]struct{} // society -> users
}

func NewDirectory() *Directory {
	return &Directory{
		flats:     make(map[string]string),
		residents: make(map[string]map[string]struct{}),
		guards:    make(map[string]map[string]struct{}),
	}
}

func (d *Directory) AddFlat(flatID, societyID string, residents ...string) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flats[flatID] = societyID
	set := d.residents[flatID]
	if set == nil {
		set = make(map[string]struct{})
		d.residents[flatID] = set
	}
	for _, u := range residents {
		set[u] = struct{}{}
	}
	return d
}

func (d *Directory) AddGuard(societyID string, guards ...string) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.guards[societyID]
	if set == nil {
		set = make(map[string]struct{})
		d.guards[societyID] = set
	}
	for _, u := range guards {
		set[u] = struct{}{}
	}
	return d
}

func (d *Directory) SocietyForFlat(_ context.Context, flatID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.flats[flatID]
	if !ok {
		return "", types.NotFound("flat", flatID)
	}
	return s, nil
}

func (d *Directory) ResidentsOfFlat(_ context.Context, flatID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return keys(d.residents[flatID]), nil
}

func (d *Directory) GuardsOfSociety(_ context.Context, societyID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return keys(d.guards[societyID]), nil
}

func (d *Directory) IsResident(_ context.Context, userID, flatID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.residents[flatID][userID]
	return ok, nil
}

func (d *Directory) IsGuard(_ context.Context, userID, societyID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.guards[societyID][userID]
	return ok, nil
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
