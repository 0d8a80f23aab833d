package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store/memory"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

var (
	flat    = types.FlatTopic("F-101")
	society = types.SocietyTopic("S-1")
)

func TestRegistry_SubscribeIdempotent(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", types.Actor{}, 1)

	assert.True(t, r.Subscribe(c, flat))
	assert.False(t, r.Subscribe(c, flat))
	assert.Equal(t, 1, r.Count(flat))

	assert.True(t, r.Unsubscribe(c, flat))
	assert.False(t, r.Unsubscribe(c, flat))
	assert.Zero(t, r.Count(flat))
	assert.Empty(t, r.Topics(c))
}

func TestRegistry_MembersDeduplicates(t *testing.T) {
	r := NewRegistry()
	both := NewClient("both", types.Actor{}, 1)
	guard := NewClient("guard", types.Actor{}, 1)
	r.Subscribe(both, flat)
	r.Subscribe(both, society)
	r.Subscribe(guard, society)

	got := r.Members(flat, society)
	require.Len(t, got, 2)
	topics := map[string]types.Topic{}
	for _, d := range got {
		topics[d.Client.ID] = d.Topic
	}
	assert.Equal(t, flat, topics["both"], "first matching topic wins")
	assert.Equal(t, society, topics["guard"])
}

func TestRegistry_Drop(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", types.Actor{}, 1)
	other := NewClient("c2", types.Actor{}, 1)
	r.Subscribe(c, flat)
	r.Subscribe(c, society)
	r.Subscribe(other, society)

	r.Drop(c)
	assert.Zero(t, r.Count(flat))
	assert.Equal(t, 1, r.Count(society))
	assert.Empty(t, r.Topics(c))
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	r := NewRegistry()
	h := NewHub(r, nil)
	slow := NewClient("slow", types.Actor{}, 1)
	r.Subscribe(slow, flat)

	ev := types.Event{Type: types.EventRequestCreated, FlatID: "F-101"}
	assert.Equal(t, 1, h.Publish([]types.Topic{flat, society}, ev))
	assert.Equal(t, 0, h.Publish([]types.Topic{flat}, ev))
	assert.EqualValues(t, 1, slow.Dropped())

	f := <-slow.Outbox()
	assert.Equal(t, FrameEvent, f.Type)
	assert.Equal(t, "flat:F-101", f.Topic)
	assert.Equal(t, types.EventRequestCreated, f.Event.Type)
}

func TestAuthorizer(t *testing.T) {
	dir := memory.NewDirectory().
		AddFlat("F-101", "S-1", "resident-1").
		AddGuard("S-1", "guard-1")
	a := NewAuthorizer(dir)
	ctx := context.Background()

	resident := types.Actor{ID: "resident-1", Role: types.RoleResident}
	neighbour := types.Actor{ID: "resident-2", Role: types.RoleResident}
	guard := types.Actor{ID: "guard-1", Role: types.RoleGuard}
	stranger := types.Actor{ID: "guard-9", Role: types.RoleGuard}
	admin := types.Actor{ID: "admin", Role: types.RoleSocietyAdmin}

	cases := []struct {
		actor types.Actor
		topic types.Topic
		ok    bool
	}{
		{resident, flat, true},
		{neighbour, flat, false},
		{guard, flat, true},
		{resident, society, false},
		{guard, society, true},
		{stranger, society, false},
		{admin, society, true},
	}
	for _, tc := range cases {
		err := a.Authorize(ctx, tc.actor, tc.topic)
		if tc.ok {
			assert.NoError(t, err, "%s on %s", tc.actor.ID, tc.topic)
		} else {
			assert.ErrorIs(t, err, types.ErrForbidden, "%s on %s", tc.actor.ID, tc.topic)
		}
	}
}
