package realtime

import (
	"context"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/types"
)

// Authorizer decides who may listen on a topic. Flats are open to their
// residents and to staff; societies to their guards and to admins.
type Authorizer struct {
	dir store.Directory
}

func NewAuthorizer(dir store.Directory) *Authorizer {
	return &Authorizer{dir: dir}
}

func (a *Authorizer) Authorize(ctx context.Context, actor types.Actor, t types.Topic) error {
	if actor.Role == types.RoleSocietyAdmin {
		return nil
	}
	var (
		ok  bool
		err error
	)
	switch t.Kind {
	case types.TopicFlat:
		if actor.Role == types.RoleGuard {
			return nil
		}
		ok, err = a.dir.IsResident(ctx, actor.ID, t.ID)
	case types.TopicSociety:
		if actor.Role == types.RoleGuard {
			ok, err = a.dir.IsGuard(ctx, actor.ID, t.ID)
		}
	}
	if err != nil {
		return err
	}
	if !ok {
		return &types.ForbiddenError{Actor: actor, Action: "subscribe to " + t.String()}
	}
	return nil
}
