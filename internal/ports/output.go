package ports

import (
	"context"
	"domoticz-hue-emulator/internal/domain/model"
)

// BackendPort is the home-automation server. Implementations own the session
// and bound every call with a timeout.
type BackendPort interface {
	Login(ctx context.Context) error
	Execute(ctx context.Context, target model.Target, cmd model.Command) error
	QueryState(ctx context.Context, target model.Target) (model.BackendState, error)
}

// IdentityRepository persists the bridge identity. Get returns nil, nil when
// nothing was stored yet.
type IdentityRepository interface {
	Get(ctx context.Context) (*model.Identity, error)
	Save(ctx context.Context, identity *model.Identity) error
}

// CommandObserver is told the outcome of every backend command.
type CommandObserver interface {
	ObserveCommand(cmd model.Command, err error)
}
