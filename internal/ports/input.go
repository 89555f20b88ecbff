package ports

import (
	"context"
	"domoticz-hue-emulator/internal/domain/model"
)

// BridgePort is what the Hue-facing adapters drive.
type BridgePort interface {
	ListLights(ctx context.Context) []model.LightView
	GetLight(ctx context.Context, id string) (model.LightView, error)
	// SetLightState executes a partial state request and reports one result
	// per supplied attribute. The error is non-nil only for an unknown light.
	SetLightState(ctx context.Context, id string, update model.StateUpdate) ([]model.AttributeResult, error)
	Pair(ctx context.Context, deviceType string) (string, error)
	Identity() model.Identity
}

// EventSink receives state pushed by the backend outside of any request.
type EventSink interface {
	ApplyBackendEvent(target model.Target, state model.BackendState) bool
}
