package ports

import (
	"context"
	"domoticz-hue-emulator/internal/domain/model"
)

// ConfigRepository supplies the configuration snapshot. The emulator treats
// it as read-only; edits happen in the file.
type ConfigRepository interface {
	Get(ctx context.Context) (*model.Config, error)
}
