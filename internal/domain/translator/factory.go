package translator

import (
	"domoticz-hue-emulator/internal/domain/model"
)

type Factory struct {
	strategies map[model.Capability]Translator
	scene      Translator
}

func NewFactory() *Factory {
	return &Factory{
		strategies: map[model.Capability]Translator{
			model.CapabilitySwitch: &SwitchStrategy{},
			model.CapabilityDimmer: &DimmerStrategy{},
			model.CapabilityColor:  &ColorStrategy{},
		},
		scene: &SceneStrategy{},
	}
}

// GetTranslator returns the strategy for a light. Scenes and groups share one
// strategy whatever their capability.
func (f *Factory) GetTranslator(light model.Light) Translator {
	if light.IsScene() {
		return f.scene
	}
	if t, ok := f.strategies[light.Capability]; ok {
		return t
	}
	return f.strategies[model.CapabilitySwitch]
}
