package translator

import (
	"domoticz-hue-emulator/internal/domain/model"
)

// SceneStrategy exposes a Domoticz scene or group as a binary light.
type SceneStrategy struct{}

func (s *SceneStrategy) Plan(light model.Light, current model.LightState, u model.StateUpdate) []Step {
	var steps []Step
	if u.On != nil {
		on := *u.On
		step := Step{
			Command: model.SceneCommand{On: on},
			Results: []model.AttributeResult{result(model.AttrOn, on)},
			Patch:   model.StatePatch{On: boolPtr(on)},
		}
		// Scenes can only be activated. Off is answered and cached but never sent.
		if !on && !light.SupportsOff {
			step.Command = nil
		}
		steps = append(steps, step)
	}
	steps = append(steps, ignoredColor(u, true)...)
	return append(steps, passive(u)...)
}

func (s *SceneStrategy) ToHue(backend model.BackendState, light model.Light) model.LightState {
	return model.LightState{On: backend.On, Reachable: true}
}

func (s *SceneStrategy) GetMetadata() model.HueMetadata {
	return model.HueMetadata{
		Type:             "On/Off plug-in unit",
		ModelID:          "LOM001",
		ManufacturerName: "Philips",
		ProductName:      "Hue smart plug",
	}
}
