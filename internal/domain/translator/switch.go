package translator

import (
	"domoticz-hue-emulator/internal/domain/model"
)

type SwitchStrategy struct{}

func (s *SwitchStrategy) Plan(light model.Light, current model.LightState, u model.StateUpdate) []Step {
	var steps []Step
	if u.On != nil {
		steps = append(steps, onStep(*u.On))
	}
	steps = append(steps, ignoredColor(u, true)...)
	return append(steps, passive(u)...)
}

func (s *SwitchStrategy) ToHue(backend model.BackendState, light model.Light) model.LightState {
	return model.LightState{On: backend.On, Reachable: true}
}

func (s *SwitchStrategy) GetMetadata() model.HueMetadata {
	return model.HueMetadata{
		Type:             "On/Off plug-in unit",
		ModelID:          "LOM001",
		ManufacturerName: "Philips",
		ProductName:      "Hue smart plug",
	}
}

func onStep(on bool) Step {
	return Step{
		Command: model.SwitchCommand{On: on},
		Results: []model.AttributeResult{result(model.AttrOn, on)},
		Patch:   model.StatePatch{On: boolPtr(on)},
	}
}
