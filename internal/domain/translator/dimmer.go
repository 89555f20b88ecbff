package translator

import (
	"domoticz-hue-emulator/internal/domain/model"
)

type DimmerStrategy struct{}

func (s *DimmerStrategy) Plan(light model.Light, current model.LightState, u model.StateUpdate) []Step {
	var rest []Step
	if u.Bri != nil {
		rest = append(rest, briStep(scaleFor(light), *u.Bri))
	}
	steps := dimPlan(current, u, rest)
	steps = append(steps, ignoredColor(u, false)...)
	return append(steps, passive(u)...)
}

func (s *DimmerStrategy) ToHue(backend model.BackendState, light model.Light) model.LightState {
	state := model.LightState{On: backend.On, Reachable: true}
	if backend.HasLevel {
		state.Bri = scaleFor(light).ToHue(backend.Level)
	}
	// Switched on without a reported level means full brightness.
	if state.On && state.Bri == 0 {
		state.Bri = model.MaxBri
	}
	return state
}

func (s *DimmerStrategy) GetMetadata() model.HueMetadata {
	return model.HueMetadata{
		Type:             "Dimmable light",
		ModelID:          "LWB010",
		ManufacturerName: "Philips",
		ProductName:      "Hue white lamp",
	}
}

// briStep sets the dim level. Brightness 0 switches the light off; any other
// brightness switches it on, so the level sent is at least 1.
func briStep(scale *LevelScale, bri uint8) Step {
	if bri > model.MaxBri {
		return invalid(model.AttrBri, bri)
	}
	if bri == 0 {
		return Step{
			Command: model.SwitchCommand{On: false},
			Results: []model.AttributeResult{result(model.AttrBri, bri)},
			Patch:   model.StatePatch{On: boolPtr(false)},
		}
	}
	level := scale.ToBackend(bri)
	if level < 1 {
		level = 1
	}
	b := bri
	return Step{
		Command: model.LevelCommand{Level: level},
		Results: []model.AttributeResult{result(model.AttrBri, bri)},
		Patch:   model.StatePatch{On: boolPtr(true), Bri: &b},
	}
}

// dimPlan adds the on/off command to the attribute steps of a dimmable light.
// When the light is already on, a level or color command satisfies "on": true
// by itself and no separate switch command is sent.
func dimPlan(current model.LightState, u model.StateUpdate, rest []Step) []Step {
	if u.On == nil {
		return rest
	}
	on := onStep(*u.On)
	turningOn := *u.On
	if turningOn && current.On && len(rest) > 0 && impliesOn(rest[0]) {
		rest[0].Results = append([]model.AttributeResult{on.Results[0]}, rest[0].Results...)
		return rest
	}
	return order(current, &on, turningOn, rest)
}

func impliesOn(s Step) bool {
	if s.Err != nil {
		return false
	}
	switch s.Command.(type) {
	case model.LevelCommand, model.ColorCommand:
		return true
	}
	return false
}
