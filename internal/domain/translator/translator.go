package translator

import (
	"domoticz-hue-emulator/internal/domain/model"
)

// Translator plans the backend calls for a Hue state request and projects
// backend state back onto the Hue model, for one kind of light.
type Translator interface {
	Plan(light model.Light, current model.LightState, update model.StateUpdate) []Step
	ToHue(backend model.BackendState, light model.Light) model.LightState
	GetMetadata() model.HueMetadata
}

// Step is one unit of a plan, executed in order.
type Step struct {
	// Command is nil when the step is answered without a backend call.
	Command model.Command
	// Results are the attributes the step reports on, with their requested values.
	Results []model.AttributeResult
	// Patch is merged into the cached state once the step succeeds.
	Patch model.StatePatch
	// Err is a fixed failure, e.g. an out-of-range value. Such steps are never executed.
	Err error
}

func result(attr string, value any) model.AttributeResult {
	return model.AttributeResult{Attribute: attr, Value: value}
}

// ack answers attributes the light accepts but ignores.
func ack(results ...model.AttributeResult) Step {
	return Step{Results: results}
}

func invalid(attr string, value any) Step {
	return Step{Results: []model.AttributeResult{result(attr, value)}, Err: model.ErrInvalidValue}
}

// passive acknowledges transitiontime, alert and effect, which no backend
// command carries.
func passive(u model.StateUpdate) []Step {
	var steps []Step
	if u.TransitionTime != nil {
		steps = append(steps, ack(result(model.AttrTransitionTime, *u.TransitionTime)))
	}
	if u.Alert != nil {
		steps = append(steps, ack(result(model.AttrAlert, *u.Alert)))
	}
	if u.Effect != nil {
		steps = append(steps, ack(result(model.AttrEffect, *u.Effect)))
	}
	return steps
}

// ignoredColor acknowledges brightness and color attributes on lights that
// cannot use them.
func ignoredColor(u model.StateUpdate, withBri bool) []Step {
	var results []model.AttributeResult
	if withBri && u.Bri != nil {
		results = append(results, result(model.AttrBri, *u.Bri))
	}
	if u.Hue != nil {
		results = append(results, result(model.AttrHue, *u.Hue))
	}
	if u.Sat != nil {
		results = append(results, result(model.AttrSat, *u.Sat))
	}
	if u.XY != nil {
		results = append(results, result(model.AttrXY, xyValue(*u.XY)))
	}
	if u.CT != nil {
		results = append(results, result(model.AttrCT, *u.CT))
	}
	if len(results) == 0 {
		return nil
	}
	return []Step{ack(results...)}
}

// order places the on command first when the light is being turned on from
// off, and last otherwise.
func order(current model.LightState, on *Step, turningOn bool, rest []Step) []Step {
	if on == nil {
		return rest
	}
	if turningOn && !current.On {
		return append([]Step{*on}, rest...)
	}
	return append(rest, *on)
}

func xyValue(xy [2]float64) []float64 {
	return []float64{xy[0], xy[1]}
}

func boolPtr(b bool) *bool { return &b }
