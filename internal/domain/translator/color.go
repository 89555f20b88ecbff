package translator

import (
	"domoticz-hue-emulator/internal/domain/model"
)

// ColorStrategy drives RGB(W) lights. Of the color attributes in one request
// xy wins over ct, and ct over hue/sat, because a single color command can
// only carry one color model.
type ColorStrategy struct {
	dimmer DimmerStrategy
}

func (s *ColorStrategy) Plan(light model.Light, current model.LightState, u model.StateUpdate) []Step {
	scale := scaleFor(light)
	var rest []Step
	color, foldedBri := colorStep(scale, current, u)
	if color != nil {
		rest = append(rest, *color)
	}
	if u.Bri != nil && !foldedBri {
		rest = append(rest, briStep(scale, *u.Bri))
	}
	steps := dimPlan(current, u, rest)
	return append(steps, passive(u)...)
}

// colorStep builds the color command. A valid nonzero brightness in the same
// request travels inside the command; foldedBri reports that it did.
func colorStep(scale *LevelScale, current model.LightState, u model.StateUpdate) (*Step, bool) {
	if u.Hue == nil && u.Sat == nil && u.XY == nil && u.CT == nil {
		return nil, false
	}

	var results []model.AttributeResult
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

	var cmd model.ColorCommand
	var patch model.StatePatch
	switch {
	case u.XY != nil:
		xy := *u.XY
		if xy[0] < 0 || xy[0] > 1 || xy[1] < 0 || xy[1] > 1 {
			return &Step{Results: results, Err: model.ErrInvalidValue}, false
		}
		cmd = model.ColorCommand{Mode: model.ColorRGB, RGB: XYToRGB(xy[0], xy[1])}
		patch = model.StatePatch{XY: &xy, ColorMode: model.ColorModeXY}
	case u.CT != nil:
		ct := ClampCT(*u.CT)
		cold, warm := CTToWhite(ct)
		cmd = model.ColorCommand{Mode: model.ColorWhite, ColdWhite: cold, WarmWhite: warm}
		patch = model.StatePatch{CT: &ct, ColorMode: model.ColorModeCT}
	default:
		hue, sat := current.Hue, current.Sat
		if u.Hue != nil {
			hue = *u.Hue
		}
		if u.Sat != nil {
			sat = *u.Sat
		} else if current.ColorMode != model.ColorModeHS || sat == 0 {
			sat = model.MaxSat
		}
		if sat > model.MaxSat {
			return &Step{Results: results, Err: model.ErrInvalidValue}, false
		}
		cmd = model.ColorCommand{Mode: model.ColorHueSat, Hue: HueToDegrees(hue), Saturation: SatToPercent(sat)}
		patch = model.StatePatch{Hue: &hue, Sat: &sat, ColorMode: model.ColorModeHS}
	}

	bri := current.Bri
	folded := false
	if u.Bri != nil && *u.Bri > 0 && *u.Bri <= model.MaxBri {
		bri = *u.Bri
		folded = true
		results = append(results, result(model.AttrBri, *u.Bri))
	}
	if bri == 0 {
		bri = model.MaxBri
	}
	cmd.Brightness = scale.ToBackend(bri)
	if cmd.Brightness < 1 {
		cmd.Brightness = 1
	}
	patch.On = boolPtr(true)
	patch.Bri = &bri

	return &Step{Command: cmd, Results: results, Patch: patch}, folded
}

func (s *ColorStrategy) ToHue(backend model.BackendState, light model.Light) model.LightState {
	state := s.dimmer.ToHue(backend, light)
	state.ColorMode = model.ColorModeHS
	if backend.Color != nil {
		state.Hue, state.Sat = RGBToHueSat(*backend.Color)
	}
	return state
}

func (s *ColorStrategy) GetMetadata() model.HueMetadata {
	return model.HueMetadata{
		Type:             "Extended color light",
		ModelID:          "LCT015",
		ManufacturerName: "Philips",
		ProductName:      "Hue color lamp",
	}
}
