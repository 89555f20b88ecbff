package translator

import (
	"domoticz-hue-emulator/internal/domain/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u8(v uint8) *uint8    { return &v }
func u16(v uint16) *uint16 { return &v }

func commands(steps []Step) []model.Command {
	var out []model.Command
	for _, s := range steps {
		if s.Command != nil && s.Err == nil {
			out = append(out, s.Command)
		}
	}
	return out
}

func attributes(steps []Step) []string {
	var out []string
	for _, s := range steps {
		for _, r := range s.Results {
			out = append(out, r.Attribute)
		}
	}
	return out
}

func dimmer() model.Light {
	return model.Light{ID: "2", Name: "Hall", BackendID: "12", Kind: model.LightKindDevice,
		Capability: model.CapabilityDimmer, Level: model.LevelConfig{MaxLevel: 100}}
}

func colorLight() model.Light {
	return model.Light{ID: "3", Name: "Desk", BackendID: "13", Kind: model.LightKindDevice,
		Capability: model.CapabilityColor, Level: model.LevelConfig{MaxLevel: 100}}
}

func TestFactory(t *testing.T) {
	f := NewFactory()

	assert.IsType(t, &SwitchStrategy{}, f.GetTranslator(model.Light{Capability: model.CapabilitySwitch}))
	assert.IsType(t, &DimmerStrategy{}, f.GetTranslator(model.Light{Capability: model.CapabilityDimmer}))
	assert.IsType(t, &ColorStrategy{}, f.GetTranslator(model.Light{Capability: model.CapabilityColor}))
	assert.IsType(t, &SceneStrategy{}, f.GetTranslator(model.Light{Kind: model.LightKindScene, Capability: model.CapabilityColor}))
	assert.IsType(t, &SwitchStrategy{}, f.GetTranslator(model.Light{Capability: "thermostat"}))
}

func TestSwitchStrategy(t *testing.T) {
	s := &SwitchStrategy{}
	light := model.Light{ID: "1", Capability: model.CapabilitySwitch}

	steps := s.Plan(light, model.LightState{}, model.StateUpdate{On: boolPtr(true), Bri: u8(100)})
	assert.Equal(t, []model.Command{model.SwitchCommand{On: true}}, commands(steps))
	assert.Equal(t, []string{"on", "bri"}, attributes(steps))

	state := model.StatePatch{}.Apply(model.LightState{})
	for _, st := range steps {
		state = st.Patch.Apply(state)
	}
	assert.True(t, state.On)
	assert.Zero(t, state.Bri)

	hue := s.ToHue(model.BackendState{On: true, Level: 40, HasLevel: true}, light)
	assert.Equal(t, model.LightState{On: true, Reachable: true}, hue)
	assert.Equal(t, "On/Off plug-in unit", s.GetMetadata().Type)
}

func TestDimmerStrategy_Plan(t *testing.T) {
	s := &DimmerStrategy{}
	light := dimmer()
	off := model.LightState{On: false, Bri: 100}
	on := model.LightState{On: true, Bri: 100}

	t.Run("on alone", func(t *testing.T) {
		steps := s.Plan(light, off, model.StateUpdate{On: boolPtr(true)})
		assert.Equal(t, []model.Command{model.SwitchCommand{On: true}}, commands(steps))
	})

	t.Run("full brightness is the max level", func(t *testing.T) {
		steps := s.Plan(light, on, model.StateUpdate{Bri: u8(254)})
		assert.Equal(t, []model.Command{model.LevelCommand{Level: 100}}, commands(steps))
		require.NotNil(t, steps[0].Patch.On)
		assert.True(t, *steps[0].Patch.On)
	})

	t.Run("zero brightness switches off", func(t *testing.T) {
		steps := s.Plan(light, on, model.StateUpdate{Bri: u8(0)})
		assert.Equal(t, []model.Command{model.SwitchCommand{On: false}}, commands(steps))
	})

	t.Run("lowest brightness still dims on", func(t *testing.T) {
		steps := s.Plan(light, off, model.StateUpdate{Bri: u8(1)})
		assert.Equal(t, []model.Command{model.LevelCommand{Level: 1}}, commands(steps))
	})

	t.Run("turning on from off sends on first", func(t *testing.T) {
		steps := s.Plan(light, off, model.StateUpdate{On: boolPtr(true), Bri: u8(127)})
		assert.Equal(t, []model.Command{model.SwitchCommand{On: true}, model.LevelCommand{Level: 50}}, commands(steps))
	})

	t.Run("already on folds on into the level command", func(t *testing.T) {
		steps := s.Plan(light, on, model.StateUpdate{On: boolPtr(true), Bri: u8(127)})
		assert.Equal(t, []model.Command{model.LevelCommand{Level: 50}}, commands(steps))
		assert.Equal(t, []string{"on", "bri"}, attributes(steps))
	})

	t.Run("off is sent after the level", func(t *testing.T) {
		steps := s.Plan(light, on, model.StateUpdate{On: boolPtr(false), Bri: u8(127)})
		assert.Equal(t, []model.Command{model.LevelCommand{Level: 50}, model.SwitchCommand{On: false}}, commands(steps))
	})

	t.Run("out of range brightness", func(t *testing.T) {
		steps := s.Plan(light, on, model.StateUpdate{Bri: u8(255)})
		require.Len(t, steps, 1)
		assert.ErrorIs(t, steps[0].Err, model.ErrInvalidValue)
		assert.Empty(t, commands(steps))
	})

	t.Run("color and passive attributes are acknowledged", func(t *testing.T) {
		tt := uint16(4)
		alert := "select"
		steps := s.Plan(light, on, model.StateUpdate{Hue: u16(1000), TransitionTime: &tt, Alert: &alert})
		assert.Empty(t, commands(steps))
		assert.Equal(t, []string{"hue", "transitiontime", "alert"}, attributes(steps))
	})
}

func TestDimmerStrategy_ToHue(t *testing.T) {
	s := &DimmerStrategy{}
	light := dimmer()

	assert.Equal(t, uint8(127), s.ToHue(model.BackendState{On: true, Level: 50, HasLevel: true}, light).Bri)
	assert.Equal(t, uint8(254), s.ToHue(model.BackendState{On: true}, light).Bri)
	assert.Equal(t, uint8(0), s.ToHue(model.BackendState{On: false}, light).Bri)
	assert.True(t, s.ToHue(model.BackendState{}, light).Reachable)
}

func TestLevelScale_RoundTrip(t *testing.T) {
	for _, maxLevel := range []int{100, 15, 254} {
		scale, err := NewLevelScale(model.LevelConfig{MaxLevel: maxLevel})
		require.NoError(t, err)
		assert.Equal(t, maxLevel, scale.ToBackend(254))
		assert.Equal(t, 0, scale.ToBackend(0))

		for bri := 0; bri <= model.MaxBri; bri++ {
			back := int(scale.ToHue(scale.ToBackend(uint8(bri))))
			step := (model.MaxBri + maxLevel - 1) / maxLevel
			assert.LessOrEqual(t, abs(back-bri), step, "max %d bri %d", maxLevel, bri)
		}
	}

	scale, err := NewLevelScale(model.LevelConfig{MaxLevel: 100})
	require.NoError(t, err)
	for bri := 0; bri <= model.MaxBri; bri++ {
		back := int(scale.ToHue(scale.ToBackend(uint8(bri))))
		assert.LessOrEqual(t, abs(back-bri), 1, "bri %d", bri)
	}
	for level := 0; level <= 100; level++ {
		assert.Equal(t, level, scale.ToBackend(scale.ToHue(level)), "level %d", level)
	}
}

func TestLevelScale_Formula(t *testing.T) {
	scale, err := NewLevelScale(model.LevelConfig{
		MaxLevel:         100,
		ToBackendFormula: "x * x / 645.16",
		ToHueFormula:     "x * 2.54",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, scale.ToBackend(254))
	assert.Equal(t, 25, scale.ToBackend(127))
	assert.Equal(t, uint8(127), scale.ToHue(50))

	_, err = CompileFormula("y * 2")
	assert.Error(t, err)
	_, err = CompileFormula("(x + 1")
	assert.Error(t, err)

	// A broken formula falls back to the proportional scale.
	light := dimmer()
	light.Level.ToBackendFormula = "("
	assert.Equal(t, 50, scaleFor(light).ToBackend(127))
}

func TestColorStrategy_Plan(t *testing.T) {
	s := &ColorStrategy{}
	light := colorLight()
	on := model.LightState{On: true, Bri: 254, ColorMode: model.ColorModeHS, Sat: 254}

	t.Run("hue and saturation", func(t *testing.T) {
		steps := s.Plan(light, on, model.StateUpdate{Hue: u16(21845), Sat: u8(127)})
		assert.Equal(t, []model.Command{model.ColorCommand{
			Mode: model.ColorHueSat, Hue: 120, Saturation: 50, Brightness: 100,
		}}, commands(steps))
		assert.Equal(t, model.ColorModeHS, steps[0].Patch.ColorMode)
	})

	t.Run("brightness travels with the color", func(t *testing.T) {
		steps := s.Plan(light, on, model.StateUpdate{Hue: u16(0), Bri: u8(127)})
		require.Len(t, commands(steps), 1)
		cmd := commands(steps)[0].(model.ColorCommand)
		assert.Equal(t, 50, cmd.Brightness)
		assert.Equal(t, []string{"hue", "bri"}, attributes(steps))
	})

	t.Run("on from off then color", func(t *testing.T) {
		steps := s.Plan(light, model.LightState{}, model.StateUpdate{On: boolPtr(true), Hue: u16(0)})
		cmds := commands(steps)
		require.Len(t, cmds, 2)
		assert.Equal(t, model.SwitchCommand{On: true}, cmds[0])
		assert.IsType(t, model.ColorCommand{}, cmds[1])
	})

	t.Run("color temperature", func(t *testing.T) {
		steps := s.Plan(light, on, model.StateUpdate{CT: u16(100)})
		cmd := commands(steps)[0].(model.ColorCommand)
		assert.Equal(t, model.ColorWhite, cmd.Mode)
		assert.Equal(t, uint8(255), cmd.ColdWhite)
		assert.Equal(t, uint8(0), cmd.WarmWhite)
		assert.Equal(t, uint16(153), *steps[0].Patch.CT)
	})

	t.Run("xy wins over ct", func(t *testing.T) {
		steps := s.Plan(light, on, model.StateUpdate{XY: &[2]float64{0.64, 0.33}, CT: u16(300)})
		cmds := commands(steps)
		require.Len(t, cmds, 1)
		assert.Equal(t, model.ColorRGB, cmds[0].(model.ColorCommand).Mode)
		assert.Equal(t, []string{"xy", "ct"}, attributes(steps))
	})

	t.Run("xy out of range", func(t *testing.T) {
		steps := s.Plan(light, on, model.StateUpdate{XY: &[2]float64{1.4, 0.3}})
		require.Len(t, steps, 1)
		assert.ErrorIs(t, steps[0].Err, model.ErrInvalidValue)
	})

	t.Run("brightness alone is a level command", func(t *testing.T) {
		steps := s.Plan(light, on, model.StateUpdate{Bri: u8(254)})
		assert.Equal(t, []model.Command{model.LevelCommand{Level: 100}}, commands(steps))
	})
}

func TestColorStrategy_ToHue(t *testing.T) {
	s := &ColorStrategy{}
	state := s.ToHue(model.BackendState{On: true, Level: 100, HasLevel: true, Color: &model.RGB{G: 255}}, colorLight())
	assert.Equal(t, uint8(254), state.Bri)
	assert.Equal(t, uint16(21845), state.Hue)
	assert.Equal(t, uint8(254), state.Sat)
	assert.Equal(t, model.ColorModeHS, state.ColorMode)
	assert.Equal(t, "Extended color light", s.GetMetadata().Type)
}

func TestSceneStrategy(t *testing.T) {
	s := &SceneStrategy{}
	scene := model.Light{ID: "4", Kind: model.LightKindScene, Capability: model.CapabilitySwitch}
	group := scene
	group.SupportsOff = true

	steps := s.Plan(scene, model.LightState{}, model.StateUpdate{On: boolPtr(true)})
	assert.Equal(t, []model.Command{model.SceneCommand{On: true}}, commands(steps))

	steps = s.Plan(scene, model.LightState{On: true}, model.StateUpdate{On: boolPtr(false), Bri: u8(254)})
	assert.Empty(t, commands(steps))
	assert.Equal(t, []string{"on", "bri"}, attributes(steps))
	require.NotNil(t, steps[0].Patch.On)
	assert.False(t, *steps[0].Patch.On)

	steps = s.Plan(group, model.LightState{On: true}, model.StateUpdate{On: boolPtr(false)})
	assert.Equal(t, []model.Command{model.SceneCommand{On: false}}, commands(steps))
}

func TestColorspace(t *testing.T) {
	assert.Equal(t, 0, HueToDegrees(0))
	assert.Equal(t, 360, HueToDegrees(65535))
	assert.Equal(t, 100, SatToPercent(254))
	assert.Equal(t, 0, SatToPercent(0))

	cold, warm := CTToWhite(500)
	assert.Equal(t, uint8(0), cold)
	assert.Equal(t, uint8(255), warm)

	red := XYToRGB(0.64, 0.33)
	assert.Equal(t, uint8(255), red.R)
	assert.Less(t, red.G, uint8(128))
	assert.Less(t, red.B, uint8(128))

	h, sat := RGBToHueSat(model.RGB{R: 255})
	assert.Equal(t, uint16(0), h)
	assert.Equal(t, uint8(254), sat)
	h, _ = RGBToHueSat(model.RGB{B: 255})
	assert.Equal(t, uint16(43690), h)
	h, sat = RGBToHueSat(model.RGB{R: 200, G: 200, B: 200})
	assert.Zero(t, h)
	assert.Zero(t, sat)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
