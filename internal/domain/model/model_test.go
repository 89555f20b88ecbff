package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Devices = []DeviceConfig{
		{Name: "Kitchen", Idx: "7"},
		{Name: "Hall", Idx: "8", Type: CapabilityDimmer, MaxLevel: 15},
		{Name: "Desk", Idx: "9", Type: CapabilityColor},
	}
	cfg.Scenes = []SceneConfig{
		{Name: "Movie Night", Idx: "2"},
		{Name: "Downstairs", Idx: "3", Type: SceneTypeGroup},
	}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Backend.URL = "localhost:8080"
	cfg.Bridge.Port = 0
	cfg.Devices = append(cfg.Devices, DeviceConfig{Name: "kitchen ", Idx: "12", Type: "fan"})
	cfg.Scenes = append(cfg.Scenes, SceneConfig{Name: "Evening", Type: "macro"})

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	for _, want := range []string{
		"domoticz.url",
		"bridge.port",
		`devices[3].name "kitchen " duplicates devices[0]`,
		`devices[3].type "fan"`,
		"scenes[2].idx is required",
		`scenes[2].type "macro"`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestConfig_NamesAreUniqueAcrossScenes(t *testing.T) {
	cfg := validConfig()
	cfg.Scenes = append(cfg.Scenes, SceneConfig{Name: "HALL", Idx: "5"})

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicates devices[1]")
}

func TestConfig_Lights(t *testing.T) {
	lights := validConfig().Lights()
	require.Len(t, lights, 5)

	ids := make([]string, len(lights))
	for i, l := range lights {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids)

	assert.Equal(t, CapabilitySwitch, lights[0].Capability)
	assert.Equal(t, MaxLevel, lights[0].Level.MaxLevel)
	assert.Equal(t, 15, lights[1].Level.MaxLevel)
	assert.Equal(t, Target{BackendID: "9"}, lights[2].Target())

	movie, group := lights[3], lights[4]
	assert.True(t, movie.IsScene())
	assert.False(t, movie.SupportsOff)
	assert.True(t, group.SupportsOff)
	assert.Equal(t, Target{BackendID: "3", Scene: true}, group.Target())
}

func TestLightState_Project(t *testing.T) {
	full := LightState{On: true, Bri: 100, Hue: 1000, Sat: 200, XY: [2]float64{0.3, 0.3}, CT: 300, ColorMode: ColorModeHS, Reachable: true}

	assert.Equal(t, LightState{On: true, Reachable: true}, full.Project(CapabilitySwitch))
	assert.Equal(t, LightState{On: true, Bri: 100, Reachable: true}, full.Project(CapabilityDimmer))
	assert.Equal(t, full, full.Project(CapabilityColor))
}

func TestStatePatch_Apply(t *testing.T) {
	on, bri := true, uint8(80)
	patch := StatePatch{On: &on, Bri: &bri, ColorMode: ColorModeCT}

	got := patch.Apply(LightState{Hue: 5, ColorMode: ColorModeHS})
	assert.Equal(t, LightState{On: true, Bri: 80, Hue: 5, ColorMode: ColorModeCT}, got)
	assert.True(t, StatePatch{}.IsZero())
	assert.False(t, patch.IsZero())
}

func TestStateUpdate_Empty(t *testing.T) {
	assert.True(t, StateUpdate{}.Empty())
	alert := "select"
	assert.False(t, StateUpdate{Alert: &alert}.Empty())
}

func TestUnreachable(t *testing.T) {
	assert.True(t, Unreachable(ErrBackendUnavailable))
	assert.True(t, Unreachable(ErrBackendAuth))
	assert.False(t, Unreachable(ErrBackendRejected))
	assert.False(t, Unreachable(nil))
}

func TestIdentity(t *testing.T) {
	id := Identity{MAC: "00:17:88:aa:bb:cc", Usernames: []string{"abc"}}
	assert.Equal(t, "001788aabbcc", id.Serial())
	assert.True(t, id.KnowsUsername("abc"))
	assert.False(t, id.KnowsUsername("def"))
}

func TestParseRGB(t *testing.T) {
	assert.Equal(t, &RGB{R: 1, G: 2, B: 3}, ParseRGB([]byte(`{"m":3,"r":1,"g":2,"b":3}`)))
	assert.Equal(t, &RGB{R: 1, G: 2, B: 3}, ParseRGB([]byte(`"{\"m\":4,\"r\":1,\"g\":2,\"b\":3}"`)))
	assert.Nil(t, ParseRGB([]byte(`{"m":2,"cw":255}`)))
	assert.Nil(t, ParseRGB(nil))
	assert.Nil(t, ParseRGB([]byte(`garbage`)))
}
