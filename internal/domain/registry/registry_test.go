package registry

import (
	"domoticz-hue-emulator/internal/domain/model"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lights() []model.Light {
	cfg := &model.Config{
		Devices: []model.DeviceConfig{
			{Name: "Kitchen", Idx: "7", Type: model.CapabilitySwitch},
			{Name: "Hall", Idx: "8", Type: model.CapabilityDimmer},
			{Name: "Desk", Idx: "9", Type: model.CapabilityColor},
		},
		Scenes: []model.SceneConfig{{Name: "Movie Night", Idx: "2"}},
	}
	return cfg.Lights()
}

func boolPtr(b bool) *bool { return &b }
func u8(v uint8) *uint8    { return &v }
func u16(v uint16) *uint16 { return &v }

func TestRegistry_List(t *testing.T) {
	r := New(lights())

	views := r.List()
	require.Len(t, views, 4)
	assert.Equal(t, 4, r.Len())
	for i, v := range views {
		assert.Equal(t, []string{"1", "2", "3", "4"}[i], v.Light.ID)
		assert.False(t, v.State.On)
		assert.False(t, v.State.Reachable)
	}
	assert.Equal(t, model.ColorModeHS, views[2].State.ColorMode)
	assert.Empty(t, views[0].State.ColorMode)

	id, ok := r.Lookup(model.Target{BackendID: "2", Scene: true})
	assert.True(t, ok)
	assert.Equal(t, "4", id)
	_, ok = r.Lookup(model.Target{BackendID: "2"})
	assert.False(t, ok)
}

func TestRegistry_Get(t *testing.T) {
	r := New(lights())

	v, err := r.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", v.Light.Name)

	_, err = r.Get("99")
	assert.ErrorIs(t, err, model.ErrLightNotFound)
	assert.ErrorIs(t, r.MarkUnreachable("99"), model.ErrLightNotFound)
}

func TestRegistry_ApplyOptimistic(t *testing.T) {
	r := New(lights())

	state, err := r.ApplyOptimistic("1", model.StatePatch{On: boolPtr(true), Bri: u8(200)})
	require.NoError(t, err)
	assert.True(t, state.On)
	assert.True(t, state.Reachable)
	assert.Zero(t, state.Bri, "switch lights never carry brightness")

	state, err = r.ApplyOptimistic("2", model.StatePatch{Bri: u8(200), Hue: u16(1000)})
	require.NoError(t, err)
	assert.Equal(t, uint8(200), state.Bri)
	assert.Zero(t, state.Hue)
}

func TestRegistry_MarkUnreachableKeepsValues(t *testing.T) {
	r := New(lights())
	_, err := r.ApplyOptimistic("2", model.StatePatch{On: boolPtr(true), Bri: u8(120)})
	require.NoError(t, err)

	require.NoError(t, r.MarkUnreachable("2"))
	v, _ := r.Get("2")
	assert.False(t, v.State.Reachable)
	assert.True(t, v.State.On)
	assert.Equal(t, uint8(120), v.State.Bri)
}

func TestRegistry_Snapshot(t *testing.T) {
	r := New(lights())

	_, err := r.ApplyOptimistic("3", model.StatePatch{Hue: u16(20000)})
	require.NoError(t, err)
	v, rev, err := r.Snapshot("3")
	require.NoError(t, err)
	assert.Equal(t, uint16(20000), v.State.Hue)
	assert.Equal(t, "Desk", v.Light.Name)

	current, _ := r.Revision("3")
	assert.Equal(t, current, rev)

	_, err = r.ApplyOptimistic("3", model.StatePatch{})
	require.NoError(t, err)
	_, later, _ := r.Snapshot("3")
	assert.Greater(t, later, rev)

	_, _, err = r.Snapshot("42")
	assert.ErrorIs(t, err, model.ErrLightNotFound)
}

func TestRegistry_RefreshIfUnchanged(t *testing.T) {
	r := New(lights())
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return at }

	rev, err := r.Revision("1")
	require.NoError(t, err)

	// A command lands while the poll read is in flight.
	_, err = r.ApplyOptimistic("1", model.StatePatch{On: boolPtr(true)})
	require.NoError(t, err)

	applied, err := r.RefreshIfUnchanged("1", model.LightState{On: false, Reachable: true}, rev)
	require.NoError(t, err)
	assert.False(t, applied)
	v, _ := r.Get("1")
	assert.True(t, v.State.On)

	rev, _ = r.Revision("1")
	applied, err = r.RefreshIfUnchanged("1", model.LightState{On: false, Reachable: true}, rev)
	require.NoError(t, err)
	assert.True(t, applied)
	v, _ = r.Get("1")
	assert.False(t, v.State.On)
	assert.Equal(t, at, v.State.LastRefreshed)
}

func TestRegistry_Refresh(t *testing.T) {
	r := New(lights())
	require.NoError(t, r.Refresh("3", model.LightState{On: true, Bri: 10, Hue: 500, Sat: 20, ColorMode: model.ColorModeHS, Reachable: true}))
	v, _ := r.Get("3")
	assert.Equal(t, uint16(500), v.State.Hue)
	assert.False(t, v.State.LastRefreshed.IsZero())
}

func TestRegistry_ConcurrentWrites(t *testing.T) {
	r := New(lights())
	const n = 200

	var wg sync.WaitGroup
	for _, id := range []string{"1", "2", "3", "4"} {
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(id string, i int) {
				defer wg.Done()
				if i%3 == 0 {
					_ = r.MarkUnreachable(id)
					return
				}
				_, _ = r.ApplyOptimistic(id, model.StatePatch{On: boolPtr(i%2 == 0)})
				_ = r.List()
			}(id, i)
		}
	}
	wg.Wait()

	for _, id := range []string{"1", "2", "3", "4"} {
		rev, err := r.Revision(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(n), rev)
	}
}

func TestRegistry_ApplyLocalKeepsReachability(t *testing.T) {
	r := New(lights())

	state, err := r.ApplyLocal("4", model.StatePatch{On: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, state.Reachable)

	_, err = r.ApplyOptimistic("4", model.StatePatch{On: boolPtr(true)})
	require.NoError(t, err)
	state, err = r.ApplyLocal("4", model.StatePatch{On: boolPtr(false)})
	require.NoError(t, err)
	assert.True(t, state.Reachable)
	assert.False(t, state.On)
}
