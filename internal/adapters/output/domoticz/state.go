package domoticz

import (
	"context"
	"domoticz-hue-emulator/internal/domain/model"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jellydator/ttlcache/v3"
)

// Domoticz color modes, see ColorMode in the Domoticz sources.
const (
	colorModeWhite = 2
	colorModeRGB   = 3
)

type colorValue struct {
	M  int   `json:"m"`
	T  uint8 `json:"t"`
	R  uint8 `json:"r"`
	G  uint8 `json:"g"`
	B  uint8 `json:"b"`
	CW uint8 `json:"cw"`
	WW uint8 `json:"ww"`
}

func encodeColor(c colorValue) string {
	b, _ := json.Marshal(c)
	return string(b)
}

type deviceResult struct {
	Idx    string `json:"idx"`
	Name   string `json:"Name"`
	Status string `json:"Status"`
	Level  int    `json:"Level"`
	// Color is a JSON document inside a string.
	Color      string `json:"Color"`
	SwitchType string `json:"SwitchType"`
}

type sceneResult struct {
	Idx    string `json:"idx"`
	Name   string `json:"Name"`
	Status string `json:"Status"`
	Type   string `json:"Type"`
}

// QueryState returns the state Domoticz reports for the entity behind target.
// Reads are cached briefly; a command to the entity drops its entry.
func (c *Client) QueryState(ctx context.Context, target model.Target) (model.BackendState, error) {
	key := cacheKey(target)
	if item := c.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	if target.Scene {
		return c.queryScene(ctx, target)
	}
	return c.queryDevice(ctx, target)
}

func (c *Client) queryDevice(ctx context.Context, target model.Target) (model.BackendState, error) {
	resp, err := c.call(ctx, url.Values{"type": {"command"}, "param": {"getdevices"}, "rid": {target.BackendID}})
	if err != nil {
		return model.BackendState{}, err
	}
	var devices []deviceResult
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &devices); err != nil {
			return model.BackendState{}, fmt.Errorf("getdevices: %w: %v", model.ErrBackendUnavailable, err)
		}
	}
	if len(devices) == 0 {
		return model.BackendState{}, fmt.Errorf("getdevices: %w: device %s does not exist", model.ErrBackendRejected, target.BackendID)
	}

	state := deviceState(devices[0])
	c.cache.Set(cacheKey(target), state, ttlcache.DefaultTTL)
	return state, nil
}

func deviceState(d deviceResult) model.BackendState {
	state := model.BackendState{
		On:       d.Status != "" && d.Status != "Off",
		Level:    d.Level,
		HasLevel: true,
	}
	if d.Color != "" {
		state.Color = model.ParseRGB([]byte(d.Color))
	}
	return state
}

// queryScene reads every scene at once and caches all of them.
func (c *Client) queryScene(ctx context.Context, target model.Target) (model.BackendState, error) {
	resp, err := c.call(ctx, url.Values{"type": {"command"}, "param": {"getscenes"}})
	if err != nil {
		return model.BackendState{}, err
	}
	var scenes []sceneResult
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &scenes); err != nil {
			return model.BackendState{}, fmt.Errorf("getscenes: %w: %v", model.ErrBackendUnavailable, err)
		}
	}

	found := false
	var state model.BackendState
	for _, s := range scenes {
		st := model.BackendState{On: strings.EqualFold(s.Status, "On")}
		c.cache.Set(cacheKey(model.Target{BackendID: s.Idx, Scene: true}), st, ttlcache.DefaultTTL)
		if s.Idx == target.BackendID {
			state, found = st, true
		}
	}
	if !found {
		return model.BackendState{}, fmt.Errorf("getscenes: %w: scene %s does not exist", model.ErrBackendRejected, target.BackendID)
	}
	return state, nil
}

func cacheKey(target model.Target) string {
	if target.Scene {
		return "scene:" + target.BackendID
	}
	return "device:" + target.BackendID
}
