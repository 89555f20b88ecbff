package http

import (
	"domoticz-hue-emulator/internal/domain/model"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Hue API error types.
const (
	errInvalidJSON        = 2
	errResourceNotFound   = 3
	errMethodNotAvailable = 4
	errMissingParameters  = 5
	errParameterNotFound  = 6
	errInvalidValue       = 7
	errInternal           = 901
)

type hueError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

// hueResult is one element of a Hue response array: a success or an error.
type hueResult struct {
	Success map[string]any `json:"success,omitempty"`
	Error   *hueError      `json:"error,omitempty"`
}

func success(key string, value any) hueResult {
	return hueResult{Success: map[string]any{key: value}}
}

func failure(kind int, address, description string) hueResult {
	return hueResult{Error: &hueError{Type: kind, Address: address, Description: description}}
}

// lightState carries only the attributes of the light's capability, but
// always reports reachability.
type lightState struct {
	On        bool      `json:"on"`
	Bri       *uint8    `json:"bri,omitempty"`
	Hue       *uint16   `json:"hue,omitempty"`
	Sat       *uint8    `json:"sat,omitempty"`
	Effect    string    `json:"effect,omitempty"`
	XY        []float64 `json:"xy,omitempty"`
	CT        *uint16   `json:"ct,omitempty"`
	Alert     string    `json:"alert"`
	ColorMode string    `json:"colormode,omitempty"`
	Mode      string    `json:"mode"`
	Reachable bool      `json:"reachable"`
}

type lightJSON struct {
	State            lightState `json:"state"`
	Type             string     `json:"type"`
	Name             string     `json:"name"`
	ModelID          string     `json:"modelid"`
	ManufacturerName string     `json:"manufacturername"`
	ProductName      string     `json:"productname"`
	UniqueID         string     `json:"uniqueid"`
	SWVersion        string     `json:"swversion"`
}

const lightSWVersion = "1.46.13_r26312"

func toLightJSON(v model.LightView) lightJSON {
	st := v.State
	out := lightState{
		On:        st.On,
		Alert:     "none",
		Mode:      "homeautomation",
		Reachable: st.Reachable,
	}
	if v.Light.Capability.Dimmable() {
		bri := st.Bri
		out.Bri = &bri
	}
	if v.Light.Capability.Colored() {
		hue, sat, ct := st.Hue, st.Sat, st.CT
		out.Hue, out.Sat, out.CT = &hue, &sat, &ct
		out.XY = []float64{st.XY[0], st.XY[1]}
		out.Effect = "none"
		out.ColorMode = st.ColorMode
	}
	return lightJSON{
		State:            out,
		Type:             v.Metadata.Type,
		Name:             v.Light.Name,
		ModelID:          v.Metadata.ModelID,
		ManufacturerName: v.Metadata.ManufacturerName,
		ProductName:      v.Metadata.ProductName,
		UniqueID:         uniqueID(v.Light.ID),
		SWVersion:        lightSWVersion,
	}
}

// uniqueID derives a Zigbee-style address from the light id.
func uniqueID(id string) string {
	if len(id) < 2 {
		id = strings.Repeat("0", 2-len(id)) + id
	}
	return "00:17:88:01:00:" + id + ":00:00-0b"
}

// parseStateUpdate decodes a state document. Malformed attributes come back
// as error results; the rest still go to the bridge.
func parseStateUpdate(body []byte, address string) (model.StateUpdate, []hueResult, error) {
	var u model.StateUpdate
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return u, nil, errors.New("body contains invalid json")
	}
	if len(raw) == 0 {
		return u, nil, errEmptyBody
	}

	var failures []hueResult
	for _, key := range sortedAttributes(raw) {
		value := raw[key]
		var err error
		switch key {
		case model.AttrOn:
			err = decodeInto(value, &u.On)
		case model.AttrBri:
			err = decodeInto(value, &u.Bri)
		case model.AttrHue:
			err = decodeInto(value, &u.Hue)
		case model.AttrSat:
			err = decodeInto(value, &u.Sat)
		case model.AttrXY:
			var xy []float64
			if err = json.Unmarshal(value, &xy); err == nil && len(xy) != 2 {
				err = errors.New("xy needs two coordinates")
			}
			if err == nil {
				u.XY = &[2]float64{xy[0], xy[1]}
			}
		case model.AttrCT:
			err = decodeInto(value, &u.CT)
		case model.AttrTransitionTime:
			err = decodeInto(value, &u.TransitionTime)
		case model.AttrAlert:
			err = decodeInto(value, &u.Alert)
		case model.AttrEffect:
			err = decodeInto(value, &u.Effect)
		default:
			failures = append(failures, failure(errParameterNotFound, address+"/"+key,
				fmt.Sprintf("parameter, %s, not available", key)))
			continue
		}
		if err != nil {
			failures = append(failures, failure(errInvalidValue, address+"/"+key,
				fmt.Sprintf("invalid value, %s, for parameter, %s", string(value), key)))
		}
	}
	return u, failures, nil
}

var errEmptyBody = errors.New("invalid/missing parameters in body")

// decodeInto rejects null so a present attribute never decodes to absent.
func decodeInto[T any](raw json.RawMessage, dst **T) error {
	if string(raw) == "null" {
		return errors.New("null value")
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

// attributeRank orders results the way a bridge reports them.
var attributeRank = map[string]int{
	model.AttrOn:  0,
	model.AttrBri: 1,
	model.AttrHue: 2,
	model.AttrSat: 3,
	model.AttrXY:  4,
	model.AttrCT:  5,
}

func attributeLess(a, b string) bool {
	ra, okA := attributeRank[a]
	rb, okB := attributeRank[b]
	switch {
	case okA && okB:
		return ra < rb
	case okA:
		return true
	case okB:
		return false
	}
	return a < b
}

func sortedAttributes(raw map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return attributeLess(keys[i], keys[j]) })
	return keys
}

// stateResult renders one attribute outcome.
func stateResult(address string, r model.AttributeResult) hueResult {
	key := address + "/" + r.Attribute
	switch {
	case r.Err == nil:
		return success(key, r.Value)
	case errors.Is(r.Err, model.ErrInvalidValue):
		return failure(errInvalidValue, key, fmt.Sprintf("invalid value, %v, for parameter, %s", r.Value, r.Attribute))
	case model.Unreachable(r.Err):
		return failure(errInternal, key, "Internal error, backend not responding")
	default:
		return failure(errInternal, key, "Internal error, "+r.Err.Error())
	}
}

// attributeOf returns the attribute a rendered result reports on.
func attributeOf(r hueResult) string {
	var key string
	if r.Error != nil {
		key = r.Error.Address
	}
	for k := range r.Success {
		key = k
	}
	return key[strings.LastIndexByte(key, '/')+1:]
}

func sortResults(results []hueResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return attributeLess(attributeOf(results[i]), attributeOf(results[j]))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, kind int, address, description string) {
	writeJSON(w, status, []hueResult{failure(kind, address, description)})
}
