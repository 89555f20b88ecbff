package model

import "encoding/json"

// Color modes of a Domoticz color document that carry an RGB value.
const (
	backendColorRGB    = 3
	backendColorCustom = 4
)

type backendColor struct {
	M int   `json:"m"`
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ParseRGB decodes a backend color document, given either as an object or as
// a JSON string holding one. White-only documents yield nil.
func ParseRGB(raw []byte) *RGB {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		raw = []byte(s)
	}
	var col backendColor
	if err := json.Unmarshal(raw, &col); err != nil {
		return nil
	}
	if col.M != backendColorRGB && col.M != backendColorCustom {
		return nil
	}
	return &RGB{R: col.R, G: col.G, B: col.B}
}
