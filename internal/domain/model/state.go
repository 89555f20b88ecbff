package model

import "time"

// Hue attribute names as they appear in state documents.
const (
	AttrOn             = "on"
	AttrBri            = "bri"
	AttrHue            = "hue"
	AttrSat            = "sat"
	AttrXY             = "xy"
	AttrCT             = "ct"
	AttrTransitionTime = "transitiontime"
	AttrAlert          = "alert"
	AttrEffect         = "effect"
)

// Hue value ranges.
const (
	MaxBri   = 254
	MaxSat   = 254
	MaxHue   = 65535
	MinCT    = 153
	MaxCT    = 500
	MaxLevel = 100
)

const (
	ColorModeHS = "hs"
	ColorModeXY = "xy"
	ColorModeCT = "ct"
)

// LightState is the Hue-visible projection of backend state. Fields outside
// a light's capability are kept at their zero value and never reported.
type LightState struct {
	On            bool
	Bri           uint8
	Hue           uint16
	Sat           uint8
	XY            [2]float64
	CT            uint16
	ColorMode     string
	Reachable     bool
	LastRefreshed time.Time
}

// Project clears every attribute the capability does not include.
func (s LightState) Project(c Capability) LightState {
	if !c.Dimmable() {
		s.Bri = 0
	}
	if !c.Colored() {
		s.Hue, s.Sat, s.CT, s.XY, s.ColorMode = 0, 0, 0, [2]float64{}, ""
	}
	return s
}

// StateUpdate is a partial Hue state document. A nil field was absent from
// the request.
type StateUpdate struct {
	On             *bool
	Bri            *uint8
	Hue            *uint16
	Sat            *uint8
	XY             *[2]float64
	CT             *uint16
	TransitionTime *uint16
	Alert          *string
	Effect         *string
}

// Empty reports whether no attribute was supplied.
func (u StateUpdate) Empty() bool {
	return u.On == nil && u.Bri == nil && u.Hue == nil && u.Sat == nil && u.XY == nil &&
		u.CT == nil && u.TransitionTime == nil && u.Alert == nil && u.Effect == nil
}

// StatePatch is the part of a LightState changed by one accepted command.
type StatePatch struct {
	On        *bool
	Bri       *uint8
	Hue       *uint16
	Sat       *uint8
	XY        *[2]float64
	CT        *uint16
	ColorMode string
}

// IsZero reports whether the patch changes nothing.
func (p StatePatch) IsZero() bool {
	return p == StatePatch{}
}

// Apply merges the patch into s.
func (p StatePatch) Apply(s LightState) LightState {
	if p.On != nil {
		s.On = *p.On
	}
	if p.Bri != nil {
		s.Bri = *p.Bri
	}
	if p.Hue != nil {
		s.Hue = *p.Hue
	}
	if p.Sat != nil {
		s.Sat = *p.Sat
	}
	if p.XY != nil {
		s.XY = *p.XY
	}
	if p.CT != nil {
		s.CT = *p.CT
	}
	if p.ColorMode != "" {
		s.ColorMode = p.ColorMode
	}
	return s
}

// AttributeResult is the outcome of one attribute of a state request.
type AttributeResult struct {
	Attribute string
	Value     any
	Err       error
}

// BackendState is the state reported by the backend for one entity.
type BackendState struct {
	On       bool
	Level    int  // Backend dim level, meaningful when HasLevel
	HasLevel bool // Device reports a dim level
	// Color is set when the backend reports an RGB color.
	Color *RGB
}

// RGB is an 8-bit sRGB color.
type RGB struct {
	R, G, B uint8
}
