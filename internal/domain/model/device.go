package model

// Capability is the subset of on-off, brightness and color a light supports.
type Capability string

const (
	CapabilitySwitch Capability = "switch"
	CapabilityDimmer Capability = "dimmer"
	CapabilityColor  Capability = "rgb"
)

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	switch c {
	case CapabilitySwitch, CapabilityDimmer, CapabilityColor:
		return true
	}
	return false
}

// Dimmable reports whether brightness is part of the capability.
func (c Capability) Dimmable() bool {
	return c == CapabilityDimmer || c == CapabilityColor
}

// Colored reports whether color is part of the capability.
func (c Capability) Colored() bool {
	return c == CapabilityColor
}

type LightKind string

const (
	LightKindDevice LightKind = "device"
	LightKindScene  LightKind = "scene"
)

// Light is one entry of the Hue light namespace: a backend device or a
// backend scene/group. It never changes after the registry is built.
type Light struct {
	ID          string // Stable Hue identifier, e.g. "1"
	Name        string // Displayed by the assistant
	BackendID   string // Domoticz idx
	Kind        LightKind
	Capability  Capability
	SupportsOff bool // Scenes only; groups can be switched off
	Description string
	Level       LevelConfig
}

// IsScene reports whether the light is backed by a Domoticz scene or group.
func (l Light) IsScene() bool {
	return l.Kind == LightKindScene
}

// Target addresses the backend entity behind a light.
func (l Light) Target() Target {
	return Target{BackendID: l.BackendID, Scene: l.IsScene()}
}

// Target is what the backend client needs to address an entity.
type Target struct {
	BackendID string
	Scene     bool
}

// LevelConfig controls how Hue brightness maps onto the backend dim level.
type LevelConfig struct {
	MaxLevel int // Backend dim level at Hue brightness 254
	// Optional formulas over x; they replace the proportional mapping.
	ToBackendFormula string
	ToHueFormula     string
}

// HueMetadata is the static description a Hue client expects for a light.
type HueMetadata struct {
	Type             string
	ModelID          string
	ManufacturerName string
	ProductName      string
}

// LightView is a light together with a snapshot of its cached state.
type LightView struct {
	Light    Light
	State    LightState
	Metadata HueMetadata
}
