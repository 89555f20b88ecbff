package model

// Command is one backend call. The set of implementations is closed.
type Command interface {
	command()
}

// SwitchCommand turns a device on or off.
type SwitchCommand struct {
	On bool
}

// LevelCommand sets the dim level, in backend units.
type LevelCommand struct {
	Level int
}

type ColorMode string

const (
	ColorHueSat ColorMode = "hs"
	ColorRGB    ColorMode = "rgb"
	ColorWhite  ColorMode = "white"
)

// ColorCommand sets the color and the brightness of a color light.
type ColorCommand struct {
	Mode       ColorMode
	Hue        int // degrees, 0-360 (ColorHueSat)
	Saturation int // percent (ColorHueSat)
	RGB        RGB // ColorRGB
	ColdWhite  uint8
	WarmWhite  uint8
	Brightness int // backend level
}

// SceneCommand activates or, for groups, deactivates a scene.
type SceneCommand struct {
	On bool
}

func (SwitchCommand) command() {}
func (LevelCommand) command()  {}
func (ColorCommand) command()  {}
func (SceneCommand) command()  {}
