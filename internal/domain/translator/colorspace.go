package translator

import (
	"domoticz-hue-emulator/internal/domain/model"
	"math"
)

// HueToDegrees maps the Hue 16-bit hue onto 0-360 degrees.
func HueToDegrees(h uint16) int {
	return int(math.Round(float64(h) * 360 / model.MaxHue))
}

// SatToPercent maps Hue saturation (0-254) onto 0-100.
func SatToPercent(s uint8) int {
	return clamp(int(math.Round(float64(s)*100/model.MaxSat)), 0, 100)
}

// ClampCT limits a color temperature to the mired range a bridge accepts.
func ClampCT(ct uint16) uint16 {
	if ct < model.MinCT {
		return model.MinCT
	}
	if ct > model.MaxCT {
		return model.MaxCT
	}
	return ct
}

// CTToWhite mixes the cold and warm white channels for a color temperature:
// 153 mireds is all cold white, 500 all warm white.
func CTToWhite(ct uint16) (cold, warm uint8) {
	n := float64(ClampCT(ct)-model.MinCT) / float64(model.MaxCT-model.MinCT)
	return uint8(math.Round(255 * (1 - n))), uint8(math.Round(255 * n))
}

// XYToRGB converts CIE xy chromaticity to sRGB at full brightness, using the
// wide gamut matrix Philips documents for Hue lamps.
func XYToRGB(x, y float64) model.RGB {
	if y <= 0 {
		y = 0.00001
	}
	z := 1 - x - y
	Y := 1.0
	X := (Y / y) * x
	Z := (Y / y) * z

	r := X*1.656492 - Y*0.354851 - Z*0.255038
	g := -X*0.707196 + Y*1.655397 + Z*0.036152
	b := X*0.051713 - Y*0.121364 + Z*1.011530

	if m := math.Max(r, math.Max(g, b)); m > 1 {
		r, g, b = r/m, g/m, b/m
	}
	return model.RGB{R: gammaByte(r), G: gammaByte(g), B: gammaByte(b)}
}

func gammaByte(v float64) uint8 {
	if v <= 0.0031308 {
		v = 12.92 * v
	} else {
		v = 1.055*math.Pow(v, 1/2.4) - 0.055
	}
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// RGBToHueSat returns the Hue hue and saturation of an RGB color.
func RGBToHueSat(c model.RGB) (uint16, uint8) {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	if maxC == minC {
		return 0, 0
	}
	d := maxC - minC
	var h float64
	switch maxC {
	case r:
		h = (g - b) / d
	case g:
		h = 2 + (b-r)/d
	default:
		h = 4 + (r-g)/d
	}
	h = math.Mod(h/6+1, 1)
	s := d / maxC
	return uint16(math.Round(h * model.MaxHue)), uint8(math.Round(s * model.MaxSat))
}
