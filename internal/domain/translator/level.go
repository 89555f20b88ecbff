package translator

import (
	"domoticz-hue-emulator/internal/domain/model"
	"fmt"
	"math"
	"sync"

	"github.com/Knetic/govaluate"
)

// LevelScale converts between Hue brightness (0-254) and the backend dim level.
type LevelScale struct {
	max       int
	toBackend *govaluate.EvaluableExpression
	toHue     *govaluate.EvaluableExpression
}

var expressions sync.Map // formula -> *govaluate.EvaluableExpression

// CompileFormula parses a formula over x, caching the result.
func CompileFormula(formula string) (*govaluate.EvaluableExpression, error) {
	if cached, ok := expressions.Load(formula); ok {
		return cached.(*govaluate.EvaluableExpression), nil
	}
	expr, err := govaluate.NewEvaluableExpression(formula)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", formula, err)
	}
	if vars := expr.Vars(); len(vars) > 1 || (len(vars) == 1 && vars[0] != "x") {
		return nil, fmt.Errorf("formula %q: only the variable x is allowed", formula)
	}
	expressions.Store(formula, expr)
	return expr, nil
}

// NewLevelScale builds the scale for a light's level configuration.
func NewLevelScale(cfg model.LevelConfig) (*LevelScale, error) {
	s := &LevelScale{max: cfg.MaxLevel}
	if s.max <= 0 {
		s.max = model.MaxLevel
	}
	var err error
	if cfg.ToBackendFormula != "" {
		if s.toBackend, err = CompileFormula(cfg.ToBackendFormula); err != nil {
			return nil, err
		}
	}
	if cfg.ToHueFormula != "" {
		if s.toHue, err = CompileFormula(cfg.ToHueFormula); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// scaleFor never fails: formulas are validated at load, and a broken one
// falls back to the proportional mapping.
func scaleFor(light model.Light) *LevelScale {
	s, err := NewLevelScale(light.Level)
	if err != nil {
		s, _ = NewLevelScale(model.LevelConfig{MaxLevel: light.Level.MaxLevel})
	}
	return s
}

// Max is the backend level at full brightness.
func (s *LevelScale) Max() int {
	return s.max
}

// ToBackend maps Hue brightness proportionally, rounding to nearest.
func (s *LevelScale) ToBackend(bri uint8) int {
	x := float64(bri) * float64(s.max) / model.MaxBri
	if s.toBackend != nil {
		x = evaluate(s.toBackend, float64(bri), x)
	}
	return clamp(int(math.Round(x)), 0, s.max)
}

// ToHue is the inverse of ToBackend.
func (s *LevelScale) ToHue(level int) uint8 {
	x := float64(level) * model.MaxBri / float64(s.max)
	if s.toHue != nil {
		x = evaluate(s.toHue, float64(level), x)
	}
	return uint8(clamp(int(math.Round(x)), 0, model.MaxBri))
}

// evaluate returns fallback when the expression fails or is not numeric.
func evaluate(expr *govaluate.EvaluableExpression, x, fallback float64) float64 {
	out, err := expr.Evaluate(map[string]interface{}{"x": x})
	if err != nil {
		return fallback
	}
	if val, ok := out.(float64); ok && !math.IsNaN(val) && !math.IsInf(val, 0) {
		return val
	}
	return fallback
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
