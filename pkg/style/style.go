// Package style turns qualitative hair descriptors, or face measurements
// when no descriptors are available, into continuous hair geometry
// parameters.
package style

import (
	"fmt"
	"math"
)

// Output bounds.
const (
	MinHeight    = 0.5
	MaxHeight    = 1.6
	MinWidth     = 0.8
	MaxWidth     = 1.35
	MinSpikiness = -0.4
	MaxSpikiness = 0.6
	MinDensity   = 0.7
	MaxDensity   = 1.3
)

// Parameters control hair region shape.
type Parameters struct {
	// Height scales the crown vertically.
	Height float64 `json:"height"`
	// Width scales hair horizontally, on top of face width.
	Width float64 `json:"width"`
	// Spikiness raises alternating crown points. Negative values flatten.
	Spikiness float64 `json:"spikiness"`
	// Density is carried to the renderer as a strand-count hint.
	Density float64 `json:"density"`
}

// Neutral returns the identity parameters.
func Neutral() Parameters {
	return Parameters{Height: 1, Width: 1, Spikiness: 0, Density: 1}
}

// Clamp returns p with every field inside its bounds. NaN fields take the
// neutral value.
func (p Parameters) Clamp() Parameters {
	return Parameters{
		Height:    clamp(p.Height, MinHeight, MaxHeight, 1),
		Width:     clamp(p.Width, MinWidth, MaxWidth, 1),
		Spikiness: clamp(p.Spikiness, MinSpikiness, MaxSpikiness, 0),
		Density:   clamp(p.Density, MinDensity, MaxDensity, 1),
	}
}

func clamp(v, lo, hi, nan float64) float64 {
	if math.IsNaN(v) {
		return nan
	}
	return math.Max(lo, math.Min(hi, v))
}

// Mode records how parameters were produced.
type Mode int

const (
	ModeDescriptor Mode = iota
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModeDescriptor:
		return "descriptor"
	case ModeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "descriptor":
		*m = ModeDescriptor
	case "fallback":
		*m = ModeFallback
	default:
		return fmt.Errorf("unknown style mode %q", text)
	}
	return nil
}
