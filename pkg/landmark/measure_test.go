package landmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func measuredSet() Set {
	var s Set
	s[LeftJaw] = r3.Vec{X: -0.2}
	s[RightJaw] = r3.Vec{X: 0.2}
	s[Forehead] = r3.Vec{Y: 0.3}
	s[Chin] = r3.Vec{Y: -0.25}
	s[LeftEyeInner] = r3.Vec{X: -0.05}
	s[RightEyeInner] = r3.Vec{X: 0.05}
	s[LeftNostril] = r3.Vec{X: -0.06}
	s[RightNostril] = r3.Vec{X: 0.06}
	s[MouthLeft] = r3.Vec{X: -0.07}
	s[MouthRight] = r3.Vec{X: 0.07}
	return s
}

func TestMeasure(t *testing.T) {
	s := measuredSet()
	m := Measure(&s)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"face width", m.FaceWidth, 0.40},
		{"face height", m.FaceHeight, 0.55},
		{"eye distance", m.EyeDistance, 0.10},
		{"nose width", m.NoseWidth, 0.12},
		{"mouth width", m.MouthWidth, 0.14},
		{"aspect", m.Aspect(), 0.40 / 0.55},
		{"eye ratio", m.EyeRatio(), 0.25},
		{"nose ratio", m.NoseRatio(), 0.30},
		{"mouth ratio", m.MouthRatio(), 0.35},
	}
	for _, c := range checks {
		assert.InDelta(t, c.want, c.got, 1e-9, c.name)
	}
}

func TestMeasureIsMirrorInvariant(t *testing.T) {
	s := measuredSet()
	var mirrored Set
	for i, p := range s {
		mirrored[i] = r3.Vec{X: -p.X, Y: p.Y, Z: p.Z}
	}
	assert.Equal(t, Measure(&s), Measure(&mirrored))
}

func TestRatiosSanitizeDegenerateFaces(t *testing.T) {
	var s Set
	assert.Equal(t, [4]float64{}, Measure(&s).Ratios())
}
