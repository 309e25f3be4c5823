package landmark

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// NormalizePoint maps one detector record into the canonical space.
func NormalizePoint(p RawLandmark) r3.Vec {
	return r3.Vec{
		X: (p.X - 0.5) * 2,
		Y: -(p.Y - 0.5) * 2,
		Z: p.Z * 2,
	}
}

// Normalize converts a detection into a Set. A nil slice is treated as the
// detector reporting no face. Detections with extra points (refined meshes
// with iris landmarks) keep the first Count.
func Normalize(raw []RawLandmark) (Set, error) {
	var s Set
	if raw == nil {
		return s, ErrNoFace
	}
	if len(raw) < Count {
		return s, fmt.Errorf("%w: got %d, need %d", ErrInsufficientLandmarks, len(raw), Count)
	}
	for i := range s {
		s[i] = NormalizePoint(raw[i])
	}
	return s, nil
}

// Average returns the per-index, per-axis arithmetic mean of sets.
// It returns ErrNoFace when sets is empty.
func Average(sets []Set) (Set, error) {
	var out Set
	if len(sets) == 0 {
		return out, ErrNoFace
	}
	if len(sets) == 1 {
		return sets[0], nil
	}
	n := float64(len(sets))
	for i := range out {
		var sum r3.Vec
		for k := range sets {
			sum = r3.Add(sum, sets[k][i])
		}
		out[i] = r3.Scale(1/n, sum)
	}
	return out, nil
}
