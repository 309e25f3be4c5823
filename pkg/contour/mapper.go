package contour

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/facewave/pkg/landmark"
)

// Map builds a contour set directly from a normalized mesh by gathering
// each region's landmark indices and adding its offset. The result has
// template topology but is not proportion-aware; it exists for when
// retargeting cannot run.
func Map(set *landmark.Set) Set {
	out := make(Set, len(regions))
	for i, r := range regions {
		points := make([]r3.Vec, len(r.Landmarks))
		for j, idx := range r.Landmarks {
			points[j] = r3.Add(set[idx], r.Offset)
		}
		out[i] = Contour{
			Name:       r.Name,
			Points:     points,
			ConnectsTo: append([]string(nil), r.ConnectsTo...),
		}
	}
	return out
}
