// Package landmark converts face-mesh detector output into a canonical,
// centered coordinate space.
//
// Detectors report 468 points with X and Y in [0,1] measured from the top-left
// corner of the image and Z as relative depth. Normalized points are centered
// on the origin with Y pointing up, spanning roughly [-1,1] on each axis.
package landmark

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Count is the number of points in a face mesh.
const Count = 468

// Mesh indices used for proportion measurements.
const (
	Forehead      = 10
	Chin          = 152
	LeftJaw       = 234
	RightJaw      = 454
	LeftEyeInner  = 133
	RightEyeInner = 362
	LeftNostril   = 129
	RightNostril  = 358
	MouthLeft     = 61
	MouthRight    = 291
	NoseTip       = 4
)

// RawLandmark is one detector record.
type RawLandmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Set is a normalized face mesh. It is a value type; copies never alias.
type Set [Count]r3.Vec

// At returns point i.
func (s *Set) At(i int) r3.Vec {
	return s[i]
}

// Bounds returns the axis-aligned bounding box of the set.
func (s *Set) Bounds() (lo, hi r3.Vec) {
	lo, hi = s[0], s[0]
	for _, p := range s[1:] {
		lo = r3.Vec{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = r3.Vec{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return lo, hi
}
