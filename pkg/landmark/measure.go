package landmark

import "math"

// Measurements are scalar proportions taken from one face mesh.
type Measurements struct {
	FaceWidth   float64 `json:"face_width"`
	FaceHeight  float64 `json:"face_height"`
	EyeDistance float64 `json:"eye_distance"`
	NoseWidth   float64 `json:"nose_width"`
	MouthWidth  float64 `json:"mouth_width"`
}

// Measure computes Measurements from a normalized set. Widths are horizontal
// distances, height is vertical forehead to chin.
func Measure(s *Set) Measurements {
	return Measurements{
		FaceWidth:   math.Abs(s[RightJaw].X - s[LeftJaw].X),
		FaceHeight:  math.Abs(s[Forehead].Y - s[Chin].Y),
		EyeDistance: math.Abs(s[RightEyeInner].X - s[LeftEyeInner].X),
		NoseWidth:   math.Abs(s[RightNostril].X - s[LeftNostril].X),
		MouthWidth:  math.Abs(s[MouthRight].X - s[MouthLeft].X),
	}
}

// Aspect is face width over face height.
func (m Measurements) Aspect() float64 { return m.FaceWidth / m.FaceHeight }

// EyeRatio is inner-eye spacing over face width.
func (m Measurements) EyeRatio() float64 { return m.EyeDistance / m.FaceWidth }

// NoseRatio is nostril width over face width.
func (m Measurements) NoseRatio() float64 { return m.NoseWidth / m.FaceWidth }

// MouthRatio is mouth width over face width.
func (m Measurements) MouthRatio() float64 { return m.MouthWidth / m.FaceWidth }

// Ratios returns aspect, eye, nose and mouth ratios in that order.
// Non-finite ratios from degenerate detections are reported as 0.
func (m Measurements) Ratios() [4]float64 {
	r := [4]float64{m.Aspect(), m.EyeRatio(), m.NoseRatio(), m.MouthRatio()}
	for i, v := range r {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			r[i] = 0
		}
	}
	return r
}
