package contour

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Region is one entry of the canonical head definition.
type Region struct {
	Name       string
	Category   Category
	ConnectsTo []string

	// Points is the template geometry, in normalized face space.
	Points []r3.Vec

	// Landmarks lists the mesh indices gathered by Map, one per point.
	Landmarks []int

	// Offset is added to gathered landmarks for regions the detector does
	// not cover directly (hair, ears, temples, head shell, neck).
	Offset r3.Vec
}

// pts groups a flat x, y, z list into vectors.
func pts(xyz ...float64) []r3.Vec {
	if len(xyz)%3 != 0 {
		panic("contour: coordinate list is not a multiple of 3")
	}
	out := make([]r3.Vec, 0, len(xyz)/3)
	for i := 0; i < len(xyz); i += 3 {
		out = append(out, r3.Vec{X: xyz[i], Y: xyz[i+1], Z: xyz[i+2]})
	}
	return out
}

var regions = []Region{
	{
		Name: "jawline", Category: Face,
		ConnectsTo: []string{"left_cheek", "chin", "right_cheek", "left_temple", "right_temple"},
		Points: pts(
			-0.5, -0.35, 0.08, -0.48, -0.5, 0.12, -0.42, -0.58, 0.14,
			-0.32, -0.63, 0.16, -0.18, -0.66, 0.18, 0, -0.68, 0.19,
			0.18, -0.66, 0.18, 0.32, -0.63, 0.16, 0.42, -0.58, 0.14,
			0.48, -0.5, 0.12, 0.5, -0.35, 0.08,
		),
		Landmarks: []int{234, 132, 172, 150, 176, 152, 400, 379, 397, 361, 454},
	},
	{
		Name: "left_cheek", Category: Face,
		ConnectsTo: []string{"jawline", "left_eye_outline", "nose_bridge", "left_temple"},
		Points: pts(
			-0.5, -0.28, 0.08, -0.56, -0.18, 0.2, -0.6, -0.06, 0.25,
			-0.58, 0.06, 0.26, -0.54, 0.17, 0.24, -0.48, 0.25, 0.2,
		),
		Landmarks: []int{50, 101, 118, 117, 116, 123},
	},
	{
		Name: "right_cheek", Category: Face,
		ConnectsTo: []string{"jawline", "right_eye_outline", "nose_bridge", "right_temple"},
		Points: pts(
			0.5, -0.28, 0.08, 0.56, -0.18, 0.2, 0.6, -0.06, 0.25,
			0.58, 0.06, 0.26, 0.54, 0.17, 0.24, 0.48, 0.25, 0.2,
		),
		Landmarks: []int{280, 330, 347, 346, 345, 352},
	},
	{
		Name: "forehead", Category: Face,
		ConnectsTo: []string{"left_eyebrow", "right_eyebrow", "top_of_head"},
		Points: pts(
			-0.45, 0.42, 0.18, -0.33, 0.52, 0.2, -0.18, 0.58, 0.21,
			0, 0.6, 0.22, 0.18, 0.58, 0.21, 0.33, 0.52, 0.2, 0.45, 0.42, 0.18,
		),
		Landmarks: []int{103, 67, 109, 10, 338, 297, 332},
	},
	{
		Name: "left_eye_outline", Category: Eye,
		ConnectsTo: []string{"left_eyebrow", "nose_bridge", "left_cheek"},
		Points: pts(
			-0.35, 0.28, 0.28, -0.29, 0.32, 0.32, -0.22, 0.33, 0.34,
			-0.15, 0.32, 0.33, -0.12, 0.28, 0.31, -0.14, 0.24, 0.29,
			-0.2, 0.23, 0.28, -0.27, 0.24, 0.28, -0.33, 0.26, 0.29,
		),
		Landmarks: []int{33, 161, 160, 159, 158, 133, 153, 145, 163},
	},
	{
		Name: "right_eye_outline", Category: Eye,
		ConnectsTo: []string{"right_eyebrow", "nose_bridge", "right_cheek"},
		Points: pts(
			0.12, 0.28, 0.31, 0.15, 0.32, 0.33, 0.22, 0.33, 0.34,
			0.29, 0.32, 0.32, 0.35, 0.28, 0.28, 0.33, 0.26, 0.29,
			0.27, 0.24, 0.28, 0.2, 0.23, 0.28, 0.14, 0.24, 0.29,
		),
		Landmarks: []int{362, 384, 385, 386, 387, 263, 373, 374, 380},
	},
	{
		Name: "nose_bridge", Category: Nose,
		ConnectsTo: []string{"left_eye_outline", "right_eye_outline", "nose_tip"},
		Points: pts(
			0, 0.18, 0.38, 0, 0.1, 0.42, 0, 0.02, 0.45,
			0, -0.05, 0.47, 0, -0.1, 0.48,
		),
		Landmarks: []int{168, 6, 197, 195, 5},
	},
	{
		Name: "nose_tip", Category: Nose,
		ConnectsTo: []string{"nose_bridge", "mouth_outline"},
		Points: pts(
			-0.1, -0.12, 0.46, -0.06, -0.14, 0.48, 0, -0.15, 0.5,
			0.06, -0.14, 0.48, 0.1, -0.12, 0.46,
		),
		Landmarks: []int{129, 98, 4, 327, 358},
	},
	{
		Name: "mouth_outline", Category: Mouth,
		ConnectsTo: []string{"nose_tip", "chin", "left_cheek", "right_cheek", "mouth_inner"},
		Points: pts(
			-0.28, -0.38, 0.35, -0.2, -0.42, 0.38, -0.1, -0.44, 0.39,
			0, -0.45, 0.4, 0.1, -0.44, 0.39, 0.2, -0.42, 0.38,
			0.28, -0.38, 0.35, 0.22, -0.34, 0.37, 0.12, -0.32, 0.38,
			0, -0.31, 0.39, -0.12, -0.32, 0.38, -0.22, -0.34, 0.37,
		),
		Landmarks: []int{61, 40, 37, 0, 267, 270, 291, 321, 314, 17, 84, 91},
	},
	{
		Name: "mouth_inner", Category: Mouth,
		ConnectsTo: []string{"mouth_outline"},
		Points: pts(
			-0.18, -0.38, 0.37, -0.1, -0.39, 0.38, 0, -0.395, 0.385,
			0.1, -0.39, 0.38, 0.18, -0.38, 0.37, 0.1, -0.37, 0.38,
			0, -0.365, 0.385, -0.1, -0.37, 0.38,
		),
		Landmarks: []int{78, 81, 13, 311, 308, 402, 14, 178},
	},
	{
		Name: "left_eyebrow", Category: Eyebrow,
		ConnectsTo: []string{"forehead", "left_eye_outline"},
		Points: pts(
			-0.38, 0.4, 0.28, -0.32, 0.44, 0.3, -0.25, 0.46, 0.31,
			-0.18, 0.45, 0.31, -0.12, 0.42, 0.3, -0.08, 0.38, 0.29,
		),
		Landmarks: []int{70, 63, 105, 66, 107, 55},
	},
	{
		Name: "right_eyebrow", Category: Eyebrow,
		ConnectsTo: []string{"forehead", "right_eye_outline"},
		Points: pts(
			0.08, 0.38, 0.29, 0.12, 0.42, 0.3, 0.18, 0.45, 0.31,
			0.25, 0.46, 0.31, 0.32, 0.44, 0.3, 0.38, 0.4, 0.28,
		),
		Landmarks: []int{285, 336, 296, 334, 293, 300},
	},
	{
		Name: "chin", Category: Face,
		ConnectsTo: []string{"jawline", "mouth_outline"},
		Points: pts(
			-0.15, -0.66, 0.18, -0.08, -0.69, 0.19, 0, -0.7, 0.2,
			0.08, -0.69, 0.19, 0.15, -0.66, 0.18,
		),
		Landmarks: []int{176, 148, 152, 377, 400},
	},
	{
		Name: "hair_front", Category: Hair,
		ConnectsTo: []string{"forehead", "hair_left_side", "hair_right_side", "hair_top"},
		Points: pts(
			-0.48, 0.52, 0.18, -0.35, 0.59, 0.2, -0.2, 0.63, 0.22,
			-0.05, 0.64, 0.23, 0.1, 0.63, 0.22, 0.25, 0.6, 0.2,
			0.4, 0.54, 0.18, 0.5, 0.46, 0.15,
		),
		Landmarks: []int{21, 54, 103, 109, 338, 332, 284, 251},
		Offset:    r3.Vec{X: 0, Y: 0.12, Z: -0.02},
	},
	{
		Name: "hair_left_side", Category: Hair,
		ConnectsTo: []string{"hair_front", "left_temple", "hair_back_left", "left_ear"},
		Points: pts(
			-0.48, 0.52, 0.18, -0.58, 0.42, 0.12, -0.66, 0.28, 0.04,
			-0.7, 0.12, -0.04, -0.72, -0.04, -0.1, -0.7, -0.18, -0.14,
			-0.65, -0.3, -0.16,
		),
		Landmarks: []int{21, 162, 127, 234, 93, 132, 58},
		Offset:    r3.Vec{X: -0.12, Y: 0, Z: -0.15},
	},
	{
		Name: "hair_right_side", Category: Hair,
		ConnectsTo: []string{"hair_front", "right_temple", "hair_back_right", "right_ear"},
		Points: pts(
			0.5, 0.46, 0.15, 0.6, 0.38, 0.1, 0.68, 0.24, 0.02,
			0.72, 0.08, -0.06, 0.74, -0.06, -0.11, 0.72, -0.2, -0.15,
			0.67, -0.32, -0.17,
		),
		Landmarks: []int{251, 389, 356, 454, 323, 361, 288},
		Offset:    r3.Vec{X: 0.12, Y: 0, Z: -0.15},
	},
	{
		Name: "hair_top", Category: Hair,
		ConnectsTo: []string{"hair_front", "top_of_head"},
		Points: pts(
			-0.42, 0.68, 0.1, -0.28, 0.75, 0.04, -0.12, 0.8, -0.02,
			0, 0.82, -0.05, 0.12, 0.8, -0.02, 0.28, 0.75, 0.04, 0.42, 0.68, 0.1,
		),
		Landmarks: []int{54, 103, 67, 10, 297, 332, 284},
		Offset:    r3.Vec{X: 0, Y: 0.28, Z: -0.2},
	},
	{
		Name: "hair_back_left", Category: Hair,
		ConnectsTo: []string{"hair_left_side", "back_of_head"},
		Points: pts(
			-0.65, -0.3, -0.16, -0.68, -0.42, -0.24, -0.66, -0.52, -0.3,
			-0.6, -0.6, -0.34, -0.5, -0.66, -0.36, -0.36, -0.7, -0.38,
			-0.2, -0.72, -0.39,
		),
		Landmarks: []int{93, 132, 58, 172, 136, 150, 149},
		Offset:    r3.Vec{X: -0.1, Y: 0, Z: -0.55},
	},
	{
		Name: "hair_back_right", Category: Hair,
		ConnectsTo: []string{"hair_right_side", "back_of_head"},
		Points: pts(
			0.67, -0.32, -0.17, 0.7, -0.44, -0.25, 0.68, -0.54, -0.31,
			0.62, -0.62, -0.35, 0.52, -0.68, -0.37, 0.38, -0.72, -0.39,
			0.22, -0.74, -0.4,
		),
		Landmarks: []int{323, 361, 288, 397, 365, 379, 378},
		Offset:    r3.Vec{X: 0.1, Y: 0, Z: -0.55},
	},
	{
		Name: "left_temple", Category: Face,
		ConnectsTo: []string{"jawline", "left_cheek", "top_of_head", "hair_left_side"},
		Points: pts(
			-0.42, -0.48, 0.08, -0.48, -0.35, 0.02, -0.52, -0.18, -0.08,
			-0.56, 0, -0.14, -0.54, 0.2, -0.12, -0.5, 0.38, -0.05,
			-0.44, 0.5, 0.02,
		),
		Landmarks: []int{172, 58, 132, 93, 234, 127, 162},
		Offset:    r3.Vec{X: -0.02, Y: 0, Z: -0.2},
	},
	{
		Name: "right_temple", Category: Face,
		ConnectsTo: []string{"jawline", "right_cheek", "top_of_head", "hair_right_side"},
		Points: pts(
			0.42, -0.48, 0.08, 0.48, -0.35, 0.02, 0.52, -0.18, -0.08,
			0.56, 0, -0.14, 0.54, 0.2, -0.12, 0.5, 0.38, -0.05,
			0.44, 0.5, 0.02,
		),
		Landmarks: []int{397, 288, 361, 323, 454, 356, 389},
		Offset:    r3.Vec{X: 0.02, Y: 0, Z: -0.2},
	},
	{
		Name: "back_of_head", Category: Face,
		ConnectsTo: []string{"hair_back_left", "hair_back_right", "top_of_head"},
		Points: pts(
			-0.25, 0.75, -0.35, 0, 0.82, -0.38, 0.25, 0.75, -0.35,
			0.56, 0.35, -0.3, 0.6, 0, -0.32, 0.58, -0.3, -0.35,
			0.42, -0.55, -0.38, 0.22, -0.7, -0.4, 0, -0.78, -0.42,
			-0.22, -0.7, -0.4, -0.42, -0.55, -0.38,
			-0.58, -0.3, -0.35, -0.6, 0, -0.32, -0.56, 0.35, -0.3,
		),
		Landmarks: []int{10, 297, 284, 389, 454, 361, 397, 152, 172, 132, 234, 162, 54, 67},
		Offset:    r3.Vec{X: 0, Y: 0, Z: -0.7},
	},
	{
		Name: "top_of_head", Category: Face,
		ConnectsTo: []string{"forehead", "left_temple", "right_temple", "back_of_head", "hair_top"},
		Points: pts(
			-0.38, 0.75, 0.05, -0.22, 0.84, -0.02, 0, 0.88, -0.08,
			0.22, 0.84, -0.02, 0.38, 0.75, 0.05, 0.5, 0.6, -0.1,
			0.25, 0.75, -0.35, 0, 0.82, -0.38, -0.25, 0.75, -0.35,
			-0.5, 0.6, -0.1,
		),
		Landmarks: []int{109, 67, 103, 54, 21, 251, 284, 332, 297, 338},
		Offset:    r3.Vec{X: 0, Y: 0.25, Z: -0.3},
	},
	{
		Name: "left_ear", Category: Ear,
		ConnectsTo: []string{"left_temple", "left_cheek", "hair_left_side"},
		Points: pts(
			-0.62, 0.15, -0.08, -0.65, 0.08, -0.05, -0.67, 0, -0.02,
			-0.68, -0.08, 0, -0.66, -0.16, 0.02,
			-0.64, -0.18, 0.04, -0.61, -0.12, 0.05, -0.6, -0.05, 0.06,
			-0.61, 0.02, 0.05, -0.63, 0.1, 0.02,
		),
		Landmarks: []int{127, 234, 93, 132, 58, 177, 137, 227, 34, 139},
		Offset:    r3.Vec{X: -0.1, Y: 0, Z: -0.12},
	},
	{
		Name: "right_ear", Category: Ear,
		ConnectsTo: []string{"right_temple", "right_cheek", "hair_right_side"},
		Points: pts(
			0.62, 0.15, -0.08, 0.65, 0.08, -0.05, 0.67, 0, -0.02,
			0.68, -0.08, 0, 0.66, -0.16, 0.02,
			0.64, -0.18, 0.04, 0.61, -0.12, 0.05, 0.6, -0.05, 0.06,
			0.61, 0.02, 0.05, 0.63, 0.1, 0.02,
		),
		Landmarks: []int{356, 454, 323, 361, 288, 401, 366, 447, 264, 368},
		Offset:    r3.Vec{X: 0.1, Y: 0, Z: -0.12},
	},
	{
		Name: "neck_front", Category: Neck,
		ConnectsTo: []string{"chin", "jawline", "neck_left", "neck_right"},
		Points: pts(
			-0.25, -0.7, 0.15, -0.18, -0.78, 0.16, -0.1, -0.84, 0.17,
			0, -0.86, 0.18, 0.1, -0.84, 0.17, 0.18, -0.78, 0.16, 0.25, -0.7, 0.15,
		),
		Landmarks: []int{136, 150, 149, 152, 378, 379, 365},
		Offset:    r3.Vec{X: 0, Y: -0.18, Z: -0.05},
	},
	{
		Name: "neck_left", Category: Neck,
		ConnectsTo: []string{"neck_front", "jawline", "neck_back"},
		Points: pts(
			-0.25, -0.7, 0.15, -0.32, -0.72, 0.08, -0.38, -0.74, 0,
			-0.42, -0.76, -0.08, -0.44, -0.78, -0.15,
		),
		Landmarks: []int{234, 93, 132, 58, 172},
		Offset:    r3.Vec{X: 0.06, Y: -0.3, Z: -0.15},
	},
	{
		Name: "neck_right", Category: Neck,
		ConnectsTo: []string{"neck_front", "jawline", "neck_back"},
		Points: pts(
			0.25, -0.7, 0.15, 0.32, -0.72, 0.08, 0.38, -0.74, 0,
			0.42, -0.76, -0.08, 0.44, -0.78, -0.15,
		),
		Landmarks: []int{454, 323, 361, 288, 397},
		Offset:    r3.Vec{X: -0.06, Y: -0.3, Z: -0.15},
	},
	{
		Name: "neck_back", Category: Neck,
		ConnectsTo: []string{"neck_left", "neck_right", "back_of_head"},
		Points: pts(
			-0.44, -0.78, -0.15, -0.36, -0.8, -0.22, -0.24, -0.82, -0.26,
			-0.12, -0.84, -0.28, 0, -0.85, -0.29, 0.12, -0.84, -0.28,
			0.24, -0.82, -0.26, 0.36, -0.8, -0.22, 0.44, -0.78, -0.15,
		),
		Landmarks: []int{172, 136, 150, 149, 152, 378, 379, 365, 397},
		Offset:    r3.Vec{X: 0, Y: -0.22, Z: -0.45},
	},
}

var (
	regionIndex = func() map[string]int {
		m := make(map[string]int, len(regions))
		for i, r := range regions {
			m[r.Name] = i
		}
		return m
	}()

	templateSet = func() Set {
		s := make(Set, len(regions))
		for i, r := range regions {
			s[i] = Contour{Name: r.Name, Points: r.Points, ConnectsTo: r.ConnectsTo}
		}
		return s
	}()
)

// Template returns a fresh copy of the canonical head. Callers may modify
// the result freely.
func Template() Set {
	return templateSet.Clone()
}

// Regions returns a copy of the canonical region table.
func Regions() []Region {
	out := make([]Region, len(regions))
	for i, r := range regions {
		out[i] = r
		out[i].Points = append([]r3.Vec(nil), r.Points...)
		out[i].Landmarks = append([]int(nil), r.Landmarks...)
		out[i].ConnectsTo = append([]string(nil), r.ConnectsTo...)
	}
	return out
}
