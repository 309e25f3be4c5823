package retarget

import (
	"math"

	"github.com/teslashibe/facewave/pkg/landmark"
)

// Factors are the per-feature horizontal scale factors.
type Factors struct {
	FaceWidth float64 `json:"face_width"`
	Eye       float64 `json:"eye"`
	Nose      float64 `json:"nose"`
	Mouth     float64 `json:"mouth"`
}

type namedFactor struct {
	name  string
	value float64
}

func (f Factors) named() [4]namedFactor {
	return [4]namedFactor{
		{"face_width", f.FaceWidth},
		{"eye", f.Eye},
		{"nose", f.Nose},
		{"mouth", f.Mouth},
	}
}

// ComputeFactors derives raw scale factors from m and their clamped
// counterparts. Only the clamped factors are ever applied.
func ComputeFactors(m landmark.Measurements, cfg Config) (raw, clamped Factors) {
	ref := cfg.References
	raw = Factors{
		FaceWidth: m.Aspect() / ref.Aspect,
		Eye:       m.EyeRatio() / ref.Eye,
		Nose:      m.NoseRatio() / ref.Nose,
		Mouth:     m.MouthRatio() / ref.Mouth,
	}
	clamped = Factors{
		FaceWidth: ClampFactor(raw.FaceWidth, cfg.ClampMin, cfg.ClampMax),
		Eye:       ClampFactor(raw.Eye, cfg.ClampMin, cfg.ClampMax),
		Nose:      ClampFactor(raw.Nose, cfg.ClampMin, cfg.ClampMax),
		Mouth:     ClampFactor(raw.Mouth, cfg.ClampMin, cfg.ClampMax),
	}
	return raw, clamped
}

// ClampFactor limits v to [lo, hi]. NaN, which a zero-width detection
// produces, maps to 1 pulled into range.
func ClampFactor(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		v = 1
	}
	return math.Max(lo, math.Min(hi, v))
}

// ClampedNames lists the factors whose raw value fell outside the range.
func ClampedNames(raw, clamped Factors) []string {
	var names []string
	r, c := raw.named(), clamped.named()
	for i := range r {
		if r[i].value != c[i].value {
			names = append(names, r[i].name)
		}
	}
	return names
}
