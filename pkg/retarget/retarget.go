// Package retarget scales the canonical head template to a measured face.
//
// Each contour category is scaled horizontally by the factor for its
// feature, depth is compressed for every contour, and hair additionally
// takes its shape from style parameters.
package retarget

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/facewave/pkg/contour"
	"github.com/teslashibe/facewave/pkg/landmark"
	"github.com/teslashibe/facewave/pkg/style"
)

// Result is the output of Retarget.
type Result struct {
	Contours contour.Set
	// Raw factors before clamping, for diagnostics.
	Raw Factors
	// Applied factors, always inside the clamp range.
	Applied Factors
}

// Retarget returns a new contour set derived from tmpl. tmpl must have the
// canonical template topology; it is never modified.
func Retarget(tmpl contour.Set, m landmark.Measurements, params style.Parameters, cfg Config) (*Result, error) {
	if err := contour.ValidateTemplate(tmpl); err != nil {
		return nil, fmt.Errorf("retarget: %w", err)
	}

	raw, f := ComputeFactors(m, cfg)
	params = params.Clamp()

	out := make(contour.Set, len(tmpl))
	for i, c := range tmpl {
		cat := contour.CategoryOf(c.Name)
		points := make([]r3.Vec, len(c.Points))
		for j, p := range c.Points {
			q := p
			switch cat {
			case contour.Eye, contour.Eyebrow:
				q.X *= f.Eye
			case contour.Nose:
				q.X *= f.Nose
			case contour.Mouth:
				q.X *= f.Mouth
			case contour.Hair:
				q = styleHair(p, j, f.FaceWidth, params, cfg.CrownThreshold)
			default:
				q.X *= f.FaceWidth
			}
			q.Z *= cfg.DepthCompression
			points[j] = q
		}
		out[i] = contour.Contour{
			Name:       c.Name,
			Points:     points,
			ConnectsTo: append([]string(nil), c.ConnectsTo...),
		}
	}

	return &Result{Contours: out, Raw: raw, Applied: f}, nil
}

// spike alternates full and partial lift along a crown contour.
func spike(i int) float64 {
	if i%2 == 1 {
		return 1
	}
	return 0.35
}

// styleHair widens every hair point and, above the crown threshold,
// stretches it away from the threshold line. Points at the threshold do
// not move vertically, so the seam with the temples stays closed.
func styleHair(p r3.Vec, i int, faceWidth float64, params style.Parameters, crown float64) r3.Vec {
	q := p
	q.X *= params.Width * faceWidth
	if p.Y > crown {
		lift := params.Height * (1 + params.Spikiness*spike(i))
		q.Y = crown + (p.Y-crown)*lift
	}
	return q
}
