package contour

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/facewave/pkg/landmark"
)

func TestTemplateShape(t *testing.T) {
	tmpl := Template()
	require.Len(t, tmpl, 29)

	seen := map[string]bool{}
	for _, c := range tmpl {
		assert.False(t, seen[c.Name], "duplicate contour %q", c.Name)
		seen[c.Name] = true
		assert.NotEmpty(t, c.Points, "%s has no points", c.Name)
	}
	for _, c := range tmpl {
		for _, n := range c.ConnectsTo {
			assert.True(t, seen[n], "%s connects to unknown %q", c.Name, n)
		}
	}
}

func TestTemplatePointCounts(t *testing.T) {
	want := map[string]int{
		"jawline": 11, "left_cheek": 6, "right_cheek": 6, "forehead": 7,
		"left_eye_outline": 9, "right_eye_outline": 9, "nose_bridge": 5, "nose_tip": 5,
		"mouth_outline": 12, "mouth_inner": 8, "left_eyebrow": 6, "right_eyebrow": 6,
		"chin": 5, "hair_front": 8, "hair_left_side": 7, "hair_right_side": 7,
		"hair_top": 7, "hair_back_left": 7, "hair_back_right": 7,
		"left_temple": 7, "right_temple": 7, "back_of_head": 14, "top_of_head": 10,
		"left_ear": 10, "right_ear": 10, "neck_front": 7, "neck_left": 5,
		"neck_right": 5, "neck_back": 9,
	}
	assert.Equal(t, want, Template().Topology())
}

func TestTemplateReturnsIndependentCopies(t *testing.T) {
	a := Template()
	a[0].Points[0] = r3.Vec{X: 42}
	a[0].ConnectsTo[0] = "nowhere"

	b := Template()
	assert.NotEqual(t, 42.0, b[0].Points[0].X)
	assert.NotEqual(t, "nowhere", b[0].ConnectsTo[0])
}

func TestRegionsLandmarkTables(t *testing.T) {
	for _, r := range Regions() {
		t.Run(r.Name, func(t *testing.T) {
			assert.Len(t, r.Landmarks, len(r.Points))
			for _, idx := range r.Landmarks {
				assert.GreaterOrEqual(t, idx, 0)
				assert.Less(t, idx, landmark.Count)
			}
		})
	}
}

func TestOffsetsOnlyOnSynthesizedRegions(t *testing.T) {
	direct := map[Category]bool{Eye: true, Eyebrow: true, Nose: true, Mouth: true}
	for _, r := range Regions() {
		if direct[r.Category] {
			assert.Equal(t, r3.Vec{}, r.Offset, "%s should map directly", r.Name)
		}
		if r.Category == Hair || r.Category == Ear || r.Category == Neck {
			assert.NotEqual(t, r3.Vec{}, r.Offset, "%s needs an offset", r.Name)
		}
	}
}

func TestMapPreservesTopology(t *testing.T) {
	var set landmark.Set
	for i := range set {
		set[i] = r3.Vec{X: float64(i) / landmark.Count, Y: -float64(i) / landmark.Count, Z: 0.01}
	}
	mapped := Map(&set)
	require.NoError(t, ValidateTemplate(mapped))

	for _, r := range Regions() {
		c, ok := mapped.Lookup(r.Name)
		require.True(t, ok)
		for j, idx := range r.Landmarks {
			want := r3.Add(set[idx], r.Offset)
			assert.InDelta(t, want.X, c.Points[j].X, 1e-12)
			assert.InDelta(t, want.Y, c.Points[j].Y, 1e-12)
			assert.InDelta(t, want.Z, c.Points[j].Z, 1e-12)
		}
	}
}

func TestSameTopology(t *testing.T) {
	tmpl := Template()

	short := tmpl.Clone()
	short[2].Points = short[2].Points[:3]
	err := short.SameTopology(tmpl)
	require.True(t, errors.Is(err, ErrTopologyMismatch))
	assert.Contains(t, err.Error(), short[2].Name)

	missing := tmpl.Clone()[1:]
	require.ErrorIs(t, missing.SameTopology(tmpl), ErrTopologyMismatch)

	dup := tmpl.Clone()
	dup[1].Name = dup[0].Name
	require.ErrorIs(t, dup.SameTopology(tmpl), ErrTopologyMismatch)

	require.NoError(t, tmpl.Clone().SameTopology(tmpl))
}

func TestCategoryOf(t *testing.T) {
	tests := map[string]Category{
		"jawline":          Face,
		"left_temple":      Face,
		"neck_back":        Neck,
		"left_eye_outline": Eye,
		"right_eyebrow":    Eyebrow,
		"nose_tip":         Nose,
		"mouth_inner":      Mouth,
		"hair_top":         Hair,
		"right_ear":        Ear,
		"antenna":          Face,
	}
	for name, want := range tests {
		assert.Equal(t, want, CategoryOf(name), name)
	}
	assert.Equal(t, "hair", Hair.String())
}

func TestContourJSON(t *testing.T) {
	c := Contour{
		Name:   "nose_tip",
		Points: []r3.Vec{{X: 0.1, Y: -0.2, Z: 0.3}},
	}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"nose_tip","points":[[0.1,-0.2,0.3]],"connects_to":[]}`, string(data))

	var back Contour
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c.Points, back.Points)
}

func TestCentroid(t *testing.T) {
	assert.Equal(t, r3.Vec{}, Centroid(nil))
	got := Centroid([]r3.Vec{{X: 1, Y: 1}, {X: -1, Y: 3, Z: 2}})
	assert.Equal(t, r3.Vec{X: 0, Y: 2, Z: 1}, got)
}
