// Package contour defines the named 3D contour sets that make up a rendered
// head, the canonical template they are derived from, and a direct mapper
// from face-mesh landmarks onto that topology.
//
// Every transform in this module returns a new Set with exactly the same
// name to point-count mapping as Template.
package contour

import (
	"encoding/json"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// Contour is a named, ordered polyline plus links to adjacent contours.
type Contour struct {
	Name       string
	Points     []r3.Vec
	ConnectsTo []string
}

// wireContour is the JSON shape consumed by renderers.
type wireContour struct {
	Name       string       `json:"name"`
	Points     [][3]float64 `json:"points"`
	ConnectsTo []string     `json:"connects_to"`
}

// MarshalJSON encodes points as [x, y, z] triples.
func (c Contour) MarshalJSON() ([]byte, error) {
	w := wireContour{
		Name:       c.Name,
		Points:     make([][3]float64, len(c.Points)),
		ConnectsTo: c.ConnectsTo,
	}
	if w.ConnectsTo == nil {
		w.ConnectsTo = []string{}
	}
	for i, p := range c.Points {
		w.Points[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the [x, y, z] triple form.
func (c *Contour) UnmarshalJSON(data []byte) error {
	var w wireContour
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Name = w.Name
	c.ConnectsTo = w.ConnectsTo
	c.Points = make([]r3.Vec, len(w.Points))
	for i, p := range w.Points {
		c.Points[i] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	}
	return nil
}

// Clone returns a deep copy.
func (c Contour) Clone() Contour {
	return Contour{
		Name:       c.Name,
		Points:     slices.Clone(c.Points),
		ConnectsTo: slices.Clone(c.ConnectsTo),
	}
}

// Centroid returns the mean of the contour's points.
func (c Contour) Centroid() r3.Vec {
	return Centroid(c.Points)
}

// Centroid returns the mean of pts, or the origin for an empty slice.
func Centroid(pts []r3.Vec) r3.Vec {
	if len(pts) == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for _, p := range pts {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1/float64(len(pts)), sum)
}

// Set is an ordered list of contours with unique names.
type Set []Contour

// Clone returns a deep copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for i, c := range s {
		out[i] = c.Clone()
	}
	return out
}

// Lookup returns the contour with the given name.
func (s Set) Lookup(name string) (Contour, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Contour{}, false
}

// Names returns contour names in set order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// PointCount returns the total number of points across all contours.
func (s Set) PointCount() int {
	n := 0
	for _, c := range s {
		n += len(c.Points)
	}
	return n
}

// Topology returns the name to point-count mapping of s.
func (s Set) Topology() map[string]int {
	t := make(map[string]int, len(s))
	for _, c := range s {
		t[c.Name] = len(c.Points)
	}
	return t
}

// SameTopology reports a mismatch between the name to point-count mappings
// of s and other.
func (s Set) SameTopology(other Set) error {
	want := other.Topology()
	got := s.Topology()
	if len(got) != len(s) {
		return fmt.Errorf("%w: duplicate contour names", ErrTopologyMismatch)
	}
	if len(got) != len(want) {
		return fmt.Errorf("%w: %d contours, want %d", ErrTopologyMismatch, len(got), len(want))
	}
	for name, n := range want {
		m, ok := got[name]
		if !ok {
			return fmt.Errorf("%w: missing %q", ErrTopologyMismatch, name)
		}
		if m != n {
			return fmt.Errorf("%w: %q has %d points, want %d", ErrTopologyMismatch, name, m, n)
		}
	}
	return nil
}

// ValidateTemplate checks s against the canonical template topology.
func ValidateTemplate(s Set) error {
	return s.SameTopology(templateSet)
}
