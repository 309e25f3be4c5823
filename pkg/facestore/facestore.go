// Package facestore persists built contour sets so render clients can
// reload a face without recapturing it.
package facestore

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/teslashibe/facewave/pkg/contour"
	"github.com/teslashibe/facewave/pkg/landmark"
	"github.com/teslashibe/facewave/pkg/pipeline"
	"github.com/teslashibe/facewave/pkg/style"
)

// ErrNotFound is returned when no record has the requested ID.
var ErrNotFound = errors.New("face not found")

// Record is one stored face.
type Record struct {
	ID           string                `json:"id"`
	Name         string                `json:"name,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	Source       pipeline.Source       `json:"source"`
	Contours     contour.Set           `json:"contours"`
	Measurements landmark.Measurements `json:"measurements"`
	Style        style.Parameters      `json:"style"`
	StyleMode    style.Mode            `json:"style_mode"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	if r.Contours != nil {
		c.Contours = r.Contours.Clone()
	}
	return &c
}

// FromResult builds an unsaved record from a pipeline result.
func FromResult(name string, res *pipeline.Result) *Record {
	return &Record{
		Name:         name,
		Source:       res.Source,
		Contours:     res.Contours,
		Measurements: res.Measurements,
		Style:        res.Style,
		StyleMode:    res.StyleMode,
	}
}

// Store defines storage operations for face records.
type Store interface {
	// Save creates or replaces a record. An empty ID is generated and
	// CreatedAt is set when zero.
	Save(ctx context.Context, r *Record) error

	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns all records, newest first.
	List(ctx context.Context) ([]*Record, error)

	// Delete removes a record by ID.
	Delete(ctx context.Context, id string) error

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Match is a record and its proportion distance from a query.
type Match struct {
	Record   *Record `json:"record"`
	Distance float64 `json:"distance"`
}

// SimilarityStore finds faces with similar proportions.
type SimilarityStore interface {
	Store

	// Similar returns up to k records ordered by ascending distance between
	// their proportion vectors and m's.
	Similar(ctx context.Context, m landmark.Measurements, k int) ([]Match, error)
}

// Vector is the proportion vector records are compared by: aspect and the
// eye, nose and mouth ratios.
func Vector(m landmark.Measurements) []float32 {
	r := m.Ratios()
	return []float32{float32(r[0]), float32(r[1]), float32(r[2]), float32(r[3])}
}

// Distance is the Euclidean distance between two proportion vectors.
func Distance(a, b []float32) float64 {
	var sum float64
	for i := range min(len(a), len(b)) {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
