package landmark

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const eps = 1e-9

func rawMesh(n int, f func(i int) RawLandmark) []RawLandmark {
	raw := make([]RawLandmark, n)
	for i := range raw {
		raw[i] = f(i)
	}
	return raw
}

func assertVec(t *testing.T, want, got r3.Vec, tol float64, msgAndArgs ...any) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol, msgAndArgs...)
	assert.InDelta(t, want.Y, got.Y, tol, msgAndArgs...)
	assert.InDelta(t, want.Z, got.Z, tol, msgAndArgs...)
}

func TestNormalizePoint(t *testing.T) {
	tests := []struct {
		name string
		in   RawLandmark
		want r3.Vec
	}{
		{"center", RawLandmark{0.5, 0.5, 0}, r3.Vec{X: 0, Y: 0, Z: 0}},
		{"top left", RawLandmark{0, 0, 0}, r3.Vec{X: -1, Y: 1, Z: 0}},
		{"bottom right", RawLandmark{1, 1, 0}, r3.Vec{X: 1, Y: -1, Z: 0}},
		{"depth doubled", RawLandmark{0.5, 0.5, -0.03}, r3.Vec{X: 0, Y: 0, Z: -0.06}},
		{"quarter", RawLandmark{0.25, 0.75, 0.1}, r3.Vec{X: -0.5, Y: -0.5, Z: 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertVec(t, tt.want, NormalizePoint(tt.in), eps)
		})
	}
}

func TestNormalizeRejectsShortDetections(t *testing.T) {
	_, err := Normalize(rawMesh(Count-1, func(int) RawLandmark { return RawLandmark{} }))
	assert.ErrorIs(t, err, ErrInsufficientLandmarks)

	_, err = Normalize([]RawLandmark{})
	assert.ErrorIs(t, err, ErrInsufficientLandmarks)
}

func TestNormalizeNilIsNoFace(t *testing.T) {
	_, err := Normalize(nil)
	assert.ErrorIs(t, err, ErrNoFace)
}

func TestNormalizeTruncatesRefinedMesh(t *testing.T) {
	raw := rawMesh(478, func(i int) RawLandmark {
		return RawLandmark{X: float64(i) / 1000, Y: 0.5, Z: 0}
	})
	s, err := Normalize(raw)
	require.NoError(t, err)
	assertVec(t, NormalizePoint(raw[Count-1]), s[Count-1], eps)
}

func TestAverageEmpty(t *testing.T) {
	_, err := Average(nil)
	assert.ErrorIs(t, err, ErrNoFace)
}

func TestAverageDuplicateIsIdentity(t *testing.T) {
	s, err := Normalize(rawMesh(Count, func(i int) RawLandmark {
		f := float64(i)
		return RawLandmark{X: math.Mod(f*0.37, 1), Y: math.Mod(f*0.61, 1), Z: math.Sin(f) * 0.05}
	}))
	require.NoError(t, err)

	for _, n := range []int{2, 3, 5} {
		sets := make([]Set, n)
		for i := range sets {
			sets[i] = s
		}
		avg, err := Average(sets)
		require.NoError(t, err)
		for i := range avg {
			assertVec(t, s[i], avg[i], 1e-12, "n=%d point %d", n, i)
		}
	}
}

func TestAverageIsComponentwiseMean(t *testing.T) {
	var a, b Set
	for i := range a {
		a[i] = r3.Vec{X: 1, Y: 2, Z: 3}
		b[i] = r3.Vec{X: 3, Y: -2, Z: 0}
	}
	avg, err := Average([]Set{a, b})
	require.NoError(t, err)

	want := r3.Vec{X: 2, Y: 0, Z: 1.5}
	for i := range avg {
		assertVec(t, want, avg[i], eps, "point %d", i)
	}
}

func TestAverageDoesNotAliasInput(t *testing.T) {
	var a Set
	out, err := Average([]Set{a})
	require.NoError(t, err)
	out[0] = r3.Vec{X: 9}
	assert.Zero(t, a[0].X)
}

func TestBounds(t *testing.T) {
	var s Set
	s[3] = r3.Vec{X: -1, Y: 2, Z: 0.5}
	s[7] = r3.Vec{X: 1, Y: -2, Z: -0.5}
	lo, hi := s.Bounds()
	assertVec(t, r3.Vec{X: -1, Y: -2, Z: -0.5}, lo, eps)
	assertVec(t, r3.Vec{X: 1, Y: 2, Z: 0.5}, hi, eps)
}
