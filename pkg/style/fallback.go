package style

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/teslashibe/facewave/pkg/landmark"
)

// Preset is a named fallback style.
type Preset struct {
	Name   string
	Params Parameters
}

// Presets span short and neat through tall and spiky. The hash bucket
// indexes this table, so its order is part of the stored-result contract.
var Presets = [6]Preset{
	{"short-neat", Parameters{Height: 0.7, Width: 0.9, Spikiness: -0.2, Density: 0.9}},
	{"short-textured", Parameters{Height: 0.85, Width: 0.95, Spikiness: 0.15, Density: 1.0}},
	{"medium-classic", Parameters{Height: 1.0, Width: 1.0, Spikiness: 0, Density: 1.0}},
	{"medium-volume", Parameters{Height: 1.15, Width: 1.15, Spikiness: 0.1, Density: 1.15}},
	{"long-flowing", Parameters{Height: 1.35, Width: 1.1, Spikiness: -0.3, Density: 1.1}},
	{"tall-spiky", Parameters{Height: 1.5, Width: 1.05, Spikiness: 0.55, Density: 1.2}},
}

// quantum is the ratio resolution hashed by Bucket. Faces whose ratios
// agree to four decimals share a bucket.
const quantum = 1e-4

// Bucket hashes the measured ratios into a preset index.
func Bucket(m landmark.Measurements) int {
	var buf [8 * 4]byte
	for i, r := range m.Ratios() {
		q := int64(math.Round(r / quantum))
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(q))
	}
	return int(xxhash.Sum64(buf[:]) % uint64(len(Presets)))
}

// Fallback returns the preset selected by Bucket and its index.
func Fallback(m landmark.Measurements) (Parameters, int) {
	b := Bucket(m)
	return Presets[b].Params.Clamp(), b
}

// Synthesize uses descriptors when present and the measurement hash otherwise.
func Synthesize(d *Descriptors, m landmark.Measurements) (Parameters, Mode) {
	if d == nil || d.Empty() {
		p, _ := Fallback(m)
		return p, ModeFallback
	}
	return FromDescriptors(*d), ModeDescriptor
}
