package emotions

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Registry maps tags to presets. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	presets map[Tag]Preset
}

// NewRegistry creates a registry holding DefaultPresets.
func NewRegistry() *Registry {
	r := &Registry{presets: make(map[Tag]Preset, len(DefaultPresets))}
	for tag, p := range DefaultPresets {
		r.presets[tag] = p
	}
	return r
}

// Register adds or replaces the preset for tag.
func (r *Registry) Register(tag Tag, p Preset) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s", err, tag)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[tag] = p
	return nil
}

// Get retrieves the preset for tag.
func (r *Registry) Get(tag Tag) (Preset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.presets[tag]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %s", ErrNotFound, tag)
	}
	return p, nil
}

// Resolve returns the preset for tag, falling back to neutral for
// unrecognized tags.
func (r *Registry) Resolve(tag Tag) Preset {
	if p, err := r.Get(tag); err == nil {
		return p
	}
	if p, err := r.Get(Neutral); err == nil {
		return p
	}
	return DefaultPresets[Neutral]
}

// List returns all registered tags sorted alphabetically.
func (r *Registry) List() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]Tag, 0, len(r.presets))
	for tag := range r.presets {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Count returns the number of registered presets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.presets)
}

// Validate checks that every field is finite and in range.
func (p Preset) Validate() error {
	for _, v := range []float64{p.Amplitude, p.Smoothness, p.WaveFreq1, p.WaveFreq2, p.TimeSpeed} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidPreset)
		}
	}
	if p.Amplitude < 0 || p.Amplitude > 1 {
		return fmt.Errorf("%w: amplitude %g outside [0, 1]", ErrInvalidPreset, p.Amplitude)
	}
	if p.Smoothness < 0 || p.Smoothness > 1 {
		return fmt.Errorf("%w: smoothness %g outside [0, 1]", ErrInvalidPreset, p.Smoothness)
	}
	if p.WaveFreq1 < 0 || p.WaveFreq2 < 0 || p.TimeSpeed < 0 {
		return fmt.Errorf("%w: negative frequency", ErrInvalidPreset)
	}
	return nil
}
