// Package animator displaces contour vertices in time with an audio
// amplitude window, shaped by an emotion preset.
//
// An animation is an explicit [State] advanced by [Animator.Tick]. The same
// call serves a render loop, a [Session] ticker, or a test harness. Rest
// positions are copied on construction and never written afterwards.
package animator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/facewave/pkg/contour"
	"github.com/teslashibe/facewave/pkg/emotions"
)

// Mode is the animation state.
type Mode int

const (
	Idle Mode = iota
	Animating
)

func (m Mode) String() string {
	if m == Animating {
		return "animating"
	}
	return "idle"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*m = Idle
	case "animating":
		*m = Animating
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// Signal is a playback event from the audio pipeline.
type Signal int

const (
	// NoSignal leaves the mode unchanged.
	NoSignal Signal = iota
	Playing
	Paused
	Stopped
	Completed
)

var signalNames = map[Signal]string{
	NoSignal:  "",
	Playing:   "playing",
	Paused:    "paused",
	Stopped:   "stopped",
	Completed: "completed",
}

func (s Signal) String() string {
	return signalNames[s]
}

// ParseSignal parses a playback signal name.
func ParseSignal(name string) (Signal, bool) {
	for sig, n := range signalNames {
		if n != "" && n == name {
			return sig, true
		}
	}
	return NoSignal, false
}

// Config tunes animation.
type Config struct {
	// RelaxFactor is the fraction of the remaining distance to rest
	// covered per idle tick.
	RelaxFactor float64

	// ActiveOpacity is held while animating.
	ActiveOpacity float64

	// BaselineOpacity is the idle opacity, approached by OpacityEase per tick.
	BaselineOpacity float64
	OpacityEase     float64

	// Jitter scales the random displacement term.
	Jitter float64

	// FrameRate drives Session tickers.
	FrameRate int
}

// DefaultConfig returns the standard animation settings.
func DefaultConfig() Config {
	return Config{
		RelaxFactor:     0.1,
		ActiveOpacity:   0.9,
		BaselineOpacity: 0.7,
		OpacityEase:     0.05,
		Jitter:          0.5,
		FrameRate:       60,
	}
}

// Track is one animated contour.
type Track struct {
	Name       string
	ConnectsTo []string
	Rest       []r3.Vec
	Current    []r3.Vec
	// Origin is the radial scaling center, the centroid of Rest.
	Origin r3.Vec
}

// State is everything one animation needs between ticks. A State has a
// single writer.
type State struct {
	Tracks  []Track
	Mode    Mode
	Emotion emotions.Tag
	// Time is elapsed animation time in seconds.
	Time    float64
	Opacity float64

	rng *rand.Rand
}

// NewState builds a resting state for set. seed fixes the jitter sequence.
func NewState(set contour.Set, seed uint64, cfg Config) *State {
	s := &State{
		Tracks:  make([]Track, len(set)),
		Mode:    Idle,
		Emotion: emotions.Neutral,
		Opacity: cfg.BaselineOpacity,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for i, c := range set {
		s.Tracks[i] = Track{
			Name:       c.Name,
			ConnectsTo: append([]string(nil), c.ConnectsTo...),
			Rest:       append([]r3.Vec(nil), c.Points...),
			Current:    append([]r3.Vec(nil), c.Points...),
			Origin:     contour.Centroid(c.Points),
		}
	}
	return s
}

// Snapshot returns the current positions as a contour set.
func (s *State) Snapshot() contour.Set {
	out := make(contour.Set, len(s.Tracks))
	for i, tr := range s.Tracks {
		out[i] = contour.Contour{
			Name:       tr.Name,
			Points:     append([]r3.Vec(nil), tr.Current...),
			ConnectsTo: append([]string(nil), tr.ConnectsTo...),
		}
	}
	return out
}

// Displacement returns the largest distance of any vertex from rest.
func (s *State) Displacement() float64 {
	var d float64
	for _, tr := range s.Tracks {
		for i := range tr.Current {
			d = max(d, r3.Norm(r3.Sub(tr.Current[i], tr.Rest[i])))
		}
	}
	return d
}

// Input is what one tick reads.
type Input struct {
	// Window is the latest amplitude window. Values outside [0,1] are
	// clamped; an empty window means no audio.
	Window  []float64
	Emotion emotions.Tag
	Signal  Signal
}

// Animator holds the configuration and presets shared by many states.
type Animator struct {
	cfg     Config
	presets *emotions.Registry
}

// New creates an animator. A nil registry uses the built-in presets.
func New(cfg Config, presets *emotions.Registry) *Animator {
	if presets == nil {
		presets = emotions.NewRegistry()
	}
	return &Animator{cfg: cfg, presets: presets}
}

// Config returns the animator's configuration.
func (a *Animator) Config() Config {
	return a.cfg
}

// Tick advances s by dt seconds.
func (a *Animator) Tick(s *State, in Input, dt float64) {
	switch in.Signal {
	case Playing:
		s.Mode = Animating
	case Paused, Stopped, Completed:
		s.Mode = Idle
	}
	if dt > 0 && !math.IsInf(dt, 0) {
		s.Time += dt
	}

	if in.Emotion != "" {
		s.Emotion, _ = emotions.ParseTag(string(in.Emotion))
	}

	if s.Mode == Animating {
		s.Opacity = a.cfg.ActiveOpacity
	} else {
		s.Opacity += (a.cfg.BaselineOpacity - s.Opacity) * a.cfg.OpacityEase
	}

	if s.Mode != Animating || len(in.Window) == 0 {
		a.relax(s)
		return
	}
	a.displace(s, in.Window, a.presets.Resolve(s.Emotion))
}

func (a *Animator) relax(s *State) {
	k := a.cfg.RelaxFactor
	for _, tr := range s.Tracks {
		for i := range tr.Current {
			tr.Current[i] = r3.Add(tr.Current[i], r3.Scale(k, r3.Sub(tr.Rest[i], tr.Current[i])))
		}
	}
}

func (a *Animator) displace(s *State, window []float64, p emotions.Preset) {
	phase1 := s.Time * p.TimeSpeed
	phase2 := s.Time * p.TimeSpeed * 0.8
	jitter := a.cfg.Jitter * (1 - p.Smoothness)

	for _, tr := range s.Tracks {
		count := len(tr.Rest)
		for i := range tr.Rest {
			t := float64(i) / float64(count)
			amp := sample(window, int(math.Floor(t*float64(len(window)))))

			d := math.Sin(t*p.WaveFreq1+phase1) + math.Sin(t*p.WaveFreq2+phase2)
			d += jitter * (2*s.rng.Float64() - 1)
			d *= amp * p.Amplitude
			if d == 0 {
				tr.Current[i] = tr.Rest[i]
				continue
			}

			tr.Current[i] = r3.Add(tr.Origin, r3.Scale(1+d, r3.Sub(tr.Rest[i], tr.Origin)))
		}
	}
}

func sample(w []float64, i int) float64 {
	if i < 0 || i >= len(w) {
		return 0
	}
	v := w[i]
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
