package animator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/facewave/internal/log"
	"github.com/teslashibe/facewave/pkg/amplitude"
	"github.com/teslashibe/facewave/pkg/contour"
	"github.com/teslashibe/facewave/pkg/emotions"
)

const dt = 1.0 / 60

func constWindow(v float64, n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = v
	}
	return w
}

func TestZeroWindowNeverDisplaces(t *testing.T) {
	a := New(DefaultConfig(), nil)
	for _, tag := range emotions.Tags {
		t.Run(string(tag), func(t *testing.T) {
			s := NewState(contour.Template(), 1, a.Config())
			in := Input{Window: constWindow(0, 128), Emotion: tag, Signal: Playing}
			for range 120 {
				a.Tick(s, in, dt)
				in.Signal = NoSignal
				require.Equal(t, Animating, s.Mode)
				require.Zero(t, s.Displacement())
			}
		})
	}
}

func TestAudioDisplaces(t *testing.T) {
	a := New(DefaultConfig(), nil)
	s := NewState(contour.Template(), 1, a.Config())
	a.Tick(s, Input{Window: constWindow(1, 128), Emotion: emotions.Anger, Signal: Playing}, dt)
	d := s.Displacement()
	assert.Greater(t, d, 0.0)
	// |d| <= amplitude * (2 + jitter) times the farthest vertex radius.
	assert.Less(t, d, 0.18*3*2)
}

func TestIdleRelaxationConverges(t *testing.T) {
	a := New(DefaultConfig(), nil)
	s := NewState(contour.Template(), 7, a.Config())

	loud := Input{Window: constWindow(1, 64), Emotion: emotions.Surprise, Signal: Playing}
	for range 30 {
		a.Tick(s, loud, dt)
		loud.Signal = NoSignal
	}
	start := s.Displacement()
	require.Greater(t, start, 0.0)

	a.Tick(s, Input{Signal: Stopped}, dt)
	assert.Equal(t, Idle, s.Mode)
	prev := s.Displacement()
	assert.Less(t, prev, start)

	for range 300 {
		a.Tick(s, Input{Window: constWindow(1, 64)}, dt)
		d := s.Displacement()
		assert.LessOrEqual(t, d, prev)
		prev = d
	}
	assert.Less(t, prev, 1e-9)
}

func TestRelaxationIsSmooth(t *testing.T) {
	a := New(DefaultConfig(), nil)
	s := NewState(contour.Set{{Name: "jaw", Points: []r3.Vec{{X: 1}}}}, 1, a.Config())
	s.Tracks[0].Current[0] = r3.Vec{X: 2}

	a.Tick(s, Input{}, dt)
	assert.InDelta(t, 1.9, s.Tracks[0].Current[0].X, 1e-12)
}

func TestEmptyWindowRelaxesWhileAnimating(t *testing.T) {
	a := New(DefaultConfig(), nil)
	s := NewState(contour.Template(), 3, a.Config())
	a.Tick(s, Input{Window: constWindow(1, 32), Signal: Playing}, dt)
	before := s.Displacement()

	a.Tick(s, Input{}, dt)
	assert.Equal(t, Animating, s.Mode)
	assert.InDelta(t, before*0.9, s.Displacement(), 1e-9)
	assert.Equal(t, a.Config().ActiveOpacity, s.Opacity)
}

func TestRestNeverModified(t *testing.T) {
	tmpl := contour.Template()
	a := New(DefaultConfig(), nil)
	s := NewState(tmpl, 5, a.Config())

	in := Input{Window: constWindow(0.8, 128), Emotion: emotions.Fear, Signal: Playing}
	for range 50 {
		a.Tick(s, in, dt)
	}
	for i, tr := range s.Tracks {
		assert.Equal(t, tmpl[i].Points, tr.Rest, tr.Name)
	}
	assert.Equal(t, contour.Template(), tmpl)
}

func TestUnknownEmotionUsesNeutral(t *testing.T) {
	a := New(DefaultConfig(), nil)
	w := constWindow(0.5, 128)

	got := NewState(contour.Template(), 9, a.Config())
	want := NewState(contour.Template(), 9, a.Config())
	a.Tick(got, Input{Window: w, Emotion: "ecstatic", Signal: Playing}, dt)
	a.Tick(want, Input{Window: w, Emotion: emotions.Neutral, Signal: Playing}, dt)

	assert.Equal(t, emotions.Neutral, got.Emotion)
	assert.Equal(t, want.Snapshot(), got.Snapshot())
}

func TestEmotionTagIsNormalized(t *testing.T) {
	a := New(DefaultConfig(), nil)
	w := constWindow(0.5, 128)

	got := NewState(contour.Template(), 9, a.Config())
	want := NewState(contour.Template(), 9, a.Config())
	a.Tick(got, Input{Window: w, Emotion: " Anger ", Signal: Playing}, dt)
	a.Tick(want, Input{Window: w, Emotion: emotions.Anger, Signal: Playing}, dt)

	assert.Equal(t, emotions.Anger, got.Emotion)
	assert.Equal(t, want.Snapshot(), got.Snapshot())

	sess := NewSession(a, contour.Template(), SessionOptions{Logger: log.Discard()})
	sess.SetEmotion("LOVE")
	assert.Equal(t, emotions.Love, sess.Emotion())
	assert.Equal(t, emotions.Color(emotions.Love), sess.Step(dt).Color)

	sess.SetEmotion("ecstatic")
	assert.Equal(t, emotions.Neutral, sess.Emotion())
}

func TestDisplacementIsRadial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jitter = 0
	a := New(cfg, nil)
	set := contour.Set{{Name: "mouth_outer", Points: []r3.Vec{
		{X: -1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0.5}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: -1, Z: -0.5},
	}}}
	s := NewState(set, 1, a.Config())
	require.Equal(t, r3.Vec{}, s.Tracks[0].Origin)

	a.Tick(s, Input{Window: constWindow(1, 16), Emotion: emotions.Joy, Signal: Playing}, 0.3)
	for i, p := range s.Tracks[0].Current {
		rest := s.Tracks[0].Rest[i]
		assert.InDelta(t, 0, r3.Norm(r3.Cross(p, rest)), 1e-12, "point %d off its ray", i)
	}
}

func TestMalformedWindowValues(t *testing.T) {
	a := New(DefaultConfig(), nil)
	s := NewState(contour.Template(), 1, a.Config())
	w := []float64{math.NaN(), -3, math.Inf(-1)}
	a.Tick(s, Input{Window: w, Signal: Playing}, dt)
	assert.Zero(t, s.Displacement())

	assert.Equal(t, 1.0, sample([]float64{5}, 0))
	assert.Zero(t, sample([]float64{0.5}, 3))
}

func TestOpacity(t *testing.T) {
	a := New(DefaultConfig(), nil)
	s := NewState(contour.Template(), 1, a.Config())
	assert.Equal(t, 0.7, s.Opacity)

	a.Tick(s, Input{Signal: Playing}, dt)
	assert.Equal(t, 0.9, s.Opacity)
	// Held regardless of amplitude.
	a.Tick(s, Input{Window: constWindow(1, 8)}, dt)
	assert.Equal(t, 0.9, s.Opacity)

	a.Tick(s, Input{Signal: Paused}, dt)
	prev := s.Opacity
	assert.Less(t, prev, 0.9)
	for range 400 {
		a.Tick(s, Input{}, dt)
		assert.LessOrEqual(t, s.Opacity, prev)
		prev = s.Opacity
	}
	assert.InDelta(t, 0.7, s.Opacity, 1e-6)
}

func TestSignals(t *testing.T) {
	sig, ok := ParseSignal("completed")
	require.True(t, ok)
	assert.Equal(t, Completed, sig)
	_, ok = ParseSignal("")
	assert.False(t, ok)

	a := New(DefaultConfig(), nil)
	s := NewState(nil, 1, a.Config())
	for _, tc := range []struct {
		sig  Signal
		want Mode
	}{
		{Playing, Animating}, {NoSignal, Animating}, {Completed, Idle},
		{Playing, Animating}, {Stopped, Idle}, {Paused, Idle},
	} {
		a.Tick(s, Input{Signal: tc.sig}, dt)
		assert.Equal(t, tc.want, s.Mode, tc.sig.String())
	}
}

func TestSessionStep(t *testing.T) {
	buf := amplitude.NewBuffer()
	sess := NewSession(New(DefaultConfig(), nil), contour.Template(), SessionOptions{
		ID: "s1", Source: buf, Logger: log.Discard(),
	})

	f := sess.Step(dt)
	assert.Equal(t, Idle, f.Mode)
	assert.Equal(t, uint64(1), f.Seq)

	sess.SetEmotion(emotions.Anger)
	sess.Signal(Playing)
	buf.Publish(constWindow(1, 128))
	f = sess.Step(dt)
	assert.Equal(t, Animating, f.Mode)
	assert.Equal(t, emotions.Anger, f.Emotion)
	assert.Equal(t, "#ff4444", f.Color)
	assert.Len(t, f.Contours, len(contour.Template()))

	// Signals are consumed once.
	f = sess.Step(dt)
	assert.Equal(t, Animating, f.Mode)
	assert.Equal(t, f, sess.Snapshot())
}

func TestSessionRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameRate = 200
	sess := NewSession(New(cfg, nil), contour.Template(), SessionOptions{Logger: log.Discard()})
	sess.Signal(Playing)
	sess.Source().Publish(constWindow(0.5, 128))

	var frames []Frame
	err := sess.Run(context.Background(), func(f Frame) bool {
		frames = append(frames, f)
		return len(frames) < 3
	})
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Less(t, frames[0].Seq, frames[2].Seq)
	assert.Greater(t, frames[2].Time, 0.0)
}

func TestSessionStopAndCancel(t *testing.T) {
	sess := NewSession(New(DefaultConfig(), nil), contour.Template(), SessionOptions{Logger: log.Discard()})

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background(), func(Frame) bool { return true }) }()

	require.Eventually(t, func() bool { return sess.running.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, sess.Run(context.Background(), func(Frame) bool { return true }), ErrAlreadyRunning)

	sess.Stop()
	sess.Stop()
	require.NoError(t, <-done)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	other := NewSession(New(DefaultConfig(), nil), nil, SessionOptions{Logger: log.Discard()})
	assert.ErrorIs(t, other.Run(ctx, func(Frame) bool { return true }), context.Canceled)
}

func TestSessionSuppressesRestingFrames(t *testing.T) {
	sess := NewSession(New(DefaultConfig(), nil), contour.Template(), SessionOptions{Logger: log.Discard()})

	f := sess.Step(dt)
	assert.False(t, sess.suppress(f), "first resting frame is emitted")
	f = sess.Step(dt)
	assert.True(t, sess.suppress(f))

	sess.Signal(Playing)
	f = sess.Step(dt)
	assert.False(t, sess.suppress(f))
}
