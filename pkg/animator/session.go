package animator

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/facewave/internal/observe"
	"github.com/teslashibe/facewave/pkg/amplitude"
	"github.com/teslashibe/facewave/pkg/contour"
	"github.com/teslashibe/facewave/pkg/emotions"
)

// Frame is one rendered animation step.
type Frame struct {
	Seq      uint64       `json:"seq"`
	Time     float64      `json:"time"`
	Mode     Mode         `json:"mode"`
	Emotion  emotions.Tag `json:"emotion"`
	Color    string       `json:"color"`
	Opacity  float64      `json:"opacity"`
	Contours contour.Set  `json:"contours"`
}

// FrameFunc receives frames. Returning false stops the session.
type FrameFunc func(Frame) bool

// Session drives one State from a ticker. Emotion and playback signals may
// be set from any goroutine; the tick loop is the only writer of the State.
type Session struct {
	ID string

	anim    *Animator
	source  *amplitude.Buffer
	metrics *observe.Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	state *State
	seq   uint64
	// settled is set once an idle frame at rest has been emitted.
	settled bool

	emotion atomic.Value // emotions.Tag
	signal  atomic.Int32

	stopOnce sync.Once
	stopCh   chan struct{}
	running  atomic.Bool
}

// SessionOptions configures a session.
type SessionOptions struct {
	ID      string
	Seed    uint64
	Source  *amplitude.Buffer
	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// NewSession creates a session animating set.
func NewSession(anim *Animator, set contour.Set, opts SessionOptions) *Session {
	if opts.Source == nil {
		opts.Source = amplitude.NewBuffer()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Session{
		ID:      opts.ID,
		anim:    anim,
		source:  opts.Source,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("session", opts.ID),
		state:   NewState(set, opts.Seed, anim.Config()),
		stopCh:  make(chan struct{}),
	}
	s.emotion.Store(emotions.Neutral)
	return s
}

// Source returns the amplitude buffer the session reads.
func (s *Session) Source() *amplitude.Buffer {
	return s.source
}

// SetEmotion sets the emotion used from the next tick. Tags are matched
// case-insensitively; unknown tags become neutral.
func (s *Session) SetEmotion(tag emotions.Tag) {
	t, _ := emotions.ParseTag(string(tag))
	s.emotion.Store(t)
}

// Emotion returns the requested emotion.
func (s *Session) Emotion() emotions.Tag {
	return s.emotion.Load().(emotions.Tag)
}

// Signal queues a playback signal for the next tick. A later signal
// replaces one not yet consumed.
func (s *Session) Signal(sig Signal) {
	s.signal.Store(int32(sig))
}

// Step runs one tick of dt seconds and returns the frame.
func (s *Session) Step(dt float64) Frame {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	in := Input{
		Window:  s.source.Latest(),
		Emotion: s.Emotion(),
		Signal:  Signal(s.signal.Swap(int32(NoSignal))),
	}
	s.anim.Tick(s.state, in, dt)
	s.seq++

	if s.metrics != nil {
		s.metrics.TickDuration.Record(context.Background(), time.Since(start).Seconds())
	}
	return s.frameLocked()
}

// Snapshot returns the current frame without advancing time.
func (s *Session) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

func (s *Session) frameLocked() Frame {
	return Frame{
		Seq:      s.seq,
		Time:     s.state.Time,
		Mode:     s.state.Mode,
		Emotion:  s.state.Emotion,
		Color:    emotions.Color(s.state.Emotion),
		Opacity:  s.state.Opacity,
		Contours: s.state.Snapshot(),
	}
}

// Run ticks at the configured frame rate and passes frames to fn until ctx
// is done, Stop is called, or fn returns false. Frames of a session resting
// idle are emitted once and then suppressed until something moves.
func (s *Session) Run(ctx context.Context, fn FrameFunc) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, 1)
		defer s.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	}

	rate := s.anim.Config().FrameRate
	if rate <= 0 {
		rate = DefaultConfig().FrameRate
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	s.logger.Info("animation session started", "frame_rate", rate)
	defer s.logger.Info("animation session stopped")

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.stopCh:
			return nil

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			frame := s.Step(dt)
			if s.suppress(frame) {
				continue
			}
			if !fn(frame) {
				return nil
			}
		}
	}
}

// settleEpsilon is the displacement below which an idle state counts as
// at rest.
const settleEpsilon = 1e-5

func (s *Session) suppress(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	atRest := f.Mode == Idle &&
		s.state.Displacement() < settleEpsilon &&
		math.Abs(s.state.Opacity-s.anim.Config().BaselineOpacity) < settleEpsilon
	if !atRest {
		s.settled = false
		return false
	}
	if s.settled {
		return true
	}
	s.settled = true
	return false
}

// Stop ends Run. It is safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
