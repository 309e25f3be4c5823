package web

import (
	"context"
	"encoding/binary"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/facewave/internal/observe"
	"github.com/teslashibe/facewave/pkg/amplitude"
	"github.com/teslashibe/facewave/pkg/animator"
	"github.com/teslashibe/facewave/pkg/contour"
	"github.com/teslashibe/facewave/pkg/hub"
)

// LiveSession is an animation session and the hub streaming its frames.
type LiveSession struct {
	*animator.Session

	FaceID    string
	CreatedAt time.Time

	hub    *hub.Hub
	cancel context.CancelFunc
	done   chan struct{}

	peerMu sync.Mutex
	peer   *amplitude.Peer
}

// Hub returns the session's frame hub.
func (l *LiveSession) Hub() *hub.Hub {
	return l.hub
}

// Done is closed when the session's tick loop has exited.
func (l *LiveSession) Done() <-chan struct{} {
	return l.done
}

// setPeer replaces the session's WebRTC peer, closing the previous one.
func (l *LiveSession) setPeer(p *amplitude.Peer) {
	l.peerMu.Lock()
	old := l.peer
	l.peer = p
	l.peerMu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (l *LiveSession) peerState() string {
	l.peerMu.Lock()
	defer l.peerMu.Unlock()
	if l.peer == nil {
		return ""
	}
	return l.peer.State()
}

// SessionInfo describes a live session.
type SessionInfo struct {
	ID        string    `json:"id"`
	FaceID    string    `json:"face_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Clients   int       `json:"clients"`
	Stream    string    `json:"stream"`
	WebRTC    string    `json:"webrtc,omitempty"`
}

// Info returns the session's description.
func (l *LiveSession) Info() SessionInfo {
	return SessionInfo{
		ID:        l.ID,
		FaceID:    l.FaceID,
		CreatedAt: l.CreatedAt,
		Clients:   l.hub.ClientCount(),
		Stream:    "/ws/sessions/" + l.ID,
		WebRTC:    l.peerState(),
	}
}

// SessionsOptions configures a session manager.
type SessionsOptions struct {
	// Source is shared by every session when set, e.g. an RTP-fed buffer.
	// Otherwise each session gets its own buffer fed over HTTP or WebRTC.
	Source *amplitude.Buffer

	// ICEServers and Analyzer configure WebRTC audio peers.
	ICEServers []string
	Analyzer   amplitude.AnalyzerConfig

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Sessions owns the live animation sessions. Each session ticks in its own
// goroutine and broadcasts frames to its hub while clients are connected.
type Sessions struct {
	ctx    context.Context
	anim   *animator.Animator
	opts   SessionsOptions
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*LiveSession
}

// NewSessions creates a manager. Sessions stop when ctx is done.
func NewSessions(ctx context.Context, anim *animator.Animator, opts SessionsOptions) *Sessions {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Sessions{
		ctx:      ctx,
		anim:     anim,
		opts:     opts,
		logger:   opts.Logger.With("component", "sessions"),
		sessions: make(map[string]*LiveSession),
	}
}

// Start creates and runs a session animating set. A zero seed is derived
// from the session ID.
func (m *Sessions) Start(faceID string, set contour.Set, seed uint64) *LiveSession {
	id := uuid.New()
	if seed == 0 {
		seed = binary.BigEndian.Uint64(id[:8])
	}

	ctx, cancel := context.WithCancel(m.ctx)
	h := hub.New("session-"+id.String()[:8], m.opts.Logger)
	go h.Run(ctx)

	live := &LiveSession{
		Session: animator.NewSession(m.anim, set, animator.SessionOptions{
			ID:      id.String(),
			Seed:    seed,
			Source:  m.opts.Source,
			Metrics: m.opts.Metrics,
			Logger:  m.opts.Logger,
		}),
		FaceID:    faceID,
		CreatedAt: time.Now().UTC(),
		hub:       h,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[live.ID] = live
	m.mu.Unlock()

	go m.run(ctx, live)

	m.logger.Info("session started", "session", live.ID, "face", faceID)
	return live
}

func (m *Sessions) run(ctx context.Context, live *LiveSession) {
	defer close(live.done)
	defer m.remove(live.ID)
	defer live.setPeer(nil)

	err := live.Run(ctx, func(f animator.Frame) bool {
		if live.hub.ClientCount() == 0 {
			return true
		}
		if err := live.hub.BroadcastJSON(f); err != nil {
			m.logger.Warn("frame encode failed", "session", live.ID, "error", err)
		}
		return true
	})
	if err != nil && ctx.Err() == nil {
		m.logger.Warn("session ended", "session", live.ID, "error", err)
	}
}

func (m *Sessions) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Get returns a live session.
func (m *Sessions) Get(id string) (*LiveSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	live, ok := m.sessions[id]
	return live, ok
}

// List returns every live session, oldest first.
func (m *Sessions) List() []SessionInfo {
	m.mu.RLock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, live := range m.sessions {
		out = append(out, live.Info())
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b SessionInfo) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// Count returns the number of live sessions.
func (m *Sessions) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop ends a session and disconnects its clients.
func (m *Sessions) Stop(id string) error {
	live, ok := m.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	m.stop(live)
	m.logger.Info("session stopped", "session", id)
	return nil
}

// Connect answers a WebRTC offer whose audio track drives the session.
// A later offer replaces the earlier peer.
func (m *Sessions) Connect(ctx context.Context, id string, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	live, ok := m.Get(id)
	if !ok {
		return webrtc.SessionDescription{}, ErrSessionNotFound
	}
	if m.opts.Source != nil {
		return webrtc.SessionDescription{}, ErrSharedSource
	}

	cfg := m.opts.Analyzer
	if cfg.FFTSize == 0 {
		cfg = amplitude.DefaultAnalyzerConfig()
	}
	peer, answer, err := amplitude.AcceptOffer(ctx, offer, live.Source(), amplitude.PeerConfig{
		ICEServers: m.opts.ICEServers,
		Analyzer:   cfg,
		Logger:     m.opts.Logger.With("session", id),
	})
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	live.setPeer(peer)
	m.logger.Info("webrtc peer connected", "session", id)
	return answer, nil
}

func (m *Sessions) stop(live *LiveSession) {
	live.Session.Stop()
	live.cancel()
	<-live.done
}

// Close stops every session.
func (m *Sessions) Close() {
	m.mu.RLock()
	all := make([]*LiveSession, 0, len(m.sessions))
	for _, live := range m.sessions {
		all = append(all, live)
	}
	m.mu.RUnlock()

	for _, live := range all {
		m.stop(live)
	}
}
