package amplitude

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// ErrInvalidOffer is returned by AcceptOffer for a description that is not
// a usable SDP offer.
var ErrInvalidOffer = errors.New("invalid webrtc offer")

// TrackReader adapts a WebRTC remote track.
type TrackReader struct {
	Track *webrtc.TrackRemote
}

// ReadRTP implements PacketReader.
func (r TrackReader) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.Track.ReadRTP()
	return pkt, err
}

// PeerConfig configures a receive-only WebRTC audio peer.
type PeerConfig struct {
	// ICEServers are STUN/TURN URLs. Empty uses host candidates only.
	ICEServers []string
	Analyzer   AnalyzerConfig
	Logger     *slog.Logger
}

// Peer receives one Opus audio track over WebRTC and publishes its
// spectrum into a Buffer.
type Peer struct {
	pc     *webrtc.PeerConnection
	out    *Buffer
	cfg    PeerConfig
	logger *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// AcceptOffer answers a browser offer with a receive-only audio peer that
// feeds out. ctx bounds ICE gathering; the peer lives until Close. The
// answer carries every gathered candidate, so no trickle signalling is
// needed.
func AcceptOffer(ctx context.Context, offer webrtc.SessionDescription, out *Buffer, cfg PeerConfig) (*Peer, webrtc.SessionDescription, error) {
	var answer webrtc.SessionDescription
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		return nil, answer, fmt.Errorf("%w: type %q", ErrInvalidOffer, offer.Type)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if out == nil {
		out = NewBuffer()
	}

	var ice []webrtc.ICEServer
	if len(cfg.ICEServers) > 0 {
		ice = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: ice})
	if err != nil {
		return nil, answer, fmt.Errorf("create peer connection: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p := &Peer{
		pc:     pc,
		out:    out,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "webrtc"),
		ctx:    runCtx,
		cancel: cancel,
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		p.Close()
		return nil, answer, fmt.Errorf("add audio transceiver: %w", err)
	}
	pc.OnTrack(p.handleTrack)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Info("connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed {
			go p.Close()
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		p.Close()
		return nil, answer, fmt.Errorf("%w: %v", ErrInvalidOffer, err)
	}
	local, err := pc.CreateAnswer(nil)
	if err != nil {
		p.Close()
		return nil, answer, fmt.Errorf("%w: %v", ErrInvalidOffer, err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(local); err != nil {
		p.Close()
		return nil, answer, fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		p.Close()
		return nil, answer, ctx.Err()
	}
	return p, *pc.LocalDescription(), nil
}

func (p *Peer) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	codec := track.Codec()
	if track.Kind() != webrtc.RTPCodecTypeAudio || !strings.EqualFold(codec.MimeType, webrtc.MimeTypeOpus) {
		p.logger.Warn("ignoring track", "kind", track.Kind().String(), "codec", codec.MimeType)
		return
	}

	rate := int(codec.ClockRate)
	if rate == 0 {
		rate = 48000
	}
	channels := max(int(codec.Channels), 1)

	src, err := NewRTPSource(TrackReader{Track: track}, NewAnalyzer(p.cfg.Analyzer, p.out), rate, channels, p.logger)
	if err != nil {
		p.logger.Error("audio track unusable", "error", err)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()
	p.logger.Info("audio track started", "codec", codec.MimeType, "channels", channels)
	if err := src.Run(p.ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("audio track ended", "error", err)
	}
}

// State reports the peer connection state.
func (p *Peer) State() string {
	return p.pc.ConnectionState().String()
}

// Close tears down the connection and clears the buffer.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.cancel()
		err = p.pc.Close()
		p.wg.Wait()
		p.out.Clear()
	})
	return err
}
