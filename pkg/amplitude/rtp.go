package amplitude

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/pion/rtp"
	"gopkg.in/hraban/opus.v2"
)

// ErrMalformedPacket is returned by a PacketReader for a datagram that is
// not an RTP packet. The stream itself is still usable.
var ErrMalformedPacket = errors.New("malformed rtp packet")

// PacketReader yields RTP packets. It returns io.EOF when the stream ends.
type PacketReader interface {
	ReadRTP() (*rtp.Packet, error)
}

// Decoder decodes one Opus payload into interleaved PCM and returns the
// number of samples per channel. *opus.Decoder satisfies it.
type Decoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// ConnReader reads one RTP packet per datagram from a packet connection.
type ConnReader struct {
	Conn net.PacketConn
	buf  [1500]byte
}

// ListenRTP opens a UDP listener for RTP at addr.
func ListenRTP(addr string) (*ConnReader, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen rtp %s: %w", addr, err)
	}
	return &ConnReader{Conn: conn}, nil
}

// ReadRTP implements PacketReader.
func (r *ConnReader) ReadRTP() (*rtp.Packet, error) {
	n, _, err := r.Conn.ReadFrom(r.buf[:])
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, io.EOF
		}
		return nil, err
	}
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(r.buf[:n]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	return pkt, nil
}

// Close closes the underlying connection, unblocking ReadRTP.
func (r *ConnReader) Close() error {
	return r.Conn.Close()
}

// RTPSource decodes an Opus RTP stream into an Analyzer.
type RTPSource struct {
	reader     PacketReader
	decoder    Decoder
	analyzer   *Analyzer
	sampleRate int
	channels   int
	logger     *slog.Logger
	pcm        []int16
}

// NewRTPSource creates a source with an Opus decoder at sampleRate and
// channels. Opus supports 8, 12, 16, 24 and 48 kHz.
func NewRTPSource(reader PacketReader, analyzer *Analyzer, sampleRate, channels int, logger *slog.Logger) (*RTPSource, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return NewRTPSourceWithDecoder(reader, dec, analyzer, sampleRate, channels, logger), nil
}

// NewRTPSourceWithDecoder creates a source with a caller-supplied decoder.
func NewRTPSourceWithDecoder(reader PacketReader, dec Decoder, analyzer *Analyzer, sampleRate, channels int, logger *slog.Logger) *RTPSource {
	if channels < 1 {
		channels = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RTPSource{
		reader:     reader,
		decoder:    dec,
		analyzer:   analyzer,
		sampleRate: sampleRate,
		channels:   channels,
		logger:     logger,
		// 120 ms is the longest Opus frame.
		pcm: make([]int16, sampleRate*120/1000*channels),
	}
}

// Run reads and decodes packets until the reader ends or ctx is done.
// Malformed packets are dropped. Close the reader to unblock a pending
// read on shutdown.
func (s *RTPSource) Run(ctx context.Context) error {
	var packets, dropped int
	defer func() {
		s.logger.Info("rtp source stopped", "packets", packets, "dropped", dropped)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, err := s.reader.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrMalformedPacket) {
				dropped++
				s.logger.Debug("rtp packet dropped", "error", err)
				continue
			}
			return fmt.Errorf("read rtp: %w", err)
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		packets++

		n, err := s.decoder.Decode(pkt.Payload, s.pcm)
		if err != nil {
			dropped++
			s.logger.Debug("opus decode failed", "seq", pkt.SequenceNumber, "error", err)
			continue
		}
		s.analyzer.Feed(downmix(s.pcm[:n*s.channels], s.channels), s.sampleRate)
	}
}

// downmix averages interleaved channels into mono.
func downmix(pcm []int16, channels int) []int16 {
	if channels <= 1 {
		return pcm
	}
	out := make([]int16, len(pcm)/channels)
	for i := range out {
		var sum int
		for c := range channels {
			sum += int(pcm[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}
