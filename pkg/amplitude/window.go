// Package amplitude produces the rolling window of normalized audio
// magnitudes that drives contour animation.
//
// One producer (an Analyzer fed from decoded audio) publishes windows into
// a Buffer; one consumer (an animation session) reads the latest window
// each frame. Readers never mutate a published window.
package amplitude

import (
	"math"
	"sync/atomic"
)

// Window is a fixed-length array of magnitudes in [0,1].
type Window []float64

// Sanitize returns a copy of w with every value forced into [0,1].
// NaN and negative values become 0.
func Sanitize(w []float64) Window {
	if len(w) == 0 {
		return nil
	}
	out := make(Window, len(w))
	for i, v := range w {
		switch {
		case math.IsNaN(v) || v < 0:
			out[i] = 0
		case v > 1:
			out[i] = 1
		default:
			out[i] = v
		}
	}
	return out
}

// FromBytes converts byte magnitudes (0-255) into a Window.
func FromBytes(b []byte) Window {
	if len(b) == 0 {
		return nil
	}
	out := make(Window, len(b))
	for i, v := range b {
		out[i] = float64(v) / 255
	}
	return out
}

// Peak returns the largest value in w.
func (w Window) Peak() float64 {
	var p float64
	for _, v := range w {
		p = max(p, v)
	}
	return p
}

// Mean returns the average value of w, or 0 when empty.
func (w Window) Mean() float64 {
	if len(w) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}

// Buffer holds the most recently published window.
type Buffer struct {
	latest atomic.Pointer[Window]
	seq    atomic.Uint64
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Publish sanitizes and stores w as the latest window.
func (b *Buffer) Publish(w []float64) {
	s := Sanitize(w)
	b.latest.Store(&s)
	b.seq.Add(1)
}

// Latest returns the most recent window, or nil when nothing has been
// published since the last Clear.
func (b *Buffer) Latest() Window {
	p := b.latest.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Seq counts publications. Consumers can use it to detect stale windows.
func (b *Buffer) Seq() uint64 {
	return b.seq.Load()
}

// Clear drops the latest window.
func (b *Buffer) Clear() {
	b.latest.Store(nil)
	b.seq.Add(1)
}
