package amplitude

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// AnalyzerConfig tunes spectrum analysis. The defaults match a browser
// AnalyserNode with fftSize 256.
type AnalyzerConfig struct {
	// SampleRate is the analysis rate. Input at other rates is resampled.
	SampleRate int

	// FFTSize is the analysis frame length. Windows have FFTSize/2 bins.
	FFTSize int

	// MinDecibels and MaxDecibels map to 0 and 1.
	MinDecibels float64
	MaxDecibels float64

	// Smoothing in [0,1) averages each bin with its previous value.
	Smoothing float64
}

// DefaultAnalyzerConfig returns browser-compatible defaults.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		SampleRate:  48000,
		FFTSize:     256,
		MinDecibels: -100,
		MaxDecibels: -30,
		Smoothing:   0.8,
	}
}

// Analyzer turns PCM audio into magnitude windows and publishes them.
type Analyzer struct {
	mu      sync.Mutex
	cfg     AnalyzerConfig
	out     *Buffer
	fft     *fourier.FFT
	window  []float64 // Blackman coefficients
	pending []float64
	frame   []float64
	coeffs  []complex128
	smooth  []float64
	level   float64
}

// NewAnalyzer creates an analyzer publishing into out.
func NewAnalyzer(cfg AnalyzerConfig, out *Buffer) *Analyzer {
	if cfg.FFTSize < 2 {
		cfg.FFTSize = DefaultAnalyzerConfig().FFTSize
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultAnalyzerConfig().SampleRate
	}
	if cfg.MaxDecibels <= cfg.MinDecibels {
		cfg.MinDecibels, cfg.MaxDecibels = DefaultAnalyzerConfig().MinDecibels, DefaultAnalyzerConfig().MaxDecibels
	}
	cfg.Smoothing = clamp(cfg.Smoothing, 0, 0.99)

	n := cfg.FFTSize
	return &Analyzer{
		cfg:    cfg,
		out:    out,
		fft:    fourier.NewFFT(n),
		window: blackman(n),
		frame:  make([]float64, n),
		smooth: make([]float64, n/2),
		level:  -100,
	}
}

// Bins returns the window length the analyzer publishes.
func (a *Analyzer) Bins() int {
	return a.cfg.FFTSize / 2
}

// Reset clears buffered audio and smoothing state.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = a.pending[:0]
	a.level = -100
	clear(a.smooth)
}

// Feed processes int16 PCM. A window is published for every FFTSize/2
// new samples once a full frame is buffered.
func (a *Analyzer) Feed(samples []int16, sampleRate int) {
	if len(samples) == 0 {
		return
	}
	floats := make([]float64, len(samples))
	for i, s := range samples {
		floats[i] = float64(s) / 32768.0
	}
	a.FeedFloat(floats, sampleRate)
}

// FeedFloat processes samples already normalized to [-1, 1].
func (a *Analyzer) FeedFloat(samples []float64, sampleRate int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(samples) == 0 {
		return
	}
	if sampleRate != a.cfg.SampleRate {
		samples = resampleLinear(samples, sampleRate, a.cfg.SampleRate)
	}
	a.pending = append(a.pending, samples...)

	n := a.cfg.FFTSize
	hop := n / 2
	for len(a.pending) >= n {
		a.analyze(a.pending[:n])
		a.pending = a.pending[hop:]
	}
}

// Level returns the RMS level of the last analyzed frame in dBFS.
func (a *Analyzer) Level() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.level
}

func (a *Analyzer) analyze(frame []float64) {
	n := a.cfg.FFTSize
	a.level = rmsDBFS(frame)
	for i, s := range frame {
		a.frame[i] = s * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	out := make([]float64, n/2)
	span := a.cfg.MaxDecibels - a.cfg.MinDecibels
	for k := range out {
		c := a.coeffs[k]
		mag := math.Hypot(real(c), imag(c)) / float64(n)
		a.smooth[k] = a.cfg.Smoothing*a.smooth[k] + (1-a.cfg.Smoothing)*mag
		db := 20 * math.Log10(a.smooth[k]+1e-12)
		out[k] = clamp((db-a.cfg.MinDecibels)/span, 0, 1)
	}
	if a.out != nil {
		a.out.Publish(out)
	}
}

// blackman returns the periodic Blackman window browser analysers apply,
// w[i] = 0.42 - 0.5cos(2πi/n) + 0.08cos(4πi/n). That is the first n points
// of the symmetric window of length n+1.
func blackman(n int) []float64 {
	w := make([]float64, n+1)
	for i := range w {
		w[i] = 1
	}
	return window.Blackman(w)[:n]
}

// rmsDBFS returns the level of samples in dB relative to full scale.
func rmsDBFS(samples []float64) float64 {
	if len(samples) == 0 {
		return -100.0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	rms := math.Sqrt(sum/float64(len(samples)) + 1e-12)
	return 20.0 * math.Log10(rms+1e-12)
}

func resampleLinear(samples []float64, srIn, srOut int) []float64 {
	if srIn == srOut || len(samples) == 0 || srIn <= 0 {
		return samples
	}
	nOut := int(math.Round(float64(len(samples)) * float64(srOut) / float64(srIn)))
	if nOut <= 1 {
		return nil
	}
	out := make([]float64, nOut)
	for i := range out {
		t := float64(i) / float64(nOut-1) * float64(len(samples)-1)
		idx := int(t)
		frac := t - float64(idx)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
		} else {
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
