// Package emotions maps discrete emotion tags to wave presets that shape
// audio-reactive contour motion, and classifies response text into tags.
//
// Each preset is a fixed tuple of amplitude, smoothness, two spatial wave
// frequencies and a time speed. Calm emotions move slowly and smoothly;
// agitated ones move fast with more jitter.
package emotions

import "strings"

// Tag is a discrete emotion.
type Tag string

const (
	Neutral  Tag = "neutral"
	Joy      Tag = "joy"
	Anger    Tag = "anger"
	Sadness  Tag = "sadness"
	Fear     Tag = "fear"
	Concern  Tag = "concern"
	Disgust  Tag = "disgust"
	Surprise Tag = "surprise"
	Love     Tag = "love"
)

// Tags lists every known tag.
var Tags = []Tag{Neutral, Joy, Anger, Sadness, Fear, Concern, Disgust, Surprise, Love}

// ParseTag normalizes s into a known tag.
func ParseTag(s string) (Tag, bool) {
	t := Tag(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tags {
		if t == known {
			return t, true
		}
	}
	return Neutral, false
}

// Preset parametrizes per-frame displacement for one emotion.
type Preset struct {
	// Amplitude scales the whole displacement.
	Amplitude float64 `json:"amplitude" yaml:"amplitude"`

	// Smoothness in [0,1]. Jitter is scaled by 1 - Smoothness.
	Smoothness float64 `json:"smoothness" yaml:"smoothness"`

	// WaveFreq1 and WaveFreq2 are spatial frequencies along a contour.
	WaveFreq1 float64 `json:"wave_freq1" yaml:"wave_freq1"`
	WaveFreq2 float64 `json:"wave_freq2" yaml:"wave_freq2"`

	// TimeSpeed is the temporal phase rate in radians per second.
	TimeSpeed float64 `json:"time_speed" yaml:"time_speed"`
}

// DefaultPresets are the built-in wave presets.
var DefaultPresets = map[Tag]Preset{
	Neutral:  {Amplitude: 0.10, Smoothness: 0.70, WaveFreq1: 8, WaveFreq2: 13, TimeSpeed: 2.0},
	Joy:      {Amplitude: 0.14, Smoothness: 0.60, WaveFreq1: 10, WaveFreq2: 16, TimeSpeed: 3.0},
	Anger:    {Amplitude: 0.18, Smoothness: 0.30, WaveFreq1: 16, WaveFreq2: 24, TimeSpeed: 4.5},
	Sadness:  {Amplitude: 0.06, Smoothness: 0.95, WaveFreq1: 4, WaveFreq2: 7, TimeSpeed: 1.0},
	Fear:     {Amplitude: 0.12, Smoothness: 0.40, WaveFreq1: 14, WaveFreq2: 21, TimeSpeed: 4.0},
	Concern:  {Amplitude: 0.09, Smoothness: 0.75, WaveFreq1: 7, WaveFreq2: 11, TimeSpeed: 1.8},
	Disgust:  {Amplitude: 0.11, Smoothness: 0.50, WaveFreq1: 9, WaveFreq2: 17, TimeSpeed: 2.2},
	Surprise: {Amplitude: 0.16, Smoothness: 0.55, WaveFreq1: 12, WaveFreq2: 19, TimeSpeed: 3.5},
	Love:     {Amplitude: 0.10, Smoothness: 0.90, WaveFreq1: 6, WaveFreq2: 9, TimeSpeed: 1.5},
}

// Colors are display colors per tag. Tags without an entry render white.
var Colors = map[Tag]string{
	Neutral: "#ffffff",
	Anger:   "#ff4444",
	Concern: "#ff8800",
	Joy:     "#ffdd00",
	Sadness: "#4488ff",
	Fear:    "#8844ff",
}

// Color returns the display color for tag.
func Color(tag Tag) string {
	if c, ok := Colors[tag]; ok {
		return c
	}
	return Colors[Neutral]
}
