package retarget

// References are average human proportions. A face matching all of them
// retargets to an unscaled template.
type References struct {
	Aspect float64 // face width / face height
	Eye    float64 // inner eye distance / face width
	Nose   float64 // nostril width / face width
	Mouth  float64 // mouth width / face width
}

// Config holds the tunable retargeting presets.
type Config struct {
	References References

	// Every scale factor is clamped to [ClampMin, ClampMax].
	ClampMin float64
	ClampMax float64

	// DepthCompression multiplies every Z coordinate.
	DepthCompression float64

	// CrownThreshold is the template Y above which hair receives height
	// and spikiness. Below it hair only widens.
	CrownThreshold float64
}

// DefaultConfig returns the standard presets.
func DefaultConfig() Config {
	return Config{
		References: References{
			Aspect: 0.75,
			Eye:    0.25,
			Nose:   0.30,
			Mouth:  0.35,
		},
		ClampMin:         0.7,
		ClampMax:         1.4,
		DepthCompression: 0.5,
		CrownThreshold:   0.4,
	}
}
