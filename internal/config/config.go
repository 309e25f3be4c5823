// Package config provides configuration loading for facewave commands.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then FACEWAVE_* environment variables. Command-line flags are applied
// last by the individual commands.
package config

// Store backends.
const (
	StoreJSON     = "json"
	StorePostgres = "postgres"
)

// Retarget modes.
const (
	ModeRetarget = "retarget"
	ModeDirect   = "direct"
)

// Config is the top-level facewave configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Detector DetectorConfig `yaml:"detector"`
	Retarget RetargetConfig `yaml:"retarget"`
	Animator AnimatorConfig `yaml:"animator"`
	Store    StoreConfig    `yaml:"store"`
	Emotion  EmotionConfig  `yaml:"emotion"`
	Audio    AudioConfig    `yaml:"audio"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	ServiceName string `yaml:"service_name"`
	// MaxUploadMB caps the multipart body accepted by POST /api/faces.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// DetectorConfig points at the OpenCV models used for landmark extraction.
type DetectorConfig struct {
	FaceModel        string  `yaml:"face_model"`
	MeshModel        string  `yaml:"mesh_model"`
	ConfidenceThresh float64 `yaml:"confidence_threshold"`
	// Workers bounds concurrent image detections per capture.
	Workers int `yaml:"workers"`
}

// RetargetConfig holds the tunable retargeting presets.
type RetargetConfig struct {
	Mode             string  `yaml:"mode"`
	ClampMin         float64 `yaml:"clamp_min"`
	ClampMax         float64 `yaml:"clamp_max"`
	AspectReference  float64 `yaml:"aspect_reference"`
	EyeReference     float64 `yaml:"eye_reference"`
	NoseReference    float64 `yaml:"nose_reference"`
	MouthReference   float64 `yaml:"mouth_reference"`
	DepthCompression float64 `yaml:"depth_compression"`
	CrownThreshold   float64 `yaml:"crown_threshold"`
}

// AnimatorConfig holds per-session animation settings.
type AnimatorConfig struct {
	FrameRate       int     `yaml:"frame_rate"`
	WindowLength    int     `yaml:"window_length"`
	RelaxFactor     float64 `yaml:"relax_factor"`
	ActiveOpacity   float64 `yaml:"active_opacity"`
	BaselineOpacity float64 `yaml:"baseline_opacity"`
	OpacityEase     float64 `yaml:"opacity_ease"`
	Jitter          float64 `yaml:"jitter"`
}

// StoreConfig selects where computed contour sets are kept.
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// EmotionConfig configures the keyword emotion classifier.
type EmotionConfig struct {
	// KeywordsFile overrides the built-in keyword table when set.
	KeywordsFile string `yaml:"keywords_file"`
}

// AudioConfig configures live audio input.
type AudioConfig struct {
	// RTPAddr is a UDP address for Opus RTP input. Empty disables it.
	RTPAddr    string `yaml:"rtp_addr"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`

	// ICEServers are STUN/TURN URLs for WebRTC audio peers.
	ICEServers []string `yaml:"ice_servers"`
}

// Default returns a configuration with production defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			LogLevel:    "info",
			ServiceName: "facewave",
			MaxUploadMB: 32,
		},
		Detector: DetectorConfig{
			FaceModel:        "models/face_detection_yunet_2023mar.onnx",
			MeshModel:        "models/face_mesh_468.onnx",
			ConfidenceThresh: 0.5,
			Workers:          4,
		},
		Retarget: RetargetConfig{
			Mode:             ModeRetarget,
			ClampMin:         0.7,
			ClampMax:         1.4,
			AspectReference:  0.75,
			EyeReference:     0.25,
			NoseReference:    0.30,
			MouthReference:   0.35,
			DepthCompression: 0.5,
			CrownThreshold:   0.4,
		},
		Animator: AnimatorConfig{
			FrameRate:       60,
			WindowLength:    128,
			RelaxFactor:     0.1,
			ActiveOpacity:   0.9,
			BaselineOpacity: 0.7,
			OpacityEase:     0.05,
			Jitter:          0.5,
		},
		Store: StoreConfig{
			Backend: StoreJSON,
			Path:    "data/faces.json",
		},
		Audio: AudioConfig{
			SampleRate: 48000,
			Channels:   1,
		},
	}
}
