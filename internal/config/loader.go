package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/facewave/internal/log"
)

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		ApplyEnv(cfg)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates it.
// Environment overrides are not applied.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays FACEWAVE_* environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	cfg.Server.Port = envInt("FACEWAVE_PORT", cfg.Server.Port)
	cfg.Server.LogLevel = envString("FACEWAVE_LOG_LEVEL", envString("LOG_LEVEL", cfg.Server.LogLevel))
	cfg.Store.Backend = envString("FACEWAVE_STORE", cfg.Store.Backend)
	cfg.Store.Path = envString("FACEWAVE_DATA_PATH", cfg.Store.Path)
	cfg.Store.PostgresDSN = envString("FACEWAVE_POSTGRES_DSN", cfg.Store.PostgresDSN)
	cfg.Detector.FaceModel = envString("FACEWAVE_FACE_MODEL", cfg.Detector.FaceModel)
	cfg.Detector.MeshModel = envString("FACEWAVE_MESH_MODEL", cfg.Detector.MeshModel)
	cfg.Emotion.KeywordsFile = envString("FACEWAVE_EMOTION_KEYWORDS", cfg.Emotion.KeywordsFile)
	cfg.Audio.RTPAddr = envString("FACEWAVE_RTP_ADDR", cfg.Audio.RTPAddr)
	if v := os.Getenv("FACEWAVE_ICE_SERVERS"); v != "" {
		cfg.Audio.ICEServers = strings.Split(v, ",")
	}
	cfg.Retarget.Mode = envString("FACEWAVE_RETARGET_MODE", cfg.Retarget.Mode)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("ignoring non-numeric environment value", "key", key, "value", v)
		return fallback
	}
	return n
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", cfg.Server.Port))
	}
	if !log.ValidLevel(cfg.Server.LogLevel) {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	r := cfg.Retarget
	switch r.Mode {
	case ModeRetarget, ModeDirect:
	default:
		errs = append(errs, fmt.Errorf("retarget.mode %q is invalid; valid values: retarget, direct", r.Mode))
	}
	if r.ClampMin <= 0 || r.ClampMin >= r.ClampMax {
		errs = append(errs, fmt.Errorf("retarget clamp range [%g, %g] is invalid", r.ClampMin, r.ClampMax))
	}
	for name, v := range map[string]float64{
		"aspect_reference": r.AspectReference,
		"eye_reference":    r.EyeReference,
		"nose_reference":   r.NoseReference,
		"mouth_reference":  r.MouthReference,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("retarget.%s must be positive, got %g", name, v))
		}
	}
	if r.DepthCompression <= 0 || r.DepthCompression > 1 {
		errs = append(errs, fmt.Errorf("retarget.depth_compression must be in (0, 1], got %g", r.DepthCompression))
	}

	a := cfg.Animator
	if a.FrameRate <= 0 || a.FrameRate > 240 {
		errs = append(errs, fmt.Errorf("animator.frame_rate %d is out of range", a.FrameRate))
	}
	if a.WindowLength <= 0 {
		errs = append(errs, fmt.Errorf("animator.window_length must be positive, got %d", a.WindowLength))
	}
	if a.RelaxFactor <= 0 || a.RelaxFactor > 1 {
		errs = append(errs, fmt.Errorf("animator.relax_factor must be in (0, 1], got %g", a.RelaxFactor))
	}
	if a.OpacityEase < 0 || a.OpacityEase > 1 {
		errs = append(errs, fmt.Errorf("animator.opacity_ease must be in [0, 1], got %g", a.OpacityEase))
	}
	if a.Jitter < 0 {
		errs = append(errs, fmt.Errorf("animator.jitter must not be negative, got %g", a.Jitter))
	}

	switch cfg.Store.Backend {
	case StoreJSON:
		if cfg.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the json backend"))
		}
	case StorePostgres:
		if cfg.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: json, postgres", cfg.Store.Backend))
	}

	if cfg.Detector.Workers <= 0 {
		errs = append(errs, fmt.Errorf("detector.workers must be positive, got %d", cfg.Detector.Workers))
	}

	return errors.Join(errs...)
}
