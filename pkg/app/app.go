// Package app wires the facewave components together and manages their
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/facewave/internal/config"
	"github.com/teslashibe/facewave/internal/log"
	"github.com/teslashibe/facewave/internal/observe"
	"github.com/teslashibe/facewave/pkg/amplitude"
	"github.com/teslashibe/facewave/pkg/animator"
	"github.com/teslashibe/facewave/pkg/emotions"
	"github.com/teslashibe/facewave/pkg/facestore"
	"github.com/teslashibe/facewave/pkg/facestore/postgres"
	"github.com/teslashibe/facewave/pkg/landmark"
	"github.com/teslashibe/facewave/pkg/landmark/detection"
	"github.com/teslashibe/facewave/pkg/pipeline"
	"github.com/teslashibe/facewave/pkg/retarget"
	"github.com/teslashibe/facewave/pkg/web"
)

// Version is reported as the service version.
var Version = "dev"

// App is the facewave service orchestrator.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics       *observe.Metrics
	shutdownOtel  func(context.Context) error
	store         facestore.Store
	detector      landmark.Detector
	pipeline      *pipeline.Pipeline
	classifier    *emotions.Classifier
	animator      *animator.Animator
	sessions      *web.Sessions
	server        *web.Server
	audio         *amplitude.Buffer
	rtpConn       *amplitude.ConnReader
	rtpSource     *amplitude.RTPSource
	cancelRuntime context.CancelFunc

	wg sync.WaitGroup
}

// New validates cfg and returns an uninitialized app.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return &App{
		cfg:    cfg,
		logger: log.Component("app"),
	}, nil
}

// Init builds every component. Call it after New and before Run.
func (a *App) Init(ctx context.Context) error {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    a.cfg.Server.ServiceName,
		ServiceVersion: Version,
	})
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	a.shutdownOtel = shutdown

	a.metrics = observe.DefaultMetrics()

	if err := a.initStore(ctx); err != nil {
		return fmt.Errorf("store init: %w", err)
	}
	a.initDetector()

	if err := a.initEmotions(); err != nil {
		return fmt.Errorf("emotion init: %w", err)
	}

	a.pipeline = pipeline.New(a.detector, pipeline.Options{
		Mode:     a.cfg.Retarget.Mode,
		Workers:  a.cfg.Detector.Workers,
		Retarget: retargetConfig(a.cfg.Retarget),
	}, a.metrics, log.Component("pipeline"))

	if err := a.initAudio(); err != nil {
		return fmt.Errorf("audio init: %w", err)
	}

	runtimeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancelRuntime = cancel

	a.animator = animator.New(animatorConfig(a.cfg.Animator), nil)
	a.sessions = web.NewSessions(runtimeCtx, a.animator, web.SessionsOptions{
		Source:     a.audio,
		ICEServers: a.cfg.Audio.ICEServers,
		Analyzer:   a.analyzerConfig(),
		Metrics:    a.metrics,
		Logger:     log.Component("animator"),
	})

	a.server = web.NewServer(web.Options{
		Port:        a.cfg.Server.Port,
		MaxUploadMB: a.cfg.Server.MaxUploadMB,
		Builder:     a.pipeline,
		Store:       a.store,
		Classifier:  a.classifier,
		Sessions:    a.sessions,
		Metrics:     a.metrics,
		Logger:      log.Component("web"),
	})

	a.logger.Info("initialized",
		"store", a.cfg.Store.Backend,
		"retarget_mode", a.cfg.Retarget.Mode,
		"rtp", a.cfg.Audio.RTPAddr != "",
	)
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.cfg.Store.Backend {
	case config.StorePostgres:
		s, err := postgres.NewStore(ctx, a.cfg.Store.PostgresDSN)
		if err != nil {
			return err
		}
		a.store = s
		a.logger.Info("face store connected", "backend", "postgres")
	default:
		s, err := facestore.NewJSONStore(a.cfg.Store.Path)
		if err != nil {
			return err
		}
		n, _ := s.Count(ctx)
		a.store = s
		a.logger.Info("face store loaded", "backend", "json", "path", s.Path(), "faces", n)
	}
	return nil
}

// initDetector loads the OpenCV models. Without them every capture falls
// back to the template.
func (a *App) initDetector() {
	dc := detection.DefaultConfig()
	dc.FaceModel = a.cfg.Detector.FaceModel
	dc.MeshModel = a.cfg.Detector.MeshModel
	dc.ConfidenceThresh = a.cfg.Detector.ConfidenceThresh

	d, err := detection.New(dc)
	if err != nil {
		a.logger.Warn("landmark detector unavailable, captures will use the template", "error", err)
		a.detector = unavailableDetector{err: err}
		return
	}
	a.detector = d
}

func (a *App) initEmotions() error {
	if path := a.cfg.Emotion.KeywordsFile; path != "" {
		c, err := emotions.LoadClassifier(path)
		if err != nil {
			return err
		}
		a.classifier = c
		a.logger.Info("emotion keywords loaded", "path", path)
		return nil
	}
	a.classifier = emotions.DefaultClassifier()
	return nil
}

// initAudio opens the RTP listener when configured. All sessions then
// share one amplitude buffer fed from it.
func (a *App) initAudio() error {
	ac := a.cfg.Audio
	if ac.RTPAddr == "" {
		return nil
	}
	conn, err := amplitude.ListenRTP(ac.RTPAddr)
	if err != nil {
		return err
	}

	a.audio = amplitude.NewBuffer()
	analyzer := amplitude.NewAnalyzer(a.analyzerConfig(), a.audio)

	src, err := amplitude.NewRTPSource(conn, analyzer, ac.SampleRate, ac.Channels, log.Component("rtp"))
	if err != nil {
		conn.Close()
		return err
	}
	a.rtpConn = conn
	a.rtpSource = src
	return nil
}

// analyzerConfig sizes spectrum windows to the animator's window length.
func (a *App) analyzerConfig() amplitude.AnalyzerConfig {
	acfg := amplitude.DefaultAnalyzerConfig()
	acfg.FFTSize = a.cfg.Animator.WindowLength * 2
	return acfg
}

// Run serves until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return errors.New("app not initialized")
	}

	if a.rtpSource != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.rtpSource.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("rtp source stopped", "error", err)
			}
		}()
		a.logger.Info("rtp listener started", "addr", a.cfg.Audio.RTPAddr)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
}

// Shutdown stops every component, waiting up to the context deadline.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server: %w", err))
		}
	}
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.cancelRuntime != nil {
		a.cancelRuntime()
	}
	if a.rtpConn != nil {
		a.rtpConn.Close()
	}
	a.wg.Wait()

	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("detector: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if a.shutdownOtel != nil {
		if err := a.shutdownOtel(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// ShutdownTimeout bounds Shutdown when called from a signal handler.
const ShutdownTimeout = 5 * time.Second

func retargetConfig(rc config.RetargetConfig) retarget.Config {
	return retarget.Config{
		References: retarget.References{
			Aspect: rc.AspectReference,
			Eye:    rc.EyeReference,
			Nose:   rc.NoseReference,
			Mouth:  rc.MouthReference,
		},
		ClampMin:         rc.ClampMin,
		ClampMax:         rc.ClampMax,
		DepthCompression: rc.DepthCompression,
		CrownThreshold:   rc.CrownThreshold,
	}
}

func animatorConfig(ac config.AnimatorConfig) animator.Config {
	return animator.Config{
		RelaxFactor:     ac.RelaxFactor,
		ActiveOpacity:   ac.ActiveOpacity,
		BaselineOpacity: ac.BaselineOpacity,
		OpacityEase:     ac.OpacityEase,
		Jitter:          ac.Jitter,
		FrameRate:       ac.FrameRate,
	}
}

// unavailableDetector reports no face for every image.
type unavailableDetector struct {
	err error
}

func (d unavailableDetector) Detect(context.Context, []byte) ([]landmark.RawLandmark, error) {
	return nil, fmt.Errorf("%w: detector unavailable: %v", landmark.ErrNoFace, d.err)
}

func (unavailableDetector) Close() error { return nil }
