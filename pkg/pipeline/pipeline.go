// Package pipeline turns captured images into a personalized contour set.
//
// A build detects landmarks in every image concurrently, averages the
// successful detections, synthesizes hair style parameters, and retargets
// the template. It runs once per capture, outside any animation loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/facewave/internal/observe"
	"github.com/teslashibe/facewave/pkg/contour"
	"github.com/teslashibe/facewave/pkg/landmark"
	"github.com/teslashibe/facewave/pkg/retarget"
	"github.com/teslashibe/facewave/pkg/style"
)

// Source records which path produced a contour set.
type Source string

const (
	SourceRetargeted Source = "retargeted"
	SourceDirect     Source = "direct"
	SourceTemplate   Source = "template"
)

// Modes select the primary geometry path.
const (
	ModeRetarget = "retarget"
	ModeDirect   = "direct"
)

// Result is a finished build.
type Result struct {
	Contours     contour.Set           `json:"contours"`
	Source       Source                `json:"source"`
	Style        style.Parameters      `json:"style"`
	StyleMode    style.Mode            `json:"style_mode"`
	Measurements landmark.Measurements `json:"measurements"`
	// Factors are the applied retarget factors. Nil unless retargeted.
	Factors *retarget.Factors `json:"factors,omitempty"`
	// Clamped names factors that hit a clamp bound.
	Clamped  []string `json:"clamped,omitempty"`
	Images   int      `json:"images"`
	Detected int      `json:"detected"`
}

// Options configures a Pipeline.
type Options struct {
	// Mode is ModeRetarget (default) or ModeDirect.
	Mode string
	// Workers bounds concurrent detections. Zero means 4.
	Workers  int
	Retarget retarget.Config
}

// DefaultOptions returns retargeting with default presets.
func DefaultOptions() Options {
	return Options{
		Mode:     ModeRetarget,
		Workers:  4,
		Retarget: retarget.DefaultConfig(),
	}
}

// Pipeline builds contour sets. It is safe for concurrent use if the
// detector is.
type Pipeline struct {
	detector landmark.Detector
	opts     Options
	template contour.Set
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// New creates a pipeline. Nil metrics use the global provider.
func New(detector landmark.Detector, opts Options, metrics *observe.Metrics, logger *slog.Logger) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Mode == "" {
		opts.Mode = ModeRetarget
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		detector: detector,
		opts:     opts,
		template: contour.Template(),
		metrics:  metrics,
		logger:   logger,
	}
}

// TemplateResult is the fallback every caller renders when a build fails.
func TemplateResult(images int) *Result {
	return &Result{
		Contours:  contour.Template(),
		Source:    SourceTemplate,
		Style:     style.Neutral(),
		StyleMode: style.ModeFallback,
		Images:    images,
	}
}

// Build runs the pipeline over images. d may be nil when no hair
// descriptors are available.
//
// When every image fails detection Build returns ErrNoFaceDetected together
// with TemplateResult. Other errors come only from ctx.
func (p *Pipeline) Build(ctx context.Context, images [][]byte, d *style.Descriptors) (res *Result, err error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "pipeline.build")
	span.SetAttributes(attribute.Int("images", len(images)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		source := "error"
		if res != nil {
			source = string(res.Source)
		}
		p.metrics.PipelineDuration.Record(context.WithoutCancel(ctx), time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("source", source)))
	}()
	log := observe.Logger(ctx, p.logger)

	if len(images) == 0 {
		return TemplateResult(0), ErrNoImages
	}

	sets, err := p.detectAll(ctx, images)
	if err != nil {
		return nil, err
	}

	avg, err := landmark.Average(sets)
	if err != nil {
		log.Warn("no face detected in any image, using template", "images", len(images))
		return TemplateResult(len(images)), ErrNoFaceDetected
	}

	m := landmark.Measure(&avg)
	params, mode := style.Synthesize(d, m)
	p.metrics.RecordStyle(ctx, mode.String())

	res = &Result{
		Style:        params,
		StyleMode:    mode,
		Measurements: m,
		Images:       len(images),
		Detected:     len(sets),
	}

	if p.opts.Mode == ModeDirect {
		res.Contours = contour.Map(&avg)
		res.Source = SourceDirect
	} else if rt, rerr := retarget.Retarget(p.template, m, params, p.opts.Retarget); rerr != nil {
		log.Warn("retarget failed, using direct mapping", "error", rerr)
		res.Contours = contour.Map(&avg)
		res.Source = SourceDirect
	} else {
		res.Contours = rt.Contours
		res.Source = SourceRetargeted
		res.Factors = &rt.Applied
		res.Clamped = retarget.ClampedNames(rt.Raw, rt.Applied)
		for _, name := range res.Clamped {
			p.metrics.RecordClamp(ctx, name)
		}
	}

	span.SetAttributes(
		attribute.Int("detected", res.Detected),
		attribute.String("source", string(res.Source)),
		attribute.String("style_mode", mode.String()),
	)
	log.Info("contours built",
		"images", res.Images,
		"detected", res.Detected,
		"source", res.Source,
		"style_mode", mode,
		"clamped", res.Clamped,
		"duration", time.Since(start),
	)
	return res, nil
}

// detectAll normalizes every image that yields a face. Per-image failures
// are logged and skipped.
func (p *Pipeline) detectAll(ctx context.Context, images [][]byte) ([]landmark.Set, error) {
	results := make([]*landmark.Set, len(images))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.Workers)
	for i, img := range images {
		eg.Go(func() error {
			set, status, err := p.detectOne(egCtx, img)
			p.metrics.RecordDetection(egCtx, status)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				p.logger.Debug("image skipped", "index", i, "status", status, "error", err)
				return nil
			}
			results[i] = set
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("detect landmarks: %w", err)
	}

	sets := make([]landmark.Set, 0, len(results))
	for _, s := range results {
		if s != nil {
			sets = append(sets, *s)
		}
	}
	return sets, nil
}

func (p *Pipeline) detectOne(ctx context.Context, img []byte) (*landmark.Set, string, error) {
	raw, err := p.detector.Detect(ctx, img)
	if err != nil {
		if errors.Is(err, landmark.ErrNoFace) {
			return nil, "no_face", err
		}
		return nil, "error", err
	}
	set, err := landmark.Normalize(raw)
	switch {
	case errors.Is(err, landmark.ErrNoFace):
		return nil, "no_face", err
	case err != nil:
		return nil, "insufficient", err
	}
	return &set, "ok", nil
}
