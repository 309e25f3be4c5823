// retarget builds a contour set offline from landmark JSON files.
//
// Each input file holds one detection: a JSON array of {"x","y","z"}
// records in detector coordinates, or an object with a "landmarks" array.
// The files are averaged like the frames of a capture.
//
//	retarget -hair descriptors.txt -o face.json capture1.json capture2.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/teslashibe/facewave/internal/log"
	"github.com/teslashibe/facewave/pkg/landmark"
	"github.com/teslashibe/facewave/pkg/pipeline"
	"github.com/teslashibe/facewave/pkg/retarget"
	"github.com/teslashibe/facewave/pkg/style"
)

func main() {
	hairPath := flag.String("hair", "", "File with hair classifier output (LENGTH:, VOLUME:, ...)")
	mode := flag.String("mode", pipeline.ModeRetarget, "Geometry path: retarget or direct")
	out := flag.String("o", "", "Output file (stdout when empty)")
	clampMin := flag.Float64("clamp-min", retarget.DefaultConfig().ClampMin, "Lower retarget factor bound")
	clampMax := flag.Float64("clamp-max", retarget.DefaultConfig().ClampMax, "Upper retarget factor bound")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: retarget [flags] landmarks.json...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	log.Init(*logLevel)

	if err := run(flag.Args(), *hairPath, *mode, *out, *clampMin, *clampMax); err != nil {
		fmt.Fprintf(os.Stderr, "retarget: %v\n", err)
		os.Exit(1)
	}
}

func run(files []string, hairPath, mode, out string, clampMin, clampMax float64) error {
	if len(files) == 0 {
		flag.Usage()
		return errors.New("no landmark files")
	}

	images := make([][]byte, len(files))
	for i, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		images[i] = data
	}

	var d *style.Descriptors
	if hairPath != "" {
		text, err := os.ReadFile(hairPath)
		if err != nil {
			return err
		}
		parsed, err := style.ParseDescriptors(string(text))
		if err != nil {
			return fmt.Errorf("%s: %w", hairPath, err)
		}
		d = &parsed
	}

	opts := pipeline.DefaultOptions()
	opts.Mode = mode
	opts.Retarget.ClampMin = clampMin
	opts.Retarget.ClampMax = clampMax
	p := pipeline.New(jsonDetector{}, opts, nil, log.Component("retarget"))

	res, err := p.Build(context.Background(), images, d)
	if err != nil && !errors.Is(err, pipeline.ErrNoFaceDetected) {
		return err
	}
	if err != nil {
		log.Warn("no usable landmarks, writing the template", "files", len(files))
	}

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// jsonDetector reads landmarks already extracted by an external detector.
type jsonDetector struct{}

func (jsonDetector) Detect(_ context.Context, data []byte) ([]landmark.RawLandmark, error) {
	var raw []landmark.RawLandmark
	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapped struct {
			Landmarks []landmark.RawLandmark `json:"landmarks"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode landmarks: %w", err)
		}
		raw = wrapped.Landmarks
	}
	if len(raw) == 0 {
		return nil, landmark.ErrNoFace
	}
	return raw, nil
}

func (jsonDetector) Close() error { return nil }
