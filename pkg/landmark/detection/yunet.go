package detection

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YuNet wraps OpenCV's FaceDetectorYN.
type YuNet struct {
	detector gocv.FaceDetectorYN
	mu       sync.Mutex // protects inference
}

// NewYuNet loads the YuNet model named in cfg.
func NewYuNet(cfg Config) (*YuNet, error) {
	if _, err := os.Stat(cfg.FaceModel); err != nil {
		return nil, fmt.Errorf("face model not found: %s", cfg.FaceModel)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.FaceModel,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight), // resized per image
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &YuNet{detector: detector}, nil
}

// Detect finds faces in an already decoded image.
func (y *YuNet) Detect(img gocv.Mat) ([]Box, error) {
	if img.Empty() {
		return nil, errors.New("empty image")
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())
	y.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	y.detector.Detect(img, &faces)

	// 15 columns per face: box (4), five landmark pairs (10), score.
	boxes := make([]Box, 0, faces.Rows())
	for r := range faces.Rows() {
		boxes = append(boxes, Box{
			X:          float64(faces.GetFloatAt(r, 0)) / imgW,
			Y:          float64(faces.GetFloatAt(r, 1)) / imgH,
			W:          float64(faces.GetFloatAt(r, 2)) / imgW,
			H:          float64(faces.GetFloatAt(r, 3)) / imgH,
			Confidence: float64(faces.GetFloatAt(r, 14)),
		})
	}
	return boxes, nil
}

// Close releases the detector.
func (y *YuNet) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.detector.Close()
	return nil
}
