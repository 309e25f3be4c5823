package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facewave/pkg/landmark"
)

// Mesh runs a 468-point face-mesh network on face crops.
type Mesh struct {
	net  gocv.Net
	size int
	mu   sync.Mutex
}

// NewMesh loads the mesh model named in cfg.
func NewMesh(cfg Config) (*Mesh, error) {
	if _, err := os.Stat(cfg.MeshModel); err != nil {
		return nil, fmt.Errorf("mesh model not found: %s", cfg.MeshModel)
	}
	net := gocv.ReadNetFromONNX(cfg.MeshModel)
	if net.Empty() {
		return nil, fmt.Errorf("load mesh model %s", cfg.MeshModel)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	size := cfg.MeshInputSize
	if size <= 0 {
		size = DefaultConfig().MeshInputSize
	}
	return &Mesh{net: net, size: size}, nil
}

// Landmarks runs the network on crop and returns raw points in crop-input
// pixel units, three values per point.
func (m *Mesh) Landmarks(crop gocv.Mat) ([]float32, error) {
	blob := gocv.BlobFromImage(crop, 1.0/255, image.Pt(m.size, m.size),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read mesh output: %w", err)
	}
	if len(data) < landmark.Count*3 {
		return nil, fmt.Errorf("%w: mesh produced %d values", landmark.ErrInsufficientLandmarks, len(data))
	}
	// The output aliases the Mat, which is closed on return.
	return append([]float32(nil), data[:landmark.Count*3]...), nil
}

// Close releases the network.
func (m *Mesh) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}

// Crop is a pixel rectangle of the source image the mesh ran on.
type Crop struct {
	X0, Y0, X1, Y1 int
	ImgW, ImgH     int
}

// Project maps mesh output in an input-size square back into full-image
// [0,1] coordinates. Depth uses the horizontal scale.
func Project(raw []float32, inputSize int, c Crop) []landmark.RawLandmark {
	n := len(raw) / 3
	out := make([]landmark.RawLandmark, n)
	sx := float64(c.X1-c.X0) / float64(inputSize)
	sy := float64(c.Y1-c.Y0) / float64(inputSize)
	for i := range n {
		x := float64(raw[i*3])*sx + float64(c.X0)
		y := float64(raw[i*3+1])*sy + float64(c.Y0)
		z := float64(raw[i*3+2]) * sx
		out[i] = landmark.RawLandmark{
			X: x / float64(c.ImgW),
			Y: y / float64(c.ImgH),
			Z: z / float64(c.ImgW),
		}
	}
	return out
}

// Detector combines YuNet and Mesh into a landmark.Detector.
type Detector struct {
	faces *YuNet
	mesh  *Mesh
	cfg   Config
}

var _ landmark.Detector = (*Detector)(nil)

// New loads both models.
func New(cfg Config) (*Detector, error) {
	faces, err := NewYuNet(cfg)
	if err != nil {
		return nil, err
	}
	mesh, err := NewMesh(cfg)
	if err != nil {
		faces.Close()
		return nil, err
	}
	if cfg.CropScale <= 0 {
		cfg.CropScale = DefaultConfig().CropScale
	}
	return &Detector{faces: faces, mesh: mesh, cfg: cfg}, nil
}

// Detect decodes an image and returns the mesh of its most prominent face.
func (d *Detector) Detect(ctx context.Context, data []byte) ([]landmark.RawLandmark, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, errors.New("decode image: unsupported format")
	}

	boxes, err := d.faces.Detect(img)
	if err != nil {
		return nil, err
	}
	best := SelectBest(boxes)
	if best == nil {
		return nil, landmark.ErrNoFace
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x0, y0, x1, y1 := Expand(*best, d.cfg.CropScale, img.Cols(), img.Rows())
	if x1-x0 < 2 || y1-y0 < 2 {
		return nil, landmark.ErrNoFace
	}
	region := img.Region(image.Rect(x0, y0, x1, y1))
	defer region.Close()

	raw, err := d.mesh.Landmarks(region)
	if err != nil {
		return nil, err
	}
	return Project(raw, d.mesh.size, Crop{X0: x0, Y0: y0, X1: x1, Y1: y1, ImgW: img.Cols(), ImgH: img.Rows()}), nil
}

// Close releases both models.
func (d *Detector) Close() error {
	return errors.Join(d.faces.Close(), d.mesh.Close())
}
