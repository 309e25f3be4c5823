// Package detection extracts 468-point face meshes from images with OpenCV.
//
// A YuNet face detector finds candidate faces; the best one is cropped and
// passed through a face-mesh ONNX network whose output is mapped back into
// full-image [0,1] coordinates.
package detection

// Box is a detected face in normalized image coordinates.
type Box struct {
	X, Y       float64 // top-left corner (0-1)
	W, H       float64 // size (0-1)
	Confidence float64 // detector score (0-1)
}

// Center returns the center point of the box.
func (b Box) Center() (x, y float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area returns the area of the box.
func (b Box) Area() float64 {
	return b.W * b.H
}

// Config holds detector configuration.
type Config struct {
	FaceModel        string  // YuNet ONNX model
	MeshModel        string  // 468-point face mesh ONNX model
	ConfidenceThresh float64 // minimum face score
	InputWidth       int     // initial YuNet input size
	InputHeight      int
	MeshInputSize    int     // square mesh network input
	CropScale        float64 // face box expansion before meshing
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FaceModel:        "models/face_detection_yunet_2023mar.onnx",
		MeshModel:        "models/face_mesh_468.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
		MeshInputSize:    192,
		CropScale:        1.5,
	}
}

// SelectBest picks the most prominent face.
// Priority: confidence * 0.7 + relative area * 0.3.
func SelectBest(boxes []Box) *Box {
	if len(boxes) == 0 {
		return nil
	}
	if len(boxes) == 1 {
		return &boxes[0]
	}

	maxArea := 0.0
	for _, b := range boxes {
		maxArea = max(maxArea, b.Area())
	}

	bestScore := -1.0
	var best *Box
	for i := range boxes {
		score := boxes[i].Confidence * 0.7
		if maxArea > 0 {
			score += boxes[i].Area() / maxArea * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &boxes[i]
		}
	}
	return best
}

// Expand grows b around its center into a square of side scale*max(W,H)
// in pixels and clips it to the image.
func Expand(b Box, scale float64, imgW, imgH int) (x0, y0, x1, y1 int) {
	cx, cy := b.Center()
	side := max(b.W*float64(imgW), b.H*float64(imgH)) * scale
	px, py := cx*float64(imgW), cy*float64(imgH)

	x0 = max(0, int(px-side/2))
	y0 = max(0, int(py-side/2))
	x1 = min(imgW, int(px+side/2))
	y1 = min(imgH, int(py+side/2))
	return x0, y0, x1, y1
}
