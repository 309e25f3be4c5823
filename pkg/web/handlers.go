package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/facewave/internal/observe"
	"github.com/teslashibe/facewave/pkg/contour"
	"github.com/teslashibe/facewave/pkg/facestore"
	"github.com/teslashibe/facewave/pkg/pipeline"
	"github.com/teslashibe/facewave/pkg/retarget"
	"github.com/teslashibe/facewave/pkg/style"
)

// maxImages bounds the images accepted per capture.
const maxImages = 16

// handleHealth reports liveness and a few counts.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok"}
	if s.sessions != nil {
		resp["sessions"] = s.sessions.Count()
	}
	if s.store != nil {
		n, err := s.store.Count(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		resp["faces"] = n
	}
	return c.JSON(resp)
}

// handleTemplate returns the canonical contour template.
func (s *Server) handleTemplate(c *fiber.Ctx) error {
	return c.JSON(pipeline.TemplateResult(0))
}

// BuildResponse is the reply to a capture upload.
type BuildResponse struct {
	// Face is the stored record. Nil when no face was detected.
	Face *facestore.Record `json:"face,omitempty"`

	// Fallback is set when no image yielded a face. Contours then holds
	// the template.
	Fallback bool        `json:"fallback"`
	Contours contour.Set `json:"contours,omitempty"`

	Factors  *retarget.Factors `json:"factors,omitempty"`
	Clamped  []string          `json:"clamped,omitempty"`
	Images   int               `json:"images"`
	Detected int               `json:"detected"`
}

// handleCreateFace runs the pipeline over uploaded images and stores the
// result. Form fields: images (files), name, and either hair (classifier
// text) or length, volume, direction, texture, style.
func (s *Server) handleCreateFace(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "expected multipart form")
	}
	images, err := readImages(form.File["images"])
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	log := observe.Logger(ctx, s.logger)

	d, err := descriptorsFromForm(form.Value)
	if errors.Is(err, style.ErrNoDescriptors) {
		log.Debug("hair text has no descriptors, using fallback style")
	}

	res, err := s.builder.Build(ctx, images, d)
	switch {
	case errors.Is(err, pipeline.ErrNoImages):
		return fiber.NewError(fiber.StatusBadRequest, "no images uploaded")
	case errors.Is(err, pipeline.ErrNoFaceDetected):
		return c.JSON(BuildResponse{
			Fallback: true,
			Contours: res.Contours,
			Images:   res.Images,
		})
	case err != nil:
		return err
	}

	rec := facestore.FromResult(formValue(form.Value, "name"), res)
	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save face: %w", err)
	}
	log.Info("face stored", "face", rec.ID, "source", rec.Source, "detected", res.Detected)

	return c.Status(fiber.StatusCreated).JSON(BuildResponse{
		Face:     rec,
		Factors:  res.Factors,
		Clamped:  res.Clamped,
		Images:   res.Images,
		Detected: res.Detected,
	})
}

func readImages(files []*multipart.FileHeader) ([][]byte, error) {
	if len(files) > maxImages {
		return nil, fmt.Errorf("at most %d images per capture", maxImages)
	}
	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		images = append(images, data)
	}
	return images, nil
}

// descriptorsFromForm returns nil when the form carries no hair
// information. Individual fields missing from a partial form take the
// default descriptor values.
func descriptorsFromForm(values map[string][]string) (*style.Descriptors, error) {
	if text := formValue(values, "hair"); text != "" {
		d, err := style.ParseDescriptors(text)
		if err != nil {
			return nil, err
		}
		return &d, nil
	}

	fields := style.Descriptors{
		Length:    formValue(values, "length"),
		Volume:    formValue(values, "volume"),
		Direction: formValue(values, "direction"),
		Texture:   formValue(values, "texture"),
		Style:     formValue(values, "style"),
	}
	if fields.Empty() {
		return nil, nil
	}

	d := style.DefaultDescriptors()
	for _, f := range []struct {
		dst *string
		v   string
	}{
		{&d.Length, fields.Length},
		{&d.Volume, fields.Volume},
		{&d.Direction, fields.Direction},
		{&d.Texture, fields.Texture},
		{&d.Style, fields.Style},
	} {
		if f.v != "" {
			*f.dst = strings.ToLower(f.v)
		}
	}
	return &d, nil
}

func formValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

// FaceSummary is a face record without its geometry.
type FaceSummary struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Source    pipeline.Source `json:"source"`
	StyleMode style.Mode      `json:"style_mode"`
}

func (s *Server) handleListFaces(c *fiber.Ctx) error {
	records, err := s.store.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]FaceSummary, len(records))
	for i, r := range records {
		out[i] = FaceSummary{
			ID:        r.ID,
			Name:      r.Name,
			CreatedAt: r.CreatedAt,
			Source:    r.Source,
			StyleMode: r.StyleMode,
		}
	}
	return c.JSON(out)
}

func (s *Server) handleGetFace(c *fiber.Ctx) error {
	rec, err := s.store.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (s *Server) handleDeleteFace(c *fiber.Ctx) error {
	if err := s.store.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleSimilarFaces lists the faces closest in proportion to one face.
// Query: k (default 5, at most 50).
func (s *Server) handleSimilarFaces(c *fiber.Ctx) error {
	sim, ok := s.store.(facestore.SimilarityStore)
	if !ok {
		return fiber.NewError(fiber.StatusNotImplemented, "store does not support similarity search")
	}
	ctx := c.UserContext()
	rec, err := sim.Get(ctx, c.Params("id"))
	if err != nil {
		return err
	}

	k := min(max(c.QueryInt("k", 5), 1), 50)
	matches, err := sim.Similar(ctx, rec.Measurements, k+1)
	if err != nil {
		return err
	}

	out := make([]facestore.Match, 0, k)
	for _, m := range matches {
		if m.Record.ID != rec.ID && len(out) < k {
			out = append(out, m)
		}
	}
	return c.JSON(out)
}
