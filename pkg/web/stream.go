package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/facewave/pkg/amplitude"
	"github.com/teslashibe/facewave/pkg/animator"
	"github.com/teslashibe/facewave/pkg/contour"
	"github.com/teslashibe/facewave/pkg/emotions"
	"github.com/teslashibe/facewave/pkg/hub"
)

// CreateSessionRequest starts an animation session.
type CreateSessionRequest struct {
	// FaceID selects a stored face. Empty animates the template.
	FaceID  string `json:"face_id"`
	Seed    uint64 `json:"seed"`
	Emotion string `json:"emotion"`
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	if s.sessions == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "sessions disabled")
	}
	var req CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	var tag emotions.Tag
	if req.Emotion != "" {
		var ok bool
		if tag, ok = emotions.ParseTag(req.Emotion); !ok {
			return fiber.NewError(fiber.StatusBadRequest, "unknown emotion: "+req.Emotion)
		}
	}

	set := contour.Template()
	if req.FaceID != "" {
		rec, err := s.store.Get(c.UserContext(), req.FaceID)
		if err != nil {
			return err
		}
		set = rec.Contours
	}

	live := s.sessions.Start(req.FaceID, set, req.Seed)
	if tag != "" {
		live.SetEmotion(tag)
	}
	return c.Status(fiber.StatusCreated).JSON(live.Info())
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	if s.sessions == nil {
		return c.JSON([]SessionInfo{})
	}
	return c.JSON(s.sessions.List())
}

func (s *Server) session(c *fiber.Ctx) (*LiveSession, error) {
	if s.sessions == nil {
		return nil, ErrSessionNotFound
	}
	live, ok := s.sessions.Get(c.Params("id"))
	if !ok {
		return nil, ErrSessionNotFound
	}
	return live, nil
}

// SessionState is a session's description and latest frame.
type SessionState struct {
	SessionInfo
	Frame animator.Frame `json:"frame"`
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	live, err := s.session(c)
	if err != nil {
		return err
	}
	return c.JSON(SessionState{SessionInfo: live.Info(), Frame: live.Snapshot()})
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if s.sessions == nil {
		return ErrSessionNotFound
	}
	if err := s.sessions.Stop(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handlePlayback forwards an audio playback event: playing, paused,
// stopped or completed.
func (s *Server) handlePlayback(c *fiber.Ctx) error {
	live, err := s.session(c)
	if err != nil {
		return err
	}
	var req struct {
		Signal string `json:"signal"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	sig, ok := animator.ParseSignal(req.Signal)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "unknown signal: "+req.Signal)
	}
	live.Signal(sig)
	return c.JSON(fiber.Map{"signal": sig.String()})
}

// handleEmotion sets the session emotion from a tag or classifies it from
// response text.
func (s *Server) handleEmotion(c *fiber.Ctx) error {
	live, err := s.session(c)
	if err != nil {
		return err
	}
	var req struct {
		Emotion string `json:"emotion"`
		Text    string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var tag emotions.Tag
	switch {
	case req.Emotion != "":
		var ok bool
		if tag, ok = emotions.ParseTag(req.Emotion); !ok {
			return fiber.NewError(fiber.StatusBadRequest, "unknown emotion: "+req.Emotion)
		}
	case req.Text != "":
		tag = s.classifier.Classify(req.Text)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "emotion or text required")
	}

	live.SetEmotion(tag)
	return c.JSON(fiber.Map{"emotion": tag, "color": emotions.Color(tag)})
}

// handleAmplitude publishes an amplitude window. JSON bodies carry
// {"window": [...]} in [0,1]; octet-stream bodies are byte magnitudes.
func (s *Server) handleAmplitude(c *fiber.Ctx) error {
	live, err := s.session(c)
	if err != nil {
		return err
	}

	var window amplitude.Window
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEOctetStream) {
		window = amplitude.FromBytes(c.Body())
	} else {
		var req struct {
			Window []float64 `json:"window"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		window = req.Window
	}
	if len(window) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty window")
	}

	live.Source().Publish(window)
	return c.SendStatus(fiber.StatusNoContent)
}

// handleWebRTC answers an SDP offer ({"type":"offer","sdp":...}) with a
// receive-only audio peer whose track drives the session.
func (s *Server) handleWebRTC(c *fiber.Ctx) error {
	if _, err := s.session(c); err != nil {
		return err
	}
	var offer webrtc.SessionDescription
	if err := c.BodyParser(&offer); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	answer, err := s.sessions.Connect(c.UserContext(), c.Params("id"), offer)
	if err != nil {
		return err
	}
	return c.JSON(answer)
}

// lookupSession resolves the session before the websocket upgrade so
// unknown IDs get a plain 404.
func (s *Server) lookupSession(c *fiber.Ctx) error {
	live, err := s.session(c)
	if err != nil {
		return err
	}
	c.Locals("session", live)
	return c.Next()
}

// handleSessionWS streams a session's frames. The current frame is sent
// first so a client can render before the next tick.
func (s *Server) handleSessionWS(c *websocket.Conn) {
	live, ok := c.Locals("session").(*LiveSession)
	if !ok {
		c.Close()
		return
	}
	if err := c.WriteJSON(live.Snapshot()); err != nil {
		c.Close()
		return
	}

	client, ok := hub.NewClient(live.Hub(), c)
	if !ok {
		c.Close()
		return
	}
	client.Run()
}
