// Package web serves the facewave HTTP API and the websocket frame streams
// of live animation sessions.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/facewave/internal/observe"
	"github.com/teslashibe/facewave/pkg/amplitude"
	"github.com/teslashibe/facewave/pkg/emotions"
	"github.com/teslashibe/facewave/pkg/facestore"
	"github.com/teslashibe/facewave/pkg/pipeline"
	"github.com/teslashibe/facewave/pkg/style"
)

// Builder turns uploaded images into a contour set.
type Builder interface {
	Build(ctx context.Context, images [][]byte, d *style.Descriptors) (*pipeline.Result, error)
}

// Options configures a Server.
type Options struct {
	Port int
	// MaxUploadMB caps request bodies. Zero means 32.
	MaxUploadMB int

	Builder    Builder
	Store      facestore.Store
	Classifier *emotions.Classifier
	Sessions   *Sessions
	Metrics    *observe.Metrics
	Logger     *slog.Logger
}

// Server is the facewave HTTP server.
type Server struct {
	app  *fiber.App
	port int

	builder    Builder
	store      facestore.Store
	classifier *emotions.Classifier
	sessions   *Sessions
	logger     *slog.Logger
}

// NewServer creates a server and registers its routes.
func NewServer(opts Options) *Server {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 32
	}
	if opts.Classifier == nil {
		opts.Classifier = emotions.DefaultClassifier()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		port:       opts.Port,
		builder:    opts.Builder,
		store:      opts.Store,
		classifier: opts.Classifier,
		sessions:   opts.Sessions,
		logger:     opts.Logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "facewave",
		DisableStartupMessage: true,
		BodyLimit:             opts.MaxUploadMB * 1024 * 1024,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(observe.Middleware(opts.Metrics))

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/template", s.handleTemplate)

	faces := api.Group("/faces")
	faces.Post("/", s.handleCreateFace)
	faces.Get("/", s.handleListFaces)
	faces.Get("/:id", s.handleGetFace)
	faces.Delete("/:id", s.handleDeleteFace)
	faces.Get("/:id/similar", s.handleSimilarFaces)

	sessions := api.Group("/sessions")
	sessions.Post("/", s.handleCreateSession)
	sessions.Get("/", s.handleListSessions)
	sessions.Get("/:id", s.handleGetSession)
	sessions.Post("/:id/playback", s.handlePlayback)
	sessions.Post("/:id/emotion", s.handleEmotion)
	sessions.Post("/:id/amplitude", s.handleAmplitude)
	sessions.Post("/:id/webrtc", s.handleWebRTC)
	sessions.Delete("/:id", s.handleDeleteSession)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id", s.lookupSession, websocket.New(s.handleSessionWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port. It blocks until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve accepts connections on ln. It blocks until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, facestore.ErrNotFound), errors.Is(err, ErrSessionNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, amplitude.ErrInvalidOffer):
		code = fiber.StatusBadRequest
	case errors.Is(err, ErrSharedSource):
		code = fiber.StatusConflict
	}
	if code >= fiber.StatusInternalServerError {
		observe.Logger(c.UserContext(), s.logger).Error("request failed",
			"method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
