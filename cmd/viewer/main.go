// viewer subscribes to a facewave session frame stream and prints a
// summary of each frame. With -demo it also drives the session with a
// synthetic amplitude window.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/facewave/internal/httpc"
	"github.com/teslashibe/facewave/internal/log"
	"github.com/teslashibe/facewave/pkg/animator"
	"github.com/teslashibe/facewave/pkg/contour"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "facewave base URL")
	sessionID := flag.String("session", "", "Existing session ID (a new one is created when empty)")
	faceID := flag.String("face", "", "Stored face to animate when creating a session")
	emotion := flag.String("emotion", "", "Initial emotion when creating a session")
	demo := flag.Bool("demo", false, "Play a synthetic amplitude signal into the session")
	every := flag.Int("every", 30, "Print every Nth frame")
	flag.Parse()
	log.Init("info")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := &client{base: strings.TrimRight(*server, "/"), http: httpc.NewClient(0)}

	id := *sessionID
	if id == "" {
		var err error
		if id, err = c.createSession(ctx, *faceID, *emotion); err != nil {
			log.Error("create session failed", "error", err)
			os.Exit(1)
		}
		log.Info("session created", "session", id)
	}

	if *demo {
		go c.drive(ctx, id)
	}

	if err := c.watch(ctx, id, max(*every, 1)); err != nil && ctx.Err() == nil {
		log.Error("stream ended", "error", err)
		os.Exit(1)
	}
}

type client struct {
	base string
	http *http.Client
}

func (c *client) post(ctx context.Context, path string, body, out any) error {
	return httpc.PostJSON(ctx, c.http, c.base+path, body, out)
}

func (c *client) createSession(ctx context.Context, faceID, emotion string) (string, error) {
	var info struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, "/api/sessions", map[string]string{"face_id": faceID, "emotion": emotion}, &info)
	return info.ID, err
}

// drive starts playback and publishes a pulsing window at 30 Hz.
func (c *client) drive(ctx context.Context, id string) {
	base := "/api/sessions/" + id
	if err := c.post(ctx, base+"/playback", map[string]string{"signal": "playing"}, nil); err != nil {
		log.Warn("playback signal failed", "error", err)
		return
	}
	defer func() {
		_ = c.post(context.WithoutCancel(ctx), base+"/playback", map[string]string{"signal": "completed"}, nil)
	}()

	ticker := time.NewTicker(time.Second / 30)
	defer ticker.Stop()
	start := time.Now()
	window := make([]float64, 128)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t := now.Sub(start).Seconds()
			level := 0.5 + 0.5*math.Sin(2*math.Pi*1.5*t)
			for i := range window {
				window[i] = level * math.Exp(-float64(i)/40)
			}
			if err := c.post(ctx, base+"/amplitude", map[string][]float64{"window": window}, nil); err != nil {
				log.Warn("amplitude publish failed", "error", err)
				return
			}
		}
	}
}

func (c *client) watch(ctx context.Context, id string, every int) error {
	u, err := url.Parse(c.base)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/sessions/" + id

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	log.Info("streaming frames", "url", u.String())
	var n int
	for {
		var f animator.Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if n%every == 0 {
			fmt.Println(summarize(f))
		}
		n++
	}
}

func summarize(f animator.Frame) string {
	return fmt.Sprintf("#%-6d t=%7.2fs %-9s %-8s %s opacity=%.2f spread=%.4f",
		f.Seq, f.Time, f.Mode, f.Emotion, f.Color, f.Opacity, spread(f.Contours))
}

// spread is the mean vertex distance from each contour's centroid.
func spread(set contour.Set) float64 {
	var sum float64
	var n int
	for _, c := range set {
		center := c.Centroid()
		for _, p := range c.Points {
			sum += r3.Norm(r3.Sub(p, center))
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
