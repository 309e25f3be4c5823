package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/facewave/internal/log"
	"github.com/teslashibe/facewave/internal/observe/observetest"
	"github.com/teslashibe/facewave/pkg/amplitude"
	"github.com/teslashibe/facewave/pkg/animator"
	"github.com/teslashibe/facewave/pkg/contour"
	"github.com/teslashibe/facewave/pkg/emotions"
	"github.com/teslashibe/facewave/pkg/facestore"
	"github.com/teslashibe/facewave/pkg/landmark"
	"github.com/teslashibe/facewave/pkg/pipeline"
	"github.com/teslashibe/facewave/pkg/retarget"
	"github.com/teslashibe/facewave/pkg/style"
)

// fakeBuilder detects a face in any image whose content is "face".
type fakeBuilder struct {
	mu  sync.Mutex
	got []*style.Descriptors
}

func (b *fakeBuilder) Build(_ context.Context, images [][]byte, d *style.Descriptors) (*pipeline.Result, error) {
	b.mu.Lock()
	b.got = append(b.got, d)
	b.mu.Unlock()

	if len(images) == 0 {
		return pipeline.TemplateResult(0), pipeline.ErrNoImages
	}
	detected := 0
	for _, img := range images {
		if string(img) == "face" {
			detected++
		}
	}
	if detected == 0 {
		return pipeline.TemplateResult(len(images)), pipeline.ErrNoFaceDetected
	}

	params, mode := style.Synthesize(d, testMeasurements(0.8))
	return &pipeline.Result{
		Contours:     contour.Template(),
		Source:       pipeline.SourceRetargeted,
		Style:        params,
		StyleMode:    mode,
		Measurements: testMeasurements(0.8),
		Factors:      &retarget.Factors{FaceWidth: 1.07, Eye: 1, Nose: 1, Mouth: 1},
		Images:       len(images),
		Detected:     detected,
	}, nil
}

func (b *fakeBuilder) last() *style.Descriptors {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.got[len(b.got)-1]
}

func testMeasurements(width float64) landmark.Measurements {
	return landmark.Measurements{
		FaceWidth:   width,
		FaceHeight:  1,
		EyeDistance: 0.25 * width,
		NoseWidth:   0.3 * width,
		MouthWidth:  0.35 * width,
	}
}

type testEnv struct {
	srv      *Server
	store    *facestore.JSONStore
	sessions *Sessions
	builder  *fakeBuilder
	metrics  *observetest.Reader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := facestore.NewJSONStore(filepath.Join(t.TempDir(), "faces.json"))
	require.NoError(t, err)

	metrics, reader := observetest.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cfg := animator.DefaultConfig()
	cfg.FrameRate = 120
	sessions := NewSessions(ctx, animator.New(cfg, nil), SessionsOptions{
		Metrics: metrics,
		Logger:  log.Discard(),
	})
	t.Cleanup(func() {
		sessions.Close()
		cancel()
	})

	builder := &fakeBuilder{}
	srv := NewServer(Options{
		Builder:  builder,
		Store:    store,
		Sessions: sessions,
		Metrics:  metrics,
		Logger:   log.Discard(),
	})
	return &testEnv{srv: srv, store: store, sessions: sessions, builder: builder, metrics: reader}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.srv.App().Test(req, 5000)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, body
}

func (e *testEnv) json(t *testing.T, method, path string, v any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	if v != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.do(t, req)
}

func uploadRequest(t *testing.T, fields map[string]string, images ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for i, img := range images {
		part, err := w.CreateFormFile("images", "capture"+string(rune('a'+i))+".jpg")
		require.NoError(t, err)
		_, err = part.Write([]byte(img))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/faces", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.json(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "ok", got["status"])
	assert.EqualValues(t, 0, got["faces"])
	assert.EqualValues(t, 0, got["sessions"])
	assert.Equal(t, uint64(1), env.metrics.Count("facewave.http.request.duration"))
}

func TestTemplate(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.json(t, http.MethodGet, "/api/template", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, pipeline.SourceTemplate, res.Source)
	assert.NoError(t, contour.Template().SameTopology(res.Contours))
	assert.Equal(t, style.ModeFallback, res.StyleMode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.json(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCreateFace(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, uploadRequest(t, map[string]string{
		"name": "ada",
		"hair": "LENGTH: long\nDIRECTION: up/spiky",
	}, "face", "blurry", "face"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var got BuildResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.NotNil(t, got.Face)
	assert.NotEmpty(t, got.Face.ID)
	assert.Equal(t, "ada", got.Face.Name)
	assert.False(t, got.Fallback)
	assert.Equal(t, 3, got.Images)
	assert.Equal(t, 2, got.Detected)
	assert.Equal(t, style.ModeDescriptor, got.Face.StyleMode)

	d := env.builder.last()
	require.NotNil(t, d)
	assert.Equal(t, "long", d.Length)
	assert.Equal(t, "up/spiky", d.Direction)

	resp, body = env.json(t, http.MethodGet, "/api/faces", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []FaceSummary
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, got.Face.ID, list[0].ID)

	resp, body = env.json(t, http.MethodGet, "/api/faces/"+got.Face.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec facestore.Record
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Len(t, rec.Contours, len(contour.Template()))

	resp, _ = env.json(t, http.MethodDelete, "/api/faces/"+got.Face.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.json(t, http.MethodGet, "/api/faces/"+got.Face.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateFaceDescriptorFields(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, uploadRequest(t, map[string]string{
		"texture": "Curly",
	}, "face"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	d := env.builder.last()
	require.NotNil(t, d)
	assert.Equal(t, "curly", d.Texture)
	assert.Equal(t, style.DefaultDescriptors().Length, d.Length)
}

func TestCreateFaceWithoutHair(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, uploadRequest(t, map[string]string{"hair": "no idea"}, "face"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Nil(t, env.builder.last())

	var got BuildResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, style.ModeFallback, got.Face.StyleMode)
}

func TestCreateFaceFallsBackToTemplate(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, uploadRequest(t, nil, "wall", "ceiling"))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var got BuildResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Fallback)
	assert.Nil(t, got.Face)
	assert.Equal(t, 2, got.Images)
	assert.NoError(t, contour.Template().SameTopology(got.Contours))

	n, err := env.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateFaceRejectsBadUploads(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, uploadRequest(t, map[string]string{"name": "nobody"}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.json(t, http.MethodPost, "/api/faces", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	images := make([]string, maxImages+1)
	for i := range images {
		images[i] = "face"
	}
	resp, _ = env.do(t, uploadRequest(t, nil, images...))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSimilarFaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for _, w := range []float64{0.75, 0.76, 0.95} {
		rec := &facestore.Record{Source: pipeline.SourceRetargeted, Measurements: testMeasurements(w)}
		require.NoError(t, env.store.Save(ctx, rec))
		ids = append(ids, rec.ID)
	}

	resp, body := env.json(t, http.MethodGet, "/api/faces/"+ids[0]+"/similar?k=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var matches []facestore.Match
	require.NoError(t, json.Unmarshal(body, &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, ids[1], matches[0].Record.ID)

	resp, _ = env.json(t, http.MethodGet, "/api/faces/missing/similar", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.json(t, http.MethodPost, "/api/sessions", CreateSessionRequest{Emotion: "joy"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var info SessionInfo
	require.NoError(t, json.Unmarshal(body, &info))
	require.NotEmpty(t, info.ID)
	assert.Equal(t, "/ws/sessions/"+info.ID, info.Stream)

	live, ok := env.sessions.Get(info.ID)
	require.True(t, ok)
	assert.Equal(t, emotions.Joy, live.Emotion())

	base := "/api/sessions/" + info.ID

	resp, body = env.json(t, http.MethodPost, base+"/emotion", map[string]string{"emotion": "anger"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"emotion":"anger","color":"#ff4444"}`, string(body))

	resp, body = env.json(t, http.MethodPost, base+"/emotion", map[string]string{"text": "I'm so worried about this"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"emotion":"concern","color":"#ff8800"}`, string(body))

	resp, _ = env.json(t, http.MethodPost, base+"/emotion", map[string]string{"emotion": "ecstatic"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.json(t, http.MethodPost, base+"/playback", map[string]string{"signal": "playing"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.json(t, http.MethodPost, base+"/playback", map[string]string{"signal": "rewind"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.json(t, http.MethodPost, base+"/amplitude", map[string][]float64{"window": {0.2, 0.9, 1.5}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []float64{0.2, 0.9, 1}, []float64(live.Source().Latest()))

	req := httptest.NewRequest(http.MethodPost, base+"/amplitude", bytes.NewReader([]byte{0, 255}))
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, _ = env.do(t, req)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []float64{0, 1}, []float64(live.Source().Latest()))

	resp, _ = env.json(t, http.MethodPost, base+"/amplitude", map[string][]float64{"window": {}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.Eventually(t, func() bool {
		return live.Snapshot().Mode == animator.Animating
	}, 2*time.Second, 5*time.Millisecond)

	resp, body = env.json(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state SessionState
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, info.ID, state.ID)
	assert.Equal(t, animator.Animating, state.Frame.Mode)

	resp, body = env.json(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []SessionInfo
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)

	resp, _ = env.json(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, env.sessions.Count())

	resp, _ = env.json(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.json(t, http.MethodPost, base+"/playback", map[string]string{"signal": "playing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionForStoredFace(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.json(t, http.MethodPost, "/api/sessions", CreateSessionRequest{FaceID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.json(t, http.MethodPost, "/api/sessions", CreateSessionRequest{Emotion: "ecstatic"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	set := contour.Template()
	set[0].Points[0].X += 0.01
	rec := &facestore.Record{Source: pipeline.SourceRetargeted, Contours: set}
	require.NoError(t, env.store.Save(context.Background(), rec))

	resp, body := env.json(t, http.MethodPost, "/api/sessions", CreateSessionRequest{FaceID: rec.ID, Seed: 42})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var info SessionInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, rec.ID, info.FaceID)

	live, ok := env.sessions.Get(info.ID)
	require.True(t, ok)
	assert.Equal(t, set[0].Points[0], live.Snapshot().Contours[0].Points[0])
}

func TestSessionWebSocket(t *testing.T) {
	env := newTestEnv(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go env.srv.Serve(ln)
	t.Cleanup(func() { _ = env.srv.Shutdown(context.Background()) })

	live := env.sessions.Start("", contour.Template(), 1)
	url := "ws://" + ln.Addr().String() + "/ws/sessions/" + live.ID

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first animator.Frame
	require.NoError(t, ws.ReadJSON(&first))
	assert.Len(t, first.Contours, len(contour.Template()))

	require.Eventually(t, func() bool { return live.Hub().ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	live.SetEmotion(emotions.Surprise)
	live.Signal(animator.Playing)
	live.Source().Publish([]float64{1, 1, 1, 1})

	for {
		var f animator.Frame
		require.NoError(t, ws.ReadJSON(&f))
		if f.Mode == animator.Animating {
			assert.Equal(t, emotions.Surprise, f.Emotion)
			assert.Greater(t, f.Seq, first.Seq)
			break
		}
	}

	require.NoError(t, env.sessions.Stop(live.ID))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/sessions/missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)
	live := env.sessions.Start("", contour.Template(), 1)

	resp, _ := env.json(t, http.MethodGet, "/ws/sessions/"+live.ID, nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestDescriptorsFromForm(t *testing.T) {
	d, err := descriptorsFromForm(map[string][]string{})
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = descriptorsFromForm(map[string][]string{"volume": {" HIGH "}, "style": {"Voluminous curls"}})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "high", d.Volume)
	assert.Equal(t, "voluminous curls", d.Style)
	assert.Equal(t, "neutral", d.Direction)

	_, err = descriptorsFromForm(map[string][]string{"hair": {"nothing useful"}})
	assert.ErrorIs(t, err, style.ErrNoDescriptors)

	assert.Equal(t, "", formValue(map[string][]string{"name": {}}, "name"))
	assert.Equal(t, "ada", formValue(map[string][]string{"name": {"ada  "}}, "name"))
}

func TestSessionsClose(t *testing.T) {
	env := newTestEnv(t)
	a := env.sessions.Start("", contour.Template(), 1)
	b := env.sessions.Start("", contour.Template(), 2)
	assert.Equal(t, 2, env.sessions.Count())
	assert.NotEqual(t, a.ID, b.ID)

	require.Eventually(t, func() bool {
		return env.metrics.Total("facewave.active_sessions") == 2
	}, 2*time.Second, 5*time.Millisecond)

	env.sessions.Close()
	<-a.Done()
	<-b.Done()
	assert.Zero(t, env.sessions.Count())
	assert.Zero(t, env.metrics.Total("facewave.active_sessions"))
	assert.ErrorIs(t, env.sessions.Stop(a.ID), ErrSessionNotFound)
}

func micOffer(t *testing.T) (*webrtc.PeerConnection, webrtc.SessionDescription) {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "mic")
	require.NoError(t, err)
	_, err = pc.AddTrack(track)
	require.NoError(t, err)

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	gathered := webrtc.GatheringCompletePromise(pc)
	require.NoError(t, pc.SetLocalDescription(offer))
	<-gathered
	return pc, *pc.LocalDescription()
}

func TestSessionWebRTC(t *testing.T) {
	env := newTestEnv(t)
	live := env.sessions.Start("", contour.Template(), 1)
	base := "/api/sessions/" + live.ID

	sender, offer := micOffer(t)
	resp, body := env.json(t, http.MethodPost, base+"/webrtc", offer)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var answer webrtc.SessionDescription
	require.NoError(t, json.Unmarshal(body, &answer))
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	require.NoError(t, sender.SetRemoteDescription(answer))
	assert.NotEmpty(t, live.Info().WebRTC)

	resp, _ = env.json(t, http.MethodPost, base+"/webrtc", map[string]string{"type": "offer", "sdp": "not sdp"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.json(t, http.MethodPost, "/api/sessions/missing/webrtc", offer)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, env.sessions.Stop(live.ID))
	assert.Empty(t, live.Info().WebRTC)
}

func TestSessionWebRTCRejectsSharedSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions := NewSessions(ctx, animator.New(animator.DefaultConfig(), nil), SessionsOptions{
		Source: amplitude.NewBuffer(),
		Logger: log.Discard(),
	})
	defer sessions.Close()

	live := sessions.Start("", contour.Template(), 1)
	_, offer := micOffer(t)
	_, err := sessions.Connect(ctx, live.ID, offer)
	assert.ErrorIs(t, err, ErrSharedSource)

	_, err = sessions.Connect(ctx, "missing", offer)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
