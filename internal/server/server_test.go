package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/testutil"
	"github.com/MeKo-Tech/platescan/internal/validate"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	p, err := pipeline.NewBuilder().Build()
	require.NoError(t, err)
	cfg.PoolSize = 2
	s, err := NewServer(cfg, p, testutil.ScriptedFactory("07", "서1234", nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/recognize", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthHandler(t *testing.T) {
	s := &Server{version: "1.2.3"}

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodPost, http.StatusMethodNotAllowed},
		{http.MethodPut, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.healthHandler(w, httptest.NewRequest(tt.method, "/health", nil))
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				var resp HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "healthy", resp.Status)
				assert.Equal(t, "1.2.3", resp.Version)
				assert.NotEmpty(t, resp.Time)
			}
		})
	}
}

func TestRecognizeHandler(t *testing.T) {
	mux := newTestMux(newTestServer(t, DefaultConfig()))
	data := encodePNG(t, testutil.RenderPlate(testutil.DefaultPlateSpec()))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, multipartRequest(t, "image", "car.png", data))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp RecognizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "07서1234", resp.Result.PlateText)
	assert.Equal(t, validate.Full, resp.Result.Reliability)
	assert.Equal(t, "car.png", resp.Result.Path)

	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, resp.RequestID)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecognizeHandler_NoPlate(t *testing.T) {
	mux := newTestMux(newTestServer(t, DefaultConfig()))
	data := encodePNG(t, testutil.Blank(120, 80, testutil.Asphalt))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, multipartRequest(t, "image", "empty.png", data))

	require.Equal(t, http.StatusOK, w.Code)
	var resp RecognizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success, "a request without a plate still succeeds")
	assert.Equal(t, validate.Invalid, resp.Result.Reliability)
	assert.False(t, resp.Result.Success)
	assert.Empty(t, resp.Result.PlateText)
}

func TestRecognizeHandler_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxUploadMB = 1
	mux := newTestMux(newTestServer(t, cfg))

	t.Run("method", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/recognize", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, multipartRequest(t, "other", "x.png", []byte("x")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp RecognizeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "No image file provided", resp.Error)
	})

	t.Run("not an image", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, multipartRequest(t, "image", "x.png", []byte("definitely not a png")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, multipartRequest(t, "image", "big.png", bytes.Repeat([]byte{0}, 2*1024*1024)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("options preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/recognize", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

type emptyPool struct{}

func (emptyPool) Acquire(ctx context.Context) (recognizer.Engine, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (emptyPool) Release(recognizer.Engine) {}
func (emptyPool) Close() error               { return nil }

func TestRecognizeHandler_NoEngineAvailable(t *testing.T) {
	p, err := pipeline.NewBuilder().Build()
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	s := newServer(cfg, p, emptyPool{})

	w := httptest.NewRecorder()
	newTestMux(s).ServeHTTP(w, multipartRequest(t, "image", "car.png", encodePNG(t, testutil.RenderPlate(testutil.DefaultPlateSpec()))))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestIDIsPreserved(t *testing.T) {
	mux := newTestMux(newTestServer(t, DefaultConfig()))
	id := uuid.NewString()

	req := multipartRequest(t, "image", "x.png", []byte("junk"))
	req.Header.Set(RequestIDHeader, id)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))

	req = multipartRequest(t, "image", "x.png", []byte("junk"))
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newTestMux(newTestServer(t, DefaultConfig()))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, multipartRequest(t, "image", "car.png", encodePNG(t, testutil.RenderPlate(testutil.DefaultPlateSpec()))))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "platescan_recognitions_total")
	assert.Contains(t, w.Body.String(), "platescan_http_requests_total")
}

func TestWebSocket(t *testing.T) {
	ts := httptest.NewServer(newTestMux(newTestServer(t, DefaultConfig())))
	defer ts.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_, err = uuid.Parse(resp.Header.Get(RequestIDHeader))
	require.NoError(t, err)

	read := func() WebSocketResponse {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
		var msg WebSocketResponse
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	data := encodePNG(t, testutil.RenderPlate(testutil.DefaultPlateSpec()))
	require.NoError(t, conn.WriteJSON(WebSocketRequest{RequestID: "req-1", Image: data}))

	msg := read()
	assert.Equal(t, StatusProcessing, msg.Status)
	assert.Equal(t, "req-1", msg.RequestID)
	msg = read()
	require.Equal(t, StatusCompleted, msg.Status, msg.Error)
	require.NotNil(t, msg.Result)
	assert.Equal(t, "07서1234", msg.Result.PlateText)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"image":""}`)))
	msg = read()
	assert.Equal(t, StatusError, msg.Status)
	assert.NotEmpty(t, msg.RequestID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	assert.Equal(t, StatusError, read().Status)
}

type recordingWriter struct{ messages [][]byte }

func (r *recordingWriter) WriteMessage(_ int, data []byte) error {
	r.messages = append(r.messages, data)
	return nil
}

func TestHandleWebSocketMessage_InvalidImage(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	w := &recordingWriter{}
	payload, err := json.Marshal(WebSocketRequest{Image: []byte("junk")})
	require.NoError(t, err)

	s.handleWebSocketMessage(httptest.NewRequest(http.MethodGet, "/ws", nil), w, payload)

	require.Len(t, w.messages, 2)
	var last WebSocketResponse
	require.NoError(t, json.Unmarshal(w.messages[1], &last))
	assert.Equal(t, StatusError, last.Status)
	assert.Equal(t, "invalid image format", last.Error)
}

func TestNewServer_Errors(t *testing.T) {
	p, err := pipeline.NewBuilder().Build()
	require.NoError(t, err)

	_, err = NewServer(DefaultConfig(), nil, testutil.ScriptedFactory("", "", nil))
	require.Error(t, err)

	_, err = NewServer(DefaultConfig(), p, testutil.FailingFactory(errors.New("no tessdata")))
	require.ErrorIs(t, err, recognizer.ErrEngineInit)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerMinute = 2
	mux := newTestMux(newTestServer(t, cfg))

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/recognize", io.NopCloser(strings.NewReader(""))))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_Window(t *testing.T) {
	rl := NewRateLimiter(1)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, ok := rl.Allow("a", now)
	assert.True(t, ok)
	retry, ok := rl.Allow("a", now.Add(15*time.Second))
	assert.False(t, ok)
	assert.Equal(t, 45*time.Second, retry)
	_, ok = rl.Allow("b", now.Add(15*time.Second))
	assert.True(t, ok, "clients are independent")
	_, ok = rl.Allow("a", now.Add(time.Minute))
	assert.True(t, ok, "window resets after a minute")
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, "9.9.9.9:1", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": " 4.3.2.1 "}, "9.9.9.9:1", "4.3.2.1"},
		{"remote addr", nil, "10.0.0.1:5555", "10.0.0.1"},
		{"bare remote", nil, "10.0.0.1", "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
