package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/utils"
	"github.com/gorilla/websocket"
	"github.com/google/uuid"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocket message statuses.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketRequest is one recognition request. Image holds the encoded file,
// base64 in the JSON text frame.
type WebSocketRequest struct {
	RequestID string `json:"request_id,omitempty"`
	Image     []byte `json:"image"`
}

// WebSocketResponse reports the progress of one request.
type WebSocketResponse struct {
	Status    string           `json:"status"`
	RequestID string           `json:"request_id,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// wsWriter is the part of *websocket.Conn used to send messages.
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// websocketHandler upgrades the connection and serves requests until the
// client goes away.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	if id := RequestIDFromContext(r.Context()); id != "" {
		header.Set(RequestIDHeader, id)
	}
	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read failed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType != websocket.TextMessage {
			continue
		}
		s.handleWebSocketMessage(r, conn, data)
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	}
}

// handleWebSocketMessage answers one request with a processing message
// followed by completed or error.
func (s *Server) handleWebSocketMessage(r *http.Request, conn wsWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		sendWebSocket(conn, WebSocketResponse{Status: StatusError, Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	if len(req.Image) == 0 {
		sendWebSocket(conn, WebSocketResponse{Status: StatusError, RequestID: id, Error: "no image data provided"})
		return
	}

	sendWebSocket(conn, WebSocketResponse{Status: StatusProcessing, RequestID: id})

	img, _, err := utils.DecodeImage(bytes.NewReader(req.Image))
	if err != nil {
		sendWebSocket(conn, WebSocketResponse{Status: StatusError, RequestID: id, Error: "invalid image format"})
		return
	}
	res, _, err := s.recognize(r.Context(), "websocket", img)
	if err != nil {
		sendWebSocket(conn, WebSocketResponse{Status: StatusError, RequestID: id, Error: err.Error()})
		return
	}
	sendWebSocket(conn, WebSocketResponse{Status: StatusCompleted, RequestID: id, Result: &res})
}

func sendWebSocket(conn wsWriter, resp WebSocketResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
