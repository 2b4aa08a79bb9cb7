package handlers

import (
	"net/http"
	"time"

	"github.com/Harshitk-cp/reflex/internal/service"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamHandler pushes engine state over a websocket: one snapshot message
// on connect, then a delta message per broadcast.
type StreamHandler struct {
	broadcaster *service.DeltaBroadcaster
	logger      *zap.Logger
}

func NewStreamHandler(broadcaster *service.DeltaBroadcaster, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{broadcaster: broadcaster, logger: logger}
}

func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	// Subscribe before taking the snapshot so no change falls in between.
	updates, cancel := h.broadcaster.Subscribe()
	defer cancel()

	if err := h.send(ws, h.broadcaster.Snapshot()); err != nil {
		return
	}

	closed := make(chan struct{})
	go h.readLoop(ws, closed)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-updates:
			if !ok {
				// Dropped for falling behind or shutting down.
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "resubscribe"),
					time.Now().Add(writeWait))
				return
			}
			if err := h.send(ws, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) send(ws *websocket.Conn, msg service.DeltaMessage) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}

// readLoop discards client messages and notices disconnects.
func (h *StreamHandler) readLoop(ws *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
