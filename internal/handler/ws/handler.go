package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/clipdesk/backend/internal/model/event"
	"github.com/zhouzirui/clipdesk/backend/internal/service/membership"
	"github.com/zhouzirui/clipdesk/backend/internal/service/relay"
)

const (
	readWait     = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Handler owns the websocket surface: one connection per participant, one
// reader goroutine per connection driving inbound frames.
type Handler struct {
	manager  *membership.Manager
	router   *relay.Router
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(manager *membership.Manager, router *relay.Router) *Handler {
	return &Handler{
		manager: manager,
		router:  router,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ep := &endpoint{id: uuid.NewString(), conn: conn}
	defer h.manager.HandleDisconnect(ep)

	log.Printf("[websocket] new connection %s", ep.id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	go h.pingLoop(ctx, ep)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error on %s: %v", ep.id, err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readWait))
		h.handleFrame(ep, raw)
	}
}

func (h *Handler) handleFrame(ep *endpoint, raw []byte) {
	var frame event.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendError(ep, event.CodeInvalidMessageFormat, "malformed frame")
		return
	}

	switch frame.Kind {
	case event.FrameJoin:
		if err := h.manager.Join(frame.UserUUID, frame.DisplayName, frame.ChannelName, ep); err != nil {
			h.sendError(ep, event.CodeInvalidJoinRequest, err.Error())
		}

	case event.FrameLeave:
		h.manager.Leave(frame.UserUUID, frame.ChannelName)

	case event.FrameMessage:
		h.router.Dispatch(ep, frame.Message)

	default:
		h.sendError(ep, event.CodeUnknownMessageKind, "unknown frame kind: "+frame.Kind)
	}
}

func (h *Handler) sendError(ep *endpoint, code, message string) {
	if err := ep.Send(event.NewError(code, message)); err != nil {
		log.Printf("[websocket] error reply on %s failed: %v", ep.id, err)
	}
}

// pingLoop keeps the connection alive; the pong handler extends the read
// deadline.
func (h *Handler) pingLoop(ctx context.Context, ep *endpoint) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ep.ping(); err != nil {
				return
			}
		}
	}
}
