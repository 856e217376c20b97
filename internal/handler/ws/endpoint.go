package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// endpoint wraps one websocket connection behind the transport.Endpoint
// interface. A mutex serializes event writes so broadcasts from concurrent
// goroutines keep per-endpoint delivery order.
type endpoint struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (e *endpoint) ID() string {
	return e.id
}

func (e *endpoint) Send(v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteJSON(v)
}

// ping sends a control ping. Control frames may be written concurrently with
// regular writes, no mutex needed.
func (e *endpoint) ping() error {
	return e.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}
