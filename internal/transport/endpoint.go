package transport

import "log"

// Endpoint is the opaque handle for one live connection. Implementations own
// the underlying socket; holders must stop using a handle once the connection
// reports disconnect.
type Endpoint interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() string
	// Send delivers one event to the connection, fire-and-forget.
	Send(v any) error
}

// Fanout delivers v to every endpoint, best effort. A failed delivery is
// logged and never aborts delivery to the remaining endpoints.
func Fanout(endpoints []Endpoint, v any) {
	for _, ep := range endpoints {
		if err := ep.Send(v); err != nil {
			log.Printf("[transport] send to endpoint %s failed: %v", ep.ID(), err)
		}
	}
}
