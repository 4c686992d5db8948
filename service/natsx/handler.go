package natsx

import "golang.org/x/net/context"

// Message is the unified inbound message shape.
type Message struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

// Handler processes one inbound message.
type Handler func(ctx context.Context, msg Message) error

// Middleware wraps handlers (logging, idempotency, retries).
type Middleware func(Handler) Handler

// Chain composes middlewares around a handler.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
