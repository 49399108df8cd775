package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, conn Conn, payload json.RawMessage) error

// Router keeps a map[type]handler, à‑la gin.Engine.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
	validate *validator.Validate
}

func NewRouter() *Router {
	return &Router{
		handlers: make(map[string]rawHandler),
		validate: validator.New(),
	}
}

// Register binds a message type to a strongly‑typed handler. The payload is
// decoded into Req and validated before h runs.
func Register[Req any](
	r *Router,
	msgType string,
	h func(ctx context.Context, conn Conn, req Req) error,
) {
	if msgType == "" {
		panic("ws router: empty message type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[msgType] = func(ctx context.Context, conn Conn, payload json.RawMessage) error {
		var req Req
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, msgType, err)
			}
		}
		if err := r.validate.Struct(req); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, msgType, err)
		}
		return h(ctx, conn, req)
	}
}

// dispatch decodes one raw frame and runs the matching handler.
func (r *Router) dispatch(ctx context.Context, conn Conn, raw []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	r.mu.RLock()
	h, ok := r.handlers[env.Type]
	r.mu.RUnlock()
	if !ok {
		return env.Type, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return env.Type, h(ctx, conn, env.Payload)
}
