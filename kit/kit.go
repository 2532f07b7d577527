// Package kit holds the small transport-agnostic endpoint abstraction shared
// by the HTTP and MCP surfaces: an Endpoint is a typed request in, typed
// response out function, and transport adapters decode into it.
package kit

import "context"

// Endpoint is one service operation, independent of transport.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first wraps outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
