// Package middleware wraps command receivers with cross-cutting behavior.
//
// The same middleware serves both sides of a hand-off: wrap the receiver
// passed to gateway.New, or wrap the processing function of a consumer.
//
//	receiver := middleware.Chain(queue,
//	    middleware.Recovery(logger),
//	    middleware.Tracing(tracer),
//	)
package middleware

import "github.com/plaenen/commandgateway/pkg/gateway"

// Middleware decorates a receiver.
type Middleware func(next gateway.Receiver) gateway.Receiver

// Chain applies middleware to r. The first middleware is the outermost.
func Chain(r gateway.Receiver, middleware ...Middleware) gateway.Receiver {
	for i := len(middleware) - 1; i >= 0; i-- {
		r = middleware[i](r)
	}
	return r
}
