package llm

import (
	"context"
)

// Client sends one request to a provider and waits for the full response.
// Transports translate provider failures into *Error.
type Client interface {
	Synchronous(ctx context.Context, req *Request) (*Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req *Request) (*Response, error)

// Synchronous calls f.
func (f ClientFunc) Synchronous(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// ClientFactory builds a transport for a resolved native model. It lives
// outside this package so provider SDKs are not imported here.
type ClientFactory func(res *Resolution) (Client, error)
