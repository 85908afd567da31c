package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"

	"github.com/osa030/spinbox/internal/infra/config"
)

const (
	// ControlTokenHeader is the header name for the control token.
	ControlTokenHeader = "X-Control-Token"
)

// TokenInterceptor validates the control token on unary and streaming calls.
// With no token configured every call is allowed.
type TokenInterceptor struct {
	token string
}

// NewTokenInterceptor creates an interceptor for the configured control token.
func NewTokenInterceptor(cfg *config.Config) *TokenInterceptor {
	return &TokenInterceptor{token: cfg.Control.Token}
}

// Ensure TokenInterceptor implements the interface.
var _ connect.Interceptor = (*TokenInterceptor)(nil)

// WrapUnary checks the token before a unary call.
func (i *TokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		if err := i.check(req.Header().Get(ControlTokenHeader)); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient leaves client streams untouched.
func (i *TokenInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler checks the token before a streaming call.
func (i *TokenInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := i.check(conn.RequestHeader().Get(ControlTokenHeader)); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

func (i *TokenInterceptor) check(token string) error {
	if i.token == "" {
		return nil
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(i.token)) != 1 {
		return connect.NewError(connect.CodeUnauthenticated, nil)
	}
	return nil
}

// ClientTokenInterceptor attaches the control token to outgoing calls.
type ClientTokenInterceptor struct {
	token string
}

// NewClientTokenInterceptor creates a client interceptor for token.
func NewClientTokenInterceptor(token string) *ClientTokenInterceptor {
	return &ClientTokenInterceptor{token: token}
}

// Ensure ClientTokenInterceptor implements the interface.
var _ connect.Interceptor = (*ClientTokenInterceptor)(nil)

// WrapUnary sets the token header on unary calls.
func (i *ClientTokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if i.token != "" && req.Spec().IsClient {
			req.Header().Set(ControlTokenHeader, i.token)
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient sets the token header on streaming calls.
func (i *ClientTokenInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		if i.token != "" {
			conn.RequestHeader().Set(ControlTokenHeader, i.token)
		}
		return conn
	}
}

// WrapStreamingHandler leaves handler streams untouched.
func (i *ClientTokenInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
