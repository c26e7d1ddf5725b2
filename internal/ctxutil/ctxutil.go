// Package ctxutil provides shared context key accessors.
//
// It exists to break the circular dependency between server and mcpserver:
// server imports mcpserver to mount the StreamableHTTP transport, and
// mcpserver needs to read the JWT claims that server's auth middleware
// populates on the request context. Both packages import ctxutil instead
// of each other.
package ctxutil

import (
	"context"

	"github.com/veritas-labs/mse/internal/auth"
)

type contextKey string

const keyClaims contextKey = "claims"

// WithClaims returns a new context carrying the given claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, keyClaims, claims)
}

// ClaimsFromContext extracts the JWT claims from the context, if present.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if v, ok := ctx.Value(keyClaims).(*auth.Claims); ok {
		return v
	}
	return nil
}
