package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type principalKey struct{}

// Principal is the caller Auth resolved from the access token.
type Principal struct {
	UserID    uuid.UUID
	Email     string
	AccessID  string
	ExpiresAt time.Time
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserIDFromContext returns uuid.Nil on routes Auth does not guard.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}

// AccessIDFromContext returns the jti the request authenticated with.
func AccessIDFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.AccessID
}

// WithUserID stands in a principal that carries only a user id.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	p, _ := PrincipalFromContext(ctx)
	p.UserID = userID
	return WithPrincipal(ctx, p)
}
