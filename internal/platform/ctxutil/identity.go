package ctxutil

import (
	"context"

	"github.com/yungbote/readiness-backend/internal/domain/assessment"
)

type identityKey struct{}

// Identity is the caller established from a bearer token.
type Identity struct {
	Subject string
	Email   string
	Tier    assessment.Tier
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// GetIdentity returns nil for anonymous requests.
func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return id
	}
	return nil
}
