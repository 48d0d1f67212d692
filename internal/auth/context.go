package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const ownerKey contextKey = "owner"

func WithOwner(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerKey, ownerID)
}

func OwnerFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ownerKey).(uuid.UUID)
	return id
}
