package shared

import "context"

type contextKey string

const actorKey contextKey = "actor-id"

// WithActor stores the authenticated user id on the context.
func WithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

// ActorID returns the authenticated user id, or zero when anonymous.
func ActorID(ctx context.Context) int64 {
	if id, ok := ctx.Value(actorKey).(int64); ok {
		return id
	}
	return 0
}
