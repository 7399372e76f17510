package auth

import "context"

// Role values recognized by the authorization policy.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor identifies the authenticated caller of a request.
type Actor struct {
	ID   string
	Role string
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a context carrying the authenticated actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the authenticated actor if present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}
