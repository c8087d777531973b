package core

import "context"

// ThreadRole names the engine thread a piece of work is running on. Go has no
// thread identity, so the role travels in the context.
type ThreadRole uint8

const (
	RoleUnknown ThreadRole = iota
	RoleMain
	RoleRender
	RoleLoading
	RoleWorker
)

func (r ThreadRole) String() string {
	switch r {
	case RoleMain:
		return "main"
	case RoleRender:
		return "render"
	case RoleLoading:
		return "loading"
	case RoleWorker:
		return "worker"
	}
	return "unknown"
}

type threadRoleKey struct{}

// WithThreadRole returns a context tagged with the given role.
func WithThreadRole(ctx context.Context, role ThreadRole) context.Context {
	return context.WithValue(ctx, threadRoleKey{}, role)
}

// ThreadRoleFrom returns the role stored in ctx, or RoleUnknown.
func ThreadRoleFrom(ctx context.Context) ThreadRole {
	if ctx == nil {
		return RoleUnknown
	}
	if r, ok := ctx.Value(threadRoleKey{}).(ThreadRole); ok {
		return r
	}
	return RoleUnknown
}
