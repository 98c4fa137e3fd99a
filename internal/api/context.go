package api

import (
	"context"
	"sync/atomic"

	"github.com/saschahuberzh/SeoulChat/internal/auth"
)

type contextKey string

const (
	userIdKey   contextKey = "user-id"
	rotationKey contextKey = "pending-rotation"
)

func WithUserId(ctx context.Context, userId string) context.Context {
	return context.WithValue(ctx, userIdKey, userId)
}

func UserId(ctx context.Context) (string, bool) {
	userId, ok := ctx.Value(userIdKey).(string)

	return userId, ok && userId != ""
}

// pendingRotation is a background rotation started for the current request.
// Once dropped, its cookies are never attached to the response.
type pendingRotation struct {
	rotation *auth.Rotation
	dropped  atomic.Bool
}

func withPendingRotation(ctx context.Context, p *pendingRotation) context.Context {
	return context.WithValue(ctx, rotationKey, p)
}

// dropPendingRotation waits for the request's background rotation to settle
// and keeps its cookies off the response. The rotation is bounded by its own
// timeout, so the wait ignores cancellation of ctx.
func dropPendingRotation(ctx context.Context) {
	p, ok := ctx.Value(rotationKey).(*pendingRotation)
	if !ok {
		return
	}

	p.dropped.Store(true)
	_, _ = p.rotation.Wait(context.WithoutCancel(ctx))
}
