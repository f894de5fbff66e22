package middleware

import "context"

type ownerKey struct{}

type ownerIdentity struct {
	email     string
	sessionID string
}

// WithOwner injects the authenticated owner into the context.
func WithOwner(ctx context.Context, email, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ownerKey{}, ownerIdentity{email: email, sessionID: sessionID})
}

func ownerFrom(ctx context.Context) ownerIdentity {
	if ctx == nil {
		return ownerIdentity{}
	}
	id, _ := ctx.Value(ownerKey{}).(ownerIdentity)
	return id
}

func OwnerEmailFromContext(ctx context.Context) string { return ownerFrom(ctx).email }

func SessionIDFromContext(ctx context.Context) string { return ownerFrom(ctx).sessionID }
