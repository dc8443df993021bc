package identity

import "context"

type ctxKey string

const (
	ownerCtxKey ctxKey = "owner"
	guestCtxKey ctxKey = "guest_token"
	roleCtxKey  ctxKey = "role"
	emailCtxKey ctxKey = "email"
)

const RoleAdmin = "ADMIN"

func WithOwner(ctx context.Context, owner OwnerKey) context.Context {
	return context.WithValue(ctx, ownerCtxKey, owner)
}

// FromContext returns the owner resolved by the middleware.
func FromContext(ctx context.Context) (OwnerKey, bool) {
	owner, ok := ctx.Value(ownerCtxKey).(OwnerKey)
	if !ok || !owner.Valid() {
		return OwnerKey{}, false
	}
	return owner, true
}

func WithGuestToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, guestCtxKey, token)
}

// GuestTokenFromContext returns the visitor's guest session token, which is
// kept even after the visitor authenticates so the anonymous cart can be merged.
func GuestTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(guestCtxKey).(string)
	return token
}

func WithAccount(ctx context.Context, email, role string) context.Context {
	ctx = context.WithValue(ctx, emailCtxKey, email)
	return context.WithValue(ctx, roleCtxKey, role)
}

func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(emailCtxKey).(string)
	return email
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleCtxKey).(string)
	return role
}

func IsAdmin(ctx context.Context) bool {
	owner, ok := FromContext(ctx)
	return ok && owner.Kind() == KindAccount && RoleFromContext(ctx) == RoleAdmin
}
