package auth

import (
	"context"
)

type ctxKey string

const userKey ctxKey = "userClaims"

type Claims struct {
	Subject string
	Role    string
	JWTID   string
}

// RoleIn reports whether the claim's role is in the allow-set.
func (c Claims) RoleIn(roles ...string) bool {
	for _, r := range roles {
		if r == c.Role {
			return true
		}
	}
	return false
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}

func Subject(ctx context.Context) string {
	return FromContext(ctx).Subject
}

func Role(ctx context.Context) string {
	return FromContext(ctx).Role
}
