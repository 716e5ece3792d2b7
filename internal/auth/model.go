package auth

import (
	"context"

	"go.uber.org/zap"
)

type tokenKeyType struct{}

var (
	tokenKey tokenKeyType
)

func UserFromContext(ctx context.Context) (User, bool) {
	val := ctx.Value(tokenKey)
	if val == nil {
		return User{}, false
	}
	return val.(User), true
}

func MustHaveUser(ctx context.Context) User {
	user, found := UserFromContext(ctx)
	if !found {
		zap.S().Named("auth").Panic("failed to find user in context")
	}
	return user
}

func NewTokenContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, tokenKey, u)
}

// User is the principal on whose behalf client-facing operations run.
// Organization scopes ownership of jobs; Admin unlocks the administrative
// surface (list/delete without the ownership filter).
type User struct {
	Username     string
	Organization string
	Admin        bool
}
