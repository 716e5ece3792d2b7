package auth

import (
	"net/http"
)

// LocalAuthenticator reads the identity from headers set by a trusted
// reverse proxy in front of the service. The proxy performs the actual
// authentication; requests reaching this service directly must be blocked
// at the network level.
type LocalAuthenticator struct{}

func NewLocalAuthenticator() (*LocalAuthenticator, error) {
	return &LocalAuthenticator{}, nil
}

func (a *LocalAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get("X-Backoffice-User")
		orgID := r.Header.Get("X-Backoffice-Org")
		if username == "" || orgID == "" {
			http.Error(w, "identity headers missing", http.StatusUnauthorized)
			return
		}

		user := User{
			Username:     username,
			Organization: orgID,
			Admin:        r.Header.Get("X-Backoffice-Admin") == "true",
		}

		ctx := NewTokenContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
