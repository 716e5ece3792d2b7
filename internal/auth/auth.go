package auth

import (
	"fmt"
	"net/http"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticator(next http.Handler) http.Handler
}

const (
	LocalAuthentication string = "local"
	NoneAuthentication  string = "none"
)

func NewAuthenticator(authenticationType string) (Authenticator, error) {
	zap.S().Named("auth").Infof("authentication: '%s'", authenticationType)

	if authenticationType != "" && !funk.Contains([]string{LocalAuthentication, NoneAuthentication}, authenticationType) {
		return nil, fmt.Errorf("unknown authentication type %q", authenticationType)
	}

	switch authenticationType {
	case LocalAuthentication:
		return NewLocalAuthenticator()
	default:
		return NewNoneAuthenticator()
	}
}
