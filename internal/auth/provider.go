package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/config"
	"github.com/Luis200410/Improve/internal/storage"
)

// ErrInvalidToken is returned when a bearer token does not identify a user.
var ErrInvalidToken = fmt.Errorf("%w: invalid token", internal.ErrUnauthorized)

// Provider resolves a bearer token to the user it belongs to.
type Provider interface {
	Authenticate(ctx context.Context, token string) (*internal.User, error)
}

// NewProvider builds the provider selected by cfg.AuthMode.
func NewProvider(cfg *config.Config, users storage.UserRepository, logger internal.Logger) (Provider, error) {
	switch cfg.AuthMode {
	case config.AuthLocal:
		return NewLocalAuthProvider(users, logger), nil
	case config.AuthRemote:
		return NewRemoteAuthProvider(cfg.AuthServiceURL, logger), nil
	case config.AuthJWT:
		return NewJWTAuthProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, logger), nil
	}
	return nil, errors.New("auth: unknown mode " + cfg.AuthMode)
}
