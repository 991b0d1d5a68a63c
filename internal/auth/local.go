package auth

import (
	"context"
	"errors"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/storage"
)

// LocalAuthProvider checks tokens against the users registered in storage.
type LocalAuthProvider struct {
	users  storage.UserRepository
	logger internal.Logger
}

func (a *LocalAuthProvider) Authenticate(ctx context.Context, token string) (*internal.User, error) {
	user, err := a.users.GetUserByToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Warnf("auth: unknown token")
		return nil, ErrInvalidToken
	}
	if err != nil {
		a.logger.Errorf("auth: failed to look up token: %v", err)
		return nil, err
	}
	return user, nil
}

func NewLocalAuthProvider(users storage.UserRepository, logger internal.Logger) *LocalAuthProvider {
	return &LocalAuthProvider{users: users, logger: logger}
}
