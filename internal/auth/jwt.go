package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Luis200410/Improve/internal"
)

type userClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// JWTAuthProvider accepts HMAC-signed tokens whose subject is the user id.
// Expiry is mandatory; the issuer is checked when configured.
type JWTAuthProvider struct {
	secret []byte
	issuer string
	now    func() time.Time
	logger internal.Logger
}

func NewJWTAuthProvider(secret []byte, issuer string, logger internal.Logger) *JWTAuthProvider {
	return &JWTAuthProvider{secret: secret, issuer: issuer, now: time.Now, logger: logger}
}

func (a *JWTAuthProvider) Authenticate(ctx context.Context, token string) (*internal.User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims userClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		a.logger.Warnf("auth: rejected jwt: %v", err)
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		a.logger.Warnf("auth: jwt without subject")
		return nil, ErrInvalidToken
	}
	return &internal.User{ID: claims.Subject, Name: claims.Name}, nil
}
