package auth

import (
	"context"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
)

// LocalAuthProvider accepts a single shared token and maps it to a demo
// user. Development only.
type LocalAuthProvider struct {
	Token  string
	logger internal.Logger
}

func (a *LocalAuthProvider) ValidateToken(ctx context.Context, token string) (*internal.User, error) {
	if token != "" && token == a.Token {
		return &internal.User{ID: "u1", DisplayName: "Demo User"}, nil
	}
	a.logger.Warnf("local auth: rejected token")
	return nil, ErrInvalidToken
}

func NewLocalAuthProvider(token string, logger internal.Logger) *LocalAuthProvider {
	return &LocalAuthProvider{Token: token, logger: logger}
}
