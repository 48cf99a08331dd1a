package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/config"
)

var ErrInvalidToken = errors.New("invalid token")

// Provider resolves a bearer token to the user it was issued for.
type Provider interface {
	ValidateToken(ctx context.Context, token string) (*internal.User, error)
}

// NewFromConfig picks the provider selected by AUTH_MODE.
func NewFromConfig(cfg *config.Config, logger internal.Logger) (Provider, error) {
	switch cfg.AuthMode {
	case "local":
		return NewLocalAuthProvider(cfg.AuthLocalToken, logger), nil
	case "jwt":
		return NewJWTProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, logger), nil
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.AuthMode)
	}
}
