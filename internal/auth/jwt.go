package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
)

// Claims carried by session tokens. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider validates HS256 session tokens issued by the login flow.
type JWTProvider struct {
	secret   []byte
	issuer   string
	audience string
	logger   internal.Logger
}

func NewJWTProvider(secret []byte, issuer, audience string, logger internal.Logger) *JWTProvider {
	return &JWTProvider{secret: secret, issuer: issuer, audience: audience, logger: logger}
}

func (p *JWTProvider) ValidateToken(ctx context.Context, token string) (*internal.User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		p.logger.Warnf("jwt auth: rejected token: %v", err)
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		p.logger.Warnf("jwt auth: token has no subject")
		return nil, ErrInvalidToken
	}
	return &internal.User{ID: claims.Subject, Email: claims.Email, DisplayName: claims.Name}, nil
}

// IssueToken signs a session token for user valid for ttl.
func (p *JWTProvider) IssueToken(user *internal.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: user.Email,
		Name:  user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if p.audience != "" {
		claims.Audience = jwt.ClaimStrings{p.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("jwt auth: sign token: %w", err)
	}
	return signed, nil
}
