package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/storage"
)

var ErrInvalidSettings = errors.New("settings must be a JSON object")

// ConnectRequest stores a credential obtained out of band, e.g. a GitHub
// personal access token or a Notion internal integration token.
type ConnectRequest struct {
	AccessToken  string          `json:"access_token" validate:"required"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	Settings     json.RawMessage `json:"settings,omitempty"`
}

func ValidateConnectRequest(req *ConnectRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if len(req.Settings) > 0 {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(req.Settings, &obj); err != nil {
			return ErrInvalidSettings
		}
	}
	return nil
}

// ResolveProvider returns the canonical spelling of name among known.
func ResolveProvider(known []string, name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, p := range known {
		if strings.EqualFold(p, name) {
			return p, true
		}
	}
	return "", false
}

// Connect creates the user's connection to provider or replaces the
// credential of an existing one, reactivating it if it was disconnected.
func Connect(ctx context.Context, repo storage.ConnectionRepository, user *internal.User, provider string, req *ConnectRequest) (*internal.Connection, error) {
	conn := &internal.Connection{
		UserID:       user.ID,
		Provider:     provider,
		AccessToken:  strings.TrimSpace(req.AccessToken),
		RefreshToken: req.RefreshToken,
		IsActive:     true,
		Settings:     req.Settings,
	}
	if req.ExpiresAt != nil {
		conn.TokenExpiresAt = req.ExpiresAt.UTC()
	}
	if err := repo.UpsertConnection(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func ListConnections(ctx context.Context, repo storage.ConnectionRepository, user *internal.User) ([]internal.ConnectionSummary, error) {
	conns, err := repo.ListConnections(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	out := make([]internal.ConnectionSummary, 0, len(conns))
	for i := range conns {
		out = append(out, conns[i].Summary())
	}
	return out, nil
}

func Disconnect(ctx context.Context, repo storage.ConnectionRepository, user *internal.User, provider string) error {
	return repo.DeactivateConnection(ctx, user.ID, provider)
}
