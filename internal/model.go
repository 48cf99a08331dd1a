package internal

import (
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

type User struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

type EntryType string

const (
	EntryAchievement EntryType = "Achievement"
	EntryActivity    EntryType = "Activity"
	EntryMilestone   EntryType = "Milestone"
	EntryMemory      EntryType = "Memory"
)

// Connection links one user to one third-party provider. Provider is
// compared case-insensitively; at most one connection exists per pair.
type Connection struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Provider       string          `json:"provider"`
	AccessToken    string          `json:"access_token"`
	RefreshToken   string          `json:"refresh_token,omitempty"`
	TokenExpiresAt time.Time       `json:"token_expires_at,omitempty"`
	LastSyncAt     time.Time       `json:"last_sync_at,omitempty"`
	IsActive       bool            `json:"is_active"`
	Settings       json.RawMessage `json:"settings,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OAuthToken exposes the stored credential in the shape the remote
// transports expect. A zero TokenExpiresAt means the token never expires.
func (c *Connection) OAuthToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.TokenExpiresAt,
	}
}

// TimelineEntry is a normalized activity record. When SourceProvider and
// ExternalID are both set, (UserID, SourceProvider, ExternalID) is unique.
type TimelineEntry struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	EventDate      time.Time       `json:"event_date"`
	EntryType      EntryType       `json:"entry_type"`
	Category       string          `json:"category,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
	ExternalURL    string          `json:"external_url,omitempty"`
	SourceProvider string          `json:"source_provider,omitempty"`
	ExternalID     string          `json:"external_id,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// HasSourceKey reports whether the entry participates in deduplication.
func (e *TimelineEntry) HasSourceKey() bool {
	return e.SourceProvider != "" && e.ExternalID != ""
}

// ConnectionSummary is the credential-free view of a Connection.
type ConnectionSummary struct {
	Provider   string    `json:"provider"`
	IsActive   bool      `json:"is_active"`
	LastSyncAt time.Time `json:"last_sync_at"`
}

func (c *Connection) Summary() ConnectionSummary {
	return ConnectionSummary{Provider: c.Provider, IsActive: c.IsActive, LastSyncAt: c.LastSyncAt}
}
