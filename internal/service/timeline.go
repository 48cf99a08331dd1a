package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/storage"
)

// EntryRequest is a manually created timeline entry. Manual entries never
// carry a source provider, so they are exempt from sync deduplication.
type EntryRequest struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description,omitempty" validate:"omitempty,max=4000"`
	EventDate   time.Time `json:"event_date" validate:"required"`
	EntryType   string    `json:"entry_type" validate:"required,oneof=Achievement Activity Milestone Memory"`
	Category    string    `json:"category,omitempty" validate:"omitempty,max=100"`
	ImageURL    string    `json:"image_url,omitempty" validate:"omitempty,url"`
	ExternalURL string    `json:"external_url,omitempty" validate:"omitempty,url"`
}

// ErrEntryIDMismatch is returned when an update body names a different
// entry than the one addressed.
var ErrEntryIDMismatch = errors.New("entry id does not match request path")

func ValidateEntryRequest(req *EntryRequest) error {
	return validate.Struct(req)
}

func CreateEntry(ctx context.Context, repo storage.EntryRepository, user *internal.User, req *EntryRequest) (*internal.TimelineEntry, error) {
	now := time.Now().UTC()
	entry := &internal.TimelineEntry{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		EventDate:   req.EventDate.UTC(),
		EntryType:   internal.EntryType(req.EntryType),
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		ExternalURL: req.ExternalURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateEntry overwrites the editable fields of an existing entry. Source
// provider, external id and metadata are left untouched.
func UpdateEntry(ctx context.Context, repo storage.EntryRepository, user *internal.User, id string, req *EntryRequest) (*internal.TimelineEntry, error) {
	if req.ID != "" && req.ID != id {
		return nil, ErrEntryIDMismatch
	}
	entry := &internal.TimelineEntry{
		ID:          id,
		UserID:      user.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		EventDate:   req.EventDate.UTC(),
		EntryType:   internal.EntryType(req.EntryType),
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		ExternalURL: req.ExternalURL,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := repo.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
