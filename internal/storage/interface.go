package storage

import (
	"context"
	"errors"
	"time"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrConflict = errors.New("storage: conflict")
)

// ConnectionRepository is the credential store. Provider arguments are
// matched case-insensitively.
type ConnectionRepository interface {
	GetActiveConnection(ctx context.Context, userID, provider string) (*internal.Connection, error)
	GetConnection(ctx context.Context, userID, provider string) (*internal.Connection, error)
	ListConnections(ctx context.Context, userID string) ([]internal.Connection, error)
	UpsertConnection(ctx context.Context, conn *internal.Connection) error
	DeactivateConnection(ctx context.Context, userID, provider string) error
	UpdateLastSync(ctx context.Context, connectionID string, at time.Time) error
}

// EntryRepository persists timeline entries. InsertMany skips rows whose
// (user, source provider, external id) already exists and returns only the
// rows it committed. UpdateEntry changes only the user-editable fields and
// refreshes entry from the stored row.
type EntryRepository interface {
	Exists(ctx context.Context, userID, sourceProvider, externalID string) (bool, error)
	ExistingExternalIDs(ctx context.Context, userID, sourceProvider string, externalIDs []string) (map[string]bool, error)
	InsertMany(ctx context.Context, entries []internal.TimelineEntry) ([]internal.TimelineEntry, error)
	CreateEntry(ctx context.Context, entry *internal.TimelineEntry) error
	GetEntry(ctx context.Context, userID, id string) (*internal.TimelineEntry, error)
	ListEntries(ctx context.Context, userID string) ([]internal.TimelineEntry, error)
	UpdateEntry(ctx context.Context, entry *internal.TimelineEntry) error
	DeleteEntry(ctx context.Context, userID, id string) error
}

type Store interface {
	ConnectionRepository
	EntryRepository
	// PurgeUser removes every connection and entry owned by userID.
	PurgeUser(ctx context.Context, userID string) error
	Close() error
}
