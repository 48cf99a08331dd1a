package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/storage"
)

// Engine runs one adapter for one user: credential check, fetch, dedup,
// persist, then advance the connection watermark.
type Engine struct {
	connections storage.ConnectionRepository
	entries     storage.EntryRepository
	logger      internal.Logger
	now         func() time.Time
}

func NewEngine(connections storage.ConnectionRepository, entries storage.EntryRepository, logger internal.Logger) *Engine {
	return &Engine{connections: connections, entries: entries, logger: logger, now: time.Now}
}

// Synchronize returns the entries created by this call. A user without an
// active connection gets an empty result. The last-sync watermark moves only
// after the batch is persisted, including when the batch is empty.
func (e *Engine) Synchronize(ctx context.Context, adapter Adapter, userID, provider string) ([]internal.TimelineEntry, error) {
	if !strings.EqualFold(strings.TrimSpace(provider), adapter.Provider()) {
		return nil, fmt.Errorf("%w: %s adapter cannot sync provider %q", ErrInvalidArgument, adapter.Provider(), provider)
	}
	source := adapter.Provider()

	conn, err := e.connections.GetActiveConnection(ctx, userID, source)
	if errors.Is(err, storage.ErrNotFound) {
		e.logger.Infof("sync %s: no active connection for user %s", source, userID)
		return []internal.TimelineEntry{}, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load connection", Err: err}
	}

	if err := e.ensureCredential(ctx, adapter, conn); err != nil {
		return nil, err
	}

	candidates, err := adapter.FetchActivity(ctx, conn)
	if err != nil {
		return nil, err
	}

	created, err := e.Ingest(ctx, userID, source, candidates)
	if err != nil {
		return nil, err
	}

	if err := e.connections.UpdateLastSync(ctx, conn.ID, e.now().UTC()); err != nil {
		return nil, &PersistenceError{Op: "update last sync", Err: err}
	}
	e.logger.Infof("sync %s: user %s fetched %d candidates, created %d entries", source, userID, len(candidates), len(created))
	return created, nil
}

func (e *Engine) ensureCredential(ctx context.Context, adapter Adapter, conn *internal.Connection) error {
	token := conn.OAuthToken()
	if token.AccessToken == "" {
		return fmt.Errorf("%w: no access token stored for %s", ErrCredentialExpired, adapter.Provider())
	}
	if token.Valid() {
		return nil
	}
	refreshed, err := adapter.RefreshCredential(ctx, conn)
	if err != nil {
		return err
	}
	if !refreshed {
		return fmt.Errorf("%w: %s token expired at %s", ErrCredentialExpired, adapter.Provider(), conn.TokenExpiresAt.Format(time.RFC3339))
	}
	conn.UpdatedAt = e.now().UTC()
	if err := e.connections.UpsertConnection(ctx, conn); err != nil {
		return &PersistenceError{Op: "store refreshed credential", Err: err}
	}
	return nil
}

// Ingest drops candidates already stored for (userID, source) or repeated
// within the batch, stamps the rest and inserts them. It returns only the
// entries the store committed.
func (e *Engine) Ingest(ctx context.Context, userID, source string, candidates []internal.TimelineEntry) ([]internal.TimelineEntry, error) {
	if len(candidates) == 0 {
		return []internal.TimelineEntry{}, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.ExternalID != "" {
			ids = append(ids, c.ExternalID)
		}
	}
	existing, err := e.entries.ExistingExternalIDs(ctx, userID, source, ids)
	if err != nil {
		return nil, &PersistenceError{Op: "check existing entries", Err: err}
	}

	now := e.now().UTC()
	seen := make(map[string]bool, len(candidates))
	fresh := make([]internal.TimelineEntry, 0, len(candidates))
	for _, c := range candidates {
		if c.ExternalID == "" {
			e.logger.Warnf("sync %s: dropping candidate %q without external id", source, c.Title)
			continue
		}
		if existing[c.ExternalID] || seen[c.ExternalID] {
			continue
		}
		seen[c.ExternalID] = true

		c.ID = uuid.NewString()
		c.UserID = userID
		c.SourceProvider = source
		c.EventDate = c.EventDate.UTC()
		c.CreatedAt = now
		c.UpdatedAt = now
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return []internal.TimelineEntry{}, nil
	}

	created, err := e.entries.InsertMany(ctx, fresh)
	if err != nil {
		return nil, &PersistenceError{Op: "insert entries", Err: err}
	}
	if created == nil {
		created = []internal.TimelineEntry{}
	}
	return created, nil
}
