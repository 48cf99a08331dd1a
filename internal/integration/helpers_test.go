package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/storage"
)

func newTestStore(t *testing.T) *storage.FileStorage {
	t.Helper()
	dir := t.TempDir()
	s, err := storage.NewFileStorage(filepath.Join(dir, "connections.json"), filepath.Join(dir, "entries.json"), internal.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func connect(t *testing.T, s storage.ConnectionRepository, userID, provider string) *internal.Connection {
	t.Helper()
	conn := &internal.Connection{UserID: userID, Provider: provider, AccessToken: "tok-" + userID, IsActive: true}
	require.NoError(t, s.UpsertConnection(context.Background(), conn))
	return conn
}

// stubAdapter returns canned candidates and records how often it was used.
type stubAdapter struct {
	name       string
	candidates []internal.TimelineEntry
	err        error
	refresh    func(conn *internal.Connection) (bool, error)
	fetches    int
}

func (a *stubAdapter) Provider() string { return a.name }

func (a *stubAdapter) FetchActivity(ctx context.Context, conn *internal.Connection) ([]internal.TimelineEntry, error) {
	a.fetches++
	if a.err != nil {
		return nil, a.err
	}
	out := make([]internal.TimelineEntry, len(a.candidates))
	copy(out, a.candidates)
	for i := range out {
		out[i].UserID = conn.UserID
		out[i].SourceProvider = a.name
	}
	return out, nil
}

func (a *stubAdapter) RefreshCredential(ctx context.Context, conn *internal.Connection) (bool, error) {
	if a.refresh == nil {
		return false, nil
	}
	return a.refresh(conn)
}

func candidate(externalID string, at time.Time) internal.TimelineEntry {
	return internal.TimelineEntry{
		Title:      "event " + externalID,
		EventDate:  at,
		EntryType:  internal.EntryActivity,
		Category:   "Development",
		ExternalID: externalID,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
