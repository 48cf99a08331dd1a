package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/storage"
)

// failingInserts delegates to a real store but refuses bulk inserts.
type failingInserts struct {
	storage.EntryRepository
}

func (failingInserts) InsertMany(ctx context.Context, entries []internal.TimelineEntry) ([]internal.TimelineEntry, error) {
	return nil, errors.New("disk full")
}

func TestSynchronizeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	conn := connect(t, store, "u1", ProviderGitHub)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	adapter := &stubAdapter{name: ProviderGitHub, candidates: []internal.TimelineEntry{
		candidate("1-acme/app", base),
		candidate("2-acme/app", base.Add(time.Hour)),
		candidate("1-acme/app", base),
	}}
	engine := NewEngine(store, store, internal.NopLogger())

	first := base.Add(24 * time.Hour)
	engine.now = fixedClock(first)
	created, err := engine.Synchronize(ctx, adapter, "u1", "github")
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, e := range created {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "u1", e.UserID)
		assert.True(t, first.Equal(e.CreatedAt))
	}

	got, err := store.GetConnection(ctx, "u1", ProviderGitHub)
	require.NoError(t, err)
	assert.True(t, first.Equal(got.LastSyncAt))

	second := first.Add(time.Hour)
	engine.now = fixedClock(second)
	created, err = engine.Synchronize(ctx, adapter, "u1", "GITHUB")
	require.NoError(t, err)
	assert.NotNil(t, created)
	assert.Empty(t, created)

	got, err = store.GetConnection(ctx, "u1", ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, conn.ID, got.ID)
	assert.True(t, second.Equal(got.LastSyncAt))

	list, err := store.ListEntries(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSynchronizeWithoutConnection(t *testing.T) {
	store := newTestStore(t)
	adapter := &stubAdapter{name: ProviderNotion}
	engine := NewEngine(store, store, internal.NopLogger())

	created, err := engine.Synchronize(context.Background(), adapter, "u1", "Notion")
	require.NoError(t, err)
	assert.NotNil(t, created)
	assert.Empty(t, created)
	assert.Zero(t, adapter.fetches)
}

func TestSynchronizeRejectsForeignProvider(t *testing.T) {
	store := newTestStore(t)
	engine := NewEngine(store, store, internal.NopLogger())

	_, err := engine.Synchronize(context.Background(), &stubAdapter{name: ProviderGitHub}, "u1", "Notion")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), `"Notion"`)
}

func TestSynchronizeKeepsWatermarkWhenInsertFails(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	conn := connect(t, store, "u1", ProviderGitHub)
	before := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateLastSync(ctx, conn.ID, before))

	adapter := &stubAdapter{name: ProviderGitHub, candidates: []internal.TimelineEntry{candidate("1-acme/app", before)}}
	engine := NewEngine(store, failingInserts{store}, internal.NopLogger())

	_, err := engine.Synchronize(ctx, adapter, "u1", ProviderGitHub)
	var persist *PersistenceError
	require.True(t, errors.As(err, &persist))
	assert.Equal(t, "insert entries", persist.Op)

	got, err := store.GetConnection(ctx, "u1", ProviderGitHub)
	require.NoError(t, err)
	assert.True(t, before.Equal(got.LastSyncAt))
}

func TestSynchronizeAdvancesWatermarkOnEmptyBatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	connect(t, store, "u1", ProviderNotion)
	engine := NewEngine(store, store, internal.NopLogger())
	at := time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)
	engine.now = fixedClock(at)

	created, err := engine.Synchronize(ctx, &stubAdapter{name: ProviderNotion}, "u1", ProviderNotion)
	require.NoError(t, err)
	assert.Empty(t, created)

	got, err := store.GetConnection(ctx, "u1", ProviderNotion)
	require.NoError(t, err)
	assert.True(t, at.Equal(got.LastSyncAt))
}

func TestSynchronizeFetchErrorLeavesStoreAlone(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	connect(t, store, "u1", ProviderGitHub)
	engine := NewEngine(store, store, internal.NopLogger())
	fetchErr := &RemoteAPIError{Provider: ProviderGitHub, Op: "list events", StatusCode: 403}

	_, err := engine.Synchronize(ctx, &stubAdapter{name: ProviderGitHub, err: fetchErr}, "u1", ProviderGitHub)
	assert.Same(t, fetchErr, err)

	got, err := store.GetConnection(ctx, "u1", ProviderGitHub)
	require.NoError(t, err)
	assert.True(t, got.LastSyncAt.IsZero())
}

func TestSynchronizeExpiredCredential(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	conn := &internal.Connection{UserID: "u1", Provider: ProviderGitHub, AccessToken: "old", RefreshToken: "r", TokenExpiresAt: time.Now().Add(-time.Hour), IsActive: true}
	require.NoError(t, store.UpsertConnection(ctx, conn))
	engine := NewEngine(store, store, internal.NopLogger())

	refuses := &stubAdapter{name: ProviderGitHub}
	_, err := engine.Synchronize(ctx, refuses, "u1", ProviderGitHub)
	assert.ErrorIs(t, err, ErrCredentialExpired)
	assert.Zero(t, refuses.fetches)

	renews := &stubAdapter{name: ProviderGitHub, refresh: func(c *internal.Connection) (bool, error) {
		c.AccessToken = "new"
		c.TokenExpiresAt = time.Now().Add(time.Hour)
		return true, nil
	}}
	_, err = engine.Synchronize(ctx, renews, "u1", ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, 1, renews.fetches)

	got, err := store.GetConnection(ctx, "u1", ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
}

func TestIngestSkipsCandidatesWithoutExternalID(t *testing.T) {
	store := newTestStore(t)
	engine := NewEngine(store, store, internal.NopLogger())

	created, err := engine.Ingest(context.Background(), "u1", ProviderNotion, []internal.TimelineEntry{
		candidate("", time.Now()),
		candidate("page-1", time.Now()),
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "page-1", created[0].ExternalID)
	assert.Equal(t, ProviderNotion, created[0].SourceProvider)
}
