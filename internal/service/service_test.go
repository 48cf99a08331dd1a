package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/storage"
)

func setupTestStorage(t *testing.T) *storage.FileStorage {
	dir := t.TempDir()
	s, err := storage.NewFileStorage(filepath.Join(dir, "connections.json"), filepath.Join(dir, "entries.json"), internal.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var testUser = &internal.User{ID: "u1", DisplayName: "Test User"}

func TestValidateEntryRequest(t *testing.T) {
	valid := EntryRequest{Title: "Graduated", EventDate: time.Now(), EntryType: "Milestone"}
	assert.NoError(t, ValidateEntryRequest(&valid))

	missingDate := valid
	missingDate.EventDate = time.Time{}
	assert.Error(t, ValidateEntryRequest(&missingDate))

	wrongType := valid
	wrongType.EntryType = "notion"
	assert.Error(t, ValidateEntryRequest(&wrongType))

	badURL := valid
	badURL.ExternalURL = "not a url"
	assert.Error(t, ValidateEntryRequest(&badURL))
}

func TestCreateEntryIsManual(t *testing.T) {
	s := setupTestStorage(t)
	at := time.Date(2020, 6, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	req := &EntryRequest{Title: "  Graduated  ", EventDate: at, EntryType: "Milestone"}

	entry, err := CreateEntry(context.Background(), s, testUser, req)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "Graduated", entry.Title)
	assert.Equal(t, time.UTC, entry.EventDate.Location())
	assert.False(t, entry.HasSourceKey())

	again, err := CreateEntry(context.Background(), s, testUser, req)
	require.NoError(t, err)
	assert.NotEqual(t, entry.ID, again.ID)
}

func TestUpdateEntryKeepsSourceFields(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)
	synced, err := s.InsertMany(ctx, []internal.TimelineEntry{{
		UserID: "u1", Title: "Pushed", EventDate: time.Now().UTC(), EntryType: internal.EntryActivity,
		SourceProvider: "GitHub", ExternalID: "1-acme/app", Metadata: json.RawMessage(`{"repo":"acme/app"}`),
	}})
	require.NoError(t, err)
	id := synced[0].ID

	req := &EntryRequest{Title: " Shipped v1 ", EventDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), EntryType: "Achievement"}
	updated, err := UpdateEntry(ctx, s, testUser, id, req)
	require.NoError(t, err)
	assert.Equal(t, "Shipped v1", updated.Title)
	assert.Equal(t, internal.EntryAchievement, updated.EntryType)
	assert.Equal(t, "GitHub", updated.SourceProvider)
	assert.Equal(t, "1-acme/app", updated.ExternalID)
	assert.JSONEq(t, `{"repo":"acme/app"}`, string(updated.Metadata))

	exists, err := s.Exists(ctx, "u1", "GitHub", "1-acme/app")
	require.NoError(t, err)
	assert.True(t, exists)

	req.ID = "other"
	_, err = UpdateEntry(ctx, s, testUser, id, req)
	assert.ErrorIs(t, err, ErrEntryIDMismatch)

	req.ID = ""
	_, err = UpdateEntry(ctx, s, &internal.User{ID: "u2"}, id, req)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestValidateConnectRequest(t *testing.T) {
	assert.Error(t, ValidateConnectRequest(&ConnectRequest{}))
	assert.NoError(t, ValidateConnectRequest(&ConnectRequest{AccessToken: "ghp_x"}))
	assert.ErrorIs(t, ValidateConnectRequest(&ConnectRequest{AccessToken: "x", Settings: json.RawMessage(`[1]`)}), ErrInvalidSettings)
	assert.NoError(t, ValidateConnectRequest(&ConnectRequest{AccessToken: "x", Settings: json.RawMessage(`{"database_ids":["a"]}`)}))
}

func TestResolveProvider(t *testing.T) {
	known := []string{"GitHub", "Notion"}
	p, ok := ResolveProvider(known, " github ")
	assert.True(t, ok)
	assert.Equal(t, "GitHub", p)
	_, ok = ResolveProvider(known, "Bitbucket")
	assert.False(t, ok)
}

func TestConnectionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)
	exp := time.Now().Add(time.Hour)

	conn, err := Connect(ctx, s, testUser, "Notion", &ConnectRequest{AccessToken: " secret_1 ", ExpiresAt: &exp})
	require.NoError(t, err)
	assert.Equal(t, "secret_1", conn.AccessToken)
	assert.True(t, conn.IsActive)

	require.NoError(t, Disconnect(ctx, s, testUser, "notion"))
	summaries, err := ListConnections(ctx, s, testUser)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.False(t, summaries[0].IsActive)

	again, err := Connect(ctx, s, testUser, "Notion", &ConnectRequest{AccessToken: "secret_2"})
	require.NoError(t, err)
	assert.Equal(t, conn.ID, again.ID)
	assert.True(t, again.IsActive)

	assert.ErrorIs(t, Disconnect(ctx, s, testUser, "GitHub"), storage.ErrNotFound)
}
