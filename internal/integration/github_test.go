package integration

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
)

func newGitHubServer(t *testing.T, events string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-u1", r.Header.Get("Authorization"))
		assert.Equal(t, "personal-timeline-backend-app", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		w.Write([]byte(`{"login":"octo"}`))
	})
	mux.HandleFunc("/users/octo/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(events))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func githubConn() *internal.Connection {
	return &internal.Connection{ID: "c1", UserID: "u1", Provider: ProviderGitHub, AccessToken: "tok-u1", IsActive: true}
}

func TestGitHubPushNormalization(t *testing.T) {
	srv := newGitHubServer(t, `[{
		"id": "9001", "type": "PushEvent", "created_at": "2025-02-03T04:05:06Z",
		"repo": {"name": "acme/app"},
		"payload": {"ref": "refs/heads/main", "commits": [{}, {}],
			"head_commit": {"message": "fix bug", "url": "https://github.com/acme/app/commit/abc"}}
	}]`)
	a := NewGitHubAdapter(RemoteOptions{BaseURL: srv.URL}, internal.NopLogger())

	entries, err := a.FetchActivity(context.Background(), githubConn())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "Pushed 2 commit(s) to acme/app on main", e.Title)
	assert.Equal(t, "fix bug", e.Description)
	assert.Equal(t, "https://github.com/acme/app/commit/abc", e.ExternalURL)
	assert.Equal(t, internal.EntryActivity, e.EntryType)
	assert.Equal(t, "Development", e.Category)
	assert.Equal(t, "9001-acme/app", e.ExternalID)
	assert.Equal(t, ProviderGitHub, e.SourceProvider)
	assert.Equal(t, "u1", e.UserID)
	assert.True(t, time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC).Equal(e.EventDate))
	assert.JSONEq(t, `{"event_type":"PushEvent","repo":"acme/app"}`, string(e.Metadata))
}

func TestGitHubRecognizedEventKinds(t *testing.T) {
	srv := newGitHubServer(t, `[
		{"id": "1", "type": "PushEvent", "repo": {"name": "acme/app"}, "payload": {"commits": []}},
		{"id": "2", "type": "WatchEvent", "repo": {"name": "acme/app"}, "payload": {"action": "started"}},
		{"id": "3", "type": "PullRequestEvent", "repo": {"name": "acme/app"},
			"payload": {"action": "opened", "number": 7, "pull_request": {"title": "Add login", "html_url": "https://github.com/acme/app/pull/7"}}},
		{"id": "4", "type": "CreateEvent", "repo": {"name": "acme/app"}, "payload": {"ref_type": "branch"}},
		{"id": 5, "type": "CreateEvent", "repo": {"name": "acme/new"}, "payload": {"ref_type": "repository", "description": "fresh"}},
		{"id": "6", "type": "IssuesEvent", "repo": {"name": "acme/app"},
			"payload": {"action": "closed", "number": 3, "issue": {"title": "Crash", "html_url": "https://github.com/acme/app/issues/3"}}},
		{"type": "PushEvent", "repo": {"name": "acme/app"}},
		"not an object"
	]`)
	a := NewGitHubAdapter(RemoteOptions{BaseURL: srv.URL}, internal.NopLogger())
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a.now = fixedClock(now)

	entries, err := a.FetchActivity(context.Background(), githubConn())
	require.NoError(t, err)
	require.Len(t, entries, 4)

	push := entries[0]
	assert.Equal(t, "Pushed 0 commit(s) to acme/app on unknown branch", push.Title)
	assert.Equal(t, "https://github.com/acme/app/activity", push.ExternalURL)
	assert.True(t, now.Equal(push.EventDate))

	pr := entries[1]
	assert.Equal(t, "Pull Request opened: #7 Add login in acme/app", pr.Title)
	assert.Equal(t, "https://github.com/acme/app/pull/7", pr.ExternalURL)

	repo := entries[2]
	assert.Equal(t, "Created new repository acme/new", repo.Title)
	assert.Equal(t, "fresh", repo.Description)
	assert.Equal(t, "https://github.com/acme/new", repo.ExternalURL)
	assert.Equal(t, "5-acme/new", repo.ExternalID)

	issue := entries[3]
	assert.Equal(t, "Issue closed: #3 Crash in acme/app", issue.Title)
	assert.Equal(t, "https://github.com/acme/app/issues/3", issue.ExternalURL)
}

func TestGitHubRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer srv.Close()
	a := NewGitHubAdapter(RemoteOptions{BaseURL: srv.URL}, internal.NopLogger())

	_, err := a.FetchActivity(context.Background(), githubConn())
	var remote *RemoteAPIError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
	assert.Equal(t, "resolve user", remote.Op)
	assert.Contains(t, remote.Body, "Bad credentials")
}

func TestGitHubTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	a := NewGitHubAdapter(RemoteOptions{BaseURL: url, Timeout: time.Second}, internal.NopLogger())

	_, err := a.FetchActivity(context.Background(), githubConn())
	var transport *TransportError
	require.True(t, errors.As(err, &transport))
	assert.Equal(t, ProviderGitHub, transport.Provider)
}

func TestGitHubUndecodableFeed(t *testing.T) {
	srv := newGitHubServer(t, `{"message":"not a list"}`)
	a := NewGitHubAdapter(RemoteOptions{BaseURL: srv.URL}, internal.NopLogger())

	_, err := a.FetchActivity(context.Background(), githubConn())
	var remote *RemoteAPIError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "list events", remote.Op)
}
