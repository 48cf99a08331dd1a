package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
)

const notionPages = `{"results": [
	{"id": "page-1", "properties": {
		"Name": {"type": "title", "title": [{"plain_text": "Ran a marathon"}, {"plain_text": "ignored"}]},
		"Notes": {"type": "rich_text", "rich_text": [{"plain_text": "42km"}]},
		"Summary": {"type": "rich_text", "rich_text": [{"plain_text": "second text field"}]},
		"When": {"type": "date", "date": {"start": "2024-04-21"}},
		"Kind": {"type": "select", "select": {"name": "Sport"}},
		"Link": {"type": "url", "url": "https://example.com/race"}
	}},
	{"id": "page-2", "properties": {
		"Name": {"type": "title", "title": []},
		"When": {"type": "date", "date": {"start": "someday"}},
		"Kind": {"type": "select", "select": null},
		"Link": {"type": "url", "url": null}
	}},
	{"properties": {"Name": {"type": "title", "title": [{"plain_text": "no id"}]}}},
	{"id": "page-4", "properties": {"When": {"type": "date", "date": {"start": "2024-05-01T10:30:00.000+02:00"}}}}
]}`

type notionServer struct {
	*httptest.Server
	mu      sync.Mutex
	queried []string
}

func (ns *notionServer) paths() []string {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	out := ns.queried
	ns.queried = nil
	return out
}

func newNotionServer(t *testing.T, databases string) *notionServer {
	t.Helper()
	ns := &notionServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		assert.Equal(t, "Bearer tok-u1", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"filter":{"value":"database","property":"object"},"page_size":20}`, string(body))
		w.Write([]byte(databases))
	})
	mux.HandleFunc("/v1/databases/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"page_size":50}`, string(body))
		ns.mu.Lock()
		ns.queried = append(ns.queried, r.URL.Path)
		ns.mu.Unlock()
		if r.URL.Path == "/v1/databases/db-1/query" {
			w.Write([]byte(notionPages))
			return
		}
		w.Write([]byte(`{"results": []}`))
	})
	ns.Server = httptest.NewServer(mux)
	t.Cleanup(ns.Close)
	return ns
}

func notionConn(settings string) *internal.Connection {
	conn := &internal.Connection{ID: "c2", UserID: "u1", Provider: ProviderNotion, AccessToken: "tok-u1", IsActive: true}
	if settings != "" {
		conn.Settings = json.RawMessage(settings)
	}
	return conn
}

func TestNotionPageExtraction(t *testing.T) {
	srv := newNotionServer(t, `{"results": [{"id": "db-1"}]}`)
	a := NewNotionAdapter(NotionOptions{RemoteOptions: RemoteOptions{BaseURL: srv.URL}}, internal.NopLogger())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = fixedClock(now)

	entries, err := a.FetchActivity(context.Background(), notionConn(""))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	full := entries[0]
	assert.Equal(t, "Ran a marathon", full.Title)
	assert.Equal(t, "42km", full.Description)
	assert.True(t, time.Date(2024, 4, 21, 0, 0, 0, 0, time.UTC).Equal(full.EventDate))
	assert.Equal(t, "Sport", full.Category)
	assert.Equal(t, "https://example.com/race", full.ExternalURL)
	assert.Equal(t, "page-1", full.ExternalID)
	assert.Equal(t, NotionEntryType, full.EntryType)
	assert.Equal(t, ProviderNotion, full.SourceProvider)
	assert.JSONEq(t, `{"database_id":"db-1"}`, string(full.Metadata))

	sparse := entries[1]
	assert.Equal(t, "(Untitled)", sparse.Title)
	assert.Empty(t, sparse.Description)
	assert.Empty(t, sparse.Category)
	assert.Empty(t, sparse.ExternalURL)
	assert.True(t, now.Equal(sparse.EventDate))

	timed := entries[2]
	assert.Equal(t, "(Untitled)", timed.Title)
	assert.True(t, time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC).Equal(timed.EventDate))
}

func TestNotionSettingsRestrictDatabases(t *testing.T) {
	srv := newNotionServer(t, `{"results": [{"id": "db-1"}, {"id": "db-2"}, {"object": "database"}]}`)
	a := NewNotionAdapter(NotionOptions{RemoteOptions: RemoteOptions{BaseURL: srv.URL}}, internal.NopLogger())

	entries, err := a.FetchActivity(context.Background(), notionConn(`{"database_ids": ["DB-2"]}`))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, []string{"/v1/databases/db-2/query"}, srv.paths())

	_, err = a.FetchActivity(context.Background(), notionConn(`not json`))
	require.NoError(t, err)
	assert.Equal(t, []string{"/v1/databases/db-1/query", "/v1/databases/db-2/query"}, srv.paths())
}

func TestParsePropertiesKeepsDocumentOrder(t *testing.T) {
	props, err := parseProperties(json.RawMessage(`{
		"Zeta": {"rich_text": [{"plain_text": "first"}]},
		"Alpha": {"rich_text": [{"plain_text": "second"}]},
		"Broken": 17
	}`))
	require.NoError(t, err)
	require.Len(t, props, 2)
	v, ok := props.first("rich_text")
	require.True(t, ok)
	assert.Equal(t, "first", firstPlainText(v))

	_, ok = props.first("title")
	assert.False(t, ok)

	_, err = parseProperties(json.RawMessage(`[1,2]`))
	assert.Error(t, err)
	props, err = parseProperties(nil)
	assert.NoError(t, err)
	assert.Empty(t, props)
}

func TestParseNotionSettings(t *testing.T) {
	assert.Empty(t, ParseNotionSettings(nil).DatabaseIDs)
	assert.Empty(t, ParseNotionSettings(json.RawMessage(`{"database_ids": 3}`)).DatabaseIDs)
	s := ParseNotionSettings(json.RawMessage(`{"database_ids": ["a-b-c"]}`))
	assert.True(t, s.includes("ABC"))
	assert.False(t, s.includes("abd"))
}
