package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
)

const (
	defaultNotionBaseURL = "https://api.notion.com"
	defaultNotionVersion = "2022-06-28"
	notionSearchPageSize = 20
	notionQueryPageSize  = 50
	notionUntitled       = "(Untitled)"

	// NotionEntryType labels every entry imported from Notion.
	NotionEntryType internal.EntryType = "notion"
)

// NotionOptions extends RemoteOptions with the API version header value.
type NotionOptions struct {
	RemoteOptions
	Version string
}

// NotionSettings is the per-connection configuration stored in
// Connection.Settings. An empty DatabaseIDs imports every visible database.
type NotionSettings struct {
	DatabaseIDs []string `json:"database_ids,omitempty"`
}

// ParseNotionSettings decodes raw connection settings. Missing or malformed
// settings yield the defaults.
func ParseNotionSettings(raw json.RawMessage) NotionSettings {
	var s NotionSettings
	if len(bytes.TrimSpace(raw)) == 0 {
		return s
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return NotionSettings{}
	}
	return s
}

func (s NotionSettings) includes(databaseID string) bool {
	if len(s.DatabaseIDs) == 0 {
		return true
	}
	want := canonicalNotionID(databaseID)
	for _, id := range s.DatabaseIDs {
		if canonicalNotionID(id) == want {
			return true
		}
	}
	return false
}

// Notion ids are accepted with or without dashes.
func canonicalNotionID(id string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(id), "-", ""))
}

// NotionAdapter imports pages from every database the integration token can
// see, or from the subset listed in the connection settings.
type NotionAdapter struct {
	client *remoteClient
	logger internal.Logger
	now    func() time.Time
}

func NewNotionAdapter(opts NotionOptions, logger internal.Logger) *NotionAdapter {
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = defaultNotionVersion
	}
	headers := map[string]string{"Notion-Version": version}
	return &NotionAdapter{
		client: newRemoteClient(ProviderNotion, defaultNotionBaseURL, opts.RemoteOptions, headers, logger),
		logger: logger,
		now:    time.Now,
	}
}

func (a *NotionAdapter) Provider() string { return ProviderNotion }

// RefreshCredential always reports false: Notion integration tokens do not
// expire and have no refresh grant.
func (a *NotionAdapter) RefreshCredential(ctx context.Context, conn *internal.Connection) (bool, error) {
	return false, nil
}

type notionSearchRequest struct {
	Filter struct {
		Value    string `json:"value"`
		Property string `json:"property"`
	} `json:"filter"`
	PageSize int `json:"page_size"`
}

type notionQueryRequest struct {
	PageSize int `json:"page_size"`
}

type notionList struct {
	Results []json.RawMessage `json:"results"`
}

type notionMetadata struct {
	DatabaseID string `json:"database_id"`
}

func (a *NotionAdapter) FetchActivity(ctx context.Context, conn *internal.Connection) ([]internal.TimelineEntry, error) {
	token := conn.OAuthToken()
	settings := ParseNotionSettings(conn.Settings)
	a.logger.Debugf("notion: importing %s for user %s", settings, conn.UserID)

	search := notionSearchRequest{PageSize: notionSearchPageSize}
	search.Filter.Value = "database"
	search.Filter.Property = "object"
	var databases notionList
	if err := a.client.call(ctx, token, "search databases", http.MethodPost, "/v1/search", search, &databases); err != nil {
		return nil, err
	}

	var entries []internal.TimelineEntry
	for _, raw := range databases.Results {
		var db struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &db); err != nil || db.ID == "" {
			a.logger.Warnf("notion: skipping database result without id")
			continue
		}
		if !settings.includes(db.ID) {
			continue
		}

		var pages notionList
		path := "/v1/databases/" + url.PathEscape(db.ID) + "/query"
		if err := a.client.call(ctx, token, "query database", http.MethodPost, path, notionQueryRequest{PageSize: notionQueryPageSize}, &pages); err != nil {
			return nil, err
		}
		for _, page := range pages.Results {
			entry, ok := a.normalize(conn.UserID, db.ID, page)
			if ok {
				entries = append(entries, entry)
			}
		}
	}
	if entries == nil {
		entries = []internal.TimelineEntry{}
	}
	return entries, nil
}

func (a *NotionAdapter) normalize(userID, databaseID string, raw json.RawMessage) (internal.TimelineEntry, bool) {
	var page struct {
		ID         string          `json:"id"`
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(raw, &page); err != nil || page.ID == "" {
		a.logger.Warnf("notion: skipping page without id in database %s", databaseID)
		return internal.TimelineEntry{}, false
	}
	props, err := parseProperties(page.Properties)
	if err != nil {
		a.logger.Warnf("notion: page %s has unreadable properties: %v", page.ID, err)
	}

	entry := internal.TimelineEntry{
		UserID:         userID,
		Title:          notionUntitled,
		EventDate:      a.now().UTC(),
		EntryType:      NotionEntryType,
		SourceProvider: ProviderNotion,
		ExternalID:     page.ID,
	}
	if v, ok := props.first("title"); ok {
		if text := firstPlainText(v); text != "" {
			entry.Title = text
		}
	}
	if v, ok := props.first("rich_text"); ok {
		entry.Description = firstPlainText(v)
	}
	if v, ok := props.first("date"); ok {
		if t, ok := parseNotionDate(v); ok {
			entry.EventDate = t
		}
	}
	if v, ok := props.first("select"); ok {
		var sel struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(v, &sel) == nil {
			entry.Category = sel.Name
		}
	}
	if v, ok := props.first("url"); ok {
		var link string
		if json.Unmarshal(v, &link) == nil {
			entry.ExternalURL = link
		}
	}
	entry.Metadata, _ = json.Marshal(notionMetadata{DatabaseID: databaseID})
	return entry, true
}

// notionProperty is one page property as a set of typed fields, e.g.
// {"type":"title","title":[...]}.
type notionProperty map[string]json.RawMessage

// notionProperties keeps page properties in document order so that "first
// property with a title field" is well defined.
type notionProperties []notionProperty

// parseProperties walks the properties object token by token. Values that
// are not objects are ignored. On error the properties read so far are
// returned.
func parseProperties(raw json.RawMessage) (notionProperties, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("properties is not an object")
	}
	var props notionProperties
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return props, err
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return props, err
		}
		var prop notionProperty
		if json.Unmarshal(value, &prop) == nil && prop != nil {
			props = append(props, prop)
		}
	}
	return props, nil
}

// first returns the field named key from the first property that has it.
func (p notionProperties) first(key string) (json.RawMessage, bool) {
	for _, prop := range p {
		if v, ok := prop[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func firstPlainText(raw json.RawMessage) string {
	var segments []struct {
		PlainText string `json:"plain_text"`
	}
	if err := json.Unmarshal(raw, &segments); err != nil || len(segments) == 0 {
		return ""
	}
	return segments[0].PlainText
}

func parseNotionDate(raw json.RawMessage) (time.Time, bool) {
	var d struct {
		Start string `json:"start"`
	}
	if err := json.Unmarshal(raw, &d); err != nil || d.Start == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, d.Start); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (s NotionSettings) String() string {
	if len(s.DatabaseIDs) == 0 {
		return "all databases"
	}
	return fmt.Sprintf("%d database(s)", len(s.DatabaseIDs))
}
