package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
)

const (
	defaultGitHubBaseURL   = "https://api.github.com"
	defaultGitHubUserAgent = "personal-timeline-backend-app"
	githubCategory         = "Development"
)

// GitHubAdapter turns the authenticated user's public event feed into
// timeline candidates. Push, repository creation, pull request and issue
// events are recognized; everything else is skipped.
type GitHubAdapter struct {
	client *remoteClient
	logger internal.Logger
	now    func() time.Time
}

func NewGitHubAdapter(opts RemoteOptions, logger internal.Logger) *GitHubAdapter {
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultGitHubUserAgent
	}
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	return &GitHubAdapter{
		client: newRemoteClient(ProviderGitHub, defaultGitHubBaseURL, opts, headers, logger),
		logger: logger,
		now:    time.Now,
	}
}

func (a *GitHubAdapter) Provider() string { return ProviderGitHub }

// RefreshCredential always reports false: personal access tokens and OAuth
// app tokens issued by GitHub do not carry a refresh grant.
func (a *GitHubAdapter) RefreshCredential(ctx context.Context, conn *internal.Connection) (bool, error) {
	return false, nil
}

func (a *GitHubAdapter) FetchActivity(ctx context.Context, conn *internal.Connection) ([]internal.TimelineEntry, error) {
	token := conn.OAuthToken()

	var user struct {
		Login string `json:"login"`
	}
	if err := a.client.call(ctx, token, "resolve user", http.MethodGet, "/user", nil, &user); err != nil {
		return nil, err
	}
	if user.Login == "" {
		return nil, &RemoteAPIError{Provider: ProviderGitHub, Op: "resolve user", StatusCode: http.StatusOK, Body: "response has no login"}
	}

	var events []json.RawMessage
	path := "/users/" + url.PathEscape(user.Login) + "/events"
	if err := a.client.call(ctx, token, "list events", http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}

	entries := make([]internal.TimelineEntry, 0, len(events))
	for _, raw := range events {
		entry, ok := a.normalize(conn.UserID, raw)
		if ok {
			entries = append(entries, entry)
		}
	}
	a.logger.Debugf("github: %d of %d events for %s recognized", len(entries), len(events), user.Login)
	return entries, nil
}

// flexID accepts an event id encoded either as a JSON string or a number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type githubEvent struct {
	ID        flexID `json:"id"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Repo      struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload json.RawMessage `json:"payload"`
}

type githubPushPayload struct {
	Ref        string            `json:"ref"`
	Commits    []json.RawMessage `json:"commits"`
	HeadCommit *struct {
		Message string `json:"message"`
		URL     string `json:"url"`
	} `json:"head_commit"`
}

type githubCreatePayload struct {
	RefType     string `json:"ref_type"`
	Description string `json:"description"`
}

type githubLinked struct {
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

type githubItemPayload struct {
	Action      string        `json:"action"`
	Number      int           `json:"number"`
	PullRequest *githubLinked `json:"pull_request"`
	Issue       *githubLinked `json:"issue"`
}

type githubMetadata struct {
	EventType string `json:"event_type"`
	Repo      string `json:"repo"`
}

func (a *GitHubAdapter) normalize(userID string, raw json.RawMessage) (internal.TimelineEntry, bool) {
	var ev githubEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		a.logger.Warnf("github: skipping malformed event: %v", err)
		return internal.TimelineEntry{}, false
	}
	if ev.ID == "" {
		a.logger.Warnf("github: skipping %s event without id", ev.Type)
		return internal.TimelineEntry{}, false
	}
	repo := ev.Repo.Name

	entry := internal.TimelineEntry{
		UserID:         userID,
		EventDate:      a.parseTime(ev.CreatedAt),
		EntryType:      internal.EntryActivity,
		Category:       githubCategory,
		ExternalURL:    fmt.Sprintf("https://github.com/%s/activity", repo),
		SourceProvider: ProviderGitHub,
		ExternalID:     string(ev.ID) + "-" + repo,
	}

	switch ev.Type {
	case "PushEvent":
		var p githubPushPayload
		a.decodePayload(ev, &p)
		branch := "unknown branch"
		if ref := p.Ref[strings.LastIndex(p.Ref, "/")+1:]; ref != "" {
			branch = ref
		}
		entry.Title = fmt.Sprintf("Pushed %d commit(s) to %s on %s", len(p.Commits), repo, branch)
		if p.HeadCommit != nil {
			entry.Description = p.HeadCommit.Message
			if p.HeadCommit.URL != "" {
				entry.ExternalURL = p.HeadCommit.URL
			}
		}
	case "CreateEvent":
		var p githubCreatePayload
		a.decodePayload(ev, &p)
		if p.RefType != "repository" {
			return internal.TimelineEntry{}, false
		}
		entry.Title = fmt.Sprintf("Created new repository %s", repo)
		entry.Description = p.Description
		entry.ExternalURL = "https://github.com/" + repo
	case "PullRequestEvent":
		var p githubItemPayload
		a.decodePayload(ev, &p)
		entry.Title = itemTitle("Pull Request", p.Action, p.Number, p.PullRequest, repo)
		if p.PullRequest != nil && p.PullRequest.HTMLURL != "" {
			entry.ExternalURL = p.PullRequest.HTMLURL
		}
	case "IssuesEvent":
		var p githubItemPayload
		a.decodePayload(ev, &p)
		entry.Title = itemTitle("Issue", p.Action, p.Number, p.Issue, repo)
		if p.Issue != nil && p.Issue.HTMLURL != "" {
			entry.ExternalURL = p.Issue.HTMLURL
		}
	default:
		a.logger.Debugf("github: ignoring %s event %s", ev.Type, ev.ID)
		return internal.TimelineEntry{}, false
	}

	entry.Metadata, _ = json.Marshal(githubMetadata{EventType: ev.Type, Repo: repo})
	return entry, true
}

// decodePayload leaves out at its zero value when the payload is missing or
// malformed so the event still yields an entry with default fields.
func (a *GitHubAdapter) decodePayload(ev githubEvent, out any) {
	if len(ev.Payload) == 0 {
		return
	}
	if err := json.Unmarshal(ev.Payload, out); err != nil {
		a.logger.Warnf("github: malformed payload on %s event %s: %v", ev.Type, ev.ID, err)
	}
}

func (a *GitHubAdapter) parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return a.now().UTC()
}

func itemTitle(kind, action string, number int, item *githubLinked, repo string) string {
	title := ""
	if item != nil {
		title = strings.TrimSpace(item.Title)
	}
	if title == "" {
		return fmt.Sprintf("%s %s: #%d in %s", kind, action, number, repo)
	}
	return fmt.Sprintf("%s %s: #%d %s in %s", kind, action, number, title, repo)
}
