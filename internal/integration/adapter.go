package integration

import (
	"context"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
)

const (
	ProviderGitHub = "GitHub"
	ProviderNotion = "Notion"
)

// Adapter fetches remote activity for one provider and normalizes it into
// candidate entries. Candidates carry UserID, SourceProvider and ExternalID;
// IDs and persistence timestamps are assigned at ingestion.
type Adapter interface {
	// Provider is the canonical provider name, e.g. "GitHub".
	Provider() string
	FetchActivity(ctx context.Context, conn *internal.Connection) ([]internal.TimelineEntry, error)
	// RefreshCredential tries to renew an expired credential in place and
	// reports whether it did.
	RefreshCredential(ctx context.Context, conn *internal.Connection) (bool, error)
}
