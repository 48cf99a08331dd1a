package api

import (
	"context"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/metrics"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/storage"
)

// Syncer runs provider syncs. Errors returned by RunSync are
// *internal.AppError values.
type Syncer interface {
	RunSync(ctx context.Context, userID, provider string) ([]internal.TimelineEntry, error)
	Providers() []string
}

type App interface {
	Logger() internal.Logger
	Connections() storage.ConnectionRepository
	Entries() storage.EntryRepository
	Syncer() Syncer
	Metrics() *metrics.Collector
}

type app struct {
	logger  internal.Logger
	store   storage.Store
	syncer  Syncer
	metrics *metrics.Collector
}

func NewApp(logger internal.Logger, store storage.Store, syncer Syncer, m *metrics.Collector) App {
	return &app{logger: logger, store: store, syncer: syncer, metrics: m}
}

func (a *app) Logger() internal.Logger                   { return a.logger }
func (a *app) Connections() storage.ConnectionRepository { return a.store }
func (a *app) Entries() storage.EntryRepository          { return a.store }
func (a *app) Syncer() Syncer                            { return a.syncer }
func (a *app) Metrics() *metrics.Collector               { return a.metrics }
